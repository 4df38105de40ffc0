package domain

import "time"

// Friend records an accepted friendship edge. Request/accept flows live
// outside this service; the message path only needs the adjacency check.
type Friend struct {
	ID         string
	SenderID   string
	ReceiverID string
	CreatedAt  time.Time
}
