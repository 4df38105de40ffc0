package realtime

import "sync"

// Registry tracks which clients belong to which user. It is process-local:
// clustering this service requires moving the registry to a shared broker,
// which is a documented limitation.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Client),
	}
}

// Add registers a client under its user. It reports whether this was the
// user's first active connection.
func (r *Registry) Add(client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byUser[client.UserID]
	if !ok {
		set = make(map[string]*Client)
		r.byUser[client.UserID] = set
	}
	set[client.SessionID] = client
	return !ok
}

// Remove deregisters a client and signals its shutdown. It reports whether
// the user has no connections left.
func (r *Registry) Remove(client *Client) bool {
	r.mu.Lock()
	set, ok := r.byUser[client.UserID]
	if ok {
		delete(set, client.SessionID)
		if len(set) == 0 {
			delete(r.byUser, client.UserID)
		}
	}
	last := !ok || len(set) == 0
	r.mu.Unlock()

	client.Close()
	return last
}

// ClientsFor snapshots the user's active clients.
func (r *Registry) ClientsFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether the user has at least one active connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SendToUser fans an event out to every device of the user, dropping
// rather than blocking when a queue is full. It reports how many clients
// accepted the event.
func (r *Registry) SendToUser(userID string, event Event) int {
	delivered := 0
	for _, c := range r.ClientsFor(userID) {
		if c.TrySend(event) {
			delivered++
		}
	}
	return delivered
}

// Connections returns the total number of active clients.
func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.byUser {
		n += len(set)
	}
	return n
}
