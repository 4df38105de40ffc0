package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

const (
	defaultSendQueueSize = 256
	minSendQueueSize     = 32

	defaultWriteTimeout  = 5 * time.Second
	defaultReadIdle      = 2 * time.Minute
	defaultAuthTimeout   = 10 * time.Second
	defaultHeartbeat     = 30 * time.Second
	heartbeatPingTimeout = 5 * time.Second
	closeGrace           = 1 * time.Second

	maxPingFailures = 3
	maxFrameBytes   = 64 * 1024

	// Per-connection event budget.
	eventRate  = 20
	eventBurst = 40
)

// Gateway is the websocket entrypoint. It authenticates the handshake
// through the session service, registers the connection with the engine
// and runs the read/write/heartbeat loops.
type Gateway struct {
	Log      *slog.Logger
	Sessions *service.SessionService
	Engine   *Engine

	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
	AuthTimeout     time.Duration
	Heartbeat       time.Duration
	SendQueueSize   int

	// InsecureSkipVerify disables the websocket origin check. Dev only.
	InsecureSkipVerify bool
}

func NewGateway(log *slog.Logger, sessions *service.SessionService, engine *Engine) *Gateway {
	return &Gateway{
		Log:             log,
		Sessions:        sessions,
		Engine:          engine,
		WriteTimeout:    defaultWriteTimeout,
		ReadIdleTimeout: defaultReadIdle,
		AuthTimeout:     defaultAuthTimeout,
		Heartbeat:       defaultHeartbeat,
		SendQueueSize:   defaultSendQueueSize,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and runs the realtime session. The bearer
// token comes from the `token` query parameter or, failing that, from an
// `authenticate` event that must arrive within the auth timeout.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: g.InsecureSkipVerify,
	})
	if err != nil {
		g.Log.Error("ws accept failed", slog.Any("error", err))
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	userID, err := g.authenticate(ctx, conn, r)
	if err != nil {
		g.Log.Info("ws authentication failed", slog.Any("error", err))
		_ = conn.Close(websocket.StatusPolicyViolation, "authentication required")
		return
	}

	queue := g.SendQueueSize
	if queue < minSendQueueSize {
		queue = minSendQueueSize
	}
	client := NewClient(userID, queue)

	var closeOnce sync.Once
	registered := false

	// shutdown is idempotent. It does NOT close client.Send; membership
	// removal happens before client.Close inside UnregisterConnection.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			if registered {
				g.Engine.UnregisterConnection(context.Background(), client)
			} else {
				client.Close()
			}
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	if err := g.Engine.RegisterConnection(ctx, client); err != nil {
		g.Log.Error("connection registration failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		shutdown(websocket.StatusInternalError, "registration failed")
		return
	}
	registered = true

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case event := <-client.Send:
				if err := writeEvent(ctx, conn, event, g.WriteTimeout); err != nil {
					g.Log.Info("ws write failed",
						slog.String("session_id", client.SessionID),
						slog.Any("error", err),
					)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.Heartbeat)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				pingCtx, pingCancel := context.WithTimeout(ctx, heartbeatPingTimeout)
				err := conn.Ping(pingCtx)
				pingCancel()

				if err != nil {
					failures++
					if failures >= maxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(eventRate), eventBurst)

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.ReadIdleTimeout)
		event, err := readEvent(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose, readErrCtxDone, readErrConnClosed:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrBadJSON:
				g.sendError(client, "bad_json", "invalid JSON")
				continue readLoop
			default:
				g.Log.Info("ws read failed",
					slog.String("session_id", client.SessionID),
					slog.Any("error", err),
				)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		if !limiter.Allow() {
			g.sendError(client, "rate_limited", "too many events")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		metricEvents.WithLabelValues(event.Event).Inc()

		switch event.Event {
		case EventAuthenticate:
			// Already authenticated; treat a repeat as a no-op.

		case EventSendMessage:
			var p SendMessagePayload
			if err := json.Unmarshal(event.Data, &p); err != nil {
				g.sendError(client, "bad_payload", "invalid sendMessage payload")
				continue readLoop
			}
			if strings.TrimSpace(p.ReceiverID) == "" || strings.TrimSpace(p.Message) == "" {
				g.sendError(client, "bad_payload", "receiverId and message are required")
				continue readLoop
			}
			if _, err := g.Engine.RouteMessage(ctx, client.UserID, p.ReceiverID, p.Message); err != nil {
				g.Log.Error("message routing failed",
					slog.String("user_id", client.UserID),
					slog.Any("error", err),
				)
				g.sendError(client, "send_failed", "message could not be delivered")
			}

		case EventMarkRead:
			var p MarkReadPayload
			if err := json.Unmarshal(event.Data, &p); err != nil {
				g.sendError(client, "bad_payload", "invalid markRead payload")
				continue readLoop
			}
			if err := g.Engine.MarkRead(ctx, client.UserID, p.MessageIDs); err != nil {
				g.Log.Error("mark read failed",
					slog.String("user_id", client.UserID),
					slog.Any("error", err),
				)
				g.sendError(client, "mark_read_failed", "messages could not be marked read")
			}

		default:
			g.sendError(client, "unsupported", "unsupported event: "+event.Event)
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}
}

// authenticate resolves the user for this connection. A token in the
// query string wins; otherwise the first frame must be an authenticate
// event carrying one.
func (g *Gateway) authenticate(ctx context.Context, conn *websocket.Conn, r *http.Request) (string, error) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))

	if token == "" {
		authCtx, cancel := context.WithTimeout(ctx, g.AuthTimeout)
		event, err := readEvent(authCtx, conn)
		cancel()
		if err != nil {
			return "", err
		}
		if event.Event != EventAuthenticate {
			return "", errors.New("first event must be authenticate")
		}
		var p AuthenticatePayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return "", err
		}
		token = strings.TrimSpace(p.Token)
	}

	claims, err := g.Sessions.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (g *Gateway) sendError(client *Client, code, msg string) {
	if !client.TrySend(NewEvent(EventError, ErrorPayload{Code: code, Message: msg})) {
		metricEventsDropped.Inc()
	}
}

func readEvent(ctx context.Context, conn *websocket.Conn) (Event, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return Event{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return Event{}, errors.New("unsupported message type")
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, errBadJSON
	}
	return event, nil
}

func writeEvent(parent context.Context, conn *websocket.Conn, event Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

var errBadJSON = errors.New("bad json")

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	if errors.Is(err, errBadJSON) {
		return readErrBadJSON
	}
	return readErrUnknown
}
