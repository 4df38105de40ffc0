package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/domain"
	httpapi "github.com/aussiebroadwan/whisper/internal/chat/http"
	"github.com/aussiebroadwan/whisper/internal/chat/kv"
	"github.com/aussiebroadwan/whisper/internal/chat/realtime"
	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/internal/chat/store/drivers/sqlite"
	"github.com/aussiebroadwan/whisper/pkg/cryptox"
	"github.com/aussiebroadwan/whisper/pkg/idx"
	"github.com/aussiebroadwan/whisper/pkg/jwtx"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
)

/*
 * End-to-end tests for the chat service. The full service is wired
 * in-process against an httptest server so the suite exercises the real
 * router, session lifecycle and websocket gateway without external
 * infrastructure.
 */

const testPassword = "correct-horse-battery"

// wsReadTimeout bounds every websocket read in the suite. Events arrive
// promptly once the triggering request returns, so a hit on this timeout
// means the event was never sent.
const wsReadTimeout = 5 * time.Second

type otpCapture struct {
	codes map[string]string
}

func (n *otpCapture) SendLoginCode(ctx context.Context, email, code string) error {
	n.codes[email] = code
	return nil
}

type testEnv struct {
	server *httptest.Server
	store  store.Store
	otps   *otpCapture
}

type testUser struct {
	ID     string
	Slug   string
	Tokens domain.TokenPair
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))
	require.NoError(t, cryptox.ReloadPepper())

	st, err := sqlite.NewStore("file:e2e_chat_" + idx.New().String() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kvStore := kv.NewMemory()

	sessions := &service.SessionService{
		Access:  jwtx.NewHS256("e2e-access-secret", "whisper", 15*time.Minute),
		Refresh: jwtx.NewHS256("e2e-refresh-secret", "whisper", 7*24*time.Hour),
		KV:      kvStore,
		Store:   st,
	}
	otps := &otpCapture{codes: map[string]string{}}
	keys := &service.KeyStoreService{Store: st}
	engine := realtime.NewEngine(st, keys, logger)

	router := httpapi.NewRouter("e2e", st, kvStore, logger)
	router.SessionService = sessions
	router.UserService = &service.UserService{Store: st, Sessions: sessions, Notifier: otps}
	router.MessageService = &service.MessageService{Store: st, Keys: keys}
	router.Engine = engine

	gateway := realtime.NewGateway(logger, sessions, engine)
	gateway.InsecureSkipVerify = true
	router.Gateway = gateway
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: st, otps: otps}
}

// post sends a JSON request against the live server and decodes the reply
// into out when it is non-nil.
func (e *testEnv) post(t *testing.T, path, token string, body, out any) int {
	t.Helper()
	return e.request(t, http.MethodPost, path, token, body, out)
}

func (e *testEnv) get(t *testing.T, path, token string, out any) int {
	t.Helper()
	return e.request(t, http.MethodGet, path, token, nil, out)
}

func (e *testEnv) request(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

// signup registers the user and walks the password plus OTP login flow.
func (e *testEnv) signup(t *testing.T, name, email string) testUser {
	t.Helper()

	status := e.post(t, "/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": testPassword,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	status = e.post(t, "/v1/auth/login", "", map[string]string{
		"email": email, "password": testPassword,
	}, nil)
	require.Equal(t, http.StatusOK, status)

	var pair domain.TokenPair
	status = e.post(t, "/v1/auth/verify-otp", "", map[string]string{
		"email": email, "code": e.otps.codes[email],
	}, &pair)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, pair.AccessToken)

	var me struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	status = e.get(t, "/v1/auth/me", pair.AccessToken, &me)
	require.Equal(t, http.StatusOK, status)

	return testUser{ID: me.ID, Slug: me.Slug, Tokens: pair}
}

// befriend inserts the accepted friendship edge directly. Friend
// request/accept flows live in a separate service.
func (e *testEnv) befriend(t *testing.T, a, b testUser) {
	t.Helper()
	require.NoError(t, e.store.Friends().CreateFriend(t.Context(), domain.Friend{
		ID:         idx.New().String(),
		SenderID:   a.ID,
		ReceiverID: b.ID,
		CreatedAt:  time.Now().UTC(),
	}))
}

// wsURL converts the test server base URL into the websocket endpoint.
func (e *testEnv) wsURL(token string) string {
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/v1/ws"
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}

// dial opens an authenticated websocket connection via the token query
// parameter.
func (e *testEnv) dial(t *testing.T, u testUser) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), wsReadTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, e.wsURL(u.Tokens.AccessToken), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(realtime.Event{Event: event, Data: data})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), wsReadTimeout)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, b))
}

func readEvent(t *testing.T, conn *websocket.Conn) realtime.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), wsReadTimeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var event realtime.Event
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

// readEventOfType drains events until one with the wanted name arrives.
func readEventOfType(t *testing.T, conn *websocket.Conn, want string) realtime.Event {
	t.Helper()

	for i := 0; i < 10; i++ {
		event := readEvent(t, conn)
		if event.Event == want {
			return event
		}
	}
	t.Fatalf("no %q event received", want)
	return realtime.Event{}
}

func decodePayload[T any](t *testing.T, event realtime.Event) T {
	t.Helper()

	var payload T
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	return payload
}
