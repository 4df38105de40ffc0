package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/kv"
	"github.com/aussiebroadwan/whisper/internal/chat/realtime"
	"github.com/aussiebroadwan/whisper/internal/chat/service"
	"github.com/aussiebroadwan/whisper/internal/chat/store"
	"github.com/aussiebroadwan/whisper/pkg/httpx"
	"github.com/aussiebroadwan/whisper/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	kv    kv.Store

	SessionService *service.SessionService
	UserService    *service.UserService
	MessageService *service.MessageService
	Engine         *realtime.Engine
	Gateway        *realtime.Gateway
}

func NewRouter(buildVersion string, st store.Store, kvStore kv.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		kv:           kvStore,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerChats()
	r.registerRealtime()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		Users:    r.UserService,
		Sessions: r.SessionService,
	}

	// Public endpoints carry strict per-IP limits; login additionally
	// keys on the submitted email to slow credential stuffing.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify-otp",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyOTP),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			AuthnMiddleware(r.SessionService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			AuthnMiddleware(r.SessionService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerChats() {
	h := &ChatsHandler{
		Messages: r.MessageService,
		Engine:   r.Engine,
	}

	r.Mux.Handle("GET /v1/chats",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			AuthnMiddleware(r.SessionService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/chats",
		httpx.Chain(http.HandlerFunc(h.HandleSend),
			AuthnMiddleware(r.SessionService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerRealtime() {
	// The gateway does its own token handshake; the HTTP authn middleware
	// would reject connections that authenticate via the first event.
	r.Mux.Handle("GET /v1/ws", r.Gateway)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.kv))
	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
