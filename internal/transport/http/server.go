package http

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/nfavre/gatehouse/internal/session"
)

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer wires the auth routes, the access log and otel instrumentation
// into an http.Server ready to serve.
func NewServer(cfg ServerConfig, sessions *session.Orchestrator, log *zap.Logger) *http.Server {
	if log == nil {
		log = zap.NewNop()
	}
	h := NewHandler(sessions, log)
	authed := RequireAuth(sessions)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/register", h.Register)
	mux.HandleFunc("POST /v1/auth/login", h.Login)
	mux.HandleFunc("POST /v1/auth/refresh", h.Refresh)
	mux.HandleFunc("POST /v1/auth/logout", h.Logout)
	mux.HandleFunc("POST /v1/auth/resend-verification", h.ResendVerification)
	mux.HandleFunc("GET /v1/auth/verify/{token}", h.VerifyEmail)
	mux.Handle("POST /v1/auth/change-password", authed(http.HandlerFunc(h.ChangePassword)))
	mux.Handle("GET /v1/auth/me", authed(http.HandlerFunc(h.Me)))

	var handler http.Handler = mux
	handler = LogRequests(log)(handler)
	handler = otelhttp.NewHandler(handler, "gatehouse.http")

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
