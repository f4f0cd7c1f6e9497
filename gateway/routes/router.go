package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"metagate/gateway/middleware"
)

const rateLimitKeyRPC = "rpc"

// Config wires the relayer HTTP surface.
type Config struct {
	RPC           http.Handler
	Health        func() error
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

// RateLimitKey is the limiter key applied to the JSON-RPC endpoint.
func RateLimitKey() string { return rateLimitKeyRPC }

func New(cfg Config) (http.Handler, error) {
	if cfg.RPC == nil {
		return nil, fmt.Errorf("routes: rpc handler required")
	}
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability

	r.With(observe(obs, "healthz")).Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if cfg.Health != nil {
			if err := cfg.Health(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Route("/rpc", func(sr chi.Router) {
		if obs != nil {
			sr.Use(obs.Middleware(rateLimitKeyRPC))
		}
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware(rateLimitKeyRPC))
		}
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Optional())
		}
		sr.Handle("/", cfg.RPC)
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r, nil
}

func observe(obs *middleware.Observability, route string) func(http.Handler) http.Handler {
	if obs == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return obs.Middleware(route)
}
