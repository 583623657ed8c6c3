package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"imagegen-dashboard/internal/domain/ports/adapter"
	"imagegen-dashboard/internal/infra/logging"
	"imagegen-dashboard/internal/infra/metrics"
	"imagegen-dashboard/internal/infra/redis"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RateLimiter is the fixed-window limiter used per client and route.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type clientKey struct{}

func clientFrom(ctx context.Context) string {
	if v, ok := ctx.Value(clientKey{}).(string); ok && v != "" {
		return v
	}
	return "anonymous"
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.IncAPIRequest(route, strconv.Itoa(status))
		logging.With(r.Context(), s.log).Info().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.With(r.Context(), s.log).Error().Interface("panic", rec).Msg("panic recovered")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate accepts the API key or a JWT and forwards X-Compute-Token to the compute client.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := adapter.WithBearerToken(r.Context(), r.Header.Get("X-Compute-Token"))
		if s.auth.Enabled() {
			method, client, err := s.auth.Authenticate(r)
			if err != nil {
				metrics.IncAPIAuth(method, "unauthorized")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			metrics.IncAPIAuth(method, "authorized")
			ctx = context.WithValue(ctx, clientKey{}, client)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit is a no-op without a limiter. Limiter errors let the request through.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil || s.cfg.RateLimit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := redis.ClientRouteKey(clientFrom(r.Context()), r.Method+" "+r.URL.Path)
		ok, err := s.limiter.Allow(r.Context(), key, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncRateLimitTriggered(chi.RouteContext(r.Context()).RoutePattern())
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
