package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/brandflow/hookd/internal/models"
	"github.com/brandflow/hookd/internal/registry"
)

type contextKey string

const identityContextKey contextKey = "identity"

func IdentityFromContext(ctx context.Context) registry.Identity {
	id, _ := ctx.Value(identityContextKey).(registry.Identity)
	return id
}

// IdentityMiddleware reads the verified caller identity injected by the
// upstream gateway. Requests without a tenant membership are rejected here;
// role sufficiency is the registry's concern.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := registry.Identity{
			ActorID:  r.Header.Get("X-Actor-Id"),
			TenantID: r.Header.Get("X-Tenant-Id"),
			Role:     models.TenantRole(r.Header.Get("X-Tenant-Role")),
		}
		if id.ActorID == "" || id.TenantID == "" {
			writeError(w, http.StatusUnauthorized, "missing caller identity")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func LoggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.statusCode).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
