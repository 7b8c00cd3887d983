package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/billforge/billforge-backend/api/responses"
	pkgerrors "github.com/billforge/billforge-backend/pkg/errors"
	"github.com/billforge/billforge-backend/pkg/logger"
)

// SchedulerToken guards operational endpoints invoked by the external
// scheduler with a shared bearer token.
func SchedulerToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "scheduler token not configured"))
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
				raw = strings.TrimSpace(raw[7:])
			}
			if subtle.ConstantTimeCompare([]byte(raw), []byte(token)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid scheduler token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
