package middleware

import (
	"net/http"
	"runtime/debug"

	"animesync/internal/logging"
	"animesync/pkg/apierror"
)

// NewRecovery returns a middleware that recovers from panics.
func NewRecovery(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.Error(r.Context(), "panic", "error", err, "path", r.URL.Path, "stack", string(debug.Stack()))

					writeError(w, apierror.InternalError("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
