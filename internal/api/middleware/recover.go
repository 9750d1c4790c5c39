package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/example/plant-store/internal/logger"
)

// Recover turns a handler panic into a 500 envelope. The panic value is
// only shown to the caller when expose is set.
func Recover(log *logger.Logger, expose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic serving request",
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				message := "Something went wrong!"
				if expose {
					if err, ok := rec.(error); ok {
						message = err.Error()
					} else if s, ok := rec.(string); ok {
						message = s
					}
				}
				respondError(w, message, http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
