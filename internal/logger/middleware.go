package logger

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one API line per request once the handler returns.
// Server errors are logged at ERROR.
func RequestLogger(l *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start).Round(time.Microsecond).String()
			if status >= http.StatusInternalServerError {
				l.Error("API", fmt.Sprintf("%s %s - %d (%s)", r.Method, r.URL.Path, status, duration))
				return
			}
			l.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), duration)
		})
	}
}
