package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/jobtrail/jobtrail/pkg/httputil"
	"github.com/jobtrail/jobtrail/pkg/observability"
)

// Recovery converts handler panics into 500 responses and logs the stack.
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.FromContext(r.Context()).
						WithField("panic", fmt.Sprintf("%v", v)).
						WithField("stack", string(debug.Stack())).
						Error("handler panicked")
					httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
