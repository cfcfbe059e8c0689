package recoverer

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	"github.com/vadimbarashkov/shorturl/pkg/middleware"
	"github.com/vadimbarashkov/shorturl/pkg/response"
)

// New returns a middleware that turns a panic into a JSON 500 response.
// http.ErrAbortHandler is re-panicked so the server can abort the connection.
func New(logger *slog.Logger) middleware.Middleware {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}

					logger.Error(
						"panic recovered",
						slog.Group(op,
							slog.Any("err", rvr),
							slog.String("stack", string(debug.Stack())),
						),
					)

					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, response.InternalError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
