package middleware

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/jwtauth"
)

// Dispatch installs a token slot on every request and writes the token prepared
// by [jwtauth.Engine.PrepareToken] into the response as "Authorization: Bearer".
//
// The header is set right before the response headers are sent, or after the
// handler returns when it wrote nothing. When body rules are configured the request
// body is buffered up to the engine's MaxBodyBytes so the rules can be checked
// after the handler consumed it.
func Dispatch(engine *jwtauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if engine == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.WithContext(jwtauth.WithTokenSlot(r.Context()))

			if engine.Matcher().NeedsBody() {
				if err := jwtauth.MakeBodyRewindable(r, engine.MaxBodyBytes()); err != nil {
					lvl := zerolog.WarnLevel
					if errors.Is(err, jwtauth.ErrBodyNotRewindable) {
						lvl = zerolog.DebugLevel
					}
					zerolog.Ctx(r.Context()).WithLevel(lvl).Err(err).Msg("dispatch.body_buffer")
				}
			}

			dw := &dispatchWriter{ResponseWriter: w, engine: engine, r: r}
			next.ServeHTTP(dw, r)
			dw.attach()
		})
	}
}

type dispatchWriter struct {
	http.ResponseWriter
	engine   *jwtauth.Engine
	r        *http.Request
	attached bool
}

func (w *dispatchWriter) attach() {
	if w.attached {
		return
	}
	w.attached = true
	if token, ok := w.engine.TakePreparedToken(w.r.Context()); ok {
		w.Header().Set("Authorization", "Bearer "+token)
	}
}

func (w *dispatchWriter) WriteHeader(code int) {
	w.attach()
	w.ResponseWriter.WriteHeader(code)
}

func (w *dispatchWriter) Write(b []byte) (int, error) {
	w.attach()
	return w.ResponseWriter.Write(b)
}

func (w *dispatchWriter) Flush() {
	w.attach()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *dispatchWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
