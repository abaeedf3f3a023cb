package jwtauth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/MrEthical07/jwtauth/jwt"
)

type tokenSlotContextKey struct{}

// tokenSlot holds the token prepared for one request. It is filled at most once and
// handed out at most once.
type tokenSlot struct {
	mu       sync.Mutex
	token    string
	claims   *jwt.Claims
	consumed bool
}

func (s *tokenSlot) fill(token string, claims *jwt.Claims) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" || s.consumed {
		return false
	}
	s.token = token
	s.claims = claims
	return true
}

func (s *tokenSlot) filled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" || s.consumed
}

func (s *tokenSlot) take() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.consumed || s.token == "" {
		return "", false
	}
	token := s.token
	s.token = ""
	s.claims = nil
	s.consumed = true
	return token, true
}

// WithTokenSlot returns a context able to carry a prepared token. The dispatch
// middleware installs it; PrepareToken fills it.
func WithTokenSlot(ctx context.Context) context.Context {
	if slotFromContext(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, tokenSlotContextKey{}, &tokenSlot{})
}

// PreparedToken returns the token prepared for the request without consuming it.
func PreparedToken(ctx context.Context) (string, bool) {
	slot := slotFromContext(ctx)
	if slot == nil {
		return "", false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.token, slot.token != ""
}

func slotFromContext(ctx context.Context) *tokenSlot {
	if ctx == nil {
		return nil
	}
	slot, _ := ctx.Value(tokenSlotContextKey{}).(*tokenSlot)
	return slot
}

type rewindableBody struct {
	*bytes.Reader
	closer io.Closer
}

func (b rewindableBody) Close() error {
	return b.closer.Close()
}

// MakeBodyRewindable buffers up to limit bytes of r.Body so body patterns can be
// checked after a handler has read it. Larger bodies are left readable but not
// rewindable and ErrBodyNotRewindable is returned. Issuance for such a request only
// fails when a rule with a body pattern matches its method and path; rules without
// a body pattern still apply.
func MakeBodyRewindable(r *http.Request, limit int64) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if _, ok := r.Body.(io.ReadSeeker); ok {
		return nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return err
	}
	if int64(len(buf)) > limit {
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
		return ErrBodyNotRewindable
	}

	r.Body = rewindableBody{Reader: bytes.NewReader(buf), closer: r.Body}
	return nil
}

func requestBody(r *http.Request) (io.ReadSeeker, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, ok := r.Body.(io.ReadSeeker)
	if !ok {
		return nil, ErrBodyNotRewindable
	}
	return body, nil
}
