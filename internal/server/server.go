// Package server wires the engine, the user directory and a revocation backend
// into the reference HTTP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/config"
	"github.com/MrEthical07/jwtauth/internal/rate"
	"github.com/MrEthical07/jwtauth/internal/userdir"
	"github.com/MrEthical07/jwtauth/metrics/export/prometheus"
	"github.com/MrEthical07/jwtauth/middleware"
	"github.com/MrEthical07/jwtauth/password"
	"github.com/MrEthical07/jwtauth/revocation"
)

const (
	HealthRoute = "/healthz"
	LoginRoute  = "/login"
	LogoutRoute = "/logout"
	MeRoute     = "/me"
	// RevokeSubjectRoute is only served with the cutoff strategy.
	RevokeSubjectRoute = "/admin/revoke/{subject}"

	adminScope = "admin"
)

type Server struct {
	engine   *jwtauth.Engine
	users    *userdir.Directory
	strategy revocation.Strategy
	throttle *rate.Limiter
	log      zerolog.Logger
	handler  http.Handler
	closers  []closer
}

// New builds a Server from a loaded configuration file.
func New(ctx context.Context, f *config.File, log zerolog.Logger) (*Server, error) {
	hasher, err := password.NewArgon2(f.Password)
	if err != nil {
		return nil, err
	}
	users, err := userdir.New(hasher, f.Users)
	if err != nil {
		return nil, err
	}

	cfg, err := f.EngineConfig(users.Mappings())
	if err != nil {
		return nil, err
	}

	strategy, closers, err := buildStrategy(ctx, f.Revocation, log)
	if err != nil {
		return nil, err
	}

	builder := jwtauth.New().
		WithConfig(cfg).
		WithStrategy(strategy).
		WithLogger(log)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(jwtauth.NewZerologSink(log))
	}
	engine, err := builder.Build()
	if err != nil {
		_ = runClosers(closers)
		return nil, err
	}

	s := &Server{
		engine:   engine,
		users:    users,
		strategy: strategy,
		log:      log,
		closers:  closers,
	}
	if f.Throttle.Enabled {
		client, cs, err := openRedis(ctx, f.Throttle.Redis, log)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("login throttle: %w", err)
		}
		s.closers = append(s.closers, cs...)
		if s.throttle, err = rate.New(client, f.Throttle.Config); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	if s.handler, err = s.routes(f.Server.MetricsPath); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Engine returns the token engine.
func (s *Server) Engine() *jwtauth.Engine { return s.engine }

// Handler returns the root HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Close stops the engine and releases the revocation backend.
func (s *Server) Close() error {
	s.engine.Close()
	return runClosers(s.closers)
}

func (s *Server) routes(metricsPath string) (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+HealthRoute, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, map[string]string{"status": "ok"}, http.StatusOK)
	})
	mux.HandleFunc("POST "+LoginRoute, s.login)
	mux.HandleFunc("POST "+LogoutRoute, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET "+MeRoute, middleware.Guard(s.engine)(http.HandlerFunc(s.me)))

	if cutoff, ok := s.strategy.(*revocation.Cutoff); ok {
		mux.Handle("POST "+RevokeSubjectRoute, middleware.RequireScope(s.engine, adminScope)(s.revokeSubject(cutoff)))
	}

	if metricsPath != "" {
		h, err := prometheus.Handler(prometheus.NewCollector(s.engine))
		if err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		mux.Handle("GET "+metricsPath, h)
	}

	return middleware.Chain(mux,
		middleware.Correlation(s.log),
		middleware.Logging,
		middleware.Recover,
		middleware.Dispatch(s.engine),
		middleware.Revoke(s.engine),
	), nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type identityResponse struct {
	Subject   string    `json:"subject"`
	Scope     string    `json:"scope"`
	TokenID   string    `json:"jti,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ip := clientIP(r)
	if s.throttle != nil {
		if err := s.throttle.Allow(ctx, req.Username, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				writeError(w, r, "too many failed logins", http.StatusTooManyRequests)
				return
			}
			zerolog.Ctx(ctx).Error().Err(err).Msg("login.throttle_unavailable")
			writeError(w, r, "login unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	user, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, userdir.ErrInvalidCredentials) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("login.failed")
		}
		if s.throttle != nil {
			if err := s.throttle.Fail(ctx, req.Username, ip); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("login.throttle_record_failed")
			}
		}
		writeError(w, r, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, req.Username, ip); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("login.throttle_reset_failed")
		}
	}

	// The engine counts, logs and audits issuance failures; the login still succeeds.
	if _, err := s.engine.PrepareToken(r, user, user.Scope()); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("user", req.Username).Msg("login.no_token")
	}

	writeJSON(w, r, identityResponse{Subject: user.JWTSubject(), Scope: user.Scope()}, http.StatusOK)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, r, identityResponse{
		Subject:   res.Subject,
		Scope:     res.Scope,
		TokenID:   res.Claims.ID,
		ExpiresAt: res.Claims.ExpiresAt,
	}, http.StatusOK)
}

func (s *Server) revokeSubject(cutoff *revocation.Cutoff) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := r.PathValue("subject")
		cutoff.RevokeSubject(subject, time.Now())
		zerolog.Ctx(r.Context()).Info().Str("sub", subject).Msg("subject.revoked")
		w.WriteHeader(http.StatusNoContent)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("response.write_failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, status int) {
	writeJSON(w, r, errorResponse{
		Error:         msg,
		CorrelationID: w.Header().Get(middleware.CorrelationIDHeader),
	}, status)
}
