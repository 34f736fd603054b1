// Package api implements the flag service HTTP surface: CRUD on flags
// plus the enabled-check endpoint the evaluation engine polls.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/mkorzun/flaglab/internal/auth"
	"github.com/mkorzun/flaglab/internal/metrics"
	"github.com/mkorzun/flaglab/internal/store"
)

// Options configures a Server.
type Options struct {
	AdminAPIKey    string
	ClientAPIKey   string
	RateLimitPerIP int
	Logger         zerolog.Logger
}

type Server struct {
	store store.Store
	opts  Options
	log   zerolog.Logger
}

func NewServer(st store.Store, opts Options) *Server {
	if opts.RateLimitPerIP <= 0 {
		opts.RateLimitPerIP = 100
	}
	return &Server{store: st, opts: opts, log: opts.Logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(httprate.LimitByIP(s.opts.RateLimitPerIP, time.Minute))

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleClient))
		r.Get("/flags", s.handleListFlags)
		r.Get("/flags/{name}", s.handleGetFlag)
		r.Get("/flags/{name}/enabled", s.handleEnabled)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleAdmin))
		r.Post("/flags", s.handleCreateFlag)
		r.Put("/flags/{name}", s.handleUpdateFlag)
		r.Delete("/flags/{name}", s.handleDeleteFlag)
	})

	return r
}

// ---- handlers ----

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	var (
		flags []store.Flag
		err   error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "":
		flags, err = s.store.ListFlags(r.Context())
	case "enabled":
		flags, err = s.store.ListFlagsByStatus(r.Context(), true)
	case "disabled":
		flags, err = s.store.ListFlagsByStatus(r.Context(), false)
	default:
		BadRequestError(w, r, ErrCodeInvalidStatus, "status must be 'enabled' or 'disabled'")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("list flags failed")
		InternalError(w, r, "failed to list flags")
		return
	}
	if flags == nil {
		flags = []store.Flag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"flags": flags})
}

func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	name := flagName(r)
	flag, err := s.store.GetFlag(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		NotFoundError(w, r, "flag not found: "+name)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("flag", name).Msg("get flag failed")
		InternalError(w, r, "failed to get flag")
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	name := flagName(r)
	flag, err := s.store.GetFlag(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		NotFoundError(w, r, "flag not found: "+name)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("flag", name).Msg("enabled check failed")
		InternalError(w, r, "failed to check flag")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    flag.Name,
		"enabled": flag.Enabled,
	})
}

func (s *Server) handleCreateFlag(w http.ResponseWriter, r *http.Request) {
	var params store.UpsertParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		ValidationError(w, r, "flag name is required", map[string]string{"name": "must not be empty"})
		return
	}

	flag, err := s.store.CreateFlag(r.Context(), params)
	if errors.Is(err, store.ErrExists) {
		ConflictError(w, r, "flag already exists: "+params.Name)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("flag", params.Name).Msg("create flag failed")
		InternalError(w, r, "failed to create flag")
		return
	}
	s.updateStoredFlagsGauge(r)
	writeJSON(w, http.StatusCreated, flag)
}

func (s *Server) handleUpdateFlag(w http.ResponseWriter, r *http.Request) {
	var params store.UpsertParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON")
		return
	}
	params.Name = flagName(r)

	flag, err := s.store.UpdateFlag(r.Context(), params)
	if errors.Is(err, store.ErrNotFound) {
		NotFoundError(w, r, "flag not found: "+params.Name)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("flag", params.Name).Msg("update flag failed")
		InternalError(w, r, "failed to update flag")
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func (s *Server) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	name := flagName(r)
	if err := s.store.DeleteFlag(r.Context(), name); err != nil {
		s.log.Error().Err(err).Str("flag", name).Msg("delete flag failed")
		InternalError(w, r, "failed to delete flag")
		return
	}
	s.updateStoredFlagsGauge(r)
	w.WriteHeader(http.StatusNoContent)
}

// ---- middleware & helpers ----

// requireRole authenticates the bearer token against the configured keys
// and checks the resolved role covers the required one. Admin keys pass
// everywhere; client keys only pass read endpoints.
func (s *Server) requireRole(required auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				UnauthorizedError(w, r, "missing bearer token")
				return
			}

			var role auth.Role
			switch {
			case auth.VerifyAPIKeyConstantTime(token, s.opts.AdminAPIKey):
				role = auth.RoleAdmin
			case auth.VerifyAPIKeyConstantTime(token, s.opts.ClientAPIKey):
				role = auth.RoleClient
			default:
				UnauthorizedError(w, r, "invalid token")
				return
			}

			if !auth.HasPermission(role, required) {
				ForbiddenError(w, r, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// flagName extracts the flag name from the route, unescaping it so
// dotted hierarchical names round-trip through clients that escape.
func flagName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (s *Server) updateStoredFlagsGauge(r *http.Request) {
	flags, err := s.store.ListFlags(r.Context())
	if err != nil {
		return
	}
	metrics.StoredFlags.Set(float64(len(flags)))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
