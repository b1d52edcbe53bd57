// File: internal/service/server.go
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vulngate/vulngate/internal/bypass"
	"github.com/vulngate/vulngate/internal/config"
	"github.com/vulngate/vulngate/internal/findings"
	"github.com/vulngate/vulngate/internal/gate"
	"github.com/vulngate/vulngate/internal/policy"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server wraps the gate in a long-running HTTP service. Each request is
// evaluated with its own isolated policy and bypass context; the only
// shared resource is the audit sink, which serializes its own appends.
type Server struct {
	cfg       config.ServerConfig
	defaults  policy.Policy
	authority *bypass.Authority
	log       *zap.Logger
}

// New assembles the evaluation service.
func New(cfg config.ServerConfig, defaults policy.Policy, authority *bypass.Authority, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		defaults:  defaults,
		authority: authority,
		log:       logger.Named("service"),
	}
}

// evaluateRequest is the POST /v1/evaluate body. The report field carries a
// findings document in either supported schema.
type evaluateRequest struct {
	Report jsoniter.RawMessage `json:"report"`
	Policy *policyOverride     `json:"policy,omitempty"`
	Bypass *bypassFields       `json:"bypass,omitempty"`
}

type policyOverride struct {
	SeverityThreshold string   `json:"severityThreshold"`
	Exceptions        []string `json:"exceptions,omitempty"`
}

type bypassFields struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/v1/evaluate", s.handleEvaluate)
	return r
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Report) == 0 {
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: "missing report"})
		return
	}

	report, err := findings.Parse(req.Report, "request")
	if err != nil {
		var le *findings.LoadError
		resp := errorResponse{Error: err.Error()}
		if errors.As(err, &le) {
			resp.Kind = le.Kind.String()
		}
		s.writeError(w, http.StatusBadRequest, resp)
		return
	}

	// Per-request policy copy; the shared defaults are never mutated.
	pol, err := s.requestPolicy(req.Policy)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var bypassReq *bypass.Request
	if req.Bypass != nil {
		bypassReq = &bypass.Request{Token: req.Bypass.Token, Reason: req.Bypass.Reason}
	}

	g := gate.New(pol, s.authority, s.log)
	verdict, err := g.Run(r.Context(), report, bypassReq)
	if err != nil {
		// Context cancellation mid-run; the client is gone either way.
		s.log.Warn("evaluation aborted", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, errorResponse{Error: "evaluation aborted"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(verdict); err != nil {
		s.log.Error("failed to encode verdict", zap.Error(err))
	}
}

func (s *Server) requestPolicy(override *policyOverride) (policy.Policy, error) {
	pol := policy.Policy{
		SeverityThreshold: s.defaults.SeverityThreshold,
		Exceptions:        append([]string(nil), s.defaults.Exceptions...),
	}
	if override == nil {
		return pol, nil
	}
	if override.SeverityThreshold != "" {
		sev, err := findings.ParseSeverity(override.SeverityThreshold)
		if err != nil {
			return policy.Policy{}, fmt.Errorf("policy override: %w", err)
		}
		pol.SeverityThreshold = sev
	}
	if override.Exceptions != nil {
		pol.Exceptions = override.Exceptions
	}
	return pol, nil
}

func (s *Server) writeError(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("failed to encode error response", zap.Error(err))
	}
}

// Run serves until the context is canceled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("evaluation service listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("service shutdown: %w", err)
		}
		s.log.Info("evaluation service stopped")
		return nil
	})
	return g.Wait()
}
