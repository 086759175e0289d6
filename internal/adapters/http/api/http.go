// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecommendDependencies
	PlanDependencies
	JobDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	recommendHandler *RecommendHandler
	generateHandler  *GenerateHandler
	plansHandler     *PlansHandler

	maxBody int64
	log     logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxBody: defaultMaxBodyBytes,
		log:     logger.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.recommendHandler = NewRecommendHandler(deps, s.log)
	s.generateHandler = NewGenerateHandler(deps, s.log)
	s.plansHandler = NewPlansHandler(deps, deps, s.log)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/recommendations", s.limited(MetricsMiddleware(s.recommendHandler.HandlePostRecommendations, "recommendations")))
	mux.HandleFunc("/generate", s.limited(MetricsMiddleware(s.generateHandler.HandlePostGenerate, "generate")))
	mux.HandleFunc("/plans", s.limited(MetricsMiddleware(s.plansHandler.HandlePostPlan, "plans")))
	mux.HandleFunc("/plans/", MetricsMiddleware(s.plansHandler.HandleGetPlan, "plan"))
}

// recommendationRequest mirrors the OpenAPI schema for POST /recommendations.
// The same field names are used by the form posted to /generate.
type recommendationRequest struct {
	Experience string   `json:"experience" validate:"required,max=64"`
	Muscle     []string `json:"muscle" validate:"required,min=1,max=32,dive,required,max=64"`
	Types      []string `json:"types" validate:"required,min=1,max=32,dive,required,max=64"`
	Equipment  []string `json:"equipment" validate:"required,min=1,max=32,dive,required,max=64"`
}

func (r *recommendationRequest) query() model.Query {
	return model.NewQuery(r.Experience, r.Muscle, r.Types, r.Equipment)
}

// planRequest mirrors the OpenAPI schema for POST /plans.
type planRequest struct {
	recommendationRequest
	Frequency string `json:"frequency" validate:"required,max=64"`
	Split     string `json:"split" validate:"omitempty,max=64"`
	Repeat    string `json:"repeat" validate:"omitempty,max=32"`
}

func (r *planRequest) plan() model.PlanRequest {
	return model.PlanRequest{
		Query:     r.query(),
		Frequency: r.Frequency,
		Split:     r.Split,
		Repeat:    r.Repeat,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure translates a service error into the error envelope. Server
// side failures are logged; their details are not echoed to the client.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	status, code := statusFor(err)
	if status >= statusInternalError && status != http.StatusBadGateway {
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, status, code, nil)
		return
	}
	log.Debug(ctx, "request rejected", logger.String("op", op), logger.Int("status", status), logger.Error(err))
	writeError(w, status, code, err)
}
