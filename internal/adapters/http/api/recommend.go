package api

import (
	"context"
	"net/http"

	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/types"
	"github.com/okian/fitrec/pkg/logger"
)

// RecommendDependencies runs the recommendation pipeline.
type RecommendDependencies interface {
	Recommend(ctx context.Context, q model.Query) (types.Recommendation, error)
}

// RecommendHandler handles recommendation requests.
type RecommendHandler struct {
	deps RecommendDependencies
	log  logger.Logger
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies, log logger.Logger) *RecommendHandler {
	return &RecommendHandler{deps: deps, log: log}
}

// HandlePostRecommendations handles POST /recommendations requests.
func (h *RecommendHandler) HandlePostRecommendations(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_recommendations"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req recommendationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	rec, err := h.deps.Recommend(r.Context(), req.query())
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	if rec.Rows == nil {
		rec.Rows = []types.Row{}
	}
	writeJSON(w, http.StatusOK, rec)
}
