package api

import (
	"context"
	"io"
	"net/http"

	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/pkg/logger"
)

// PlanDependencies builds workout plans.
type PlanDependencies interface {
	// Plan runs recommendation, prompt building and generation inline.
	Plan(ctx context.Context, req model.PlanRequest) (string, error)

	// SubmitPlan queues a plan job. A non-empty key makes the submission
	// idempotent; duplicate reports that an earlier job was returned.
	SubmitPlan(ctx context.Context, key string, req model.PlanRequest) (job model.Job, duplicate bool, err error)
}

// GenerateHandler serves the synchronous plan form.
type GenerateHandler struct {
	deps PlanDependencies
	log  logger.Logger
}

// NewGenerateHandler creates a new generate handler.
func NewGenerateHandler(deps PlanDependencies, log logger.Logger) *GenerateHandler {
	return &GenerateHandler{deps: deps, log: log}
}

// HandlePostGenerate handles POST /generate form submissions and answers
// with the plan as plain text.
func (h *GenerateHandler) HandlePostGenerate(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_generate"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	req := planRequest{
		recommendationRequest: recommendationRequest{
			Experience: r.PostForm.Get("experience"),
			Muscle:     r.PostForm["muscle"],
			Types:      r.PostForm["types"],
			Equipment:  r.PostForm["equipment"],
		},
		Frequency: r.PostForm.Get("frequency"),
		Split:     r.PostForm.Get("split"),
		Repeat:    r.PostForm.Get("repeat"),
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	plan, err := h.deps.Plan(r.Context(), req.plan())
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, plan)
}
