package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/fitrec/internal/domain/model"
	"github.com/okian/fitrec/internal/domain/types"
	"github.com/okian/fitrec/pkg/logger"
)

// IdempotencyHeader lets clients retry POST /plans without queuing twice.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKey = 128

// JobDependencies reads plan jobs.
type JobDependencies interface {
	Job(ctx context.Context, id string) (model.Job, error)
}

// PlansHandler handles asynchronous plan jobs.
type PlansHandler struct {
	plans PlanDependencies
	jobs  JobDependencies
	log   logger.Logger
}

// NewPlansHandler creates a new plans handler.
func NewPlansHandler(plans PlanDependencies, jobs JobDependencies, log logger.Logger) *PlansHandler {
	return &PlansHandler{plans: plans, jobs: jobs, log: log}
}

type submitResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostPlan handles POST /plans requests.
func (h *PlansHandler) HandlePostPlan(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_plan"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if len(key) > maxIdempotencyKey {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	job, duplicate, err := h.plans.SubmitPlan(r.Context(), key, req.plan())
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/plans/"+job.ID)
	writeJSON(w, status, submitResponse{ID: job.ID, Status: string(job.Status), Duplicate: duplicate})
}

// HandleGetPlan handles GET /plans/{id} requests.
func (h *PlansHandler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_plan"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/plans/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	job, err := h.jobs.Job(r.Context(), id)
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, jobView(job))
}

func jobView(j model.Job) types.JobView { //nolint:gocritic // hugeParam: jobs are copied out of the store
	return types.JobView{
		ID:        j.ID,
		Status:    string(j.Status),
		Plan:      j.Plan,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
