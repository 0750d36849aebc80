package api

import (
	"context"
	"net/http"

	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/internal/domain/period"
)

// ScoreDependencies covers synchronous scoring, edits and history reads.
type ScoreDependencies interface {
	ScoreActivity(ctx context.Context, in model.ActivityRecord) (model.ScoreRecord, error)
	EditScore(ctx context.Context, employeeID, periodID string, patch model.ScorePatch) (model.ScoreRecord, error)
	History(ctx context.Context, employeeID string) (model.History, error)
}

// ScoresHandler handles score record requests.
type ScoresHandler struct {
	deps ScoreDependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoreDependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandlePostScore handles POST /scores: score one activity and return the
// stored record.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	var in model.ActivityRecord
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rec, err := h.deps.ScoreActivity(r.Context(), in)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandlePatchScore handles PATCH /scores/{employee}/{period}.
func (h *ScoresHandler) HandlePatchScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_score"
	employeeID := r.PathValue("employee")
	periodID := r.PathValue("period")
	if _, err := period.Parse(periodID); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var patch model.ScorePatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	rec, err := h.deps.EditScore(r.Context(), employeeID, periodID, patch)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleGetHistory handles GET /scores/{employee}.
func (h *ScoresHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	hist, err := h.deps.History(r.Context(), r.PathValue("employee"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if hist.Records == nil {
		hist.Records = []model.ScoreRecord{}
	}
	writeJSON(w, http.StatusOK, hist)
}
