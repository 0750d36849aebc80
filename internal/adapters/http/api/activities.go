package api

import (
	"net/http"
	"strings"

	"github.com/okian/wcs/internal/domain/model"
)

// activityRequest mirrors the OpenAPI schema for POST /activities: an
// activity record plus an optional idempotency key.
type activityRequest struct {
	SubmissionID string `json:"submission_id"`
	model.ActivityRecord
}

type ackResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
	Duplicate    bool   `json:"duplicate"`
}

// ActivitiesHandler handles activity submissions.
type ActivitiesHandler struct {
	deps ActivityDependencies
}

// NewActivitiesHandler creates a new activities handler.
func NewActivitiesHandler(deps ActivityDependencies) *ActivitiesHandler {
	return &ActivitiesHandler{deps: deps}
}

// HandlePostActivity handles POST /activities requests.
func (h *ActivitiesHandler) HandlePostActivity(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_activity"
	var req activityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.SubmitActivity(r.Context(), model.Submission{
		ID:       strings.TrimSpace(req.SubmissionID),
		Activity: req.ActivityRecord,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", SubmissionID: res.SubmissionID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SubmissionID: res.SubmissionID})
}
