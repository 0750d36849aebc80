package api

import (
	"context"
	"net/http"

	"github.com/okian/wcs/internal/domain/model"
)

// AdminDependencies covers roster and personalization writes.
type AdminDependencies interface {
	UpsertEmployee(ctx context.Context, e model.Employee) error
	SetTeamWeights(ctx context.Context, cfg model.TeamWeightConfig) error
	SetMultiplier(ctx context.Context, m model.UserMultiplier) error
}

type multiplierRequest struct {
	Multiplier *float64 `json:"multiplier"`
}

// AdminHandler handles roster and personalization requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandlePutEmployee handles PUT /employees/{employee}. The path id wins
// over any id in the body.
func (h *AdminHandler) HandlePutEmployee(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_employee"
	var e model.Employee
	if err := decodeBody(w, r, &e); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	e.ID = r.PathValue("employee")
	if err := h.deps.UpsertEmployee(r.Context(), e); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandlePutTeamWeights handles PUT /teams/{team}/weights.
func (h *AdminHandler) HandlePutTeamWeights(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_team_weights"
	var weights model.Weights
	if err := decodeBody(w, r, &weights); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	cfg := model.TeamWeightConfig{TeamID: r.PathValue("team"), Weights: weights}
	if err := h.deps.SetTeamWeights(r.Context(), cfg); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandlePutMultiplier handles PUT /employees/{employee}/multiplier.
func (h *AdminHandler) HandlePutMultiplier(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_multiplier"
	var req multiplierRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Multiplier == nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errMissingMultiplier))
		return
	}
	m := model.UserMultiplier{EmployeeID: r.PathValue("employee"), Multiplier: *req.Multiplier}
	if err := h.deps.SetMultiplier(r.Context(), m); err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
