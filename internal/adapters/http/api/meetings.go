package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/coffee/internal/domain/model"
)

// MeetingDependencies defines the participant-facing meeting operations.
type MeetingDependencies interface {
	Meetings(ctx context.Context, id string, all bool) ([]model.Meeting, error)
	UpdateStatus(ctx context.Context, id, partner, verb string) (int, error)
	RequestMore(ctx context.Context, id string) (string, bool, error)
}

// MeetingsHandler handles meeting requests.
type MeetingsHandler struct {
	deps MeetingDependencies
}

// NewMeetingsHandler creates a new meetings handler.
func NewMeetingsHandler(deps MeetingDependencies) *MeetingsHandler {
	return &MeetingsHandler{deps: deps}
}

type statusRequest struct {
	ID      string `json:"id"`
	Partner string `json:"partner"`
	// Status is one of pass, deny or reset.
	Status string `json:"status"`
}

type statusResponse struct {
	Updated int `json:"updated"`
}

type moreRequest struct {
	ID string `json:"id"`
}

type moreResponse struct {
	Matched bool   `json:"matched"`
	Partner string `json:"partner,omitempty"`
}

// HandleList handles GET /meetings/{id}?all=true.
func (h *MeetingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_meetings"
	all := false
	if v := r.URL.Query().Get("all"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		all = parsed
	}
	list, err := h.deps.Meetings(r.Context(), r.PathValue("id"), all)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleUpdateStatus handles POST /meetings/status.
func (h *MeetingsHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_status"
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.ID == "" || req.Partner == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	n, err := h.deps.UpdateStatus(r.Context(), req.ID, req.Partner, req.Status)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Updated: n})
}

// HandleRequestMore handles POST /meetings/more.
func (h *MeetingsHandler) HandleRequestMore(w http.ResponseWriter, r *http.Request) {
	const op = "api.request_more"
	var req moreRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	partner, matched, err := h.deps.RequestMore(r.Context(), req.ID)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	status := http.StatusAccepted
	if matched {
		status = http.StatusOK
	}
	writeJSON(w, status, moreResponse{Matched: matched, Partner: partner})
}
