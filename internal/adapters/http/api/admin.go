package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/coffee/internal/domain/pairing"
	"github.com/okian/coffee/internal/domain/types"
)

// AdminDependencies defines the operator operations.
type AdminDependencies interface {
	GenerateRound(ctx context.Context) (types.RoundReport, error)
	NotifyAll(ctx context.Context) (types.NotifyReport, error)
	Broadcast(ctx context.Context, text string) (types.NotifyReport, error)
	AddMeeting(ctx context.Context, left, right string) error
	RemoveMeetings(ctx context.Context, ref string) error
	Leaderboard(ctx context.Context) types.Summary
	TopRepeats(ctx context.Context, k int) []pairing.RepeatCount
}

// AdminHandler handles the /admin routes.
type AdminHandler struct {
	deps     AdminDependencies
	maxLimit int
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, maxRepeatsLimit int) *AdminHandler {
	return &AdminHandler{deps: deps, maxLimit: maxRepeatsLimit}
}

type broadcastRequest struct {
	Text string `json:"text"`
}

type addMeetingRequest struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// HandleGenerateRound handles POST /admin/rounds.
func (h *AdminHandler) HandleGenerateRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.generate_round"
	report, err := h.deps.GenerateRound(r.Context())
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// HandleNotifyAll handles POST /admin/notify.
func (h *AdminHandler) HandleNotifyAll(w http.ResponseWriter, r *http.Request) {
	const op = "api.notify_all"
	report, err := h.deps.NotifyAll(r.Context())
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, report)
}

// HandleBroadcast handles POST /admin/broadcast.
func (h *AdminHandler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	const op = "api.broadcast"
	var req broadcastRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	report, err := h.deps.Broadcast(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, report)
}

// HandleAddMeeting handles POST /admin/meetings.
func (h *AdminHandler) HandleAddMeeting(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_meeting"
	var req addMeetingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Left == "" || req.Right == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.AddMeeting(r.Context(), req.Left, req.Right); err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleRemoveMeetings handles DELETE /admin/meetings/{id}.
func (h *AdminHandler) HandleRemoveMeetings(w http.ResponseWriter, r *http.Request) {
	const op = "api.remove_meetings"
	if err := h.deps.RemoveMeetings(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSummary handles GET /admin/summary.
func (h *AdminHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Leaderboard(r.Context()))
}

// HandleTopRepeats handles GET /admin/repeats?limit=K. Without a limit
// the configured maximum is used.
func (h *AdminHandler) HandleTopRepeats(w http.ResponseWriter, r *http.Request) {
	const op = "api.top_repeats"
	k := h.maxLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		k = n
	}
	top := h.deps.TopRepeats(r.Context(), k)
	if top == nil {
		top = []pairing.RepeatCount{}
	}
	writeJSON(w, http.StatusOK, top)
}
