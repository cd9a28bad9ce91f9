package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/coffee/internal/domain/model"
)

// ParticipantDependencies defines the registry operations.
type ParticipantDependencies interface {
	Register(ctx context.Context, p model.Participant) (model.Participant, error)
	Unregister(ctx context.Context, id string) error
	UserStats(ctx context.Context, id string) (map[model.MeetingStatus]int, error)
}

// ParticipantsHandler handles participant registration.
type ParticipantsHandler struct {
	deps ParticipantDependencies
}

// NewParticipantsHandler creates a new participants handler.
func NewParticipantsHandler(deps ParticipantDependencies) *ParticipantsHandler {
	return &ParticipantsHandler{deps: deps}
}

type registerRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	ChatID   string `json:"chat_id"`
	LangCode string `json:"lang_code"`
}

// HandleRegister handles POST /participants.
func (h *ParticipantsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	const op = "api.register"
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	p, err := h.deps.Register(r.Context(), model.Participant{
		ID:       strings.TrimSpace(req.ID),
		Username: strings.TrimPrefix(strings.TrimSpace(req.Username), "@"),
		ChatID:   req.ChatID,
		LangCode: req.LangCode,
	})
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleUnregister handles DELETE /participants/{id}.
func (h *ParticipantsHandler) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	const op = "api.unregister"
	if err := h.deps.Unregister(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /participants/{id}/stats.
func (h *ParticipantsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.participant_stats"
	stats, err := h.deps.UserStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
