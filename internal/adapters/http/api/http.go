// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/coffee/internal/app"
	"github.com/okian/coffee/internal/adapters/repository"
	"github.com/okian/coffee/internal/domain/meeting"
	"github.com/okian/coffee/internal/domain/types"
	"github.com/okian/coffee/pkg/logger"
)

// Default limits used when the caller does not configure them.
const (
	defaultMaxLeaderboardLimit = 100
	defaultMaxRepeatsLimit     = 100

	maxBodyBytes = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ParticipantDependencies
	MeetingDependencies
	AdminDependencies
	LeaderboardDependencies
	RankDependencies
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	participantsHandler *ParticipantsHandler
	meetingsHandler     *MeetingsHandler
	adminHandler        *AdminHandler
	leaderboardHandler  *LeaderboardHandler
	rankHandler         *RankHandler

	adminToken string
	logger     logger.Logger
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	adminToken          string
	maxLeaderboardLimit int
	maxRepeatsLimit     int
	logger              logger.Logger
}

// WithAdminToken sets the token expected in X-Admin-Token. An empty
// token disables the admin routes.
func WithAdminToken(token string) Option {
	return func(c *serverConfig) {
		c.adminToken = token
	}
}

// WithMaxLeaderboardLimit caps GET /leaderboard?limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxLeaderboardLimit = n
		}
	}
}

// WithMaxRepeatsLimit caps GET /admin/repeats?limit.
func WithMaxRepeatsLimit(n int) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxRepeatsLimit = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
		maxRepeatsLimit:     defaultMaxRepeatsLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("http")
	}
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		participantsHandler: NewParticipantsHandler(deps),
		meetingsHandler:     NewMeetingsHandler(deps),
		adminHandler:        NewAdminHandler(deps, cfg.maxRepeatsLimit),
		leaderboardHandler:  NewLeaderboardHandler(deps, cfg.maxLeaderboardLimit),
		rankHandler:         NewRankHandler(deps),
		adminToken:          cfg.adminToken,
		logger:              cfg.logger,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RequestIDMiddleware(MetricsMiddleware(LoggingMiddleware(s.logger, h), endpoint)))
	}
	admin := func(pattern, endpoint string, h http.HandlerFunc) {
		route(pattern, endpoint, AdminMiddleware(s.adminToken, h))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /participants", "participants", s.participantsHandler.HandleRegister)
	route("DELETE /participants/{id}", "participants", s.participantsHandler.HandleUnregister)
	route("GET /participants/{id}/stats", "participant_stats", s.participantsHandler.HandleStats)

	route("GET /meetings/{id}", "meetings", s.meetingsHandler.HandleList)
	route("POST /meetings/status", "meeting_status", s.meetingsHandler.HandleUpdateStatus)
	route("POST /meetings/more", "meeting_more", s.meetingsHandler.HandleRequestMore)

	admin("POST /admin/rounds", "admin_rounds", s.adminHandler.HandleGenerateRound)
	admin("POST /admin/notify", "admin_notify", s.adminHandler.HandleNotifyAll)
	admin("POST /admin/broadcast", "admin_broadcast", s.adminHandler.HandleBroadcast)
	admin("POST /admin/meetings", "admin_meetings", s.adminHandler.HandleAddMeeting)
	admin("DELETE /admin/meetings/{id}", "admin_meetings", s.adminHandler.HandleRemoveMeetings)
	admin("GET /admin/summary", "admin_summary", s.adminHandler.HandleSummary)
	admin("GET /admin/repeats", "admin_repeats", s.adminHandler.HandleTopRepeats)

	route("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	route("GET /rank/{id}", "rank", s.rankHandler.HandleGetRank)
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

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeServiceError translates domain errors into status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownParticipant), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrSelfMeeting):
		writeError(w, http.StatusConflict, "self_meeting", err)
	case errors.Is(err, meeting.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid_id", err)
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err)
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, meeting.ErrEmptyID),
		errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
