// Package httpapi exposes the combat engine over HTTP/JSON. Domain errors
// carry their own status mapping: NotFoundError is 404, ValidationError 422,
// CombatError 400; anything else is a 500.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridfall/internal/game/combat"
)

// Handler serves the combat API.
type Handler struct {
	engine *combat.Engine
	logger *zap.Logger
}

// NewHandler creates a Handler around the given engine.
//
// Precondition: engine and logger must be non-nil.
func NewHandler(engine *combat.Engine, logger *zap.Logger) *Handler {
	if engine == nil {
		panic("httpapi: engine must be non-nil")
	}
	if logger == nil {
		panic("httpapi: logger must be non-nil")
	}
	return &Handler{engine: engine, logger: logger}
}

// Routes returns the API's http.Handler with request logging attached.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /combat/start", h.start)
	mux.HandleFunc("GET /combat/{id}", h.get)
	mux.HandleFunc("POST /combat/{id}/process", h.process)
	mux.HandleFunc("POST /combat/{id}/act", h.act)
	mux.HandleFunc("POST /combat/{id}/resolve", h.resolve)
	mux.HandleFunc("POST /combat/{id}/finish", h.finish)
	mux.HandleFunc("GET /combat/{id}/history", h.history)
	return h.logRequests(mux)
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, combat.NewValidationError("malformed request body: %v", err))
		return
	}

	engineReq := combat.StartRequest{
		ZoneID:         req.ZoneID,
		InitiativeType: combat.InitiativeType(req.InitiativeType),
	}
	for _, p := range req.Participants {
		engineReq.Participants = append(engineReq.Participants, combat.Participant{
			CharacterID: p.CharacterID,
			TeamID:      p.TeamID,
		})
	}

	s, err := h.engine.Start(r.Context(), engineReq)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, viewSession(s))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, viewSession(s))
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	report, err := h.engine.ProcessTurns(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := processResponse{
		Session:        viewSession(report.Session),
		Actions:        viewActions(report.Actions),
		CombatEnded:    report.CombatEnded,
		EffectMessages: report.EffectMessages,
	}
	if report.AwaitingPlayer != nil {
		cv := viewCombatant(report.AwaitingPlayer)
		resp.AwaitingPlayer = &cv
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req actRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, combat.NewValidationError("malformed request body: %v", err))
		return
	}

	report, err := h.engine.PlayerAction(r.Context(), id, combat.PlayerActionRequest{
		CharacterID: req.CharacterID,
		Type:        combat.ActionType(req.ActionType),
		TargetID:    req.TargetID,
		SpellName:   req.SpellName,
		ItemID:      req.ItemID,
		AbilityID:   req.AbilityID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, actResponse{
		Action:      viewAction(report.Action),
		Session:     viewSession(report.Session),
		CombatEnded: report.CombatEnded,
	})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	report, err := h.engine.Resolve(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := resolveResponse{
		WinnerTeamID:     report.WinnerTeamID,
		ExperienceEarned: report.ExperienceEarned,
		Loot:             viewLoot(report.Loot),
	}
	for _, lu := range report.LevelUps {
		resp.LevelUps = append(resp.LevelUps, levelUpView{
			CharacterID: lu.CharacterID,
			OldLevel:    lu.OldLevel,
			NewLevel:    lu.NewLevel,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	summary, err := h.engine.Finish(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := finishResponse{
		SessionID:             summary.SessionID,
		WinnerTeamID:          summary.WinnerTeamID,
		TotalRounds:           summary.TotalRounds,
		TotalActions:          summary.TotalActions,
		StartedAt:             summary.StartedAt,
		EndedAt:               summary.EndedAt,
		ExperienceByCharacter: summary.ExperienceByCharacter,
		Loot:                  viewLoot(summary.Loot),
	}
	for _, c := range summary.Participants {
		resp.Participants = append(resp.Participants, viewCombatant(c))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	actions, err := h.engine.History(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, historyResponse{Actions: viewActions(actions)})
}

// sessionID parses the {id} path segment.
func sessionID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, combat.NewValidationError("invalid session id %q", raw)
	}
	return id, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encoding response", zap.Error(err))
	}
}

// writeError maps domain errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *combat.NotFoundError
		validation *combat.ValidationError
		combatErr  *combat.CombatError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &validation):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &combatErr):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
