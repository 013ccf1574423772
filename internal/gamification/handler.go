package gamification

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/studyquest/backend/internal/httputil"
	"github.com/studyquest/backend/internal/logging"
	"github.com/studyquest/backend/internal/middleware"
	"github.com/studyquest/backend/internal/models"
)

type Handler struct {
	service   *Service
	validator *httputil.Validator
}

func NewHandler(service *Service, validator *httputil.Validator) *Handler {
	return &Handler{service: service, validator: validator}
}

// Register mounts the progress routes on an authenticated router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/progress", h.GetProgress).Methods("GET")
	r.HandleFunc("/progress/daily-goal", h.SetDailyGoal).Methods("PUT")
	r.HandleFunc("/progress/events", h.PointHistory).Methods("GET")
	r.HandleFunc("/progress/quests/{id}/increment", h.IncrementQuest).Methods("POST")
	r.HandleFunc("/sessions", h.CompleteSession).Methods("POST")
	r.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	r.HandleFunc("/sessions/summary", h.SessionSummary).Methods("GET")
	r.HandleFunc("/quizzes/submit", h.SubmitQuiz).Methods("POST")
	r.HandleFunc("/powerups/double-points", h.PurchasePowerUp).Methods("POST")
	r.HandleFunc("/leaderboard", h.Leaderboard).Methods("GET")
	r.HandleFunc("/catalog", h.Catalog).Methods("GET")
}

func getUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "Authentication required")
	}
	return userID, ok
}

// writeServiceError maps engine and store errors onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Validation failed", Fields: []string{ve.Error()}})
	case errors.Is(err, ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "Progress not found")
	case errors.Is(err, ErrVersionConflict):
		httputil.WriteError(w, http.StatusConflict, "Progress was updated concurrently, please retry")
	default:
		logging.FromContext(r.Context()).ErrorContext(r.Context(), msg, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, msg)
	}
}

// ── Progress ────────────────────────────────────────────

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetProgress(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get progress")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) SetDailyGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	var req models.SetDailyGoalRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteRequestError(w, err)
		return
	}

	resp, err := h.service.SetDailyGoal(r.Context(), userID, req.Minutes)
	if err != nil {
		writeServiceError(w, r, err, "Failed to set daily goal")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) PointHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	events, err := h.service.PointHistory(r.Context(), userID, httputil.IntQueryParam(r.URL.Query(), "limit", 50))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get point history")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) IncrementQuest(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	questID := mux.Vars(r)["id"]
	if _, found := FindQuest(questID); !found {
		httputil.WriteError(w, http.StatusNotFound, "Unknown quest")
		return
	}

	var req models.QuestProgressRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteRequestError(w, err)
		return
	}

	resp, err := h.service.IncrementQuest(r.Context(), userID, questID, req.Delta)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update quest")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ── Sessions ────────────────────────────────────────────

func (h *Handler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	var req models.CompleteSessionRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteRequestError(w, err)
		return
	}

	resp, err := h.service.CompleteSession(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to complete session")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), userID, httputil.IntQueryParam(r.URL.Query(), "limit", 20))
	if err != nil {
		writeServiceError(w, r, err, "Failed to list sessions")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sessions)
}

func (h *Handler) SessionSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.SessionSummary(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get session summary")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// ── Quizzes & Power-ups ─────────────────────────────────

func (h *Handler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	var req models.SubmitQuizRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteRequestError(w, err)
		return
	}

	resp, err := h.service.SubmitQuiz(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, r, err, "Failed to submit quiz")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) PurchasePowerUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.PurchasePowerUp(r.Context(), userID)
	if errors.Is(err, ErrInsufficientFunds) {
		httputil.WriteJSON(w, http.StatusPaymentRequired, resp)
		return
	}
	if err != nil {
		writeServiceError(w, r, err, "Failed to purchase power-up")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ── Leaderboard & Catalog ───────────────────────────────

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Leaderboard(r.Context(), userID, httputil.IntQueryParam(r.URL.Query(), "limit", 20))
	if err != nil {
		writeServiceError(w, r, err, "Failed to get leaderboard")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Catalog lists every badge, achievement and quest as an unearned view.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	view := BuildProgressView(NewProgress(0, DefaultDailyGoal, h.service.now()), h.service.now())
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"badges":       view.Badges,
		"achievements": view.Achievements,
		"quests":       view.Quests,
	})
}
