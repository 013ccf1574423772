package gamification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyquest/backend/internal/httputil"
	"github.com/studyquest/backend/internal/middleware"
	"github.com/studyquest/backend/internal/models"
	"github.com/studyquest/backend/internal/testutil"
)

type handlerEnv struct {
	router *mux.Router
	userID int64
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	service := NewService(NewStore(db), Options{Now: func() time.Time { return testNow }}, quietLogger(), nil)
	h := NewHandler(service, httputil.MustValidator())
	userID := testutil.CreateUser(t, db, "learner@example.com")

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Test-User") != "" {
				r = r.WithContext(middleware.WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	})
	h.Register(api)

	return &handlerEnv{router: r, userID: userID}
}

func (e *handlerEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-Test-User", "1")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRequiresUser(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/progress", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerCompleteSession(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", `{"task_name":"Logic games","minutes":30}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.OutcomeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 300, resp.PointsDelta)
	assert.Equal(t, 3, resp.LevelAfter)
	assert.Equal(t, []string{"first_session"}, resp.AchievementsUnlocked)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "Logic games", resp.Session.TaskName)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []models.StudySession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/progress/events?limit=2", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []models.PointEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 2)
}

func TestHandlerValidation(t *testing.T) {
	env := newHandlerEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"malformed body", http.MethodPost, "/api/v1/sessions", `{"minutes":`},
		{"missing task", http.MethodPost, "/api/v1/sessions", `{"minutes":30}`},
		{"negative minutes", http.MethodPost, "/api/v1/sessions", `{"task_name":"x","minutes":-1}`},
		{"too many coins", http.MethodPost, "/api/v1/quizzes/submit", `{"correct":3,"wrong":0,"coins_used":4}`},
		{"goal too small", http.MethodPut, "/api/v1/progress/daily-goal", `{"minutes":2}`},
		{"too many correct", http.MethodPost, "/api/v1/quizzes/submit", `{"correct":501,"wrong":0}`},
		{"huge correct", http.MethodPost, "/api/v1/quizzes/submit", `{"correct":2305843009213693951,"wrong":0}`},
		{"too many wrong", http.MethodPost, "/api/v1/quizzes/submit", `{"correct":0,"wrong":501}`},
		{"session too long", http.MethodPost, "/api/v1/sessions", `{"task_name":"x","minutes":1441}`},
		{"quest delta too large", http.MethodPost, "/api/v1/progress/quests/study_sprint/increment", `{"delta":1001}`},
		{"quest delta max int", http.MethodPost, "/api/v1/progress/quests/study_sprint/increment", `{"delta":9223372036854775807}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHandlerPowerUpInsufficientFunds(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/powerups/double-points", "", true)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	var resp models.PowerUpResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestHandlerQuizCoinsChargedOnSubmitOnly(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/quizzes/reveal", `{"count":3}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/quizzes/submit", `{"correct":10,"wrong":0,"coins_used":3}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.OutcomeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10*CorrectAnswerPoints-3*CoinCost, resp.PointsDelta)

	rec = env.do(t, http.MethodGet, "/api/v1/progress", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var progress models.ProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	assert.Equal(t, 20, progress.Points)
}

func TestHandlerQuests(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/progress/quests/unknown/increment", `{"delta":1}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/progress/quests/quiz_champion/increment", `{"delta":25}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.OutcomeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"quiz_champion"}, resp.QuestsCompleted)
}

func TestHandlerDailyGoalAndSummary(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/progress/daily-goal", `{"minutes":60}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var progress models.ProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	assert.Equal(t, 60, progress.DailyGoal)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/summary", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Zero(t, summary.WeekSessions)
}

func TestHandlerLeaderboardAndCatalog(t *testing.T) {
	env := newHandlerEnv(t)
	env.do(t, http.MethodPost, "/api/v1/sessions", `{"task_name":"Reading","minutes":10}`, true)

	rec := env.do(t, http.MethodGet, "/api/v1/leaderboard", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var board models.LeaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board.Entries, 1)
	assert.True(t, board.Entries[0].IsCurrentUser)

	rec = env.do(t, http.MethodGet, "/api/v1/catalog", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var catalog struct {
		Badges       []models.BadgeView       `json:"badges"`
		Achievements []models.AchievementView `json:"achievements"`
		Quests       []models.QuestView       `json:"quests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
	assert.Len(t, catalog.Badges, len(Badges))
	assert.Len(t, catalog.Achievements, len(Achievements))
	assert.Len(t, catalog.Quests, len(Quests))
}
