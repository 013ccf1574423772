package gamification

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/studyquest/backend/internal/models"
	"github.com/studyquest/backend/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	db      *sqlx.DB
	store   *Store
	service *Service
	metrics *Metrics
	now     time.Time
	userID  int64
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = testutil.NewTestDB(s.T())
	s.store = NewStore(s.db)
	s.now = testNow
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.service = NewService(s.store, Options{
		Now: func() time.Time { return s.now },
	}, quietLogger(), s.metrics)
	s.userID = testutil.CreateUser(s.T(), s.db, "learner@example.com")
}

func (s *ServiceSuite) TestGetProgressCreatesDefaultRecord() {
	resp, err := s.service.GetProgress(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(0, resp.Points)
	s.Equal(1, resp.Level)
	s.Equal(100, resp.PointsToNextLevel)
	s.Equal(DefaultDailyGoal, resp.DailyGoal)
	s.Len(resp.Badges, len(Badges))
	s.Len(resp.Quests, len(Quests))
	s.Len(resp.Achievements, len(Achievements))

	_, err = s.store.Load(s.ctx, s.userID)
	s.NoError(err)
}

func (s *ServiceSuite) TestInitializeProgressIsIdempotent() {
	s.Require().NoError(s.service.InitializeProgress(s.ctx, s.userID))
	_, err := s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{TaskName: "Reading", Minutes: 10})
	s.Require().NoError(err)

	s.Require().NoError(s.service.InitializeProgress(s.ctx, s.userID))
	p, err := s.store.Load(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(1, p.SessionsCompleted)
}

func (s *ServiceSuite) TestCompleteSession() {
	score := 90
	resp, err := s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{
		TaskName:    "Logic games",
		Minutes:     30,
		Score:       &score,
		QuizAnswers: []models.QuizAnswer{{QuestionID: "q1", Answer: "C", Correct: true}},
	})
	s.Require().NoError(err)

	s.Equal(300, resp.PointsDelta)
	s.Equal(1, resp.LevelBefore)
	s.Equal(3, resp.LevelAfter)
	s.Equal([]string{"centurion", "goal_getter"}, resp.BadgesUnlocked)
	s.Equal([]string{"first_session"}, resp.AchievementsUnlocked)
	s.Equal([]string{}, resp.QuestsCompleted)
	s.Equal(300, resp.Progress.Points)
	s.Equal(30, resp.Progress.DailyProgress)

	s.Require().NotNil(resp.Session)
	s.Equal(150, resp.Session.Points)
	s.Equal(90, resp.Session.Score)
	s.NotEmpty(resp.Session.ID)

	sessions, err := s.service.ListSessions(s.ctx, s.userID, 0)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(resp.Session.ID, sessions[0].ID)

	events, err := s.service.PointHistory(s.ctx, s.userID, 0)
	s.Require().NoError(err)
	s.Len(events, 3)

	p, err := s.store.Load(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(1, p.Version)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.events.WithLabelValues("session_completed")))
	s.Equal(2.0, promtest.ToFloat64(s.metrics.levelUps))
}

func (s *ServiceSuite) TestCompleteSessionEndedEarly() {
	resp, err := s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{
		TaskName:   "Reading",
		Minutes:    10,
		EndedEarly: true,
	})
	s.Require().NoError(err)
	s.Equal(-EarlyEndPenalty, resp.PointsDelta)
	s.True(resp.Session.EndedEarly)
	s.Equal(-EarlyEndPenalty, resp.Session.Points)
	s.Empty(resp.AchievementsUnlocked)
}

func (s *ServiceSuite) TestCompleteSessionRejectsInvalidMinutes() {
	_, err := s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{TaskName: "x", Minutes: -5})
	s.True(IsValidation(err))

	sessions, err := s.service.ListSessions(s.ctx, s.userID, 0)
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *ServiceSuite) TestPurchasePowerUp() {
	resp, err := s.service.PurchasePowerUp(s.ctx, s.userID)
	s.Require().ErrorIs(err, ErrInsufficientFunds)
	s.False(resp.Success)
	s.Equal(0, resp.PointsRemaining)
	s.Nil(resp.DoublePointsUntil)

	p, err := s.store.Load(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(0, p.Version, "rejected purchase must not be saved")

	_, err = s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{TaskName: "Reading", Minutes: 30})
	s.Require().NoError(err)

	resp, err = s.service.PurchasePowerUp(s.ctx, s.userID)
	s.Require().NoError(err)
	s.True(resp.Success)
	s.Equal(200, resp.PointsRemaining)
	s.Require().NotNil(resp.DoublePointsUntil)
	s.True(resp.DoublePointsUntil.Equal(testNow.Add(DefaultPowerUpDuration)))

	s.now = testNow.Add(10 * time.Minute)
	out, err := s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{TaskName: "Reading", Minutes: 10})
	s.Require().NoError(err)
	s.Equal(100, out.Session.Points)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.powerUps.WithLabelValues("rejected")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.powerUps.WithLabelValues("accepted")))
}

func (s *ServiceSuite) TestSubmitQuizChargesCoinsOnce() {
	resp, err := s.service.SubmitQuiz(s.ctx, s.userID, models.SubmitQuizRequest{Correct: 4, Wrong: 1, CoinsUsed: 3})
	s.Require().NoError(err)
	s.Equal(QuizPoints(4, 1, 3), resp.PointsDelta)
	s.Equal(4*CorrectAnswerPoints-WrongAnswerPenalty-3*CoinCost, resp.Progress.Points)

	_, err = s.service.SubmitQuiz(s.ctx, s.userID, models.SubmitQuizRequest{Correct: 4, CoinsUsed: 4})
	s.True(IsValidation(err))

	_, err = s.service.SubmitQuiz(s.ctx, s.userID, models.SubmitQuizRequest{Correct: MaxQuizAnswers + 1})
	s.True(IsValidation(err))

	events, err := s.store.ListPointEvents(s.ctx, s.userID, 10)
	s.Require().NoError(err)
	s.Len(events, 1)
	s.Equal(QuizAnswered{}.Type(), events[0].EventType)
}

func (s *ServiceSuite) TestSetDailyGoal() {
	resp, err := s.service.SetDailyGoal(s.ctx, s.userID, 60)
	s.Require().NoError(err)
	s.Equal(60, resp.DailyGoal)

	_, err = s.service.SetDailyGoal(s.ctx, s.userID, 2)
	s.True(IsValidation(err))

	p, err := s.store.Load(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(60, p.DailyGoal)
}

func (s *ServiceSuite) TestIncrementQuest() {
	resp, err := s.service.IncrementQuest(s.ctx, s.userID, "consistency", 7)
	s.Require().NoError(err)
	s.Equal([]string{"consistency"}, resp.QuestsCompleted)

	_, err = s.service.IncrementQuest(s.ctx, s.userID, "nope", 1)
	s.True(IsValidation(err))
}

func (s *ServiceSuite) TestSessionSummary() {
	record := func(at time.Time, minutes int, early bool) {
		s.now = at
		_, err := s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{TaskName: "Reading", Minutes: minutes, EndedEarly: early})
		s.Require().NoError(err)
	}
	record(testNow.AddDate(0, 0, -10), 50, false)
	record(testNow.AddDate(0, 0, -3), 20, true)
	record(testNow.Add(-2*time.Hour), 15, false)
	record(testNow, 25, false)

	summary, err := s.service.SessionSummary(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(40, summary.TodayMinutes)
	s.Equal(2, summary.TodaySessions)
	s.Equal(60, summary.WeekMinutes)
	s.Equal(3, summary.WeekSessions)
	s.Equal(1, summary.EarlyEndedCount)
}

func (s *ServiceSuite) TestLeaderboard() {
	for i, email := range []string{"a@example.com", "b@example.com"} {
		id := testutil.CreateUser(s.T(), s.db, email)
		_, err := s.service.CompleteSession(s.ctx, id, models.CompleteSessionRequest{TaskName: "Reading", Minutes: 30 + i*30})
		s.Require().NoError(err)
	}
	_, err := s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{TaskName: "Reading", Minutes: 5})
	s.Require().NoError(err)

	resp, err := s.service.Leaderboard(s.ctx, s.userID, 2)
	s.Require().NoError(err)
	s.Len(resp.Entries, 2)
	for _, e := range resp.Entries {
		s.False(e.IsCurrentUser)
	}
	s.Require().NotNil(resp.CurrentUser)
	s.Equal(3, resp.CurrentUser.Rank)
	s.True(resp.CurrentUser.IsCurrentUser)

	resp, err = s.service.Leaderboard(s.ctx, s.userID, 10)
	s.Require().NoError(err)
	s.Nil(resp.CurrentUser)
	s.True(resp.Entries[2].IsCurrentUser)
}

func (s *ServiceSuite) TestRunDailyMaintenance() {
	_, err := s.service.CompleteSession(s.ctx, s.userID, models.CompleteSessionRequest{TaskName: "Reading", Minutes: 30})
	s.Require().NoError(err)
	_, err = s.service.PurchasePowerUp(s.ctx, s.userID)
	s.Require().NoError(err)

	s.now = testNow.AddDate(0, 0, 1)
	s.Require().NoError(s.service.RunDailyMaintenance(s.ctx))

	p, err := s.store.Load(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(0, p.DailyProgress)
	s.Nil(p.DoublePointsUntil)
}

// ── Conflict handling ───────────────────────────────────

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context, userID int64) (models.UserProgress, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.UserProgress), args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, p models.UserProgress) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockStore) Save(ctx context.Context, p models.UserProgress, j Journal) (models.UserProgress, error) {
	args := m.Called(ctx, p, j)
	return args.Get(0).(models.UserProgress), args.Error(1)
}

func (m *mockStore) ListSessions(ctx context.Context, userID int64, limit int) ([]models.StudySession, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]models.StudySession), args.Error(1)
}

func (m *mockStore) SessionsSince(ctx context.Context, userID int64, since time.Time) ([]models.StudySession, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).([]models.StudySession), args.Error(1)
}

func (m *mockStore) ListPointEvents(ctx context.Context, userID int64, limit int) ([]models.PointEvent, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]models.PointEvent), args.Error(1)
}

func (m *mockStore) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.LeaderboardEntry), args.Error(1)
}

func (m *mockStore) UserRank(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ResetStaleDailyProgress(ctx context.Context, today time.Time) (int64, error) {
	args := m.Called(ctx, today)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ClearExpiredPowerUps(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func newMockService(store ProgressStore, metrics *Metrics) *Service {
	return NewService(store, Options{
		SaveAttempts: 3,
		RetryDelay:   time.Millisecond,
		Now:          func() time.Time { return testNow },
	}, quietLogger(), metrics)
}

func TestServiceRetriesVersionConflict(t *testing.T) {
	store := new(mockStore)
	p := progressWith(0)
	saved := p
	saved.Version = 1

	store.On("Load", mock.Anything, int64(1)).Return(p, nil)
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(models.UserProgress{}, ErrVersionConflict).Once()
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(saved, nil).Once()

	metrics := NewMetrics(prometheus.NewRegistry())
	_, err := newMockService(store, metrics).SubmitQuiz(context.Background(), 1, models.SubmitQuizRequest{Correct: 1})
	require.NoError(t, err)

	store.AssertNumberOfCalls(t, "Load", 2)
	store.AssertNumberOfCalls(t, "Save", 2)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.versionConflicts))
}

func TestServiceGivesUpAfterAttempts(t *testing.T) {
	store := new(mockStore)
	store.On("Load", mock.Anything, int64(1)).Return(progressWith(0), nil)
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(models.UserProgress{}, ErrVersionConflict)

	_, err := newMockService(store, nil).SubmitQuiz(context.Background(), 1, models.SubmitQuizRequest{Correct: 1})
	assert.ErrorIs(t, err, ErrVersionConflict)
	store.AssertNumberOfCalls(t, "Save", 3)
}

func TestServiceDoesNotRetryValidation(t *testing.T) {
	store := new(mockStore)
	store.On("Load", mock.Anything, int64(1)).Return(progressWith(0), nil)

	_, err := newMockService(store, nil).SubmitQuiz(context.Background(), 1, models.SubmitQuizRequest{Correct: -1})
	assert.True(t, IsValidation(err))
	store.AssertNumberOfCalls(t, "Load", 1)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestServiceCreatesMissingRecord(t *testing.T) {
	store := new(mockStore)
	store.On("Load", mock.Anything, int64(9)).Return(models.UserProgress{}, ErrNotFound).Once()
	store.On("Create", mock.Anything, mock.MatchedBy(func(p models.UserProgress) bool {
		return p.UserID == 9 && p.DailyGoal == DefaultDailyGoal
	})).Return(nil)
	store.On("Load", mock.Anything, int64(9)).Return(NewProgress(9, DefaultDailyGoal, testNow), nil)

	resp, err := newMockService(store, nil).GetProgress(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Level)
	store.AssertExpectations(t)
}
