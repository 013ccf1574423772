package gamification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"

	"github.com/studyquest/backend/internal/models"
)

// ProgressStore persists progress records and their append-only logs.
type ProgressStore interface {
	Load(ctx context.Context, userID int64) (models.UserProgress, error)
	Create(ctx context.Context, p models.UserProgress) error
	Save(ctx context.Context, p models.UserProgress, j Journal) (models.UserProgress, error)
	ListSessions(ctx context.Context, userID int64, limit int) ([]models.StudySession, error)
	SessionsSince(ctx context.Context, userID int64, since time.Time) ([]models.StudySession, error)
	ListPointEvents(ctx context.Context, userID int64, limit int) ([]models.PointEvent, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	UserRank(ctx context.Context, userID int64) (int, error)
	ResetStaleDailyProgress(ctx context.Context, today time.Time) (int64, error)
	ClearExpiredPowerUps(ctx context.Context, now time.Time) (int64, error)
}

type Options struct {
	DefaultDailyGoal int
	PowerUpDuration  time.Duration
	// SaveAttempts bounds the load-apply-save cycle when saves race.
	SaveAttempts uint
	RetryDelay   time.Duration
	Now          func() time.Time
}

type Service struct {
	store   ProgressStore
	opts    Options
	logger  *slog.Logger
	metrics *Metrics
}

func NewService(store ProgressStore, opts Options, logger *slog.Logger, metrics *Metrics) *Service {
	if opts.DefaultDailyGoal <= 0 {
		opts.DefaultDailyGoal = DefaultDailyGoal
	}
	if opts.PowerUpDuration <= 0 {
		opts.PowerUpDuration = DefaultPowerUpDuration
	}
	if opts.SaveAttempts == 0 {
		opts.SaveAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 10 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, opts: opts, logger: logger, metrics: metrics}
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// ── Record Lifecycle ────────────────────────────────────

// InitializeProgress creates the default record for a new user. It is a no-op
// when the user already has one.
func (s *Service) InitializeProgress(ctx context.Context, userID int64) error {
	if err := s.store.Create(ctx, NewProgress(userID, s.opts.DefaultDailyGoal, s.now())); err != nil {
		return fmt.Errorf("initialize progress: %w", err)
	}
	return nil
}

func (s *Service) loadOrCreate(ctx context.Context, userID int64) (models.UserProgress, error) {
	p, err := s.store.Load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		if err := s.InitializeProgress(ctx, userID); err != nil {
			return models.UserProgress{}, err
		}
		p, err = s.store.Load(ctx, userID)
	}
	if err != nil {
		return models.UserProgress{}, fmt.Errorf("load progress: %w", err)
	}
	return p, nil
}

// step computes the next record from the current one.
type step func(p models.UserProgress, now time.Time) (Outcome, error)

type committed struct {
	out     Outcome
	session *models.StudySession
	now     time.Time
}

// commit runs load, step and save, repeating the whole cycle when another
// writer saved the record in between.
func (s *Service) commit(ctx context.Context, userID int64, kind string, fn step, record func(Outcome, time.Time) *models.StudySession) (committed, error) {
	var res committed
	err := retry.Do(
		func() error {
			p, err := s.loadOrCreate(ctx, userID)
			if err != nil {
				return err
			}
			now := s.now()
			out, err := fn(p, now)
			if err != nil {
				return err
			}
			res = committed{out: out, now: now}
			if out.Rejected {
				return nil
			}
			if record != nil {
				res.session = record(out, now)
			}
			saved, err := s.store.Save(ctx, out.Progress, Journal{Session: res.session, Entries: out.Entries})
			if err != nil {
				return err
			}
			res.out.Progress = saved
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.opts.SaveAttempts),
		retry.Delay(s.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrVersionConflict)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.metrics.conflict()
			s.logger.WarnContext(ctx, "progress save conflict, retrying",
				"user_id", userID, "event", kind, "attempt", n+1)
		}),
	)
	if err != nil {
		return committed{}, err
	}

	s.metrics.observe(kind, res.out)
	s.logOutcome(ctx, userID, kind, res.out)
	return res, nil
}

func (s *Service) apply(ctx context.Context, userID int64, ev Event, record func(Outcome, time.Time) *models.StudySession) (committed, error) {
	return s.commit(ctx, userID, ev.Type(), func(p models.UserProgress, now time.Time) (Outcome, error) {
		return Apply(p, ev, now)
	}, record)
}

func (s *Service) logOutcome(ctx context.Context, userID int64, kind string, out Outcome) {
	if out.Rejected {
		s.logger.InfoContext(ctx, "progress event rejected", "user_id", userID, "event", kind)
		return
	}
	s.logger.InfoContext(ctx, "progress event applied",
		"user_id", userID,
		"event", kind,
		"points_delta", out.PointsDelta,
		"points", out.Progress.Points,
		"level", out.LevelAfter,
	)
	if out.LevelAfter > out.LevelBefore {
		s.logger.InfoContext(ctx, "level up", "user_id", userID, "from", out.LevelBefore, "to", out.LevelAfter)
	}
	if n := len(out.BadgesUnlocked) + len(out.AchievementsUnlocked) + len(out.QuestsCompleted); n > 0 {
		s.logger.InfoContext(ctx, "unlocks earned",
			"user_id", userID,
			"badges", out.BadgesUnlocked,
			"achievements", out.AchievementsUnlocked,
			"quests", out.QuestsCompleted,
		)
	}
}

// ── Progress ────────────────────────────────────────────

func (s *Service) GetProgress(ctx context.Context, userID int64) (*models.ProgressResponse, error) {
	p, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := BuildProgressView(p, s.now())
	return &resp, nil
}

func (s *Service) SetDailyGoal(ctx context.Context, userID int64, minutes int) (*models.ProgressResponse, error) {
	res, err := s.commit(ctx, userID, "daily_goal_set", func(p models.UserProgress, now time.Time) (Outcome, error) {
		next, err := SetDailyGoal(p, minutes, now)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Progress: next, LevelBefore: p.Level, LevelAfter: next.Level}, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	resp := BuildProgressView(res.out.Progress, res.now)
	return &resp, nil
}

// ── Sessions ────────────────────────────────────────────

// CompleteSession applies a finished or abandoned session and logs it.
func (s *Service) CompleteSession(ctx context.Context, userID int64, req models.CompleteSessionRequest) (*models.OutcomeResponse, error) {
	var ev Event = SessionCompleted{Minutes: req.Minutes, Score: req.Score}
	if req.EndedEarly {
		ev = SessionEndedEarly{Minutes: req.Minutes}
	}

	res, err := s.apply(ctx, userID, ev, func(out Outcome, now time.Time) *models.StudySession {
		session := &models.StudySession{
			ID:          uuid.NewString(),
			UserID:      userID,
			TaskName:    req.TaskName,
			Duration:    req.Minutes,
			Points:      out.EventPoints,
			EndedEarly:  req.EndedEarly,
			CompletedAt: now,
			QuizAnswers: req.QuizAnswers,
		}
		if req.Score != nil {
			session.Score = *req.Score
		}
		return session
	})
	if err != nil {
		return nil, err
	}

	resp := outcomeResponse(res.out, res.now, res.session)
	return &resp, nil
}

func (s *Service) ListSessions(ctx context.Context, userID int64, limit int) ([]models.StudySession, error) {
	sessions, err := s.store.ListSessions(ctx, userID, clampLimit(limit, 20, 100))
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []models.StudySession{}
	}
	return sessions, nil
}

// SessionSummary aggregates today's sessions and those of the last seven days.
func (s *Service) SessionSummary(ctx context.Context, userID int64) (*models.SessionSummary, error) {
	today := day(s.now())
	weekStart := today.AddDate(0, 0, -6)

	sessions, err := s.store.SessionsSince(ctx, userID, weekStart)
	if err != nil {
		return nil, err
	}

	var summary models.SessionSummary
	for _, sess := range sessions {
		summary.WeekMinutes += sess.Duration
		summary.WeekSessions++
		summary.WeekPoints += sess.Points
		if sess.EndedEarly {
			summary.EarlyEndedCount++
		}
		if !sess.CompletedAt.Before(today) {
			summary.TodayMinutes += sess.Duration
			summary.TodaySessions++
		}
	}
	return &summary, nil
}

// ── Quizzes & Power-ups ─────────────────────────────────

func (s *Service) SubmitQuiz(ctx context.Context, userID int64, req models.SubmitQuizRequest) (*models.OutcomeResponse, error) {
	res, err := s.apply(ctx, userID, QuizAnswered{Correct: req.Correct, Wrong: req.Wrong, CoinsUsed: req.CoinsUsed}, nil)
	if err != nil {
		return nil, err
	}
	resp := outcomeResponse(res.out, res.now, nil)
	return &resp, nil
}

// PurchasePowerUp buys a double points window. When the balance does not cover
// the cost nothing is stored and the response comes back with ErrInsufficientFunds.
func (s *Service) PurchasePowerUp(ctx context.Context, userID int64) (*models.PowerUpResponse, error) {
	res, err := s.apply(ctx, userID, PowerUpPurchased{Cost: PowerUpCost, Duration: s.opts.PowerUpDuration}, nil)
	if err != nil {
		return nil, err
	}

	p := res.out.Progress
	resp := &models.PowerUpResponse{
		Success:         !res.out.Rejected,
		PointsRemaining: p.Points,
	}
	if DoublePointsActive(p, res.now) {
		resp.DoublePointsUntil = p.DoublePointsUntil
	}
	if res.out.Rejected {
		return resp, ErrInsufficientFunds
	}
	return resp, nil
}

// ── Quests ──────────────────────────────────────────────

func (s *Service) IncrementQuest(ctx context.Context, userID int64, questID string, delta int) (*models.OutcomeResponse, error) {
	res, err := s.apply(ctx, userID, QuestIncremented{QuestID: questID, Delta: delta}, nil)
	if err != nil {
		return nil, err
	}
	resp := outcomeResponse(res.out, res.now, nil)
	return &resp, nil
}

// ── History & Leaderboard ───────────────────────────────

func (s *Service) PointHistory(ctx context.Context, userID int64, limit int) ([]models.PointEvent, error) {
	events, err := s.store.ListPointEvents(ctx, userID, clampLimit(limit, 50, 200))
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.PointEvent{}
	}
	return events, nil
}

func (s *Service) Leaderboard(ctx context.Context, userID int64, limit int) (*models.LeaderboardResponse, error) {
	entries, err := s.store.Leaderboard(ctx, clampLimit(limit, 20, 100))
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	found := false
	for i := range entries {
		if entries[i].UserID == userID {
			entries[i].IsCurrentUser = true
			found = true
		}
	}

	resp := &models.LeaderboardResponse{Entries: entries}
	if found {
		return resp, nil
	}

	p, err := s.store.Load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	rank, err := s.store.UserRank(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp.CurrentUser = &models.LeaderboardEntry{
		Rank:          rank,
		UserID:        userID,
		Points:        p.Points,
		Level:         p.Level,
		Streak:        p.Streak,
		IsCurrentUser: true,
	}
	return resp, nil
}

// ── Maintenance ─────────────────────────────────────────

// RunDailyMaintenance zeroes stale daily progress and clears expired power-ups.
func (s *Service) RunDailyMaintenance(ctx context.Context) error {
	now := s.now()

	reset, err := s.store.ResetStaleDailyProgress(ctx, day(now))
	if err != nil {
		return fmt.Errorf("daily maintenance: %w", err)
	}
	cleared, err := s.store.ClearExpiredPowerUps(ctx, now)
	if err != nil {
		return fmt.Errorf("daily maintenance: %w", err)
	}

	s.logger.InfoContext(ctx, "daily maintenance finished", "daily_reset", reset, "powerups_cleared", cleared)
	return nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
