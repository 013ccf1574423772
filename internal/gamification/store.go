package gamification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/studyquest/backend/internal/database"
	"github.com/studyquest/backend/internal/models"
)

// Journal holds the append-only records written together with a progress save.
type Journal struct {
	Session *models.StudySession
	Entries []PointEntry
}

type Store struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, sb: database.Builder(db)}
}

// ── Progress Record ─────────────────────────────────────

var progressColumns = []string{
	"user_id", "points", "level", "streak", "longest_streak", "last_study_date",
	"total_study_time", "daily_goal", "daily_progress", "daily_progress_date",
	"sessions_completed", "quizzes_completed", "double_points_until",
	"badges", "quests", "achievements", "version", "created_at", "updated_at",
}

type progressRow struct {
	UserID            int64      `db:"user_id"`
	Points            int        `db:"points"`
	Level             int        `db:"level"`
	Streak            int        `db:"streak"`
	LongestStreak     int        `db:"longest_streak"`
	LastStudyDate     *time.Time `db:"last_study_date"`
	TotalStudyTime    int        `db:"total_study_time"`
	DailyGoal         int        `db:"daily_goal"`
	DailyProgress     int        `db:"daily_progress"`
	DailyProgressDate *time.Time `db:"daily_progress_date"`
	SessionsCompleted int        `db:"sessions_completed"`
	QuizzesCompleted  int        `db:"quizzes_completed"`
	DoublePointsUntil *time.Time `db:"double_points_until"`
	Badges            string     `db:"badges"`
	Quests            string     `db:"quests"`
	Achievements      string     `db:"achievements"`
	Version           int        `db:"version"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r progressRow) toModel() (models.UserProgress, error) {
	p := models.UserProgress{
		UserID:            r.UserID,
		Points:            r.Points,
		Level:             r.Level,
		Streak:            r.Streak,
		LongestStreak:     r.LongestStreak,
		LastStudyDate:     utcPtr(r.LastStudyDate),
		TotalStudyTime:    r.TotalStudyTime,
		DailyGoal:         r.DailyGoal,
		DailyProgress:     r.DailyProgress,
		DailyProgressDate: utcPtr(r.DailyProgressDate),
		SessionsCompleted: r.SessionsCompleted,
		QuizzesCompleted:  r.QuizzesCompleted,
		DoublePointsUntil: utcPtr(r.DoublePointsUntil),
		Version:           r.Version,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.Badges), &p.Badges); err != nil {
		return p, fmt.Errorf("decode badges: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Quests), &p.Quests); err != nil {
		return p, fmt.Errorf("decode quests: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Achievements), &p.Achievements); err != nil {
		return p, fmt.Errorf("decode achievements: %w", err)
	}
	return p, nil
}

// progressValues maps p onto its columns. Catalog state is stored as JSON.
func progressValues(p models.UserProgress) (map[string]interface{}, error) {
	badges, err := marshalList(p.Badges)
	if err != nil {
		return nil, fmt.Errorf("encode badges: %w", err)
	}
	quests, err := marshalList(p.Quests)
	if err != nil {
		return nil, fmt.Errorf("encode quests: %w", err)
	}
	achievements, err := marshalList(p.Achievements)
	if err != nil {
		return nil, fmt.Errorf("encode achievements: %w", err)
	}

	return map[string]interface{}{
		"user_id":             p.UserID,
		"points":              p.Points,
		"level":               p.Level,
		"streak":              p.Streak,
		"longest_streak":      p.LongestStreak,
		"last_study_date":     utcPtr(p.LastStudyDate),
		"total_study_time":    p.TotalStudyTime,
		"daily_goal":          p.DailyGoal,
		"daily_progress":      p.DailyProgress,
		"daily_progress_date": utcPtr(p.DailyProgressDate),
		"sessions_completed":  p.SessionsCompleted,
		"quizzes_completed":   p.QuizzesCompleted,
		"double_points_until": utcPtr(p.DoublePointsUntil),
		"badges":              badges,
		"quests":              quests,
		"achievements":        achievements,
		"version":             p.Version,
		"created_at":          p.CreatedAt.UTC(),
		"updated_at":          p.UpdatedAt.UTC(),
	}, nil
}

func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	return string(b), err
}

// Load returns the user's record or ErrNotFound.
func (s *Store) Load(ctx context.Context, userID int64) (models.UserProgress, error) {
	query, args, err := s.sb.Select(progressColumns...).
		From("user_progress").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return models.UserProgress{}, fmt.Errorf("build progress query: %w", err)
	}

	var row progressRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserProgress{}, ErrNotFound
		}
		return models.UserProgress{}, fmt.Errorf("get progress: %w", err)
	}
	return row.toModel()
}

// Create inserts p unless the user already has a record.
func (s *Store) Create(ctx context.Context, p models.UserProgress) error {
	values, err := progressValues(p)
	if err != nil {
		return err
	}
	query, args, err := s.sb.Insert("user_progress").
		SetMap(values).
		Suffix("ON CONFLICT (user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build progress insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

// Save overwrites the whole record if the stored version still equals
// p.Version, and appends the journal in the same transaction. The returned
// record carries the new version. A stale version yields ErrVersionConflict.
func (s *Store) Save(ctx context.Context, p models.UserProgress, j Journal) (models.UserProgress, error) {
	values, err := progressValues(p)
	if err != nil {
		return p, err
	}
	now := time.Now().UTC()
	delete(values, "user_id")
	delete(values, "created_at")
	values["version"] = p.Version + 1
	values["updated_at"] = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return p, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	query, args, err := s.sb.Update("user_progress").
		SetMap(values).
		Where(squirrel.Eq{"user_id": p.UserID, "version": p.Version}).
		ToSql()
	if err != nil {
		return p, fmt.Errorf("build progress update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return p, fmt.Errorf("update progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return p, fmt.Errorf("update progress: %w", err)
	}
	if n == 0 {
		return p, s.missingOrStale(ctx, tx, p.UserID)
	}

	if j.Session != nil {
		if err := s.insertSession(ctx, tx, *j.Session); err != nil {
			return p, err
		}
	}
	if err := s.insertPointEvents(ctx, tx, p.UserID, j.Entries, now); err != nil {
		return p, err
	}

	if err := tx.Commit(); err != nil {
		return p, fmt.Errorf("commit save: %w", err)
	}

	p.Version++
	p.UpdatedAt = now
	return p, nil
}

func (s *Store) missingOrStale(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	query, args, err := s.sb.Select("COUNT(*)").From("user_progress").Where(squirrel.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("build existence query: %w", err)
	}
	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		return fmt.Errorf("check progress: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// ── Session Log ─────────────────────────────────────────

var sessionColumns = []string{
	"id", "user_id", "task_name", "duration", "score", "points", "ended_early", "quiz_answers", "completed_at",
}

type sessionRow struct {
	models.StudySession
	QuizAnswers string `db:"quiz_answers"`
}

func (s *Store) insertSession(ctx context.Context, tx *sqlx.Tx, session models.StudySession) error {
	answers, err := marshalList(session.QuizAnswers)
	if err != nil {
		return fmt.Errorf("encode quiz answers: %w", err)
	}
	query, args, err := s.sb.Insert("study_sessions").
		Columns(sessionColumns...).
		Values(session.ID, session.UserID, session.TaskName, session.Duration, session.Score,
			session.Points, session.EndedEarly, answers, session.CompletedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ListSessions returns the user's most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, userID int64, limit int) ([]models.StudySession, error) {
	return s.selectSessions(ctx, s.sb.Select(sessionColumns...).
		From("study_sessions").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("completed_at DESC").
		Limit(uint64(limit)))
}

// SessionsSince returns the user's sessions completed at or after since, newest first.
func (s *Store) SessionsSince(ctx context.Context, userID int64, since time.Time) ([]models.StudySession, error) {
	return s.selectSessions(ctx, s.sb.Select(sessionColumns...).
		From("study_sessions").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"completed_at": since.UTC()}).
		OrderBy("completed_at DESC"))
}

func (s *Store) selectSessions(ctx context.Context, q squirrel.SelectBuilder) ([]models.StudySession, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build session query: %w", err)
	}

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]models.StudySession, 0, len(rows))
	for _, row := range rows {
		session := row.StudySession
		session.CompletedAt = session.CompletedAt.UTC()
		if err := json.Unmarshal([]byte(row.QuizAnswers), &session.QuizAnswers); err != nil {
			return nil, fmt.Errorf("decode quiz answers for session %s: %w", session.ID, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// ── Point Events ────────────────────────────────────────

func (s *Store) insertPointEvents(ctx context.Context, tx *sqlx.Tx, userID int64, entries []PointEntry, at time.Time) error {
	if len(entries) == 0 {
		return nil
	}

	insert := s.sb.Insert("point_events").Columns("user_id", "event_type", "amount", "metadata", "created_at")
	for _, e := range entries {
		meta := map[string]string{}
		if e.Ref != "" {
			meta["ref"] = e.Ref
		}
		b, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode point event metadata: %w", err)
		}
		insert = insert.Values(userID, e.Kind, e.Amount, string(b), at)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build point event insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert point events: %w", err)
	}
	return nil
}

// ListPointEvents returns the user's point history, newest first.
func (s *Store) ListPointEvents(ctx context.Context, userID int64, limit int) ([]models.PointEvent, error) {
	query, args, err := s.sb.Select("id", "user_id", "event_type", "amount", "COALESCE(metadata, '{}') AS metadata", "created_at").
		From("point_events").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build point event query: %w", err)
	}

	var events []models.PointEvent
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list point events: %w", err)
	}
	return events, nil
}

// ── Leaderboard ─────────────────────────────────────────

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query, args, err := s.sb.Select("p.user_id", "u.username", "p.points", "p.level", "p.streak").
		From("user_progress p").
		Join("users u ON u.id = p.user_id").
		OrderBy("p.points DESC", "p.user_id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build leaderboard query: %w", err)
	}

	var entries []models.LeaderboardEntry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// UserRank returns 1 + the number of users with strictly more points.
func (s *Store) UserRank(ctx context.Context, userID int64) (int, error) {
	query, args, err := s.sb.Select("COUNT(*) + 1").
		From("user_progress").
		Where(squirrel.Expr("points > (SELECT points FROM user_progress WHERE user_id = ?)", userID)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build rank query: %w", err)
	}

	var rank int
	if err := s.db.GetContext(ctx, &rank, query, args...); err != nil {
		return 0, fmt.Errorf("get rank: %w", err)
	}
	return rank, nil
}

// ── Maintenance ─────────────────────────────────────────

// ResetStaleDailyProgress zeroes the daily progress of records last credited before today.
func (s *Store) ResetStaleDailyProgress(ctx context.Context, today time.Time) (int64, error) {
	query, args, err := s.sb.Update("user_progress").
		Set("daily_progress", 0).
		Set("daily_progress_date", today.UTC()).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Lt{"daily_progress_date": today.UTC()}).
		Where(squirrel.Gt{"daily_progress": 0}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build daily reset: %w", err)
	}
	return s.execCount(ctx, "reset daily progress", query, args)
}

// ClearExpiredPowerUps removes double points windows that ended before now.
func (s *Store) ClearExpiredPowerUps(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := s.sb.Update("user_progress").
		Set("double_points_until", nil).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Lt{"double_points_until": now.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build power-up cleanup: %w", err)
	}
	return s.execCount(ctx, "clear expired power-ups", query, args)
}

func (s *Store) execCount(ctx context.Context, op, query string, args []interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
