package models

import "time"

// ── Core Progress Structs ─────────────────────────────────

// UserProgress is the persisted progression record for one user.
// Level is always derived from Points.
type UserProgress struct {
	UserID            int64              `json:"user_id"`
	Points            int                `json:"points"`
	Level             int                `json:"level"`
	Streak            int                `json:"streak"`
	LongestStreak     int                `json:"longest_streak"`
	LastStudyDate     *time.Time         `json:"last_study_date,omitempty"`
	TotalStudyTime    int                `json:"total_study_time"`
	DailyGoal         int                `json:"daily_goal"`
	DailyProgress     int                `json:"daily_progress"`
	DailyProgressDate *time.Time         `json:"daily_progress_date,omitempty"`
	SessionsCompleted int                `json:"sessions_completed"`
	QuizzesCompleted  int                `json:"quizzes_completed"`
	DoublePointsUntil *time.Time         `json:"double_points_until,omitempty"`
	Badges            []BadgeState       `json:"badges"`
	Quests            []QuestState       `json:"quests"`
	Achievements      []AchievementState `json:"achievements"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

type BadgeState struct {
	ID       string     `json:"id"`
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

type QuestState struct {
	ID          string     `json:"id"`
	Progress    int        `json:"progress"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type AchievementState struct {
	ID       string     `json:"id"`
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// StudySession is an append-only log entry written once per finished session.
type StudySession struct {
	ID          string       `json:"id" db:"id"`
	UserID      int64        `json:"user_id" db:"user_id"`
	TaskName    string       `json:"task_name" db:"task_name"`
	Duration    int          `json:"duration" db:"duration"`
	Score       int          `json:"score" db:"score"`
	Points      int          `json:"points" db:"points"`
	EndedEarly  bool         `json:"ended_early" db:"ended_early"`
	CompletedAt time.Time    `json:"completed_at" db:"completed_at"`
	QuizAnswers []QuizAnswer `json:"quiz_answers,omitempty" db:"-"`
}

type QuizAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
	Correct    bool   `json:"correct"`
}

// PointEvent records a single applied point delta.
type PointEvent struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	EventType string    `json:"event_type" db:"event_type"`
	Amount    int       `json:"amount" db:"amount"`
	Metadata  string    `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ── Request Types ─────────────────────────────────────────

type CompleteSessionRequest struct {
	TaskName    string       `json:"task_name" validate:"required,max=200"`
	Minutes     int          `json:"minutes" validate:"gte=0,lte=1440"`
	EndedEarly  bool         `json:"ended_early"`
	Score       *int         `json:"score,omitempty" validate:"omitempty,gte=0,lte=100"`
	QuizAnswers []QuizAnswer `json:"quiz_answers,omitempty" validate:"omitempty,dive"`
}

type SubmitQuizRequest struct {
	Correct   int `json:"correct" validate:"gte=0,lte=500"`
	Wrong     int `json:"wrong" validate:"gte=0,lte=500"`
	CoinsUsed int `json:"coins_used" validate:"gte=0,lte=3"`
}

type SetDailyGoalRequest struct {
	Minutes int `json:"minutes" validate:"gte=5,lte=480"`
}

type QuestProgressRequest struct {
	Delta int `json:"delta" validate:"gte=0,lte=1000"`
}

// ── Response Types ────────────────────────────────────────

type ProgressResponse struct {
	Points             int               `json:"points"`
	Level              int               `json:"level"`
	PointsToNextLevel  int               `json:"points_to_next_level"`
	Streak             int               `json:"streak"`
	LongestStreak      int               `json:"longest_streak"`
	TotalStudyTime     int               `json:"total_study_time"`
	DailyGoal          int               `json:"daily_goal"`
	DailyProgress      int               `json:"daily_progress"`
	DoublePointsActive bool              `json:"double_points_active"`
	DoublePointsUntil  *time.Time        `json:"double_points_until,omitempty"`
	Badges             []BadgeView       `json:"badges"`
	Quests             []QuestView       `json:"quests"`
	Achievements       []AchievementView `json:"achievements"`
}

type BadgeView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Rarity      string     `json:"rarity"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
}

type QuestView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Category    string     `json:"category"`
	Target      int        `json:"target"`
	Reward      int        `json:"reward"`
	Progress    int        `json:"progress"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type AchievementView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Points      int        `json:"points"`
	Earned      bool       `json:"earned"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
}

// OutcomeResponse is returned by every mutating progress endpoint.
type OutcomeResponse struct {
	PointsDelta          int              `json:"points_delta"`
	LevelBefore          int              `json:"level_before"`
	LevelAfter           int              `json:"level_after"`
	BadgesUnlocked       []string         `json:"badges_unlocked"`
	AchievementsUnlocked []string         `json:"achievements_unlocked"`
	QuestsCompleted      []string         `json:"quests_completed"`
	Progress             ProgressResponse `json:"progress"`
	Session              *StudySession    `json:"session,omitempty"`
}

type PowerUpResponse struct {
	Success           bool       `json:"success"`
	PointsRemaining   int        `json:"points_remaining"`
	DoublePointsUntil *time.Time `json:"double_points_until,omitempty"`
}

type SessionSummary struct {
	TodayMinutes    int `json:"today_minutes"`
	TodaySessions   int `json:"today_sessions"`
	WeekMinutes     int `json:"week_minutes"`
	WeekSessions    int `json:"week_sessions"`
	WeekPoints      int `json:"week_points"`
	EarlyEndedCount int `json:"early_ended_count"`
}

type LeaderboardResponse struct {
	Entries     []LeaderboardEntry `json:"entries"`
	CurrentUser *LeaderboardEntry  `json:"current_user,omitempty"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank" db:"-"`
	UserID        int64  `json:"user_id" db:"user_id"`
	Username      string `json:"username" db:"username"`
	Points        int    `json:"points" db:"points"`
	Level         int    `json:"level" db:"level"`
	Streak        int    `json:"streak" db:"streak"`
	IsCurrentUser bool   `json:"is_current_user" db:"-"`
}
