package gamification

import "github.com/studyquest/backend/internal/models"

// Badge rarities.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Quest categories.
const (
	CategoryTime     = "time"
	CategorySessions = "sessions"
	CategoryQuiz     = "quiz"
	CategoryStreak   = "streak"
)

// Predicate reports whether a definition is satisfied by the current state.
// Predicates read only the progress record and the event context.
type Predicate func(p *models.UserProgress, ec EventContext) bool

// BadgeDef defines a single badge. Badges carry no point reward.
type BadgeDef struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Rarity      string
	Earned      Predicate
}

// AchievementDef defines a single achievement and its one-time reward.
type AchievementDef struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Points      int
	Earned      Predicate
}

// QuestDef defines a quest. Progress is driven by increments, not predicates.
type QuestDef struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Target      int
	Reward      int
	Category    string
}

// Badges is the badge catalog in display order.
var Badges = []BadgeDef{
	{ID: "perfect_score", Name: "Perfect Score", Description: "Score 100% on a quiz", Icon: "🎯", Rarity: RarityRare,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return ec.QuizScore != nil && *ec.QuizScore == 100 }},
	{ID: "centurion", Name: "Centurion", Description: "Reach 100 points", Icon: "💯", Rarity: RarityCommon,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.Points >= 100 }},
	{ID: "scholar", Name: "Scholar", Description: "Complete 10 study sessions", Icon: "🎓", Rarity: RarityRare,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.SessionsCompleted >= 10 }},
	{ID: "week_streak", Name: "Week Streak", Description: "Study 7 days in a row", Icon: "🔥", Rarity: RarityRare,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.Streak >= 7 }},
	{ID: "month_streak", Name: "Unstoppable", Description: "Study 30 days in a row", Icon: "⚡", Rarity: RarityLegendary,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.Streak >= 30 }},
	{ID: "bookworm", Name: "Bookworm", Description: "Study for 10 hours in total", Icon: "📚", Rarity: RarityEpic,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.TotalStudyTime >= 600 }},
	{ID: "rising_star", Name: "Rising Star", Description: "Reach level 5", Icon: "⭐", Rarity: RarityEpic,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.Level >= 5 }},
	{ID: "goal_getter", Name: "Goal Getter", Description: "Hit your daily study goal", Icon: "✅", Rarity: RarityCommon,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.DailyGoal > 0 && p.DailyProgress >= p.DailyGoal }},
}

// Achievements is the achievement catalog in display order.
var Achievements = []AchievementDef{
	{ID: "first_session", Name: "First Session", Description: "Complete your first study session", Icon: "🌱", Points: 50,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.SessionsCompleted >= 1 }},
	{ID: "marathon_study", Name: "Marathon Study", Description: "Complete a session of 2 hours or more", Icon: "🏃", Points: 100,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return ec.SessionCompleted && ec.SessionMinutes >= 120 }},
	{ID: "quiz_master", Name: "Quiz Master", Description: "Finish 10 quizzes", Icon: "🧠", Points: 75,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.QuizzesCompleted >= 10 }},
	{ID: "dedicated_learner", Name: "Dedicated Learner", Description: "Study for 1000 minutes in total", Icon: "📖", Points: 150,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.TotalStudyTime >= 1000 }},
	{ID: "streak_keeper", Name: "Streak Keeper", Description: "Keep a 3-day streak", Icon: "📅", Points: 30,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.Streak >= 3 }},
	{ID: "high_achiever", Name: "High Achiever", Description: "Reach level 10", Icon: "🏆", Points: 200,
		Earned: func(p *models.UserProgress, ec EventContext) bool { return p.Level >= 10 }},
}

// Quests is the quest catalog in display order.
var Quests = []QuestDef{
	{ID: "study_sprint", Name: "Study Sprint", Description: "Study for 60 minutes", Icon: "⏱️", Target: 60, Reward: 50, Category: CategoryTime},
	{ID: "session_regular", Name: "Session Regular", Description: "Complete 5 study sessions", Icon: "🔁", Target: 5, Reward: 75, Category: CategorySessions},
	{ID: "quiz_champion", Name: "Quiz Champion", Description: "Answer 20 quiz questions correctly", Icon: "🥇", Target: 20, Reward: 60, Category: CategoryQuiz},
	{ID: "marathoner", Name: "Marathoner", Description: "Study for 300 minutes", Icon: "🏅", Target: 300, Reward: 150, Category: CategoryTime},
	{ID: "consistency", Name: "Consistency", Description: "Study on 7 different days", Icon: "🗓️", Target: 7, Reward: 100, Category: CategoryStreak},
}

// FindQuest returns the quest definition with the given id.
func FindQuest(id string) (QuestDef, bool) {
	for _, q := range Quests {
		if q.ID == id {
			return q, true
		}
	}
	return QuestDef{}, false
}
