package gamification

import (
	"time"

	"github.com/studyquest/backend/internal/models"
)

const (
	DefaultDailyGoal       = 30
	MinDailyGoal           = 5
	MaxDailyGoal           = 480
	DefaultPowerUpDuration = 30 * time.Minute
)

// NewProgress returns the default record for a user without one.
func NewProgress(userID int64, dailyGoal int, now time.Time) models.UserProgress {
	if dailyGoal <= 0 {
		dailyGoal = DefaultDailyGoal
	}
	p := models.UserProgress{
		UserID:    userID,
		Level:     1,
		DailyGoal: dailyGoal,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	syncCatalog(&p)
	return p
}

// Clone returns a copy that shares no slices with p.
func Clone(p models.UserProgress) models.UserProgress {
	c := p
	c.Badges = append([]models.BadgeState(nil), p.Badges...)
	c.Quests = append([]models.QuestState(nil), p.Quests...)
	c.Achievements = append([]models.AchievementState(nil), p.Achievements...)
	return c
}

// syncCatalog adds state entries for catalog items the record does not know yet.
func syncCatalog(p *models.UserProgress) {
	for _, def := range Badges {
		if badgeIndex(p, def.ID) < 0 {
			p.Badges = append(p.Badges, models.BadgeState{ID: def.ID})
		}
	}
	for _, def := range Quests {
		if questIndex(p, def.ID) < 0 {
			p.Quests = append(p.Quests, models.QuestState{ID: def.ID})
		}
	}
	for _, def := range Achievements {
		if achievementIndex(p, def.ID) < 0 {
			p.Achievements = append(p.Achievements, models.AchievementState{ID: def.ID})
		}
	}
}

func badgeIndex(p *models.UserProgress, id string) int {
	for i := range p.Badges {
		if p.Badges[i].ID == id {
			return i
		}
	}
	return -1
}

func questIndex(p *models.UserProgress, id string) int {
	for i := range p.Quests {
		if p.Quests[i].ID == id {
			return i
		}
	}
	return -1
}

func achievementIndex(p *models.UserProgress, id string) int {
	for i := range p.Achievements {
		if p.Achievements[i].ID == id {
			return i
		}
	}
	return -1
}

func day(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// ── Points ──────────────────────────────────────────────

// PointEntry is one credited or debited amount, kept for the event log.
type PointEntry struct {
	Kind   string
	Ref    string
	Amount int
}

// Point entry kinds not tied to an event.
const (
	KindLevelUp           = "level_up"
	KindQuestReward       = "quest_reward"
	KindAchievementReward = "achievement_reward"
)

// tally collects point entries. A nil tally records nothing.
type tally struct {
	entries []PointEntry
}

func (t *tally) credit(p *models.UserProgress, kind, ref string, delta int) {
	bonus := applyPoints(p, delta)
	if t == nil {
		return
	}
	if delta != 0 {
		t.entries = append(t.entries, PointEntry{Kind: kind, Ref: ref, Amount: delta})
	}
	if bonus > 0 {
		t.entries = append(t.entries, PointEntry{Kind: KindLevelUp, Amount: bonus})
	}
}

// applyPoints adds delta and recomputes the level. Crossing into a higher level
// pays LevelUpBonus once for this delta; the bonus may lift the level again but
// that second jump is not rewarded. Returns the bonus paid.
func applyPoints(p *models.UserProgress, delta int) int {
	before := LevelFromPoints(p.Points)
	p.Points += delta
	p.Level = LevelFromPoints(p.Points)
	if p.Level <= before {
		return 0
	}
	p.Points += LevelUpBonus
	p.Level = LevelFromPoints(p.Points)
	return LevelUpBonus
}

// ── Streak & Daily Progress ─────────────────────────────

// updateStreak compares now with the last study day. It reports whether this is
// the first study event of the day.
func updateStreak(p *models.UserProgress, now time.Time) bool {
	today := day(now)

	if p.LastStudyDate != nil {
		lastStudy := day(*p.LastStudyDate)
		daysSinceLast := int(today.Sub(lastStudy).Hours() / 24)

		switch {
		case daysSinceLast <= 0:
			return false
		case daysSinceLast == 1:
			p.Streak++
		default:
			p.Streak = 1
		}
	} else {
		p.Streak = 1
	}

	if p.Streak > p.LongestStreak {
		p.LongestStreak = p.Streak
	}
	p.LastStudyDate = &today
	return true
}

func resetDailyIfStale(p *models.UserProgress, now time.Time) {
	today := day(now)
	if p.DailyProgressDate != nil && day(*p.DailyProgressDate).Equal(today) {
		return
	}
	p.DailyProgress = 0
	p.DailyProgressDate = &today
}

func addStudyMinutes(p *models.UserProgress, minutes int, now time.Time) {
	resetDailyIfStale(p, now)
	p.TotalStudyTime += minutes
	p.DailyProgress = min(p.DailyProgress+minutes, p.DailyGoal)
}

// DailyProgressOn returns the daily progress as seen on the day of now.
// A record last touched on an earlier day reads as zero.
func DailyProgressOn(p models.UserProgress, now time.Time) int {
	if p.DailyProgressDate == nil || !day(*p.DailyProgressDate).Equal(day(now)) {
		return 0
	}
	return p.DailyProgress
}

// DoublePointsActive reports whether a double points power-up covers now.
func DoublePointsActive(p models.UserProgress, now time.Time) bool {
	return p.DoublePointsUntil != nil && p.DoublePointsUntil.After(now)
}

// ── Rules ───────────────────────────────────────────────

func applySession(p *models.UserProgress, t *tally, kind string, minutes int, endedEarly, doublePoints bool, now time.Time) (int, bool) {
	delta := SessionPoints(minutes, endedEarly, doublePoints)
	t.credit(p, kind, "", delta)
	addStudyMinutes(p, minutes, now)
	newDay := updateStreak(p, now)
	if !endedEarly {
		p.SessionsCompleted++
	}
	return delta, newDay
}

func applyQuiz(p *models.UserProgress, t *tally, correct, wrong, coinsUsed int) int {
	delta := QuizPoints(correct, wrong, coinsUsed)
	t.credit(p, QuizAnswered{}.Type(), "", delta)
	p.QuizzesCompleted++
	return delta
}

func purchase(p *models.UserProgress, t *tally, cost int) bool {
	if p.Points < cost {
		return false
	}
	t.credit(p, PowerUpPurchased{}.Type(), "", -cost)
	return true
}

// activateDoublePoints starts or extends the double points window.
func activateDoublePoints(p *models.UserProgress, now time.Time, d time.Duration) {
	start := now.UTC()
	if DoublePointsActive(*p, now) {
		start = p.DoublePointsUntil.UTC()
	}
	until := start.Add(d)
	p.DoublePointsUntil = &until
}

func validateSession(minutes int) error {
	if minutes < 0 || minutes > MaxSessionMinutes {
		return invalid("minutes", "must be between 0 and 1440")
	}
	return nil
}

func validateQuiz(correct, wrong, coinsUsed int) error {
	switch {
	case correct < 0:
		return invalid("correct", "must not be negative")
	case correct > MaxQuizAnswers:
		return invalid("correct", "at most 500 answers per quiz")
	case wrong < 0:
		return invalid("wrong", "must not be negative")
	case wrong > MaxQuizAnswers:
		return invalid("wrong", "at most 500 answers per quiz")
	case coinsUsed < 0:
		return invalid("coins_used", "must not be negative")
	case coinsUsed > MaxCoinsPerQuiz:
		return invalid("coins_used", "at most 3 coins per quiz")
	}
	return nil
}

// ApplySessionCompletion credits a finished session. A completed session earns
// PointsPerMinute per minute, doubled while double points is active. An early
// end costs EarlyEndPenalty regardless of time studied. Minutes always count
// towards total study time and the daily goal, and the streak is updated.
func ApplySessionCompletion(p models.UserProgress, minutes int, endedEarly, doublePoints bool, now time.Time) (models.UserProgress, error) {
	if err := validateSession(minutes); err != nil {
		return p, err
	}
	out := Clone(p)
	kind := SessionCompleted{}.Type()
	if endedEarly {
		kind = SessionEndedEarly{}.Type()
	}
	applySession(&out, nil, kind, minutes, endedEarly, doublePoints, now)
	return out, nil
}

// ApplyQuizResult credits a submitted quiz. Quizzes do not touch the streak.
func ApplyQuizResult(p models.UserProgress, correct, wrong, coinsUsed int) (models.UserProgress, error) {
	if err := validateQuiz(correct, wrong, coinsUsed); err != nil {
		return p, err
	}
	out := Clone(p)
	applyQuiz(&out, nil, correct, wrong, coinsUsed)
	return out, nil
}

// ApplyCoinUse debits coins spent to reveal answers during a quiz.
func ApplyCoinUse(p models.UserProgress, count int) (models.UserProgress, error) {
	if err := (CoinUsed{Count: count}).validate(); err != nil {
		return p, err
	}
	out := Clone(p)
	(*tally)(nil).credit(&out, CoinUsed{}.Type(), "", -count*CoinCost)
	return out, nil
}

// PurchasePowerUp debits cost. A balance below cost rejects the purchase and
// returns p unchanged with false.
func PurchasePowerUp(p models.UserProgress, cost int) (models.UserProgress, bool) {
	out := Clone(p)
	if !purchase(&out, nil, cost) {
		return p, false
	}
	return out, true
}

// SetDailyGoal changes the daily goal and re-clamps today's progress.
func SetDailyGoal(p models.UserProgress, minutes int, now time.Time) (models.UserProgress, error) {
	if minutes < MinDailyGoal || minutes > MaxDailyGoal {
		return p, invalid("daily_goal", "must be between 5 and 480 minutes")
	}
	out := Clone(p)
	resetDailyIfStale(&out, now)
	out.DailyGoal = minutes
	out.DailyProgress = min(out.DailyProgress, minutes)
	return out, nil
}
