package gamification

import (
	"time"

	"github.com/studyquest/backend/internal/models"
)

// Event is one of the closed set of progression events below.
type Event interface {
	Type() string
	validate() error
}

// SessionCompleted is a study session that ran to its planned end.
type SessionCompleted struct {
	Minutes int
	Score   *int
}

// SessionEndedEarly is a session the user stopped before its planned end.
type SessionEndedEarly struct {
	Minutes int
}

// QuizAnswered is a submitted quiz.
type QuizAnswered struct {
	Correct   int
	Wrong     int
	CoinsUsed int
}

// CoinUsed reveals answers during a running quiz.
type CoinUsed struct {
	Count int
}

// PowerUpPurchased buys a double points window.
type PowerUpPurchased struct {
	Cost     int
	Duration time.Duration
}

// QuestIncremented advances a quest by Delta.
type QuestIncremented struct {
	QuestID string
	Delta   int
}

func (SessionCompleted) Type() string  { return "session_completed" }
func (SessionEndedEarly) Type() string { return "session_ended_early" }
func (QuizAnswered) Type() string      { return "quiz_answered" }
func (CoinUsed) Type() string          { return "coin_used" }
func (PowerUpPurchased) Type() string  { return "powerup_purchased" }
func (QuestIncremented) Type() string  { return "quest_incremented" }

func (e SessionCompleted) validate() error {
	if e.Score != nil && (*e.Score < 0 || *e.Score > 100) {
		return invalid("score", "must be between 0 and 100")
	}
	return validateSession(e.Minutes)
}

func (e SessionEndedEarly) validate() error {
	return validateSession(e.Minutes)
}

func (e QuizAnswered) validate() error {
	return validateQuiz(e.Correct, e.Wrong, e.CoinsUsed)
}

func (e CoinUsed) validate() error {
	if e.Count < 1 || e.Count > MaxCoinsPerQuiz {
		return invalid("count", "must be between 1 and 3")
	}
	return nil
}

func (e PowerUpPurchased) validate() error {
	if e.Cost < 0 {
		return invalid("cost", "must not be negative")
	}
	if e.Duration <= 0 {
		return invalid("duration", "must be positive")
	}
	return nil
}

func (e QuestIncremented) validate() error {
	if _, ok := FindQuest(e.QuestID); !ok {
		return invalid("quest", "unknown quest "+e.QuestID)
	}
	if e.Delta < 0 || e.Delta > MaxQuestDelta {
		return invalid("delta", "must be between 0 and 1000")
	}
	return nil
}

// Outcome is the result of one engine pass.
type Outcome struct {
	Progress             models.UserProgress
	EventPoints          int
	PointsDelta          int
	LevelBefore          int
	LevelAfter           int
	BadgesUnlocked       []string
	AchievementsUnlocked []string
	QuestsCompleted      []string
	Entries              []PointEntry
	// Rejected is set when a power-up purchase lacked funds. Progress is unchanged.
	Rejected bool
}

// Apply runs the rule for ev, advances the quests the event feeds, evaluates
// unlocks and folds quest and achievement rewards back once. p is not modified.
func Apply(p models.UserProgress, ev Event, now time.Time) (Outcome, error) {
	if err := ev.validate(); err != nil {
		return Outcome{}, err
	}
	now = now.UTC()

	out := Clone(p)
	syncCatalog(&out)
	res := Outcome{LevelBefore: LevelFromPoints(p.Points)}
	t := &tally{}
	ec := EventContext{Now: now}

	switch e := ev.(type) {
	case SessionCompleted:
		delta, newDay := applySession(&out, t, e.Type(), e.Minutes, false, DoublePointsActive(out, now), now)
		res.EventPoints = delta
		ec.SessionMinutes = e.Minutes
		ec.SessionCompleted = true
		ec.QuizScore = e.Score
		res.QuestsCompleted = advanceSessionQuests(&out, t, e.Minutes, true, newDay, now)
	case SessionEndedEarly:
		delta, newDay := applySession(&out, t, e.Type(), e.Minutes, true, false, now)
		res.EventPoints = delta
		ec.SessionMinutes = e.Minutes
		res.QuestsCompleted = advanceSessionQuests(&out, t, e.Minutes, false, newDay, now)
	case QuizAnswered:
		res.EventPoints = applyQuiz(&out, t, e.Correct, e.Wrong, e.CoinsUsed)
		if e.Correct+e.Wrong > 0 {
			score := QuizScore(e.Correct, e.Wrong)
			ec.QuizScore = &score
		}
		if advanceQuest(&out, t, "quiz_champion", e.Correct, now) {
			res.QuestsCompleted = append(res.QuestsCompleted, "quiz_champion")
		}
	case CoinUsed:
		res.EventPoints = -e.Count * CoinCost
		t.credit(&out, e.Type(), "", res.EventPoints)
	case PowerUpPurchased:
		if !purchase(&out, t, e.Cost) {
			res.Progress = p
			res.LevelAfter = res.LevelBefore
			res.Rejected = true
			return res, nil
		}
		res.EventPoints = -e.Cost
		activateDoublePoints(&out, now, e.Duration)
	case QuestIncremented:
		if advanceQuest(&out, t, e.QuestID, e.Delta, now) {
			res.QuestsCompleted = append(res.QuestsCompleted, e.QuestID)
		}
	default:
		return Outcome{}, invalid("event", "unsupported event type")
	}

	res.BadgesUnlocked, res.AchievementsUnlocked = evaluateUnlocks(&out, t, ec)
	res.Progress = out
	res.PointsDelta = out.Points - p.Points
	res.LevelAfter = out.Level
	res.Entries = t.entries
	return res, nil
}

// advanceSessionQuests feeds the time, session and study-day quests.
func advanceSessionQuests(p *models.UserProgress, t *tally, minutes int, completed, newDay bool, now time.Time) []string {
	var done []string
	for _, def := range Quests {
		delta := 0
		switch def.ID {
		case "study_sprint", "marathoner":
			delta = minutes
		case "session_regular":
			if completed {
				delta = 1
			}
		case "consistency":
			if newDay {
				delta = 1
			}
		}
		if delta > 0 && advanceQuest(p, t, def.ID, delta, now) {
			done = append(done, def.ID)
		}
	}
	return done
}
