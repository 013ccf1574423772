package gamification

import (
	"time"

	"github.com/studyquest/backend/internal/models"
)

// EventContext carries the facts about the triggering event that predicates may read.
type EventContext struct {
	SessionMinutes   int
	SessionCompleted bool
	QuizScore        *int
	Now              time.Time
}

// EvaluateUnlocks marks every badge and achievement whose predicate holds and
// that is not earned yet. Achievement rewards are credited once; predicates see
// the state from before those rewards so an unlock never triggers another in
// the same pass. A badge that only a reward made reachable unlocks on the next
// evaluation.
func EvaluateUnlocks(p models.UserProgress, ec EventContext) (models.UserProgress, []string, []string) {
	out := Clone(p)
	syncCatalog(&out)
	badges, achievements := evaluateUnlocks(&out, nil, ec)
	return out, badges, achievements
}

func evaluateUnlocks(p *models.UserProgress, t *tally, ec EventContext) ([]string, []string) {
	snapshot := *p
	earnedAt := ec.Now.UTC()

	var badges []string
	for _, def := range Badges {
		i := badgeIndex(p, def.ID)
		if p.Badges[i].Earned || !def.Earned(&snapshot, ec) {
			continue
		}
		p.Badges[i].Earned = true
		p.Badges[i].EarnedAt = &earnedAt
		badges = append(badges, def.ID)
	}

	var achievements []string
	var rewards []AchievementDef
	for _, def := range Achievements {
		i := achievementIndex(p, def.ID)
		if p.Achievements[i].Earned || !def.Earned(&snapshot, ec) {
			continue
		}
		p.Achievements[i].Earned = true
		p.Achievements[i].EarnedAt = &earnedAt
		achievements = append(achievements, def.ID)
		rewards = append(rewards, def)
	}

	for _, def := range rewards {
		t.credit(p, KindAchievementReward, def.ID, def.Points)
	}
	return badges, achievements
}

// IncrementQuestProgress advances a quest, capped at its target. Reaching the
// target completes the quest and credits its reward, which is returned. A
// completed quest never changes again.
func IncrementQuestProgress(p models.UserProgress, questID string, delta int, now time.Time) (models.UserProgress, int, error) {
	if err := (QuestIncremented{QuestID: questID, Delta: delta}).validate(); err != nil {
		return p, 0, err
	}
	out := Clone(p)
	syncCatalog(&out)
	if !advanceQuest(&out, nil, questID, delta, now) {
		return out, 0, nil
	}
	def, _ := FindQuest(questID)
	return out, def.Reward, nil
}

// advanceQuest reports whether the quest was completed by this increment.
func advanceQuest(p *models.UserProgress, t *tally, questID string, delta int, now time.Time) bool {
	def, ok := FindQuest(questID)
	if !ok || delta <= 0 {
		return false
	}
	i := questIndex(p, questID)
	q := &p.Quests[i]
	if q.Completed {
		return false
	}

	q.Progress += min(delta, max(def.Target-q.Progress, 0))
	if q.Progress < def.Target {
		return false
	}

	completedAt := now.UTC()
	q.Completed = true
	q.CompletedAt = &completedAt
	t.credit(p, KindQuestReward, def.ID, def.Reward)
	return true
}
