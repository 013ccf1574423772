package gamification

import (
	"time"

	"github.com/studyquest/backend/internal/models"
)

// BuildProgressView joins the stored record with catalog metadata.
// Daily progress and the double points flag are evaluated at now.
func BuildProgressView(p models.UserProgress, now time.Time) models.ProgressResponse {
	p = Clone(p)
	syncCatalog(&p)

	resp := models.ProgressResponse{
		Points:             p.Points,
		Level:              LevelFromPoints(p.Points),
		PointsToNextLevel:  PointsToNextLevel(p.Points),
		Streak:             p.Streak,
		LongestStreak:      p.LongestStreak,
		TotalStudyTime:     p.TotalStudyTime,
		DailyGoal:          p.DailyGoal,
		DailyProgress:      DailyProgressOn(p, now),
		DoublePointsActive: DoublePointsActive(p, now),
		Badges:             make([]models.BadgeView, 0, len(Badges)),
		Quests:             make([]models.QuestView, 0, len(Quests)),
		Achievements:       make([]models.AchievementView, 0, len(Achievements)),
	}
	if resp.DoublePointsActive {
		resp.DoublePointsUntil = p.DoublePointsUntil
	}

	for _, def := range Badges {
		st := p.Badges[badgeIndex(&p, def.ID)]
		resp.Badges = append(resp.Badges, models.BadgeView{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Rarity:      def.Rarity,
			Earned:      st.Earned,
			EarnedAt:    st.EarnedAt,
		})
	}
	for _, def := range Quests {
		st := p.Quests[questIndex(&p, def.ID)]
		resp.Quests = append(resp.Quests, models.QuestView{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Category:    def.Category,
			Target:      def.Target,
			Reward:      def.Reward,
			Progress:    st.Progress,
			Completed:   st.Completed,
			CompletedAt: st.CompletedAt,
		})
	}
	for _, def := range Achievements {
		st := p.Achievements[achievementIndex(&p, def.ID)]
		resp.Achievements = append(resp.Achievements, models.AchievementView{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Points:      def.Points,
			Earned:      st.Earned,
			EarnedAt:    st.EarnedAt,
		})
	}
	return resp
}

func outcomeResponse(out Outcome, now time.Time, session *models.StudySession) models.OutcomeResponse {
	return models.OutcomeResponse{
		PointsDelta:          out.PointsDelta,
		LevelBefore:          out.LevelBefore,
		LevelAfter:           out.LevelAfter,
		BadgesUnlocked:       nonNil(out.BadgesUnlocked),
		AchievementsUnlocked: nonNil(out.AchievementsUnlocked),
		QuestsCompleted:      nonNil(out.QuestsCompleted),
		Progress:             BuildProgressView(out.Progress, now),
		Session:              session,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
