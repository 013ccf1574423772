package gamification

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts progression events. A nil *Metrics records nothing.
type Metrics struct {
	events           *prometheus.CounterVec
	points           *prometheus.CounterVec
	levelUps         prometheus.Counter
	unlocks          *prometheus.CounterVec
	powerUps         *prometheus.CounterVec
	versionConflicts prometheus.Counter
}

// NewMetrics creates the progression counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_events_total",
				Help: "Total number of applied progression events",
			},
			[]string{"type"},
		),
		points: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_points_total",
				Help: "Total points moved by progression events",
			},
			[]string{"direction"},
		),
		levelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progress_level_ups_total",
			Help: "Total number of level increases",
		}),
		unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_unlocks_total",
				Help: "Total number of badges, achievements and quests completed",
			},
			[]string{"kind", "id"},
		),
		powerUps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "progress_powerup_purchases_total",
				Help: "Total number of power-up purchase attempts",
			},
			[]string{"result"},
		),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "progress_version_conflicts_total",
			Help: "Total number of progress saves retried after a concurrent update",
		}),
	}
	reg.MustRegister(m.events, m.points, m.levelUps, m.unlocks, m.powerUps, m.versionConflicts)
	return m
}

func (m *Metrics) observe(eventType string, out Outcome) {
	if m == nil {
		return
	}
	if eventType == (PowerUpPurchased{}).Type() {
		result := "accepted"
		if out.Rejected {
			result = "rejected"
		}
		m.powerUps.WithLabelValues(result).Inc()
		if out.Rejected {
			return
		}
	}

	m.events.WithLabelValues(eventType).Inc()
	switch {
	case out.PointsDelta > 0:
		m.points.WithLabelValues("earned").Add(float64(out.PointsDelta))
	case out.PointsDelta < 0:
		m.points.WithLabelValues("spent").Add(float64(-out.PointsDelta))
	}
	if out.LevelAfter > out.LevelBefore {
		m.levelUps.Add(float64(out.LevelAfter - out.LevelBefore))
	}
	for _, id := range out.BadgesUnlocked {
		m.unlocks.WithLabelValues("badge", id).Inc()
	}
	for _, id := range out.AchievementsUnlocked {
		m.unlocks.WithLabelValues("achievement", id).Inc()
	}
	for _, id := range out.QuestsCompleted {
		m.unlocks.WithLabelValues("quest", id).Inc()
	}
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}
