package chat

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartSweeper runs SweepIdle on the given cron schedule. Stop the
// returned cron on shutdown.
func StartSweeper(m *Manager, schedule string, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := m.SweepIdle(); n > 0 {
			log.Info("idle sessions evicted", zap.Int("evicted", n), zap.Int("live", m.Len()))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Info("session sweeper scheduled", zap.String("schedule", schedule))
	return c, nil
}
