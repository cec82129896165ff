package event

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the periodic top-up sweep over every active template.
type Scheduler struct {
	cron *cron.Cron
	svc  *Service
}

// NewScheduler registers the sweep on the given cron spec, e.g. "@hourly" or
// "*/30 * * * *".
func NewScheduler(svc *Service, spec string) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(svc.Location))
	s := &Scheduler{cron: c, svc: svc}
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.svc.log.Info("recurrence top-up scheduled", zap.Int("entries", len(s.cron.Entries())))
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := s.svc.RunTopUp(ctx)
	if err != nil {
		s.svc.log.Error("scheduled top-up failed", zap.Error(err))
		return
	}
	s.svc.log.Info("scheduled top-up finished",
		zap.Int("checked", report.Checked),
		zap.Int("topped_up", report.ToppedUp),
		zap.Int("created", report.Created),
		zap.Uints("failed", report.Failed))
}
