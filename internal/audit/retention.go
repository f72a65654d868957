package audit

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"flowbit.dev/internal/obs"
)

// DefaultPurgeSchedule runs retention once a day at midnight.
const DefaultPurgeSchedule = "@daily"

// Purger deletes audit events older than the retention window on a cron schedule.
type Purger struct {
	store     Store
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	now       func() time.Time
}

// NewPurger validates the schedule and returns a stopped purger.
func NewPurger(store Store, retention time.Duration, schedule string) (*Purger, error) {
	if store == nil {
		return nil, errors.New("audit: purger requires a store")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, err
	}
	return &Purger{
		store:     store,
		retention: retention,
		schedule:  schedule,
		cron:      cron.New(),
		now:       time.Now,
	}, nil
}

// Start registers the purge job and starts the scheduler.
func (p *Purger) Start() error {
	if _, err := p.cron.AddFunc(p.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = p.RunOnce(ctx)
	}); err != nil {
		return err
	}
	p.cron.Start()
	obs.Logger().Info().Str("schedule", p.schedule).Dur("retention", p.retention).Msg("audit retention scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running purge or ctx to end.
func (p *Purger) Stop(ctx context.Context) {
	stopped := p.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

// RunOnce deletes every event older than the retention window.
func (p *Purger) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.retention)
	n, err := p.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		obs.Logger().Error().Err(err).Time("cutoff", cutoff).Msg("audit retention failed")
		return 0, err
	}
	obs.AuditPurged.Add(float64(n))
	obs.Logger().Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("audit retention completed")
	return n, nil
}
