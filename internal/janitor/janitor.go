// Package janitor sweeps consumed and long-expired magic links so the
// link table does not grow without bound.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/aidarbekov/walletd/internal/metrics"
	"github.com/aidarbekov/walletd/internal/repository"
	"github.com/robfig/cron/v3"
)

// retention keeps even expired links around for a day so that a late
// verification attempt still gets a precise "expired" answer instead
// of "not found".
const retention = 24 * time.Hour

type Janitor struct {
	links    repository.MagicLinkRepository
	logger   *slog.Logger
	schedule cron.Schedule
}

// New parses spec as a standard cron expression ("@hourly" and friends
// included).
func New(links repository.MagicLinkRepository, spec string, logger *slog.Logger) (*Janitor, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	return &Janitor{
		links:    links,
		logger:   logger.With("component", "janitor"),
		schedule: schedule,
	}, nil
}

func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("janitor started")

	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("janitor shut down")
			return
		case <-timer.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-retention)
	removed, err := j.links.DeleteStale(ctx, cutoff)
	if err != nil {
		j.logger.Error("sweep magic links", "error", err)
		return
	}
	if removed > 0 {
		metrics.LinksSweptTotal.Add(float64(removed))
		j.logger.Info("swept magic links", "removed", removed)
	}
}
