package batch

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the rate-limit shape: how many items run concurrently
// within a group and how long to pause between groups.
type Config struct {
	GroupSize  int
	GroupDelay time.Duration
}

// Stats summarizes a batch run.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Groups    int
	Cancelled bool
}

// Run drives fn over items in fixed-size concurrent groups with a fixed
// delay between groups. A failing item is logged and isolated; it never
// aborts its siblings or later groups. On cancellation no further group
// is scheduled and the stats for the work done so far are returned.
func Run[T any](ctx context.Context, cfg Config, items []T, logger *zap.Logger, fn func(context.Context, T) error) Stats {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = 4
	}
	if cfg.GroupDelay <= 0 {
		cfg.GroupDelay = time.Second
	}

	stats := Stats{Total: len(items)}
	if len(items) == 0 {
		return stats
	}

	totalGroups := (len(items) + cfg.GroupSize - 1) / cfg.GroupSize
	start := time.Now()
	var failed atomic.Int64
	processed := 0

	for begin := 0; begin < len(items); begin += cfg.GroupSize {
		select {
		case <-ctx.Done():
			stats.Cancelled = true
			logger.Info("batch cancelled", zap.Int("completed", stats.Completed), zap.Int("total", stats.Total))
			return stats
		default:
		}

		end := begin + cfg.GroupSize
		if end > len(items) {
			end = len(items)
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for _, item := range items[begin:end] {
			item := item
			group.Go(func() error {
				if err := fn(groupCtx, item); err != nil {
					failed.Add(1)
					logger.Warn("batch item failed", zap.Error(err))
				}
				return nil
			})
		}
		group.Wait()

		processed += end - begin
		stats.Groups++
		stats.Failed = int(failed.Load())
		stats.Completed = processed - stats.Failed

		elapsed := time.Since(start)
		remaining := time.Duration(int64(elapsed) / int64(stats.Groups) * int64(totalGroups-stats.Groups))
		logger.Info("batch progress",
			zap.Int("processed", processed),
			zap.Int("total", stats.Total),
			zap.Int("group", stats.Groups),
			zap.Int("groups", totalGroups),
			zap.Duration("eta", remaining.Round(time.Second)),
		)

		if end < len(items) {
			timer := time.NewTimer(cfg.GroupDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				stats.Cancelled = true
				return stats
			case <-timer.C:
			}
		}
	}

	return stats
}
