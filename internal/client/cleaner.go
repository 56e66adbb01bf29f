package client

import (
	"context"
	"log/slog"

	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/retry"
)

// Cleaner clears stale subscriptions that block a fresh subscribe.
type Cleaner struct {
	worker ServiceWorker
	policy retry.FixedPolicy
	sleep  retry.Sleeper
	logger *slog.Logger
}

// NewCleaner returns a Cleaner. A nil sleep uses real timers.
func NewCleaner(worker ServiceWorker, policy retry.FixedPolicy, sleep retry.Sleeper, log *slog.Logger) *Cleaner {
	if sleep == nil {
		sleep = retry.TimerSleep
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Cleaner{
		worker: worker,
		policy: policy.Normalize(),
		sleep:  sleep,
		logger: log,
	}
}

// ResetAll unsubscribes whatever the platform still holds, up to
// MaxIterations times. It returns true iff at least one subscription was
// removed. Failures end the loop quietly.
func (c *Cleaner) ResetAll(ctx context.Context) bool {
	if c.worker == nil {
		return false
	}
	pm, err := c.worker.Ready(ctx)
	if err != nil || pm == nil {
		c.logger.Debug("cleanup skipped, no push manager", slog.Any("error", err))
		return false
	}

	attempted := false
	removed := 0
	for i := 0; i < c.policy.MaxIterations; i++ {
		sub, err := pm.Subscription(ctx)
		if err != nil || sub == nil {
			break
		}

		attempted = true
		ok, err := pm.Unsubscribe(ctx, sub.Endpoint)
		if err != nil {
			c.logger.Debug("cleanup unsubscribe failed", slog.Any("error", err))
			break
		}
		if ok {
			removed++
		}
		if err := c.sleep(ctx, c.policy.Interval); err != nil {
			break
		}
	}

	if attempted {
		_ = c.sleep(ctx, c.policy.Settle)
	}
	if removed > 0 {
		c.logger.Info("stale push subscriptions cleared", slog.Int("removed", removed))
	}
	return removed > 0
}
