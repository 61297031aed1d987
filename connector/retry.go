package connector

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// retryConnect calls connectFn up to MaxRetries times, sleeping between
// attempts. The delay starts at BaseDelay and grows by Backoff (2 when unset)
// up to MaxDelay.
func retryConnect(ctx context.Context, opts RetryConfig, log *logrus.Entry, connectFn func(context.Context) (Connection, error)) (Connection, error) {
	var err error
	var conn Connection
	delay := opts.BaseDelay
	if delay == 0 {
		delay = time.Second // default
	}
	factor := opts.Backoff
	if factor == 0 {
		factor = 2
	}
	attempts := max(opts.MaxRetries, 1)

	for i := 0; i < attempts; i++ {
		conn, err = connectFn(ctx)
		if err == nil {
			return conn, nil
		}
		if i == attempts-1 {
			break
		}
		log.WithFields(logrus.Fields{
			"attempt": i + 1,
			"delay":   delay,
		}).WithError(err).Warn("connect failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			delay = time.Duration(float64(delay) * factor)
			if delay > opts.MaxDelay && opts.MaxDelay > 0 {
				delay = opts.MaxDelay
			}
		}
	}
	return nil, err
}
