package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task is one attempt of a retried operation. It reports whether a failure
// is worth another attempt.
type Task func(ctx context.Context) (retry bool, err error)

// ExponentialBackoff retries a task with doubling intervals
type ExponentialBackoff struct {
	// MaxAttempts bounds the number of attempts; 0 means until ctx is done
	MaxAttempts int

	// MinInterval is the first wait, default 500ms
	MinInterval time.Duration

	// MaxInterval caps the wait before jitter, default 30s
	MaxInterval time.Duration

	// NoJitter disables the +/-5% spread
	NoJitter bool

	sleep func(ctx context.Context, d time.Duration) error
}

// Start runs task until it succeeds, reports a permanent failure, runs out
// of attempts or ctx is done. The last error is returned.
func (e *ExponentialBackoff) Start(ctx context.Context, name string, task Task) error {
	for attempt := 1; ; attempt++ {
		retry, err := task(ctx)
		if err == nil {
			if attempt > 1 {
				log.Infof("Retry: %s succeeded after %d attempts", name, attempt)
			}
			return nil
		}

		wait := e.interval(ctx, attempt, retry)
		if wait == 0 {
			log.Errorf("Retry: %s giving up after %d attempts: %v", name, attempt, err)
			return err
		}

		log.Warnf("Retry: %s attempt %d failed, next in %v: %v", name, attempt, wait.Round(time.Millisecond), err)
		if err := e.wait(ctx, wait); err != nil {
			return err
		}
	}
}

// interval returns 0 when no further attempt should be made
func (e *ExponentialBackoff) interval(ctx context.Context, attempt int, retry bool) time.Duration {
	if !retry || attempt == e.MaxAttempts || ctx.Err() != nil {
		return 0
	}

	minInterval := e.MinInterval
	if minInterval <= 0 {
		minInterval = 500 * time.Millisecond
	}
	maxInterval := e.MaxInterval
	if maxInterval < minInterval {
		maxInterval = max(30*time.Second, minInterval)
	}

	factor := math.Pow(2, math.Min(
		float64(attempt-1),
		math.Log2(float64(maxInterval)/float64(minInterval)),
	))
	if !e.NoJitter {
		// #nosec G404
		factor *= 0.95 + 0.1*rand.Float64()
	}
	return time.Duration(factor * float64(minInterval))
}

func (e *ExponentialBackoff) wait(ctx context.Context, d time.Duration) error {
	if e.sleep != nil {
		return e.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
