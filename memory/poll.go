package memory

import (
	"bytes"
	"time"

	"github.com/jpillora/backoff"

	"github.com/arloliu/go-onewire/internal/pool"
)

// busyPoller re-reads status that may still show a device busy with an
// internal write cycle. Reads return all ones while the device is busy.
type busyPoller struct {
	attempts int
	delay    time.Duration
	metrics  *BankMetrics
}

func newBusyPoller(cfg *BankConfig) busyPoller {
	return busyPoller{
		attempts: cfg.busyPollAttempts,
		delay:    cfg.busyPollDelay,
		metrics:  cfg.metrics,
	}
}

// poll calls read until it returns something other than all ones or the
// attempts run out, then returns the last value. Errors from read end the
// poll immediately.
func (p busyPoller) poll(read func() ([]byte, error)) ([]byte, error) {
	b := &backoff.Backoff{
		Min:    p.delay,
		Max:    8 * p.delay,
		Factor: 2,
	}

	for attempt := 1; ; attempt++ {
		v, err := read()
		if err != nil {
			return nil, err
		}
		if !allOnes(v) || attempt >= p.attempts {
			return v, nil
		}

		p.metrics.incBusyPollCount()
		if p.delay > 0 {
			pool.Sleep(b.Duration())
		}
	}
}

func allOnes(p []byte) bool {
	return len(p) > 0 && bytes.Count(p, []byte{0xFF}) == len(p)
}
