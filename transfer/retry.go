package transfer

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls how session setup is retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 500 * time.Millisecond,
	MaxDelay:  30 * time.Second,
}

// delay returns the wait before the attempt after attempt, with ±20% jitter.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(1<<uint(attempt-1))
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

// retryWithBackoff runs fn until it succeeds, the attempts run out, the gate
// is signaled or fn fails with a non-retryable error.
func retryWithBackoff(log *zap.Logger, p RetryPolicy, gate *Gate, operation string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if gate.Signaled() {
			return newError(CodeCanceled, operation, "", err)
		}
		err = fn()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		d := p.delay(attempt)
		log.Warn("retrying",
			zap.String("op", operation),
			zap.Int("attempt", attempt),
			zap.Int("max", attempts),
			zap.Duration("delay", d),
			zap.Error(err))
		if sleepOrSignal(gate, d) {
			return newError(CodeCanceled, operation, "", err)
		}
	}
	return err
}

// retryable reports whether a failed dial is worth another try. Bad
// credentials and bad arguments are not.
func retryable(err error) bool {
	var s *Status
	if errors.As(err, &s) {
		switch s.Kind {
		case StatusLogin, StatusBadRequest, StatusAborted:
			return false
		case StatusReply:
			return s.Reply != 530
		}
		return true
	}
	return CodeOf(err) == CodeConnection
}

// sleepOrSignal waits for d and reports true if the gate fired first.
func sleepOrSignal(gate *Gate, d time.Duration) bool {
	woke := make(chan struct{})
	var once sync.Once
	stop := gate.Watch(func() { once.Do(func() { close(woke) }) })
	defer stop()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return gate.Signaled()
	case <-woke:
		return true
	}
}
