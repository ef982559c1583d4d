package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy: ограниченное число попыток с (экспоненциальной) паузой между ними.
type Policy struct {
	Attempts   int
	Delay      time.Duration
	Multiplier float64
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Delay: 2 * time.Second, Multiplier: 2}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs fn until it succeeds, the attempts run out or ctx is done.
// Context errors are never retried. notify, when set, sees every failed attempt.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error, notify func(attempt int, err error)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Delay
	eb.Multiplier = mult
	eb.RandomizationFactor = 0
	eb.MaxInterval = time.Minute
	eb.MaxElapsedTime = 0
	eb.Reset()

	var (
		n       int
		lastErr error
	)
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
	err := backoff.Retry(func() error {
		n++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if notify != nil {
			notify(n, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
	if err == nil {
		return nil
	}
	if lastErr == nil {
		lastErr = err
	}
	return &ExhaustedError{Op: op, Attempts: n, Err: lastErr}
}
