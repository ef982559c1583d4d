package poll

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mcq-bot/api/internal/mcq"
	"mcq-bot/api/internal/metrics"
)

const (
	DefaultThreshold = 10
	DefaultDelay     = 250 * time.Millisecond
)

// Outcome: судьба одной записи.
type Outcome struct {
	Index int
	Err   error // nil = доставлено
}

type Result struct {
	Attempted int
	Delivered int
	Failed    int
	Outcomes  []Outcome
}

// Dispatcher sends records one by one, in order.
// A failed record never stops the loop. Batches larger than Threshold
// are paced with Delay between consecutive sends.
type Dispatcher struct {
	Sender    Sender
	Threshold int
	Delay     time.Duration
	Log       *zap.Logger
	Metrics   *metrics.Metrics
}

func (d *Dispatcher) Dispatch(ctx context.Context, chatID int64, records []mcq.Record) Result {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	res := Result{Attempted: len(records), Outcomes: make([]Outcome, 0, len(records))}
	paced := len(records) > d.Threshold && d.Delay > 0

	for i, r := range records {
		if i > 0 && paced {
			if err := sleep(ctx, d.Delay); err != nil {
				res.skip(records[i:], i, err)
				log.Warn("dispatch interrupted", zap.Int64("chat_id", chatID), zap.Int("remaining", len(records)-i), zap.Error(err))
				return res
			}
		}
		if err := ctx.Err(); err != nil {
			res.skip(records[i:], i, err)
			log.Warn("dispatch interrupted", zap.Int64("chat_id", chatID), zap.Int("remaining", len(records)-i), zap.Error(err))
			return res
		}

		err := d.Sender.SendQuiz(ctx, chatID, r)
		res.Outcomes = append(res.Outcomes, Outcome{Index: i, Err: err})
		d.Metrics.Poll(err == nil)
		if err != nil {
			res.Failed++
			log.Warn("poll send failed", zap.Int64("chat_id", chatID), zap.Int("index", i), zap.Error(err))
			continue
		}
		res.Delivered++
	}
	return res
}

func (r *Result) skip(rest []mcq.Record, from int, err error) {
	for j := range rest {
		r.Outcomes = append(r.Outcomes, Outcome{Index: from + j, Err: err})
		r.Failed++
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
