package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mcq-bot/api/internal/llm"
	"mcq-bot/api/internal/mcq"
	"mcq-bot/api/internal/metrics"
	"mcq-bot/api/internal/poll"
	"mcq-bot/api/internal/store"
)

var (
	// ErrGeneration: движок вернул ошибку после всех попыток (или таймаут).
	ErrGeneration = errors.New("generation failed")
	// ErrNoContent: движок ответил без текста.
	ErrNoContent = errors.New("generation returned no content")
)

type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeNoUsableContent  Outcome = "no_usable_content"
	OutcomeGenerationFailed Outcome = "generation_failed"
	OutcomeNoContent        Outcome = "no_content"
)

// Recorder persists batch statistics.
type Recorder interface {
	Insert(ctx context.Context, b store.BatchStat) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, chatID int64, records []mcq.Record) poll.Result
}

type Settings struct {
	MaxInputChars   int
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration
	Retry           llm.Policy
	Language        string
}

type Pipeline struct {
	Settings   Settings
	Dispatcher Dispatcher
	Recorder   Recorder // nil: статистика не пишется
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

type Request struct {
	ChatID   int64
	Text     string
	Count    int
	Language string
	Model    string // override модели для выбранного движка
}

// Report: requested, parsed and delivered are independent counts.
type Report struct {
	BatchID        uuid.UUID
	ChatID         int64
	Engine         string
	Model          string
	Requested      int
	InputChars     int
	Truncated      bool
	Segments       int
	Parsed         int
	Delivered      int
	DeliveryFailed int
	Rejections     []mcq.Rejection
	Outcome        Outcome
	Duration       time.Duration
}

func (r Report) Rejected() int { return len(r.Rejections) }

// Run performs one batch end to end. Only generation problems return an error;
// a batch with nothing usable ends with OutcomeNoUsableContent and a nil error.
func (p *Pipeline) Run(ctx context.Context, eng llm.Engine, req Request) (Report, error) {
	started := time.Now()
	log := p.logger().With(zap.Int64("chat_id", req.ChatID))

	rep := Report{
		BatchID:    uuid.New(),
		ChatID:     req.ChatID,
		Engine:     eng.Name(),
		Model:      req.Model,
		Requested:  req.Count,
		InputChars: utf8.RuneCountInString(req.Text),
	}
	if rep.Model == "" {
		rep.Model = eng.GetModel()
	}
	log = log.With(zap.String("batch_id", rep.BatchID.String()), zap.String("engine", rep.Engine))

	text, cut := mcq.Truncate(req.Text, p.Settings.MaxInputChars)
	rep.Truncated = cut
	lang := req.Language
	if lang == "" {
		lang = p.Settings.Language
	}
	prompt := mcq.BuildPrompt(text, req.Count, lang)

	blob, err := p.generate(ctx, eng, llm.Request{
		Prompt:          prompt,
		Temperature:     p.Settings.Temperature,
		MaxOutputTokens: p.Settings.MaxOutputTokens,
		Model:           req.Model,
	}, log)
	if err != nil {
		return p.finish(ctx, rep, OutcomeGenerationFailed, started, log), fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if strings.TrimSpace(blob) == "" {
		return p.finish(ctx, rep, OutcomeNoContent, started, log), ErrNoContent
	}

	segments := mcq.Split(blob)
	rep.Segments = len(segments)
	p.Metrics.Segments(len(segments), mcq.Dropped(blob))

	batch := mcq.ParseAll(segments)
	rep.Parsed = len(batch.Records)
	rep.Rejections = batch.Rejections
	p.Metrics.Parsed(rep.Parsed)
	for i, rj := range batch.Rejections {
		p.Metrics.Rejected(string(rj.Rule))
		log.Warn("segment rejected",
			zap.Int("n", i),
			zap.String("rule", string(rj.Rule)),
			zap.String("detail", rj.Error()),
		)
		log.Debug("rejected segment text", zap.String("segment", rj.Segment))
	}

	if len(batch.Records) == 0 {
		return p.finish(ctx, rep, OutcomeNoUsableContent, started, log), nil
	}

	res := p.Dispatcher.Dispatch(ctx, req.ChatID, batch.Records)
	rep.Delivered = res.Delivered
	rep.DeliveryFailed = res.Failed
	return p.finish(ctx, rep, OutcomeCompleted, started, log), nil
}

func (p *Pipeline) generate(ctx context.Context, eng llm.Engine, req llm.Request, log *zap.Logger) (string, error) {
	if p.Settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Settings.Timeout)
		defer cancel()
	}
	t0 := time.Now()

	var out string
	err := p.Settings.Retry.Do(ctx, eng.Name(), func(ctx context.Context) error {
		s, err := eng.Generate(ctx, req)
		if err != nil {
			return err
		}
		out = s
		return nil
	}, func(attempt int, err error) {
		log.Warn("generation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	})

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case strings.TrimSpace(out) == "":
		status = "empty"
	}
	p.Metrics.Generation(eng.Name(), status, time.Since(t0))
	return out, err
}

func (p *Pipeline) finish(ctx context.Context, rep Report, o Outcome, started time.Time, log *zap.Logger) Report {
	rep.Outcome = o
	rep.Duration = time.Since(started)
	p.Metrics.Batch(string(o))

	log.Info("batch finished",
		zap.String("outcome", string(o)),
		zap.Int("requested", rep.Requested),
		zap.Int("segments", rep.Segments),
		zap.Int("parsed", rep.Parsed),
		zap.Int("rejected", rep.Rejected()),
		zap.Int("delivered", rep.Delivered),
		zap.Int("delivery_failed", rep.DeliveryFailed),
		zap.Bool("truncated", rep.Truncated),
		zap.Duration("took", rep.Duration),
	)

	if p.Recorder != nil {
		// пишем и после отмены ctx батча
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.Recorder.Insert(rctx, rep.stat()); err != nil {
			log.Warn("batch stats not saved", zap.Error(err))
		}
	}
	return rep
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (r Report) stat() store.BatchStat {
	by := make(map[string]int, len(r.Rejections))
	for _, rj := range r.Rejections {
		by[string(rj.Rule)]++
	}
	return store.BatchStat{
		BatchID:        r.BatchID,
		ChatID:         r.ChatID,
		Engine:         r.Engine,
		Model:          r.Model,
		Requested:      r.Requested,
		InputChars:     r.InputChars,
		Truncated:      r.Truncated,
		Segments:       r.Segments,
		Parsed:         r.Parsed,
		Rejected:       r.Rejected(),
		RejectedBy:     by,
		Delivered:      r.Delivered,
		DeliveryFailed: r.DeliveryFailed,
		Outcome:        string(r.Outcome),
		Duration:       r.Duration,
	}
}
