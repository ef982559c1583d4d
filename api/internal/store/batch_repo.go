package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchStat: итог одного батча. Только счётчики, без текста пользователя.
type BatchStat struct {
	ID             int64
	BatchID        uuid.UUID
	CreatedAt      time.Time
	ChatID         int64
	Engine         string
	Model          string
	Requested      int
	InputChars     int
	Truncated      bool
	Segments       int
	Parsed         int
	Rejected       int
	RejectedBy     map[string]int
	Delivered      int
	DeliveryFailed int
	Outcome        string
	Duration       time.Duration
}

type BatchRepo struct {
	DB  *sql.DB
	Log *zap.Logger
}

func NewBatchRepo(db *sql.DB) *BatchRepo { return &BatchRepo{DB: db} }

// Insert сохраняет батч; повтор того же batch_id игнорируется.
func (r *BatchRepo) Insert(ctx context.Context, b BatchStat) error {
	if b.RejectedBy == nil {
		b.RejectedBy = map[string]int{}
	}
	js, err := json.Marshal(b.RejectedBy)
	if err != nil {
		return fmt.Errorf("marshal rejected_by: %w", err)
	}
	const q = `
insert into mcq_batches (
  batch_id, chat_id, engine, model, requested, input_chars, truncated,
  segments, parsed, rejected, rejected_by, delivered, delivery_failed,
  outcome, duration_ms
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
on conflict (batch_id) do nothing`
	_, err = r.DB.ExecContext(ctx, q,
		b.BatchID, b.ChatID, b.Engine, b.Model, b.Requested, b.InputChars, b.Truncated,
		b.Segments, b.Parsed, b.Rejected, js, b.Delivered, b.DeliveryFailed,
		b.Outcome, b.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Recent: последние батчи чата, новые первыми.
func (r *BatchRepo) Recent(ctx context.Context, chatID int64, limit int) ([]BatchStat, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
select id, batch_id, created_at, chat_id, engine, model, requested, input_chars, truncated,
       segments, parsed, rejected, rejected_by, delivered, delivery_failed, outcome, duration_ms
from mcq_batches
where chat_id = $1
order by created_at desc, id desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var out []BatchStat
	for rows.Next() {
		var (
			b  BatchStat
			js []byte
			ms int64
		)
		if err := rows.Scan(&b.ID, &b.BatchID, &b.CreatedAt, &b.ChatID, &b.Engine, &b.Model,
			&b.Requested, &b.InputChars, &b.Truncated, &b.Segments, &b.Parsed, &b.Rejected,
			&js, &b.Delivered, &b.DeliveryFailed, &b.Outcome, &ms); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		b.Duration = time.Duration(ms) * time.Millisecond
		b.RejectedBy = r.rejectedBy(b.ID, js)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Totals: агрегат по чату для /stats.
type Totals struct {
	Batches   int
	Requested int
	Parsed    int
	Delivered int
}

func (r *BatchRepo) Totals(ctx context.Context, chatID int64) (Totals, error) {
	const q = `
select count(*), coalesce(sum(requested),0), coalesce(sum(parsed),0), coalesce(sum(delivered),0)
from mcq_batches
where chat_id = $1`
	var t Totals
	if err := r.DB.QueryRowContext(ctx, q, chatID).Scan(&t.Batches, &t.Requested, &t.Parsed, &t.Delivered); err != nil {
		return Totals{}, fmt.Errorf("batch totals: %w", err)
	}
	return t, nil
}

// PurgeOlderThan удаляет записи старше d. Возвращает число удалённых строк.
func (r *BatchRepo) PurgeOlderThan(ctx context.Context, d time.Duration) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`delete from mcq_batches where created_at < now() - make_interval(secs => $1)`,
		d.Seconds())
	if err != nil {
		return 0, fmt.Errorf("purge batches: %w", err)
	}
	return res.RowsAffected()
}

// rejectedBy декодирует разбивку отказов; битая строка даёт пустую карту и warn,
// остальные поля батча при этом остаются валидными.
func (r *BatchRepo) rejectedBy(id int64, js []byte) map[string]int {
	m := map[string]int{}
	if len(js) == 0 {
		return m
	}
	if err := json.Unmarshal(js, &m); err != nil {
		r.log().Warn("decode rejected_by", zap.Int64("id", id), zap.Error(err))
		return map[string]int{}
	}
	return m
}

func (r *BatchRepo) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
