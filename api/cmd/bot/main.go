package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mcq-bot/api/internal/config"
	"mcq-bot/api/internal/httpserver"
	"mcq-bot/api/internal/llm"
	"mcq-bot/api/internal/llm/gemini"
	"mcq-bot/api/internal/llm/openai"
	"mcq-bot/api/internal/logger"
	"mcq-bot/api/internal/metrics"
	"mcq-bot/api/internal/pdftext"
	"mcq-bot/api/internal/pipeline"
	"mcq-bot/api/internal/poll"
	"mcq-bot/api/internal/session"
	"mcq-bot/api/internal/store"
	"mcq-bot/api/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// --- Postgres (опционально) ---
	var (
		db    *sql.DB
		stats *store.BatchRepo
	)
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		db, err = openDB(ctx, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(db); err != nil {
			return err
		}
		stats = store.NewBatchRepo(db)
		stats.Log = log.Named("store")
		log.Info("db connected", dsnFields(dsn)...)
	} else {
		log.Info("DATABASE_URL not set, batch statistics disabled")
	}

	// --- Telegram ---
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Info("authorized", zap.String("bot", bot.Self.UserName))

	// --- Engines ---
	gem, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		return err
	}
	defer func() { _ = gem.Close() }()
	engines := []llm.Engine{gem}
	if cfg.OpenAIAPIKey != "" {
		oa, err := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, "", log)
		if err != nil {
			return err
		}
		engines = append(engines, oa)
	}
	if cfg.DeepSeekAPIKey != "" {
		ds, err := openai.NewDeepSeek(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, "", log)
		if err != nil {
			return err
		}
		engines = append(engines, ds)
	}
	registry := llm.NewRegistry(engines...)
	manager := llm.NewManager(gem)

	sessions := session.NewMemoryStore(cfg.SessionTimeout)

	pipe := &pipeline.Pipeline{
		Settings: pipeline.Settings{
			MaxInputChars:   cfg.MaxInputChars,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Timeout:         cfg.GenerationTimeout,
			Retry:           llm.Policy{Attempts: cfg.GenerationAttempts, Delay: cfg.GenerationRetryDelay, Multiplier: 2},
			Language:        cfg.Language,
		},
		Dispatcher: &poll.Dispatcher{
			Sender:    poll.TelegramSender{Bot: bot},
			Threshold: cfg.PollPacingThreshold,
			Delay:     cfg.PollDelay,
			Log:       log.Named("poll"),
			Metrics:   m,
		},
		Metrics: m,
		Log:     log.Named("pipeline"),
	}

	router := &telegram.Router{
		Bot:           bot,
		Gate:          cfg,
		Sessions:      sessions,
		Engines:       registry,
		EngManager:    manager,
		Extractor:     pdftext.Extractor{},
		Pipeline:      pipe,
		MaxQuestions:  cfg.MaxQuestions,
		MaxInputChars: cfg.MaxInputChars,
		Owner:         cfg.OwnerUsername,
		Log:           log.Named("telegram"),
	}
	// интерфейсы не должны получить typed nil
	if stats != nil {
		pipe.Recorder = stats
		router.Stats = stats
	}

	g, gctx := errgroup.WithContext(ctx)

	// каждый апдейт в своей горутине; ждём их при остановке
	var inflight sync.WaitGroup
	handle := func(upd tgbotapi.Update) {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer func() {
				if p := recover(); p != nil {
					log.Error("update handler panic", zap.Any("panic", p), zap.Int("update_id", upd.UpdateID))
				}
			}()
			router.HandleUpdate(gctx, upd)
		}()
	}

	opts := httpserver.Options{Metrics: m.Handler(), Log: log.Named("http")}
	if db != nil {
		opts.Ping = db.PingContext
	}

	if cfg.UseWebhook() {
		path := "/webhook/" + shortHash(cfg.TelegramToken)
		wh, err := tgbotapi.NewWebhook(cfg.WebhookURL + path)
		if err != nil {
			return fmt.Errorf("webhook config: %w", err)
		}
		wh.DropPendingUpdates = true
		if _, err := bot.Request(wh); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		opts.WebhookPath = path
		opts.Decode = bot.HandleUpdate
		opts.OnUpdate = handle
		log.Info("webhook mode", zap.String("url", cfg.WebhookURL+"/webhook/…"))
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn("delete webhook", zap.Error(err))
		}
		log.Info("polling mode")
		g.Go(func() error { return runPolling(gctx, bot, handle, log.Named("polling")) })
	}

	g.Go(func() error {
		return httpserver.Run(gctx, "0.0.0.0:"+cfg.Port, httpserver.NewRouter(opts), log.Named("http"))
	})
	g.Go(func() error {
		return sessions.Run(gctx, time.Minute, func(n int) {
			log.Debug("sessions expired", zap.Int("count", n))
		})
	})
	if stats != nil {
		g.Go(func() error { return purgeLoop(gctx, stats, cfg.StatsRetention, log) })
	}

	err = g.Wait()
	inflight.Wait()
	log.Info("stopped")
	return err
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

type purger interface {
	PurgeOlderThan(ctx context.Context, d time.Duration) (int64, error)
}

// purgeLoop раз в час удаляет статистику старше retention.
func purgeLoop(ctx context.Context, p purger, retention time.Duration, log *zap.Logger) error {
	if retention <= 0 {
		return nil
	}
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		n, err := p.PurgeOlderThan(ctx, retention)
		if err != nil && ctx.Err() == nil {
			log.Warn("purge stats", zap.Error(err))
		} else if n > 0 {
			log.Info("purged stats", zap.Int64("rows", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
