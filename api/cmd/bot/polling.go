package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type updatesGetter interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// retryDelayFromError: пауза перед следующим getUpdates.
// 429 от Bot API несёт retry_after в ResponseParameters.
func retryDelayFromError(err error) time.Duration {
	var apiErr *tgbotapi.Error
	var netErr net.Error
	switch {
	case err == nil:
		return 0
	case errors.As(err, &apiErr) && apiErr.RetryAfter > 0:
		return time.Duration(apiErr.RetryAfter) * time.Second
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests:
		return 3 * time.Second
	case errors.As(err, &netErr) && netErr.Timeout():
		return 2 * time.Second
	default:
		return time.Second
	}
}

// runPolling: устойчивый long polling без log.Fatal, до отмены ctx.
func runPolling(ctx context.Context, bot updatesGetter, handle func(tgbotapi.Update), log *zap.Logger) error {
	const (
		baseDelay = time.Second
		maxDelay  = 15 * time.Second
		idleDelay = 200 * time.Millisecond
	)
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Info("polling stopped")
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			if !sleepCtx(ctx, d) {
				return nil
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}
		if len(updates) == 0 && !sleepCtx(ctx, idleDelay) {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// shortHash: секретный сегмент пути вебхука, производный от токена.
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// dsnFields: куда подключились, без пароля и параметров запроса.
func dsnFields(dsn string) []zap.Field {
	u, err := url.Parse(dsn)
	if err != nil {
		return []zap.Field{zap.String("dsn", "unparsable")}
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		host, port = u.Host, ""
	}
	fields := []zap.Field{
		zap.String("db_host", host),
		zap.String("db_name", strings.TrimPrefix(u.Path, "/")),
		zap.String("db_user", u.User.Username()),
	}
	if port != "" {
		fields = append(fields, zap.String("db_port", port))
	}
	return fields
}
