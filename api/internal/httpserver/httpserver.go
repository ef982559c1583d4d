package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const banner = "mcq quiz bot"

type Options struct {
	// Ping проверяет БД для /healthz; nil: БД не настроена.
	Ping    func(ctx context.Context) error
	Metrics http.Handler

	// WebhookPath пустой: вебхук не регистрируется (polling).
	WebhookPath string
	Decode      func(r *http.Request) (*tgbotapi.Update, error)
	OnUpdate    func(tgbotapi.Update)

	Log *zap.Logger
}

func NewRouter(o Options) http.Handler {
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(banner))
	})
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if o.Ping != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := o.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})
	if o.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.Metrics)
	}
	if o.WebhookPath != "" && o.Decode != nil && o.OnUpdate != nil {
		r.Post(o.WebhookPath, func(w http.ResponseWriter, req *http.Request) {
			upd, err := o.Decode(req)
			if err != nil {
				log.Warn("bad webhook payload", zap.Error(err))
				http.Error(w, "bad update", http.StatusBadRequest)
				return
			}
			// Telegram ждёт быстрый 200, обработка асинхронная
			o.OnUpdate(*upd)
			w.WriteHeader(http.StatusOK)
		})
	}
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		return nil
	}
}
