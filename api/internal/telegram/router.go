package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mcq-bot/api/internal/llm"
	"mcq-bot/api/internal/pipeline"
	"mcq-bot/api/internal/session"
	"mcq-bot/api/internal/store"
)

const (
	maxFileSize  = 20 << 20
	slowAbove    = 20
	recentStats  = 5
	downloadTime = 2 * time.Minute
)

// Client: то, что нужно роутеру от *tgbotapi.BotAPI.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Gate decides who may use the bot, by Telegram user id.
type Gate interface {
	IsOwner(userID int64) bool
}

type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

type Runner interface {
	Run(ctx context.Context, eng llm.Engine, req pipeline.Request) (pipeline.Report, error)
}

type StatsRepo interface {
	Recent(ctx context.Context, chatID int64, limit int) ([]store.BatchStat, error)
	Totals(ctx context.Context, chatID int64) (store.Totals, error)
}

type Router struct {
	Bot        Client
	Gate       Gate
	Sessions   session.Store
	Engines    *llm.Registry
	EngManager *llm.Manager
	Extractor  Extractor
	Pipeline   Runner
	Stats      StatsRepo // nil: /stats выключен
	Owner      string    // username владельца, только для текста отказа

	MaxQuestions  int
	MaxInputChars int
	HTTPClient    *http.Client
	Log           *zap.Logger

	busy sync.Map // session.Key -> struct{}
}

// HandleUpdate routes one update. Access is checked before any state change.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// callback-кнопки
	if cb := upd.CallbackQuery; cb != nil {
		r.handleCallback(ctx, cb)
		return
	}
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	cid := msg.Chat.ID
	if !r.allowed(msg.From) {
		r.log().Info("access denied", zap.Int64("chat_id", cid), zap.Int64("user_id", userID(msg.From)))
		r.send(cid, r.deniedText())
		return
	}
	key := session.Key{ChatID: cid, UserID: msg.From.ID}

	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, key, msg)
	case msg.Document != nil:
		r.handleDocument(ctx, key, msg.Document)
	case strings.TrimSpace(msg.Text) != "":
		r.handleText(ctx, key, msg.Text)
	default:
		r.send(cid, msgSendPDF)
	}
}

func (r *Router) HandleCommand(ctx context.Context, key session.Key, msg *tgbotapi.Message) {
	cid := key.ChatID
	switch msg.Command() {
	case "start":
		r.send(cid, msgStart)
	case "help":
		r.send(cid, fmt.Sprintf(msgHelp, r.MaxQuestions))
	case "cancel":
		r.cancel(key)
	case "health":
		r.send(cid, msgHealthy+"\nEngine: "+r.EngManager.Get(cid).String())
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	case "stats":
		r.handleStats(ctx, cid)
	default:
		r.send(cid, "Unknown command. See /help.")
	}
}

func (r *Router) cancel(key session.Key) {
	if _, ok := r.Sessions.Get(key); !ok {
		r.send(key.ChatID, msgNoCancel)
		return
	}
	r.Sessions.Clear(key)
	r.send(key.ChatID, msgCancelled)
}

// handleEngineCommand парсит /engine и переключает генератор для чата.
// Форматы:
//
//	/engine
//	/engine gemini [model]
//	/engine gpt [model]
//	/engine deepseek [model]
//	/engine default
func (r *Router) handleEngineCommand(chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		r.send(chatID, "Current engine: "+r.EngManager.Get(chatID).String()+
			"\nAvailable: "+strings.Join(r.Engines.Names(), " | ")+
			"\nUsage: /engine <name> [model]")
		return
	}
	name := strings.ToLower(fields[0])
	if name == "default" {
		r.EngManager.Reset(chatID)
		r.send(chatID, "✅ Engine: "+r.EngManager.Get(chatID).String())
		return
	}
	eng, ok := r.Engines.Lookup(name)
	if !ok {
		r.send(chatID, "Unknown or unconfigured engine. Available: "+strings.Join(r.Engines.Names(), " | "))
		return
	}
	var model string
	if len(fields) > 1 {
		model = fields[1]
	}
	r.EngManager.Set(chatID, eng, model)
	r.send(chatID, "✅ Engine: "+r.EngManager.Get(chatID).String())
}

func (r *Router) handleStats(ctx context.Context, chatID int64) {
	if r.Stats == nil {
		r.send(chatID, msgStatsDisabled)
		return
	}
	t, err := r.Stats.Totals(ctx, chatID)
	if err != nil {
		r.log().Warn("stats totals", zap.Int64("chat_id", chatID), zap.Error(err))
		r.send(chatID, "❌ Statistics are unavailable right now.")
		return
	}
	recent, err := r.Stats.Recent(ctx, chatID, recentStats)
	if err != nil {
		r.log().Warn("stats recent", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	r.send(chatID, formatStats(t, recent))
}

func (r *Router) allowed(u *tgbotapi.User) bool {
	if u == nil || r.Gate == nil {
		return false
	}
	return r.Gate.IsOwner(u.ID)
}

func (r *Router) deniedText() string {
	if r.Owner == "" {
		return msgDenied
	}
	return fmt.Sprintf(msgDeniedOwner, r.Owner)
}

func userID(u *tgbotapi.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func (r *Router) send(chatID int64, text string) {
	r.sendMsg(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendMsg(msg tgbotapi.MessageConfig) {
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("send message", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

func (r *Router) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
