package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mcq-bot/api/internal/session"
)

func (r *Router) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	if !r.allowed(cb.From) {
		r.ack(cb.ID, r.deniedText())
		return
	}
	r.ack(cb.ID, "")
	key := session.Key{ChatID: cid, UserID: cb.From.ID}

	// убрать клавиатуру, чтобы кнопку не нажали дважды
	edit := tgbotapi.NewEditMessageReplyMarkup(cid, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := r.Bot.Request(edit); err != nil {
		r.log().Debug("clear keyboard", zap.Error(err))
	}

	switch data := cb.Data; {
	case data == cbCancel:
		r.cancel(key)
	case strings.HasPrefix(data, cbCountPrefix):
		if sess, ok := r.Sessions.Get(key); !ok || sess.State != session.AwaitingQuestionCount {
			r.send(cid, msgExpired)
			return
		}
		r.handleCount(ctx, key, strings.TrimPrefix(data, cbCountPrefix))
	}
}

func (r *Router) ack(id, text string) {
	if _, err := r.Bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		r.log().Debug("callback ack", zap.Error(err))
	}
}
