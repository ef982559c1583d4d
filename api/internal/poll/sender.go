package poll

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mcq-bot/api/internal/mcq"
)

// Sender delivers one quiz poll.
type Sender interface {
	SendQuiz(ctx context.Context, chatID int64, r mcq.Record) error
}

// BotAPI: часть *tgbotapi.BotAPI, нужная для отправки.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSender struct {
	Bot BotAPI
}

// QuizConfig builds an anonymous quiz poll for the record.
func QuizConfig(chatID int64, r mcq.Record) tgbotapi.SendPollConfig {
	cfg := tgbotapi.NewPoll(chatID, r.Question, r.Options[:]...)
	cfg.Type = "quiz"
	cfg.IsAnonymous = true
	cfg.CorrectOptionID = int64(r.CorrectIndex)
	return cfg
}

func (s TelegramSender) SendQuiz(ctx context.Context, chatID int64, r mcq.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// повторная проверка лимитов: Telegram отвечает 400 на длинные поля
	if n := utf8.RuneCountInString(r.Question); n == 0 || n > mcq.MaxQuestionLen {
		return fmt.Errorf("question length %d out of range", n)
	}
	for i, o := range r.Options {
		if n := utf8.RuneCountInString(o); n == 0 || n > mcq.MaxOptionLen {
			return fmt.Errorf("option %c length %d out of range", 'A'+i, n)
		}
	}
	if r.CorrectIndex < 0 || r.CorrectIndex >= mcq.OptionCount {
		return fmt.Errorf("correct index %d out of range", r.CorrectIndex)
	}
	if _, err := s.Bot.Send(QuizConfig(chatID, r)); err != nil {
		return fmt.Errorf("send poll: %w", err)
	}
	return nil
}
