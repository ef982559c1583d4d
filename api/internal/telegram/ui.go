package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbCountPrefix = "count:"
	cbCancel      = "cancel"
)

var quickCounts = []int{5, 10, 20}

// Быстрый выбор количества вопросов + отмена
func makeCountKeyboard(max int) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(quickCounts))
	for _, n := range quickCounts {
		if n > max {
			continue
		}
		s := strconv.Itoa(n)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(s, cbCountPrefix+s))
	}
	cancel := tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Cancel", cbCancel))
	if len(row) == 0 {
		return tgbotapi.NewInlineKeyboardMarkup(cancel)
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, cancel)
}

// parseCount accepts only a bare positive integer within 1..max.
func parseCount(s string, max int) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 4 {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > max {
		return 0, false
	}
	return n, true
}

func isPDFDocument(d *tgbotapi.Document) bool {
	if d == nil {
		return false
	}
	if strings.EqualFold(d.MimeType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(d.FileName), ".pdf")
}
