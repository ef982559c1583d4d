package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mcq-bot/api/internal/pdftext"
	"mcq-bot/api/internal/pipeline"
	"mcq-bot/api/internal/session"
)

func (r *Router) handleDocument(ctx context.Context, key session.Key, doc *tgbotapi.Document) {
	cid := key.ChatID
	if !isPDFDocument(doc) {
		r.send(cid, msgOnlyPDF)
		return
	}
	if doc.FileSize > maxFileSize {
		r.send(cid, msgTooBig)
		return
	}
	name := doc.FileName
	if name == "" {
		name = "document.pdf"
	}
	r.send(cid, fmt.Sprintf(msgReading, name))

	log := r.log().With(zap.Int64("chat_id", cid), zap.String("file", name))

	url, err := r.Bot.GetFileDirectURL(doc.FileID)
	if err != nil {
		log.Warn("get file url", zap.Error(err))
		r.send(cid, msgDownloadFailed)
		return
	}
	data, err := r.download(ctx, url)
	if err != nil {
		log.Warn("download document", zap.Error(err))
		r.send(cid, msgDownloadFailed)
		return
	}

	text, err := r.Extractor.Extract(ctx, data)
	if err != nil {
		// ошибка извлечения: всегда обратно в Idle
		r.Sessions.Clear(key)
		log.Warn("extract text", zap.Error(err))
		switch {
		case errors.Is(err, pdftext.ErrNoText):
			r.send(cid, msgNoText)
		case errors.Is(err, pdftext.ErrNotPDF):
			r.send(cid, msgOnlyPDF)
		default:
			r.send(cid, msgBadPDF)
		}
		return
	}

	chars := utf8.RuneCountInString(text)
	truncated := r.MaxInputChars > 0 && chars > r.MaxInputChars
	// новый PDF заменяет буфер предыдущего
	r.Sessions.Put(key, session.Session{
		State:     session.AwaitingQuestionCount,
		Text:      text,
		Filename:  name,
		Truncated: truncated,
	})
	log.Info("document buffered", zap.Int("chars", chars), zap.Bool("truncated", truncated))

	prompt := fmt.Sprintf(msgAskCount, chars, name, r.MaxQuestions)
	if truncated {
		prompt += fmt.Sprintf(msgTruncatedNote, r.MaxInputChars)
	}
	msg := tgbotapi.NewMessage(cid, prompt)
	msg.ReplyMarkup = makeCountKeyboard(r.MaxQuestions)
	r.sendMsg(msg)
}

func (r *Router) handleText(ctx context.Context, key session.Key, text string) {
	sess, ok := r.Sessions.Get(key)
	if !ok || sess.State != session.AwaitingQuestionCount {
		r.send(key.ChatID, msgSendPDF)
		return
	}
	r.handleCount(ctx, key, text)
}

// handleCount: ответ на вопрос "сколько вопросов" (текстом или кнопкой).
func (r *Router) handleCount(ctx context.Context, key session.Key, raw string) {
	cid := key.ChatID
	n, ok := parseCount(raw, r.MaxQuestions)
	if !ok {
		r.Sessions.Touch(key)
		msg := tgbotapi.NewMessage(cid, fmt.Sprintf(msgBadCount, r.MaxQuestions))
		msg.ReplyMarkup = makeCountKeyboard(r.MaxQuestions)
		r.sendMsg(msg)
		return
	}

	if _, busy := r.busy.LoadOrStore(key, struct{}{}); busy {
		r.send(cid, msgBusy)
		return
	}
	defer r.busy.Delete(key)

	sess, ok := r.Sessions.Take(key)
	if !ok || sess.State != session.AwaitingQuestionCount {
		r.send(cid, msgExpired)
		return
	}

	sel := r.EngManager.Get(cid)
	note := fmt.Sprintf(msgGenerating, n, sel.String())
	if n > slowAbove {
		note += msgSlowNote
	}
	r.send(cid, note)

	rep, err := r.Pipeline.Run(ctx, sel.Engine, pipeline.Request{
		ChatID: cid,
		Text:   sess.Text,
		Count:  n,
		Model:  sel.Model,
	})
	if err != nil {
		r.log().Warn("batch failed", zap.Int64("chat_id", cid), zap.Error(err))
	}
	r.send(cid, summary(rep, err))
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTime)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileSize)
	}
	return data, nil
}

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: downloadTime}
}
