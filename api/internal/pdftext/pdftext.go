package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrNotPDF = errors.New("not a PDF document")
	ErrNoText = errors.New("no extractable text in PDF")
)

// IsPDF проверяет сигнатуру %PDF- (допускаем мусор/BOM перед ней в первых 1024 байтах).
func IsPDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

type Extractor struct {
	// MaxPages ограничивает число страниц; 0: без ограничения.
	MaxPages int
}

// Extract returns the plain text of every page, each followed by a newline.
// Pages that fail to decode are skipped.
func (x Extractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	if !IsPDF(data) {
		return "", ErrNotPDF
	}
	// ledongthuc/pdf паникует на битых файлах
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf: open: %w", err)
	}

	n := rd.NumPage()
	if x.MaxPages > 0 && n > x.MaxPages {
		n = x.MaxPages
	}
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := rd.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(s)
		b.WriteByte('\n')
	}

	out := b.String()
	if strings.TrimSpace(out) == "" {
		return "", ErrNoText
	}
	return out, nil
}
