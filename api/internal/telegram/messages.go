package telegram

import (
	"errors"
	"fmt"
	"strings"

	"mcq-bot/api/internal/pipeline"
	"mcq-bot/api/internal/store"
)

const (
	msgStart = "👋 Send me a PDF with study material and I will turn it into quiz polls.\n\n" +
		"1. Upload a PDF (up to 20 MB).\n" +
		"2. Tell me how many questions you want.\n" +
		"3. Get one quiz poll per question.\n\n" +
		"Commands: /help, /cancel, /engine, /stats, /health"
	msgHelp = "Send a PDF document, then reply with a number of questions (1–%d).\n" +
		"/cancel — forget the current document\n" +
		"/engine — show or switch the generator: /engine gemini|gpt|deepseek [model] | /engine default\n" +
		"/stats — recent batches\n" +
		"/health — bot status"
	msgDenied         = "⛔ This bot is private."
	msgDeniedOwner    = "⛔ This is a private bot of @%s."
	msgSendPDF        = "Send me a PDF document to start."
	msgOnlyPDF        = "❌ Only PDF documents are supported."
	msgTooBig         = "❌ The file is too large (max 20 MB)."
	msgReading        = "📄 Reading %s…"
	msgDownloadFailed = "❌ Could not download the file from Telegram. Please try again."
	msgNoText         = "❌ I could not find any text in this PDF. Scanned pages without a text layer are not supported."
	msgBadPDF         = "❌ I could not read this PDF. The file may be damaged or protected."
	msgAskCount       = "✅ Extracted %d characters from %s.\nHow many questions should I generate? Reply with a number from 1 to %d or pick one below."
	msgTruncatedNote  = "\nℹ️ The document is long: only the first %d characters will be used."
	msgBadCount       = "Please reply with a whole number from 1 to %d, or /cancel."
	msgExpired        = "⌛ The document session has expired. Please send the PDF again."
	msgCancelled      = "🗑 Cancelled. Send a new PDF whenever you are ready."
	msgNoCancel       = "Nothing to cancel."
	msgBusy           = "⏳ I am still working on your previous batch. Please wait for it to finish."
	msgGenerating     = "🧠 Generating %d question(s) with %s…"
	msgSlowNote       = "\nThis may take a while."
	msgHealthy        = "✅ OK"
	msgStatsDisabled  = "Statistics are disabled."
	msgStatsEmpty     = "No batches yet."
)

// summary renders the end-of-batch report. Generator shortfall and delivery
// failures are reported separately.
func summary(rep pipeline.Report, err error) string {
	switch {
	case errors.Is(err, pipeline.ErrGeneration):
		return "❌ The question generator did not respond. Please try again later, or switch with /engine."
	case errors.Is(err, pipeline.ErrNoContent):
		return "❌ The generator returned an empty answer (it may have been blocked). Try another document or fewer questions."
	case err != nil:
		return fmt.Sprintf("❌ Something went wrong: %v", err)
	}

	var b strings.Builder
	if rep.Outcome == pipeline.OutcomeNoUsableContent {
		b.WriteString("⚠️ The generator's answer contained no usable questions")
		if rep.Rejected() > 0 {
			fmt.Fprintf(&b, " (%d rejected by validation)", rep.Rejected())
		}
		b.WriteString(". Please try again.")
		return b.String()
	}

	fmt.Fprintf(&b, "✅ Done: sent %d of %d valid question(s).", rep.Delivered, rep.Parsed)
	if rep.Parsed < rep.Requested {
		fmt.Fprintf(&b, "\nℹ️ The generator produced fewer usable questions than requested (%d of %d)", rep.Parsed, rep.Requested)
		if rep.Rejected() > 0 {
			fmt.Fprintf(&b, "; %d were rejected by validation", rep.Rejected())
		}
		b.WriteString(".")
	}
	if rep.DeliveryFailed > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d valid question(s) could not be delivered to Telegram.", rep.DeliveryFailed)
	}
	if rep.Truncated {
		b.WriteString("\nℹ️ Only the beginning of the document was used.")
	}
	return b.String()
}

func formatStats(t store.Totals, recent []store.BatchStat) string {
	if t.Batches == 0 {
		return msgStatsEmpty
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Batches: %d\nRequested: %d, valid: %d, delivered: %d\n", t.Batches, t.Requested, t.Parsed, t.Delivered)
	if len(recent) > 0 {
		b.WriteString("\nRecent:\n")
	}
	for _, s := range recent {
		fmt.Fprintf(&b, "• %s %s/%s: %d→%d→%d (%s)\n",
			s.CreatedAt.Format("2006-01-02 15:04"), s.Engine, s.Model,
			s.Requested, s.Parsed, s.Delivered, s.Outcome)
	}
	return strings.TrimRight(b.String(), "\n")
}
