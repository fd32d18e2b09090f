package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// Subject is the subject line of every report mail
const Subject = "Phishing Report - Phish Filter"

// maxListItems caps the details and suspicious elements listed in a report
const maxListItems = 50

// Body renders the plain-text report. now is used when the report carries no
// analysis time.
func Body(r *Report, now time.Time) string {
	analysedAt := now
	if r.AnalysedAt != nil {
		analysedAt = *r.AnalysedAt
	}
	recipient := r.ToAddress
	if recipient == "" {
		recipient = "Unknown"
	}
	llm := "N/A"
	if r.LLMScore != nil {
		llm = fmt.Sprintf("%.0f", *r.LLMScore)
	}

	var b strings.Builder
	b.WriteString("PHISHING REPORT (Auto-generated)\n\n")
	fmt.Fprintf(&b, "Email Subject: %s\n", r.Subject)
	fmt.Fprintf(&b, "Sender: %s\n", r.FromAddress)
	fmt.Fprintf(&b, "Recipient: %s\n", recipient)
	fmt.Fprintf(&b, "Message ID: %s\n", r.MessageID)
	fmt.Fprintf(&b, "Analysed At (UTC): %s\n\n", analysedAt.UTC().Format(time.RFC3339))

	b.WriteString("Scores:\n")
	fmt.Fprintf(&b, "- Heuristic: %d\n", intOrZero(r.HeuristicScore))
	fmt.Fprintf(&b, "- LLM: %s\n", llm)
	fmt.Fprintf(&b, "- Final: %d/100\n\n", intOrZero(r.FinalScore))

	b.WriteString("Authentication:\n")
	fmt.Fprintf(&b, "- DKIM: %s\n", r.AuthResults.DKIM.Status)
	fmt.Fprintf(&b, "- SPF: %s\n", r.AuthResults.SPF.Status)
	fmt.Fprintf(&b, "- DMARC: %s\n\n", r.AuthResults.DMARC.Status)

	b.WriteString("Details:\n")
	writeList(&b, r.Details)
	b.WriteString("\nSuspicious Elements:\n")
	writeList(&b, r.SuspiciousElements)
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("(none)\n")
		return
	}
	if len(items) > maxListItems {
		items = items[:maxListItems]
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Compose builds the RFC 5322 report mail
func Compose(r *Report, from, to string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create report writer: %w", err)
	}
	if _, err := io.WriteString(w, Body(r, now)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write report body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish report: %w", err)
	}
	return buf.Bytes(), nil
}
