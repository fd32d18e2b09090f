package filter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	mmail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/authresults"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

// ParseEmail reads a raw RFC 5322 message into the analysis model. The body used
// for scoring is the text/plain part, or the rendered HTML part when there is none.
func ParseEmail(r io.Reader, tp *utils.TextProcessor, logger *zap.Logger) (*core.Email, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}
	for _, perr := range env.Errors {
		logger.Debug("MIME parse warning", zap.String("error", perr.Error()))
	}

	email := &core.Email{
		MessageID: strings.TrimSpace(env.GetHeader("Message-ID")),
		From:      firstAddress(env.GetHeader("From")),
		Subject:   env.GetHeader("Subject"),
		Body:      env.Text,
		HTML:      env.HTML,
		Headers:   make(map[string][]string),
	}

	if to, err := env.AddressList("To"); err == nil {
		for _, addr := range to {
			email.To = append(email.To, addr.Address)
		}
	}

	if env.Root != nil {
		for key, values := range env.Root.Header {
			email.Headers[key] = values
		}
	}

	if env.HTML != "" {
		email.Links = tp.ExtractLinks(env.HTML)
		if strings.TrimSpace(email.Body) == "" {
			text, err := tp.HTMLToText(env.HTML)
			if err != nil {
				logger.Warn("Falling back to raw HTML body", zap.Error(err))
				text = env.HTML
			}
			email.Body = text
		}
	}

	email.Auth = authresults.FromHeaders(env.GetHeaderValues(authresults.HeaderName), logger)
	return email, nil
}

// firstAddress returns the bare address of a From-style header, or the trimmed
// value when it does not parse
func firstAddress(value string) string {
	if addr, err := mail.ParseAddress(value); err == nil {
		return addr.Address
	}
	if start, end := strings.LastIndex(value, "<"), strings.LastIndex(value, ">"); start >= 0 && end > start {
		return strings.TrimSpace(value[start+1 : end])
	}
	return strings.TrimSpace(value)
}

// annotate returns raw with fields prepended to the header block and, when
// subjectPrefix is non-empty, the subject prefixed once. The body is copied as is.
func annotate(raw []byte, fields []headerField, subjectPrefix string) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}

	if subjectPrefix != "" {
		mh := mmail.Header{Header: message.Header{Header: h}}
		subject, err := mh.Subject()
		if err != nil {
			subject = h.Get("Subject")
		}
		if !strings.HasPrefix(subject, subjectPrefix) {
			mh.SetSubject(subjectPrefix + subject)
		}
		h = mh.Header.Header
	}

	for i := len(fields) - 1; i >= 0; i-- {
		h.Del(fields[i].name)
		h.Add(fields[i].name, fields[i].value)
	}

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, h); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := io.Copy(&out, br); err != nil {
		return nil, fmt.Errorf("failed to copy message body: %w", err)
	}
	return out.Bytes(), nil
}
