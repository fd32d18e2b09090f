package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"

	"github.com/emersion/go-milter"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

// headerModifier is the part of milter.Modifier the filter uses
type headerModifier interface {
	AddHeader(name, value string) error
	ChangeHeader(index int, name, value string) error
}

// MilterFilter implements a milter front end for phishing detection
type MilterFilter struct {
	analyzer      Analyzer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	opts          Options
	server        *milter.Server
	listener      net.Listener
}

// NewMilterFilter creates a new milter filter
func NewMilterFilter(analyzer Analyzer, textProcessor *utils.TextProcessor, logger *zap.Logger, opts Options) *MilterFilter {
	return &MilterFilter{
		analyzer:      analyzer,
		textProcessor: textProcessor,
		logger:        logger,
		opts:          opts,
	}
}

// Start starts the milter server
func (f *MilterFilter) Start() error {
	f.server = &milter.Server{
		NewMilter: func() milter.Milter {
			return &milterSession{filter: f}
		},
		Actions: milter.OptAddHeader | milter.OptChangeHeader,
	}

	ln, err := net.Listen("tcp", f.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddress, err)
	}
	f.listener = ln

	f.logger.Info("Milter filter started", zap.String("address", ln.Addr().String()))

	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			f.logger.Error("Milter server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the milter server
func (f *MilterFilter) Stop() error {
	if f.listener != nil {
		return f.listener.Close()
	}
	return nil
}

// ProcessEmail analyses an already parsed email
func (f *MilterFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.AnalysisResult, error) {
	return analyze(ctx, f.analyzer, email, f.opts.AnalysisTimeout)
}

// milterSession collects one message and decides on it at end of body
type milterSession struct {
	filter     *MilterFilter
	sender     string
	recipients []string
	raw        bytes.Buffer
	subject    string
	result     *core.AnalysisResult
}

func (s *milterSession) Connect(host string, family string, port uint16, addr net.IP, m *milter.Modifier) (milter.Response, error) {
	return milter.RespContinue, nil
}

func (s *milterSession) Helo(name string, m *milter.Modifier) (milter.Response, error) {
	return milter.RespContinue, nil
}

func (s *milterSession) MailFrom(from string, m *milter.Modifier) (milter.Response, error) {
	s.sender = strings.Trim(from, "<>")
	s.recipients = nil
	s.raw.Reset()
	s.subject = ""
	s.result = nil
	return milter.RespContinue, nil
}

func (s *milterSession) RcptTo(rcptTo string, m *milter.Modifier) (milter.Response, error) {
	s.recipients = append(s.recipients, strings.Trim(rcptTo, "<>"))
	return milter.RespContinue, nil
}

// Header keeps headers in arrival order so the rebuilt message parses like the original
func (s *milterSession) Header(name string, value string, m *milter.Modifier) (milter.Response, error) {
	fmt.Fprintf(&s.raw, "%s: %s\r\n", name, value)
	if strings.EqualFold(name, "Subject") && s.subject == "" {
		s.subject = value
	}
	return milter.RespContinue, nil
}

func (s *milterSession) Headers(h textproto.MIMEHeader, m *milter.Modifier) (milter.Response, error) {
	s.raw.WriteString("\r\n")
	return milter.RespContinue, nil
}

func (s *milterSession) BodyChunk(chunk []byte, m *milter.Modifier) (milter.Response, error) {
	s.raw.Write(chunk)
	return milter.RespContinue, nil
}

func (s *milterSession) Body(m *milter.Modifier) (milter.Response, error) {
	var mod headerModifier
	if m != nil {
		mod = m
	}
	return s.finish(mod)
}

func (s *milterSession) Abort(m *milter.Modifier) error {
	s.raw.Reset()
	s.result = nil
	return nil
}

// finish analyses the collected message and applies the verdict
func (s *milterSession) finish(mod headerModifier) (milter.Response, error) {
	f := s.filter
	email, err := ParseEmail(bytes.NewReader(s.raw.Bytes()), f.textProcessor, f.logger)
	if err != nil {
		f.logger.Error("Failed to parse email", zap.Error(err))
		return milter.RespAccept, nil
	}
	if email.From == "" {
		email.From = s.sender
	}
	if len(email.To) == 0 {
		email.To = s.recipients
	}

	logger := f.logger.With(
		zap.String("message_id", email.MessageID),
		zap.String("from", email.From),
		zap.String("sender_domain", senderDomain(email.From)))

	result, err := f.ProcessEmail(context.Background(), email)
	if err != nil {
		logger.Error("Failed to analyze email", zap.Error(err))
		return milter.RespAccept, nil
	}
	s.result = result

	logger.Info("Processed email",
		zap.Bool("is_phishing", result.IsPhishing),
		zap.Int("score", result.Score),
		zap.String("model", result.ModelUsed))

	if result.IsPhishing && f.opts.BlockPhishing {
		logger.Info("Rejecting phishing email",
			zap.Int("score", result.Score),
			zap.String("reason", result.Explanation))
		return milter.RespReject, nil
	}

	if mod != nil {
		for _, field := range f.opts.Headers.verdictFields(result) {
			if err := mod.AddHeader(field.name, field.value); err != nil {
				logger.Warn("Failed to add header", zap.String("header", field.name), zap.Error(err))
			}
		}
		if result.IsPhishing && f.opts.SubjectPrefix != "" && !strings.HasPrefix(s.subject, f.opts.SubjectPrefix) {
			if err := mod.ChangeHeader(1, "Subject", f.opts.SubjectPrefix+s.subject); err != nil {
				logger.Warn("Failed to change subject", zap.Error(err))
			}
		}
	}
	return milter.RespAccept, nil
}
