package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/utils"
)

// PostfixFilter implements a Postfix content filter: mail arrives over SMTP,
// is annotated with the verdict and is re-injected into Postfix
type PostfixFilter struct {
	analyzer      Analyzer
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	opts          Options
	postfixAddr   string
	server        *smtp.Server
	listener      net.Listener
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	analyzer Analyzer,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	opts Options,
	postfixAddr string,
) *PostfixFilter {
	return &PostfixFilter{
		analyzer:      analyzer,
		textProcessor: textProcessor,
		logger:        logger,
		opts:          opts,
		postfixAddr:   postfixAddr,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	ln, err := net.Listen("tcp", f.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.opts.ListenAddress, err)
	}
	f.listener = ln

	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50

	f.logger.Info("Postfix filter starting",
		zap.String("address", ln.Addr().String()),
		zap.String("reinject_address", f.postfixAddr))

	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound listen address once started
func (f *PostfixFilter) Addr() net.Addr {
	if f.listener == nil {
		return nil
	}
	return f.listener.Addr()
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail analyses an already parsed email
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.AnalysisResult, error) {
	return analyze(ctx, f.analyzer, email, f.opts.AnalysisTimeout)
}

// sendToPostfix re-injects the annotated message
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", f.postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// handle analyses and annotates one message, returning the bytes to re-inject
func (f *PostfixFilter) handle(sender string, recipients []string, raw []byte) ([]byte, error) {
	email, err := ParseEmail(bytes.NewReader(raw), f.textProcessor, f.logger)
	if err != nil {
		return nil, err
	}
	if email.From == "" {
		email.From = sender
	}
	if len(email.To) == 0 {
		email.To = recipients
	}

	result, analysisErr := f.ProcessEmail(context.Background(), email)
	logger := f.logger.With(
		zap.String("message_id", email.MessageID),
		zap.String("from", email.From),
		zap.String("sender_domain", senderDomain(email.From)))
	if analysisErr != nil {
		logger.Error("Failed to analyze email", zap.Error(analysisErr))
	}

	if result.IsPhishing && f.opts.BlockPhishing && analysisErr == nil {
		logger.Info("Rejecting phishing email",
			zap.Int("score", result.Score),
			zap.String("reason", result.Explanation),
			zap.String("model", result.ModelUsed))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (score: %d)", result.Score),
		}
	}

	fields := f.opts.Headers.verdictFields(result)
	if analysisErr != nil {
		fields = append(fields, headerField{"X-Phishing-Analysis-Error", headerSafe(analysisErr.Error())})
	}
	prefix := ""
	if result.IsPhishing {
		prefix = f.opts.SubjectPrefix
	}

	annotated, err := annotate(raw, fields, prefix)
	if err != nil {
		return nil, err
	}

	logger.Info("Processed email",
		zap.Bool("is_phishing", result.IsPhishing),
		zap.Int("score", result.Score),
		zap.String("model", result.ModelUsed))
	return annotated, nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyses the message and hands it back to Postfix
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	annotated, err := s.filter.handle(s.sender, s.recipients, raw)
	if err != nil {
		return err
	}

	if err := s.filter.sendToPostfix(s.sender, s.recipients, annotated); err != nil {
		s.filter.logger.Error("Failed to send email back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}
	return nil
}

// Logout ends the session
func (s *smtpSession) Logout() error {
	return nil
}
