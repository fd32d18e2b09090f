package report

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/config"
)

// Mailer delivers a composed message
type Mailer interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// SMTPMailer submits mail over SMTP using implicit TLS, STARTTLS or plain text
type SMTPMailer struct {
	cfg       config.ReportConfig
	tlsConfig *tls.Config
	logger    *zap.Logger
}

// NewSMTPMailer creates a mailer for the report section
func NewSMTPMailer(cfg config.ReportConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:       cfg,
		tlsConfig: &tls.Config{ServerName: cfg.SMTPHost},
		logger:    logger,
	}
}

func (m *SMTPMailer) addr() string {
	return net.JoinHostPort(m.cfg.SMTPHost, strconv.Itoa(m.cfg.SMTPPort))
}

func (m *SMTPMailer) dial(ctx context.Context) (*smtp.Client, error) {
	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := &net.Dialer{Deadline: deadline}
	var (
		conn net.Conn
		err  error
	)
	if m.cfg.UseTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", m.addr(), m.tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", m.addr())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", m.addr(), err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set connection deadline: %w", err)
	}

	if !m.cfg.UseTLS && m.cfg.StartTLS {
		c, err := smtp.NewClientStartTLS(conn, m.tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
		return c, nil
	}

	c := smtp.NewClient(conn)
	if err := c.Hello("localhost"); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO failed: %w", err)
	}
	return c, nil
}

// Send delivers msg, authenticating with PLAIN when credentials are configured
func (m *SMTPMailer) Send(ctx context.Context, from string, to []string, msg []byte) error {
	c, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if m.cfg.SMTPUser != "" && m.cfg.SMTPPassword != "" {
		if err := c.Auth(sasl.NewPlainClient("", m.cfg.SMTPUser, m.cfg.SMTPPassword)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", rcpt, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send report: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		m.logger.Debug("QUIT command failed", zap.Error(err))
	}
	return nil
}
