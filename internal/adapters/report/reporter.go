package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/metrics"
)

// Reporter accepts phishing reports and mails them in the background
type Reporter struct {
	mailer  Mailer
	deduper Deduper
	cfg     config.ReportConfig
	logger  *zap.Logger
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewReporter creates a Reporter
func NewReporter(mailer Mailer, deduper Deduper, cfg config.ReportConfig, logger *zap.Logger) *Reporter {
	return &Reporter{
		mailer:  mailer,
		deduper: deduper,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Submit records a report and queues its delivery. Duplicates within the
// dedupe window are ignored.
func (r *Reporter) Submit(ctx context.Context, rep *Report) (Outcome, error) {
	logger := r.logger.With(zap.String("message_id", rep.MessageID))

	dup, err := r.deduper.Seen(ctx, rep.MessageID)
	if err != nil {
		metrics.Reports.WithLabelValues("error").Inc()
		return "", err
	}
	if dup {
		logger.Info("Ignoring duplicate phishing report")
		metrics.Reports.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	rep.normalize()
	msg, err := Compose(rep, r.cfg.EnvelopeSender(), r.cfg.SecurityMailbox, r.now())
	if err != nil {
		metrics.Reports.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to compose report: %w", err)
	}

	metrics.Reports.WithLabelValues(string(OutcomeAccepted)).Inc()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.deliver(logger, msg)
	}()
	return OutcomeAccepted, nil
}

func (r *Reporter) deliver(logger *zap.Logger, msg []byte) {
	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := r.mailer.Send(ctx, r.cfg.EnvelopeSender(), []string{r.cfg.SecurityMailbox}, msg); err != nil {
		metrics.Reports.WithLabelValues("failed").Inc()
		logger.Error("Failed to send phishing report",
			zap.String("smtp_host", r.cfg.SMTPHost),
			zap.Error(err))
		return
	}
	metrics.Reports.WithLabelValues("sent").Inc()
	logger.Info("Phishing report sent", zap.String("mailbox", r.cfg.SecurityMailbox))
}

// Wait blocks until queued deliveries finish
func (r *Reporter) Wait() {
	r.wg.Wait()
}
