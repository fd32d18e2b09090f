package whitelist

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/scoring"
)

// Checker decides whether a sender belongs to a trusted domain.
// A domain entry also trusts its subdomains.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new trusted-domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if domain != "" {
			normalized = append(normalized, domain)
		}
	}

	if len(normalized) > 0 {
		logger.Info("Initialized trusted domain checker", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsWhitelisted checks whether the sender's domain is trusted
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain, ok := scoring.SenderDomain(from)
	if !ok {
		return false
	}

	for _, trusted := range c.domains {
		if domain == trusted || strings.HasSuffix(domain, "."+trusted) {
			c.logger.Debug("Sender domain is trusted",
				zap.String("domain", domain),
				zap.String("sender", from))
			return true
		}
	}
	return false
}

// Domains returns the normalised trusted domains
func (c *Checker) Domains() []string {
	return append([]string(nil), c.domains...)
}
