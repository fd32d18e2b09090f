// Package authresults turns Authentication-Results headers into the verdict
// triple used by the heuristics.
package authresults

import (
	"strings"

	"github.com/emersion/go-msgauth/authres"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/scoring"
)

// HeaderName is the header carrying upstream authentication verdicts
const HeaderName = "Authentication-Results"

// FromHeaders parses Authentication-Results values in header order. The first
// verdict seen for each method wins. A nil result means no header was present.
func FromHeaders(values []string, logger *zap.Logger) *scoring.Authentication {
	if len(values) == 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	auth := scoring.UnknownAuthentication()
	var seenDKIM, seenSPF, seenDMARC bool

	for _, value := range values {
		identity, results, err := authres.Parse(value)
		if err != nil {
			logger.Debug("Skipping unparseable Authentication-Results header", zap.Error(err))
			continue
		}

		for _, result := range results {
			switch r := result.(type) {
			case *authres.DKIMResult:
				if !seenDKIM {
					auth.DKIM = verdict(r.Value, joinDetails(identity, "d="+r.Domain, r.Reason))
					seenDKIM = true
				}
			case *authres.SPFResult:
				if !seenSPF {
					auth.SPF = verdict(r.Value, joinDetails(identity, "smtp.mailfrom="+r.From, r.Reason))
					seenSPF = true
				}
			case *authres.DMARCResult:
				if !seenDMARC {
					auth.DMARC = verdict(r.Value, joinDetails(identity, "header.from="+r.From, r.Reason))
					seenDMARC = true
				}
			}
		}
	}
	return auth
}

// MapStatus folds an RFC 8601 result value into pass, fail, neutral or unknown
func MapStatus(value authres.ResultValue) string {
	switch strings.ToLower(string(value)) {
	case "pass":
		return scoring.StatusPass
	case "fail", "softfail", "hardfail":
		return scoring.StatusFail
	case "neutral", "none", "policy":
		return scoring.StatusNeutral
	default:
		return scoring.StatusUnknown
	}
}

func verdict(value authres.ResultValue, details string) scoring.AuthenticationVerdict {
	return scoring.AuthenticationVerdict{Status: MapStatus(value), Details: details}
}

func joinDetails(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p == "" || strings.HasSuffix(p, "=") {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, " ")
}
