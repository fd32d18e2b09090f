package scoring

import "strings"

// Authentication verdict statuses
const (
	StatusPass    = "pass"
	StatusFail    = "fail"
	StatusNeutral = "neutral"
	StatusUnknown = "unknown"
)

// AuthenticationVerdict is a pre-extracted DKIM, SPF or DMARC result
type AuthenticationVerdict struct {
	Status  string `json:"status" yaml:"status"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
}

// NormalizedStatus returns the verdict status restricted to the four known values
func (v AuthenticationVerdict) NormalizedStatus() string {
	switch s := strings.ToLower(strings.TrimSpace(v.Status)); s {
	case StatusPass, StatusFail, StatusNeutral:
		return s
	default:
		return StatusUnknown
	}
}

// Authentication holds the verdict triple for one message
type Authentication struct {
	DKIM  AuthenticationVerdict `json:"dkim" yaml:"dkim"`
	SPF   AuthenticationVerdict `json:"spf" yaml:"spf"`
	DMARC AuthenticationVerdict `json:"dmarc" yaml:"dmarc"`
}

// UnknownAuthentication returns a triple with every verdict set to unknown
func UnknownAuthentication() *Authentication {
	return &Authentication{
		DKIM:  AuthenticationVerdict{Status: StatusUnknown},
		SPF:   AuthenticationVerdict{Status: StatusUnknown},
		DMARC: AuthenticationVerdict{Status: StatusUnknown},
	}
}

// EmailHeader is the header metadata the heuristics read.
// A nil Authentication skips authentication scoring entirely.
type EmailHeader struct {
	From           string          `json:"from" yaml:"from"`
	To             string          `json:"to,omitempty" yaml:"to,omitempty"`
	Subject        string          `json:"subject,omitempty" yaml:"subject,omitempty"`
	Authentication *Authentication `json:"authentication,omitempty" yaml:"authentication,omitempty"`
}

// HeuristicResult is the output of ComputeHeuristics
type HeuristicResult struct {
	Score              int      `json:"score" yaml:"score"`
	Details            []string `json:"details" yaml:"details"`
	SuspiciousElements []string `json:"suspicious_elements" yaml:"suspicious_elements"`
}

// Link is a rendered hyperlink: where it goes and what the reader sees
type Link struct {
	Href        string `json:"href" yaml:"href"`
	DisplayText string `json:"display_text" yaml:"display_text"`
}
