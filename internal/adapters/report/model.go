// Package report turns user phishing reports into mail for the security mailbox.
package report

import (
	"time"

	"github.com/mikey/llm-phish-filter/internal/scoring"
)

// AuthStatus is one reported authentication verdict
type AuthStatus struct {
	Status string `json:"status" binding:"omitempty,oneof=pass fail neutral none unknown"`
}

// AuthResults is the reported verdict triple
type AuthResults struct {
	DKIM  AuthStatus `json:"dkim"`
	SPF   AuthStatus `json:"spf"`
	DMARC AuthStatus `json:"dmarc"`
}

// Report is a phishing report submitted for an analysed message
type Report struct {
	MessageID          string      `json:"message_id" binding:"required"`
	Subject            string      `json:"subject"`
	FromAddress        string      `json:"from_address" binding:"required,email"`
	ToAddress          string      `json:"to_address,omitempty" binding:"omitempty,email"`
	FinalScore         *int        `json:"final_score" binding:"required,min=0,max=100"`
	HeuristicScore     *int        `json:"heuristic_score" binding:"required,min=0,max=70"`
	LLMScore           *float64    `json:"llm_score,omitempty" binding:"omitempty,min=0,max=100"`
	Details            []string    `json:"details"`
	SuspiciousElements []string    `json:"suspicious_elements"`
	AuthResults        AuthResults `json:"auth_results"`
	AnalysedAt         *time.Time  `json:"analysed_at,omitempty"`
}

// normalize fills unset authentication statuses with unknown
func (r *Report) normalize() {
	for _, s := range []*AuthStatus{&r.AuthResults.DKIM, &r.AuthResults.SPF, &r.AuthResults.DMARC} {
		if s.Status == "" {
			s.Status = scoring.StatusUnknown
		}
	}
}

// Outcome of a report submission
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate_ignored"
)
