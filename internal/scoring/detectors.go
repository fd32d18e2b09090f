package scoring

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// input is what every detector reads
type input struct {
	body      string
	lowerBody string
	header    EmailHeader
}

// signal is one detector's contribution
type signal struct {
	delta      int
	findings   []string
	suspicious []string
}

func (s *signal) add(points int, finding string) {
	s.delta += points
	s.findings = append(s.findings, finding)
}

// detector receives the running total so that discounts can floor against it
type detector struct {
	name string
	run  func(in input, running int) signal
}

// defaultDetectors lists detectors in evaluation order; findings follow this order
var defaultDetectors = []detector{
	{"keywords", detectKeywords},
	{"link_count", detectLinkCount},
	{"deceptive_links", detectDeceptiveLinks},
	{"generic_greeting", detectGenericGreeting},
	{"sender_domain", detectSenderDomain},
	{"domain_mismatch", detectDomainMismatch},
	{"suspicious_link_domains", detectSuspiciousLinkDomains},
	{"punctuation", detectShouting},
	{"authentication", detectAuthentication},
}

func detectKeywords(in input, _ int) signal {
	var sig signal

	hits := make(map[string]int, 4)
	for _, category := range []keywordCategory{urgentKeywords, actionKeywords, securityKeywords, financialKeywords} {
		n := countKeywordHits(in.lowerBody, category.Keywords)
		hits[category.Name] = n
		if n == 0 {
			continue
		}
		noun := "keywords"
		if n == 1 {
			noun = "keyword"
		}
		sig.add(min(category.Cap, n*category.PerHit), fmt.Sprintf("Contains %d %s %s", n, category.Name, noun))
	}

	if hits["urgent"] > 0 && hits["action"] > 0 {
		sig.add(10, "Dangerous combination: urgent language + action request")
	}
	if hits["security"] > 0 && hits["action"] > 0 {
		sig.add(8, "Suspicious combination: security alert + action request")
	}
	return sig
}

func detectLinkCount(in input, _ int) signal {
	var sig signal
	count := strings.Count(in.lowerBody, "http://") + strings.Count(in.lowerBody, "https://")
	if count > 5 {
		sig.add(min(20, (count-5)*2), fmt.Sprintf("Contains many links (%d)", count))
	}
	return sig
}

func detectDeceptiveLinks(in input, _ int) signal {
	var sig signal
	mismatches := findDeceptiveLinks(in.body)
	if len(mismatches) == 0 {
		return sig
	}
	sig.add(min(25, len(mismatches)*15), formatMismatches(mismatches))
	for _, m := range mismatches {
		sig.suspicious = append(sig.suspicious, m.actual)
	}
	return sig
}

func detectGenericGreeting(in input, _ int) signal {
	var sig signal
	lines := strings.SplitN(in.lowerBody, "\n", 3)
	for i := 0; i < len(lines) && i < 2; i++ {
		line := strings.TrimSpace(lines[i])
		if IsGenericGreeting(line) {
			sig.add(10, fmt.Sprintf("Generic greeting detected: \"%s\"", truncateRunes(line, 30)))
			break
		}
	}
	return sig
}

func detectSenderDomain(in input, _ int) signal {
	var sig signal
	domain, ok := SenderDomain(in.header.From)
	if !ok {
		return sig
	}
	switch {
	case IsStructurallySuspiciousDomain(domain):
		sig.add(15, fmt.Sprintf("Suspicious sender domain: %s", domain))
	case IsKnownPhishingDomain(domain):
		sig.add(10, fmt.Sprintf("Sender domain matches a known phishing domain: %s", domain))
	}
	return sig
}

func detectDomainMismatch(in input, _ int) signal {
	var sig signal
	sender, ok := SenderDomain(in.header.From)
	if !ok {
		return sig
	}

	var mismatched []string
	for _, domain := range linkDomains(in.body) {
		if !strings.HasSuffix(domain, sender) {
			mismatched = append(mismatched, domain)
		}
	}
	if len(mismatched) == 0 {
		return sig
	}
	sig.add(min(25, len(mismatched)*5),
		fmt.Sprintf("Links point to domains other than the sender's: %s", strings.Join(mismatched, ", ")))
	sig.suspicious = append(sig.suspicious, mismatched...)
	return sig
}

func detectSuspiciousLinkDomains(in input, _ int) signal {
	var sig signal
	var flagged []string
	for _, domain := range linkDomains(in.body) {
		if IsKnownPhishingDomain(domain) {
			flagged = append(flagged, domain)
		}
	}
	if len(flagged) == 0 {
		return sig
	}
	sig.add(min(25, len(flagged)*20),
		fmt.Sprintf("Links to known suspicious domains: %s", strings.Join(flagged, ", ")))
	sig.suspicious = append(sig.suspicious, flagged...)
	return sig
}

var lineBreakRe = regexp.MustCompile(`\n+`)

func detectShouting(in input, _ int) signal {
	var sig signal
	if strings.Count(in.body, "!") > 3 {
		sig.add(5, "Contains many exclamation marks")
	}
	for _, line := range lineBreakRe.Split(in.body, -1) {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > 10 && strings.ToUpper(line) == line {
			sig.add(5, "Contains all-caps sentences")
			break
		}
	}
	return sig
}

// authCheck weights one authentication method
type authCheck struct {
	name     string
	verdict  AuthenticationVerdict
	failAdd  int
	passLess int
}

func detectAuthentication(in input, running int) signal {
	var sig signal
	auth := in.header.Authentication
	if auth == nil {
		return sig
	}

	total := running
	failures := 0
	for _, check := range []authCheck{
		{"DKIM", auth.DKIM, 15, 2},
		{"SPF", auth.SPF, 12, 2},
		{"DMARC", auth.DMARC, 18, 3},
	} {
		switch check.verdict.NormalizedStatus() {
		case StatusFail:
			failures++
			total += check.failAdd
			sig.findings = append(sig.findings, check.name+" authentication failed")
		case StatusPass:
			total = max(0, total-check.passLess)
			sig.findings = append(sig.findings, check.name+" authentication passed")
		}
	}

	if failures >= 2 {
		total += 10
		sig.findings = append(sig.findings, fmt.Sprintf("Multiple authentication failures (%d)", failures))
	}
	if failures >= 3 {
		total += 15
		sig.findings = append(sig.findings, "All email authentication methods failed - high phishing risk")
	}

	sig.delta = total - running
	return sig
}

var linkURLRe = regexp.MustCompile(`(?i)https?://[^\s"'<>()\[\]]+`)

// linkDomains returns the distinct hosts of http(s) links in order of first appearance
func linkDomains(body string) []string {
	seen := make(map[string]struct{})
	var domains []string
	for _, raw := range linkURLRe.FindAllString(body, -1) {
		host := strings.TrimRight(HostOf(strings.TrimRight(raw, ".,;:!?")), ".")
		if host == "" {
			continue
		}
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		domains = append(domains, host)
	}
	return domains
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
