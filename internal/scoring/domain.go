package scoring

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// BaseDomain returns the last two labels of host with any leading "www." removed.
// It deliberately ignores multi-part public suffixes: mail.example.co.uk yields co.uk.
func BaseDomain(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// HostOf returns the lowercase host of rawURL, or "" when it cannot be parsed
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || isASCII(host) {
		return host
	}

	// Compare internationalised hosts in their punycode form
	ascii, err := idna.ToASCII(host)
	if err != nil {
		return host
	}
	return strings.ToLower(ascii)
}

// SenderDomain extracts the lowercase domain of a From value.
// It accepts bare addresses and display-name forms; ok is false when no domain is present.
func SenderDomain(from string) (domain string, ok bool) {
	addr := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}

	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return "", false
	}
	domain = strings.ToLower(strings.Trim(addr[at+1:], " <>\"'"))
	if domain == "" {
		return "", false
	}
	return domain, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
