package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInput(body string, header EmailHeader) input {
	return input{body: body, lowerBody: strings.ToLower(body), header: header}
}

func TestDetectKeywords(t *testing.T) {
	sig := detectKeywords(newInput("URGENT: click here to verify your password", EmailHeader{}), 0)

	assert.Equal(t, 8+12+5+10+8, sig.delta)
	assert.Equal(t, []string{
		"Contains 1 urgent keyword",
		"Contains 2 action keywords",
		"Contains 1 security keyword",
		"Dangerous combination: urgent language + action request",
		"Suspicious combination: security alert + action request",
	}, sig.findings)
	assert.Empty(t, sig.suspicious)
}

func TestDetectKeywordsCaps(t *testing.T) {
	body := "urgent immediately asap act now final notice deadline"
	sig := detectKeywords(newInput(body, EmailHeader{}), 0)
	assert.Equal(t, 15, sig.delta)
	assert.Equal(t, []string{"Contains 6 urgent keywords"}, sig.findings)
}

func TestDetectLinkCount(t *testing.T) {
	five := strings.Repeat("http://a.example.com ", 5)
	assert.Zero(t, detectLinkCount(newInput(five, EmailHeader{}), 0).delta)

	seven := five + "HTTPS://b.example.com https://c.example.com"
	sig := detectLinkCount(newInput(seven, EmailHeader{}), 0)
	assert.Equal(t, 4, sig.delta)
	assert.Equal(t, []string{"Contains many links (7)"}, sig.findings)

	many := strings.Repeat("https://x.example.com ", 40)
	assert.Equal(t, 20, detectLinkCount(newInput(many, EmailHeader{}), 0).delta)
}

func TestFindDeceptiveLinks(t *testing.T) {
	body := `See <a href="http://evil.example.net/login">www.paypal.com</a> or ` +
		`[www.amazon.com](https://amaz0n-verify.net/x) or paypal.com <https://paypa1-secure.com/login>`

	got := findDeceptiveLinks(body)
	assert.Equal(t, []linkMismatch{
		{display: "www.paypal.com", actual: "evil.example.net"},
		{display: "www.amazon.com", actual: "amaz0n-verify.net"},
		{display: "paypal.com", actual: "paypa1-secure.com"},
	}, got)
}

func TestFindDeceptiveLinksIgnoresMatchingDestinations(t *testing.T) {
	tests := []string{
		`<a href="https://www.example.com/help">example.com/help</a>`,
		`[docs](https://docs.example.com)`,
		`visit https://www.paypal.com/signin today`,
		`write to support@www.amazon.com/help`,
		``,
	}
	for _, body := range tests {
		assert.Empty(t, findDeceptiveLinks(body), body)
	}
}

func TestFindDeceptiveLinksBrandPath(t *testing.T) {
	got := findDeceptiveLinks("Open www.joby.aero/sharepoint/2025NewPolicy.")
	require.Len(t, got, 1)
	assert.Equal(t, "www.joby.aero/sharepoint/2025NewPolicy", got[0].display)
	assert.Equal(t, PotentiallyDeceptive, got[0].actual)

	assert.Empty(t, findDeceptiveLinks("Open www.example.org/docs/index"))
	assert.Empty(t, findDeceptiveLinks("See www.apply.com/jobs for openings"))

	sig := detectDeceptiveLinks(newInput("See www.apply.com/jobs for openings", EmailHeader{}), 0)
	assert.Zero(t, sig.delta)
	assert.Empty(t, sig.suspicious)
}

func TestFormatMismatches(t *testing.T) {
	ms := []linkMismatch{
		{"a.com", "x.net"},
		{"b.com", "y.net"},
		{"c.com", "z.net"},
		{"d.com", "w.net"},
	}
	assert.Equal(t,
		`Deceptive links detected: "a.com" → x.net, "b.com" → y.net, "c.com" → z.net and 1 more`,
		formatMismatches(ms))
	assert.Equal(t, `Deceptive links detected: "a.com" → x.net`, formatMismatches(ms[:1]))
}

func TestDetectDeceptiveLinks(t *testing.T) {
	body := `<a href="http://evil.example.net">www.paypal.com</a> [www.amazon.com](https://amaz0n-verify.net/x)`
	sig := detectDeceptiveLinks(newInput(body, EmailHeader{}), 0)
	assert.Equal(t, 25, sig.delta)
	assert.Equal(t, []string{"evil.example.net", "amaz0n-verify.net"}, sig.suspicious)
	require.Len(t, sig.findings, 1)

	sig = detectDeceptiveLinks(newInput("www.paypal.com/account/update", EmailHeader{}), 0)
	assert.Equal(t, 15, sig.delta)
	assert.Equal(t, []string{PotentiallyDeceptive}, sig.suspicious)
}

func TestDetectGenericGreeting(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		finding string
	}{
		{"first line", "Dear Customer,\nYour account is ready.", `Generic greeting detected: "dear customer,"`},
		{"second line", "\nHello user,\nPlease read.", `Generic greeting detected: "hello user,"`},
		{"truncated", "Dear customer, we have noticed unusual sign-in activity", `Generic greeting detected: "dear customer, we have noticed..."`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := detectGenericGreeting(newInput(tt.body, EmailHeader{}), 0)
			assert.Equal(t, 10, sig.delta)
			assert.Equal(t, []string{tt.finding}, sig.findings)
		})
	}

	sig := detectGenericGreeting(newInput("Report\nAttached\nDear customer", EmailHeader{}), 0)
	assert.Zero(t, sig.delta)
	assert.Empty(t, sig.findings)
}

func TestDetectSenderDomain(t *testing.T) {
	tests := []struct {
		from    string
		delta   int
		finding string
	}{
		{"alerts@3f2a9b8c7d.com", 15, "Suspicious sender domain: 3f2a9b8c7d.com"},
		{"x@192.168.1.10", 15, "Suspicious sender domain: 192.168.1.10"},
		{"News <news@notification.example.com>", 15, "Suspicious sender domain: notification.example.com"},
		{"billing@paypal.com.security.login.com", 10, "Sender domain matches a known phishing domain: paypal.com.security.login.com"},
		{"colleague@company.com", 0, ""},
		{"not-an-address", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			sig := detectSenderDomain(newInput("", EmailHeader{From: tt.from}), 0)
			assert.Equal(t, tt.delta, sig.delta)
			if tt.finding == "" {
				assert.Empty(t, sig.findings)
				return
			}
			assert.Equal(t, []string{tt.finding}, sig.findings)
		})
	}
}

func TestDetectDomainMismatch(t *testing.T) {
	body := "http://www.example.com/a http://example.com https://tracker.other.net/x http://tracker.other.net/y"
	sig := detectDomainMismatch(newInput(body, EmailHeader{From: "news@example.com"}), 0)
	assert.Equal(t, 5, sig.delta)
	assert.Equal(t, []string{"tracker.other.net"}, sig.suspicious)
	assert.Equal(t, []string{"Links point to domains other than the sender's: tracker.other.net"}, sig.findings)

	var links []string
	for _, d := range []string{"a.net", "b.net", "c.net", "d.net", "e.net", "f.net"} {
		links = append(links, "https://"+d)
	}
	sig = detectDomainMismatch(newInput(strings.Join(links, " "), EmailHeader{From: "x@example.com"}), 0)
	assert.Equal(t, 25, sig.delta)
	assert.Len(t, sig.suspicious, 6)
}

func TestDetectDomainMismatchMalformedSender(t *testing.T) {
	for _, from := range []string{"", "nobody", "broken@"} {
		sig := detectDomainMismatch(newInput("http://elsewhere.net", EmailHeader{From: from}), 0)
		assert.Zero(t, sig.delta, from)
		assert.Empty(t, sig.suspicious, from)
	}
}

func TestDetectSuspiciousLinkDomains(t *testing.T) {
	body := "http://ups-tracking.com/a http://UPS-TRACKING.com/b https://fedex-delivery.net"
	sig := detectSuspiciousLinkDomains(newInput(body, EmailHeader{}), 0)
	assert.Equal(t, 25, sig.delta)
	assert.Equal(t, []string{"ups-tracking.com", "fedex-delivery.net"}, sig.suspicious)
	assert.Equal(t, []string{"Links to known suspicious domains: ups-tracking.com, fedex-delivery.net"}, sig.findings)

	assert.Zero(t, detectSuspiciousLinkDomains(newInput("https://ups.com", EmailHeader{}), 0).delta)
}

func TestDetectSuspiciousLinkDomainsCap(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		delta   int
		domains []string
	}{
		{"one domain", "https://dhl-parcel.com/track", 20, []string{"dhl-parcel.com"}},
		{"two domains", "https://dhl-parcel.com/track https://netflix-billing.com/pay", 25,
			[]string{"dhl-parcel.com", "netflix-billing.com"}},
		{"three domains", "https://dhl-parcel.com https://netflix-billing.com http://apple-id-verify.com/x", 25,
			[]string{"dhl-parcel.com", "netflix-billing.com", "apple-id-verify.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := detectSuspiciousLinkDomains(newInput(tt.body, EmailHeader{}), 0)
			assert.Equal(t, tt.delta, sig.delta)
			assert.Equal(t, tt.domains, sig.suspicious)
			assert.Equal(t, []string{"Links to known suspicious domains: " + strings.Join(tt.domains, ", ")}, sig.findings)
		})
	}
}

func TestDetectShouting(t *testing.T) {
	sig := detectShouting(newInput("Wow!!!!\n\nTHIS IS YOUR FINAL WARNING\nthanks", EmailHeader{}), 0)
	assert.Equal(t, 10, sig.delta)
	assert.Equal(t, []string{"Contains many exclamation marks", "Contains all-caps sentences"}, sig.findings)

	sig = detectShouting(newInput("Great!!! See you\nOK THEN", EmailHeader{}), 0)
	assert.Zero(t, sig.delta)
}

func TestDetectAuthentication(t *testing.T) {
	auth := func(dkim, spf, dmarc string) *Authentication {
		return &Authentication{
			DKIM:  AuthenticationVerdict{Status: dkim},
			SPF:   AuthenticationVerdict{Status: spf},
			DMARC: AuthenticationVerdict{Status: dmarc},
		}
	}

	t.Run("absent", func(t *testing.T) {
		sig := detectAuthentication(newInput("", EmailHeader{}), 12)
		assert.Zero(t, sig.delta)
		assert.Empty(t, sig.findings)
	})

	t.Run("all fail", func(t *testing.T) {
		sig := detectAuthentication(newInput("", EmailHeader{Authentication: auth("fail", "FAIL", "fail")}), 0)
		assert.Equal(t, 15+12+18+10+15, sig.delta)
		assert.Equal(t, []string{
			"DKIM authentication failed",
			"SPF authentication failed",
			"DMARC authentication failed",
			"Multiple authentication failures (3)",
			"All email authentication methods failed - high phishing risk",
		}, sig.findings)
	})

	t.Run("two fail one pass", func(t *testing.T) {
		sig := detectAuthentication(newInput("", EmailHeader{Authentication: auth("fail", "fail", "pass")}), 0)
		assert.Equal(t, 15+12-3+10, sig.delta)
		assert.Equal(t, []string{
			"DKIM authentication failed",
			"SPF authentication failed",
			"DMARC authentication passed",
			"Multiple authentication failures (2)",
		}, sig.findings)
	})

	t.Run("pass discounts floor at zero", func(t *testing.T) {
		sig := detectAuthentication(newInput("", EmailHeader{Authentication: auth("pass", "pass", "pass")}), 0)
		assert.Zero(t, sig.delta)
		assert.Len(t, sig.findings, 3)

		sig = detectAuthentication(newInput("", EmailHeader{Authentication: auth("pass", "pass", "pass")}), 10)
		assert.Equal(t, -7, sig.delta)

		sig = detectAuthentication(newInput("", EmailHeader{Authentication: auth("pass", "pass", "pass")}), 3)
		assert.Equal(t, -3, sig.delta)
	})

	t.Run("other statuses ignored", func(t *testing.T) {
		sig := detectAuthentication(newInput("", EmailHeader{Authentication: auth("softfail", "neutral", "")}), 5)
		assert.Zero(t, sig.delta)
		assert.Empty(t, sig.findings)
	})
}

func TestLinkDomains(t *testing.T) {
	body := "Go to http://Example.com/a, then https://example.com/b. Also (http://other.net). And http://"
	assert.Equal(t, []string{"example.com", "other.net"}, linkDomains(body))
	assert.Empty(t, linkDomains("no links"))
}
