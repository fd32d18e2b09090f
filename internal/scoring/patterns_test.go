package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountKeywordHits(t *testing.T) {
	assert.Equal(t, 1, countKeywordHits("urgent urgent urgent", urgentKeywords.Keywords))
	assert.Equal(t, 2, countKeywordHits("urgent, act now", urgentKeywords.Keywords))
	assert.Equal(t, 0, countKeywordHits("see you at lunch", urgentKeywords.Keywords))
}

func TestDomainPredicates(t *testing.T) {
	t.Run("hex like", func(t *testing.T) {
		assert.True(t, IsHexLikeDomain("a1b2c3d4e5.com"))
		assert.True(t, IsHexLikeDomain("mx.deadbeef.net"))
		assert.False(t, IsHexLikeDomain("example.com"))
		assert.False(t, IsHexLikeDomain("deadbeef"))
		assert.False(t, IsHexLikeDomain(""))
	})

	t.Run("ipv4", func(t *testing.T) {
		assert.True(t, IsIPv4Domain("192.168.1.10"))
		assert.True(t, IsIPv4Domain("[10.0.0.1]"))
		assert.False(t, IsIPv4Domain("10.0.0"))
		assert.False(t, IsIPv4Domain("::1"))
		assert.False(t, IsIPv4Domain("example.com"))
	})

	t.Run("mail server prefix", func(t *testing.T) {
		assert.True(t, HasMailServerPrefix("mail.example.com"))
		assert.True(t, HasMailServerPrefix("smtp2.example.com"))
		assert.False(t, HasMailServerPrefix("mailbox.example.com"))
	})

	t.Run("service prefix", func(t *testing.T) {
		for _, d := range []string{"noreply.example.com", "no-reply.example.com", "billing-center.net", "corp-internal.io"} {
			assert.True(t, HasServicePrefix(d), d)
		}
		assert.False(t, HasServicePrefix("example.com"))
	})

	t.Run("overlong label", func(t *testing.T) {
		assert.True(t, HasOverlongLabel(strings.Repeat("a", 31)+".com"))
		assert.False(t, HasOverlongLabel(strings.Repeat("a", 30)+".com"))
	})

	t.Run("structural", func(t *testing.T) {
		assert.True(t, IsStructurallySuspiciousDomain("security-check.com"))
		assert.False(t, IsStructurallySuspiciousDomain("company.com"))
	})

	t.Run("known phishing", func(t *testing.T) {
		assert.True(t, IsKnownPhishingDomain("paypal.com.security.login.com"))
		assert.True(t, IsKnownPhishingDomain("track.UPS-TRACKING.com"))
		assert.False(t, IsKnownPhishingDomain("ups.com"))
	})
}

func TestLooksLikeBrandDomain(t *testing.T) {
	tests := []struct {
		domain string
		brand  string
		ok     bool
	}{
		{"www.joby.aero", "joby.aero", true},
		{"paypal.com", "paypal.com", true},
		{"paypa1.com", "paypal.com", true},
		{"login.arnazon.com", "amazon.com", true},
		{"g00gle.com", "google.com", true},
		{"pàypal.com", "paypal.com", true},
		{"www.apply.com", "", false},
		{"applied.com", "", false},
		{"example.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			brand, ok := LooksLikeBrandDomain(tt.domain)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.brand, brand)
		})
	}
}

func TestIsGenericGreeting(t *testing.T) {
	generic := []string{
		"dear customer,",
		"dear valued customer",
		"hello user,",
		"greetings,",
		"hi",
		"dear john.doe@example.com,",
		"hello user123",
		"hi finance team",
		"hello john it,",
		"dear maria hr:",
		"hi acme support",
		"good morning colleague",
	}
	for _, line := range generic {
		assert.True(t, IsGenericGreeting(line), line)
	}

	personal := []string{
		"hi john, thanks for the meeting today.",
		"dear margaret,",
		"the report is attached",
		"hi sam it was great to see you",
		"hey john it's friday",
		"hello maria hr asked me to forward this",
		"",
	}
	for _, line := range personal {
		assert.False(t, IsGenericGreeting(line), line)
	}
}
