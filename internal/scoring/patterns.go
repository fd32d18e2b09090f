package scoring

import (
	"net"
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// keywordCategory is one static phrase list with its weighting
type keywordCategory struct {
	Name     string
	Keywords []string
	PerHit   int
	Cap      int
}

var (
	urgentKeywords = keywordCategory{
		Name:   "urgent",
		PerHit: 8,
		Cap:    15,
		Keywords: []string{
			"urgent", "immediately", "asap", "act now", "right away",
			"as soon as possible", "expire", "suspended", "suspension",
			"within 24 hours", "within 48 hours", "final notice", "last chance",
			"limited time", "deadline", "time sensitive", "without delay",
		},
	}

	actionKeywords = keywordCategory{
		Name:   "action",
		PerHit: 6,
		Cap:    12,
		Keywords: []string{
			"click here", "click the link", "click below", "verify your",
			"confirm your", "update your", "log in", "login", "sign in",
			"reset your password", "open the attachment", "download the attachment",
			"follow the link", "validate your", "reply with",
		},
	}

	securityKeywords = keywordCategory{
		Name:   "security",
		PerHit: 5,
		Cap:    10,
		Keywords: []string{
			"security alert", "unusual activity", "suspicious activity",
			"unauthorized", "compromised", "locked", "security breach",
			"verify your identity", "password", "two-factor", "account has been",
		},
	}

	financialKeywords = keywordCategory{
		Name:   "financial",
		PerHit: 4,
		Cap:    8,
		Keywords: []string{
			"bank", "payment", "invoice", "wire transfer", "credit card",
			"refund", "billing", "tax", "gift card", "bitcoin", "transaction",
			"payroll",
		},
	}
)

// countKeywordHits returns how many distinct entries of keywords occur in lowerText
func countKeywordHits(lowerText string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lowerText, kw) {
			hits++
		}
	}
	return hits
}

// KnownPhishingDomains are look-alike domains seen in phishing campaigns
var KnownPhishingDomains = []string{
	"paypal.com.security.login.com",
	"paypal-security.com",
	"amazon-security.com",
	"apple-id-verify.com",
	"microsoft-account-security.com",
	"google-security-alert.com",
	"ups-tracking.com",
	"fedex-delivery.net",
	"dhl-parcel.com",
	"netflix-billing.com",
	"secure-bankofamerica.com",
	"chase-verify.com",
	"irs-refund.com",
}

// BrandDomains are domains whose appearance as a plain-text path is itself suspicious
var BrandDomains = []string{
	"joby.aero",
	"paypal.com",
	"amazon.com",
	"microsoft.com",
	"google.com",
	"apple.com",
}

var (
	mailServerPrefixRe = regexp.MustCompile(`^(mail|smtp)\d*\.`)
	servicePrefixRe    = regexp.MustCompile(`^(no-?reply|notification|alert|security|update|verify|account|service|support|billing|payment|corp-internal)`)
	hexLabelRe         = regexp.MustCompile(`^[a-f0-9]{8,}$`)
)

// IsHexLikeDomain reports whether any non-TLD label is a long run of hex digits
func IsHexLikeDomain(domain string) bool {
	labels := strings.Split(strings.ToLower(domain), ".")
	for _, label := range labels[:len(labels)-1] {
		if hexLabelRe.MatchString(label) {
			return true
		}
	}
	return false
}

// IsIPv4Domain reports whether domain is a bare IPv4 address, optionally bracketed
func IsIPv4Domain(domain string) bool {
	ip := net.ParseIP(strings.Trim(domain, "[]"))
	return ip != nil && ip.To4() != nil && strings.Count(domain, ".") == 3
}

// HasMailServerPrefix reports a mail/smtp host name used as a sender domain
func HasMailServerPrefix(domain string) bool {
	return mailServerPrefixRe.MatchString(strings.ToLower(domain))
}

// HasServicePrefix reports domains opening with a role word such as no-reply or billing
func HasServicePrefix(domain string) bool {
	return servicePrefixRe.MatchString(strings.ToLower(domain))
}

// HasOverlongLabel reports any dot-separated label longer than 30 characters
func HasOverlongLabel(domain string) bool {
	for _, label := range strings.Split(domain, ".") {
		if len(label) > 30 {
			return true
		}
	}
	return false
}

// IsStructurallySuspiciousDomain combines the structural sender-domain predicates
func IsStructurallySuspiciousDomain(domain string) bool {
	return IsHexLikeDomain(domain) ||
		IsIPv4Domain(domain) ||
		HasMailServerPrefix(domain) ||
		HasServicePrefix(domain) ||
		HasOverlongLabel(domain)
}

// IsKnownPhishingDomain reports whether domain contains a known look-alike domain
func IsKnownPhishingDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, known := range KnownPhishingDomains {
		if strings.Contains(domain, known) {
			return true
		}
	}
	return false
}

// lookalikeFolder maps common character swaps back to the letters they imitate
var lookalikeFolder = strings.NewReplacer("rn", "m", "vv", "w", "0", "o", "1", "l", "3", "e", "5", "s")

// LooksLikeBrandDomain reports whether domain contains a brand domain, either
// literally, after undoing look-alike swaps (paypa1.com, arnazon.com), or with
// accented letters standing in for plain ones
func LooksLikeBrandDomain(domain string) (brand string, ok bool) {
	domain = strings.ToLower(domain)
	folded := lookalikeFolder.Replace(domain)
	base := BaseDomain(folded)
	for _, b := range BrandDomains {
		if strings.Contains(domain, b) || strings.Contains(folded, b) {
			return b, true
		}
		if fuzzy.RankMatchNormalizedFold(b, base) == 0 {
			return b, true
		}
	}
	return "", false
}

var greetingPatterns = []*regexp.Regexp{
	// salutation followed by a generic addressee
	regexp.MustCompile(`^(dear|hello|hi|hey|greetings|attention|good (morning|afternoon|evening))[\s,:]+(valued\s+|dear\s+)?(customer|user|member|client|account\s?holder|subscriber|sir|madam|sir/madam|friend|colleague|team|employee|staff|recipient|beneficiary|all)\b`),
	// salutation with nothing identifying after it
	regexp.MustCompile(`^(dear|hello|hi|hey|greetings)[\s,:!.]*$`),
	// an email address used as the name
	regexp.MustCompile(`^(dear|hello|hi|hey|greetings)[\s,:]+[\w.+-]+@[\w-]+(\.[\w-]+)+`),
	// a name followed by digits, usually the mailbox local part
	regexp.MustCompile(`^(dear|hello|hi|hey)\s+[a-z]+\d+\b`),
	// a name followed by a department word
	regexp.MustCompile(`^(dear|hello|hi|hey)\s+[a-z]+\s+(team|department|dept|support|admin|administrator|it|hr|payroll|finance|accounts)\s*[,:!.]?$`),
}

// IsGenericGreeting reports whether a lowercased line opens with an impersonal greeting
func IsGenericGreeting(line string) bool {
	line = strings.TrimSpace(line)
	for _, re := range greetingPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
