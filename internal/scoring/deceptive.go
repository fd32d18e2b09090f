package scoring

import (
	"fmt"
	"regexp"
	"strings"
)

// PotentiallyDeceptive is recorded instead of a destination when a brand path is shown as plain text
const PotentiallyDeceptive = "potentially deceptive link pattern"

var (
	anchorRe      = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']?([^"'\s>]+)["']?[^>]*>(.*?)</a>`)
	markdownRe    = regexp.MustCompile(`\[([^\]\n]+)\]\(\s*(https?://[^)\s]+)\s*\)`)
	textLinkRe    = regexp.MustCompile(`(?i)((?:https?://)?(?:[a-z0-9-]+\.)+[a-z]{2,}(?:/[^\s<>()\[\]]*)?)[ \t]*[<(][ \t]*(https?://[^\s<>()]+)[ \t]*[>)]`)
	bareWWWRe     = regexp.MustCompile(`(?i)\bwww\.(?:[a-z0-9-]+\.)+[a-z]{2,}/[^\s<>()\[\]"']*`)
	domainTokenRe = regexp.MustCompile(`(?i)(?:[a-z0-9-]+\.)+[a-z]{2,}`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// linkMismatch pairs what the reader sees with where the link actually goes
type linkMismatch struct {
	display string
	actual  string
}

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// findDeceptiveLinks scans anchors, markdown links, "text <url>" renderings and bare
// www paths for a displayed domain that differs from the destination
func findDeceptiveLinks(body string) []linkMismatch {
	var (
		mismatches []linkMismatch
		consumed   []span
	)

	structural := []struct {
		re                  *regexp.Regexp
		displayIdx, hrefIdx int
	}{
		{anchorRe, 2, 1},
		{markdownRe, 1, 2},
		{textLinkRe, 1, 2},
	}
	for _, pattern := range structural {
		for _, loc := range pattern.re.FindAllStringSubmatchIndex(body, -1) {
			s := span{loc[0], loc[1]}
			if overlapsAny(s, consumed) {
				continue
			}
			consumed = append(consumed, s)

			display := cleanDisplayText(body[loc[2*pattern.displayIdx]:loc[2*pattern.displayIdx+1]])
			href := body[loc[2*pattern.hrefIdx]:loc[2*pattern.hrefIdx+1]]
			if m, ok := compareDisplayToHref(display, href); ok {
				mismatches = append(mismatches, m)
			}
		}
	}

	for _, loc := range bareWWWRe.FindAllStringIndex(body, -1) {
		s := span{loc[0], loc[1]}
		if overlapsAny(s, consumed) || partOfURL(body, loc[0]) {
			continue
		}
		token := strings.TrimRight(body[loc[0]:loc[1]], ".,;:!?")
		domain := strings.ToLower(token[:strings.Index(token, "/")])
		if _, ok := LooksLikeBrandDomain(domain); ok {
			mismatches = append(mismatches, linkMismatch{display: token, actual: PotentiallyDeceptive})
		}
	}

	return mismatches
}

func compareDisplayToHref(display, href string) (linkMismatch, bool) {
	displayDomain := strings.ToLower(domainTokenRe.FindString(display))
	actual := HostOf(href)
	if displayDomain == "" || actual == "" {
		return linkMismatch{}, false
	}
	if BaseDomain(displayDomain) == BaseDomain(actual) {
		return linkMismatch{}, false
	}
	return linkMismatch{display: display, actual: actual}, true
}

func cleanDisplayText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func overlapsAny(s span, spans []span) bool {
	for _, o := range spans {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}

// partOfURL reports whether the token at start continues a scheme, path or address
func partOfURL(body string, start int) bool {
	if start == 0 {
		return false
	}
	switch body[start-1] {
	case '/', '.', '@', '-', '=':
		return true
	}
	return false
}

func formatMismatches(mismatches []linkMismatch) string {
	const shown = 3
	parts := make([]string, 0, shown)
	for i, m := range mismatches {
		if i == shown {
			break
		}
		parts = append(parts, fmt.Sprintf("\"%s\" → %s", m.display, m.actual))
	}
	finding := "Deceptive links detected: " + strings.Join(parts, ", ")
	if len(mismatches) > shown {
		finding += fmt.Sprintf(" and %d more", len(mismatches)-shown)
	}
	return finding
}
