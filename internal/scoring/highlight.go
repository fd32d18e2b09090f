package scoring

import "strings"

// FlagSuspiciousLinks returns the indices of links that should be highlighted.
// A link is flagged when its display text looks like a domain but does not contain
// the real host, or when its host ends with one of the suspicious domains.
// Links without a parseable host (mailto:, relative paths) are never flagged.
func FlagSuspiciousLinks(links []Link, suspicious []string) []int {
	domains := make([]string, 0, len(suspicious))
	for _, s := range suspicious {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			domains = append(domains, s)
		}
	}

	flagged := []int{}
	for i, link := range links {
		host := HostOf(link.Href)
		display := strings.ToLower(strings.TrimSpace(link.DisplayText))

		if strings.Contains(display, ".") && host != "" && !strings.Contains(display, host) {
			flagged = append(flagged, i)
			continue
		}
		if host != "" && hasAnySuffix(host, domains) {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

func hasAnySuffix(host string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}
