package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ParseAllowlist parses CIDR prefixes or bare addresses
func ParseAllowlist(entries []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid allowlist entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist entry %q: %w", entry, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

// IPAllowlist rejects clients outside prefixes. An empty list allows everyone.
func IPAllowlist(prefixes []netip.Prefix, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(prefixes) == 0 {
			c.Next()
			return
		}

		addr, err := netip.ParseAddr(c.ClientIP())
		if err == nil {
			addr = addr.Unmap()
			for _, p := range prefixes {
				if p.Contains(addr) {
					c.Next()
					return
				}
			}
		}

		logger.Warn("Rejected request from address outside allowlist", zap.String("client_ip", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Forbidden (IP not allowlisted)"})
	}
}
