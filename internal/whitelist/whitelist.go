package whitelist

import (
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Checker decides which click-redirect targets are allowed. An empty domain
// list allows every http(s) target.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new redirect allow-list checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")
		if d != "" {
			normalizedDomains = append(normalizedDomains, d)
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized redirect allow-list", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// IsAllowed reports whether a redirect target is an absolute http(s) URL whose
// host is an allowed domain or one of its subdomains
func (c *Checker) IsAllowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if len(c.domains) == 0 {
		return true
	}

	host := strings.ToLower(u.Hostname())
	for _, allowed := range c.domains {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}

	if c.logger != nil {
		c.logger.Debug("Redirect target not allowed",
			zap.String("host", host),
			zap.String("url", target))
	}
	return false
}
