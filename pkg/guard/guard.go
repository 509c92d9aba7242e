package guard

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/fetchguard/fetchguard/pkg/config"
)

const auditTruncateLen = 100

// Guard is the validation gate. It holds the immutable security
// configuration compiled at process start and an audit logger. All methods
// are safe for concurrent use; Guard has no mutable state.
type Guard struct {
	allowedDomains []string
	maxURLLen      int
	maxKeyLen      int
	maxValueLen    int
	logger         *slog.Logger
}

// New creates a Guard from the security configuration. Domains are
// normalized to lower case once so matching is case-insensitive. A nil
// logger falls back to slog.Default().
func New(cfg config.SecurityConfig, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	domains := make([]string, 0, len(cfg.AllowedDomains))
	for _, d := range cfg.AllowedDomains {
		domains = append(domains, strings.ToLower(strings.TrimSpace(d)))
	}
	return &Guard{
		allowedDomains: domains,
		maxURLLen:      cfg.MaxURLLength,
		maxKeyLen:      cfg.MaxHeaderKeyLength,
		maxValueLen:    cfg.MaxHeaderValueLength,
		logger:         logger,
	}
}

// ValidateURL classifies a raw URL string as safe or unsafe. The dangerous
// character scan runs against the original string, not the parsed form, so
// metacharacters anywhere in the path, query, or fragment surface even when
// the URL otherwise parses cleanly.
func (g *Guard) ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL must be a non-empty string")
	}
	if len(raw) > g.maxURLLen {
		return fmt.Errorf("URL exceeds maximum length of %d characters", g.maxURLLen)
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("Invalid URL format")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("Only HTTP and HTTPS URLs are allowed")
	}

	if strings.ContainsAny(raw, urlMetachars) {
		g.audit("blocked URL containing shell metacharacters", raw)
		return fmt.Errorf("URL contains potentially dangerous characters")
	}

	hostname := strings.ToLower(parsed.Hostname())
	if !g.domainAllowed(hostname) {
		g.audit("blocked URL outside the allowed domain list", raw)
		return fmt.Errorf("URL domain '%s' is not in the allowed list", hostname)
	}

	return nil
}

// ValidateHeaders classifies a header map as safe or unsafe. A nil map is
// valid. Each pair is checked independently; the first violation found is
// reported, and map iteration order does not change whether a violation is
// found, only which one surfaces first.
func (g *Guard) ValidateHeaders(headers map[string]string) error {
	for key, value := range headers {
		if key == "" {
			return fmt.Errorf("Header key must be a non-empty string")
		}
		if len(key) > g.maxKeyLen {
			return fmt.Errorf("Header key exceeds maximum length of %d characters", g.maxKeyLen)
		}
		if strings.ContainsAny(key, headerKeyMetachars) {
			g.audit("blocked header with unsafe key", key)
			return fmt.Errorf("Header key contains potentially dangerous characters")
		}

		if value == "" {
			return fmt.Errorf("Header value must be a non-empty string")
		}
		if len(value) > g.maxValueLen {
			return fmt.Errorf("Header value exceeds maximum length of %d characters", g.maxValueLen)
		}
		if strings.ContainsAny(value, headerValueMetachars) {
			g.audit("blocked header with unsafe value", value)
			return fmt.Errorf("Header value contains potentially dangerous characters")
		}
		if hasInjectionPattern(value) {
			g.audit("blocked header value with injection pattern", value)
			return fmt.Errorf("Header value contains potential injection pattern")
		}
	}
	return nil
}

// ValidateCurlCommand is the last line of defense: it must be invoked on
// the exact string that will be handed to the shell, after all assembly.
func (g *Guard) ValidateCurlCommand(command string) error {
	if command == "" {
		return fmt.Errorf("Command must be a non-empty string")
	}
	if !strings.HasPrefix(strings.TrimSpace(command), "curl ") {
		return fmt.Errorf("Command must start with curl")
	}
	if hasDangerousCommandPattern(command) {
		g.audit("blocked assembled command with dangerous pattern", command)
		return fmt.Errorf("Curl command contains potentially dangerous patterns")
	}
	return nil
}

func (g *Guard) domainAllowed(hostname string) bool {
	for _, d := range g.allowedDomains {
		if hostname == d || strings.HasSuffix(hostname, "."+d) {
			return true
		}
	}
	return false
}

// audit writes a truncated security log line. Logging must never mask or
// alter the validation decision, so failures inside the handler are not
// consulted.
func (g *Guard) audit(msg, payload string) {
	if len(payload) > auditTruncateLen {
		payload = payload[:auditTruncateLen] + "..."
	}
	g.logger.Error(msg, "payload", payload)
}
