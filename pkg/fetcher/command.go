package fetcher

import (
	"net/http"
	"sort"
	"strings"

	"github.com/fetchguard/fetchguard/pkg/domain"
)

// BuildCurlCommand assembles the shell command for the fallback path.
// Every caller-supplied fragment becomes a single-quoted token; nothing is
// concatenated raw. Header order is deterministic (sorted by key) so the
// same request always produces the same command string. Plain HTTP targets
// are upgraded to HTTPS here, which is why the validator tolerates the
// http scheme.
func BuildCurlCommand(rawURL string, opts domain.RequestOptions) string {
	target := rawURL
	if strings.HasPrefix(target, "http://") {
		target = "https://" + strings.TrimPrefix(target, "http://")
	}

	parts := []string{"curl", "-s", "--max-time", "30"}

	if opts.Method != "" && opts.Method != http.MethodGet {
		parts = append(parts, "-X", opts.Method)
	}

	keys := make([]string, 0, len(opts.Headers))
	for k := range opts.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "-H", shellQuote(k+": "+opts.Headers[k]))
	}

	if opts.Body != "" {
		parts = append(parts, "--data", shellQuote(opts.Body))
	}

	parts = append(parts, shellQuote(target))
	return strings.Join(parts, " ")
}

// shellQuote wraps s in single quotes for POSIX sh. Embedded single quotes
// close the quoted region, emit an escaped quote, and reopen it.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
