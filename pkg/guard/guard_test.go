package guard

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fetchguard/fetchguard/pkg/config"
)

func newTestGuard() *Guard {
	return New(config.Default().Security, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidateURL_Accepts(t *testing.T) {
	g := newTestGuard()

	valid := []string{
		"https://api.figma.com/v1/files/abc123",
		"https://figma.com/",
		"http://api.figma.com/v1/me",
		"https://www.figma.com/community",
		"https://API.FIGMA.COM/v1/files/x",
	}
	for _, u := range valid {
		assert.NoError(t, g.ValidateURL(u), u)
	}
}

func TestValidateURL_Rejects(t *testing.T) {
	g := newTestGuard()

	cases := []struct {
		name string
		url  string
		msg  string
	}{
		{"empty", "", "URL must be a non-empty string"},
		{"too long", "https://api.figma.com/" + strings.Repeat("a", 2048), "URL exceeds maximum length of 2048 characters"},
		{"no scheme", "api.figma.com/v1/files", "Invalid URL format"},
		{"ftp scheme", "ftp://api.figma.com/v1", "Only HTTP and HTTPS URLs are allowed"},
		{"file scheme", "file://host/etc/passwd", "Only HTTP and HTTPS URLs are allowed"},
		{"no authority", "mailto:a@figma.com", "Invalid URL format"},
		{"semicolon", "https://api.figma.com/files/abc; rm -rf /", "URL contains potentially dangerous characters"},
		{"substitution", "https://api.figma.com/$(whoami)", "URL contains potentially dangerous characters"},
		{"backtick", "https://api.figma.com/`id`", "URL contains potentially dangerous characters"},
		{"pipe in query", "https://api.figma.com/v1?x=a|b", "URL contains potentially dangerous characters"},
		{"foreign domain", "https://evil.com/x", "URL domain 'evil.com' is not in the allowed list"},
		{"suffix trick", "https://notfigma.com/x", "URL domain 'notfigma.com' is not in the allowed list"},
		{"embedded allow", "https://figma.com.evil.com/x", "URL domain 'figma.com.evil.com' is not in the allowed list"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.ValidateURL(tc.url)
			require.Error(t, err)
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func TestValidateURL_DangerousCharacters_Property(t *testing.T) {
	g := newTestGuard()

	rapid.Check(t, func(t *rapid.T) {
		c := rapid.SampledFrom([]rune(urlMetachars)).Draw(t, "metachar")
		u := fmt.Sprintf("https://api.figma.com/v1/files/a%cb", c)

		err := g.ValidateURL(u)
		require.Error(t, err)
		assert.Equal(t, "URL contains potentially dangerous characters", err.Error())
	})
}

func TestValidateURL_DomainSuffix_Property(t *testing.T) {
	g := newTestGuard()

	rapid.Check(t, func(t *rapid.T) {
		label := rapid.StringMatching(`[a-z0-9]{1,12}`).Draw(t, "label")

		assert.NoError(t, g.ValidateURL("https://"+label+".figma.com/v1/files"))

		err := g.ValidateURL("https://" + label + ".example.com/v1/files")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not in the allowed list")
	})
}

func TestValidateHeaders_NilAndValid(t *testing.T) {
	g := newTestGuard()

	assert.NoError(t, g.ValidateHeaders(nil))
	assert.NoError(t, g.ValidateHeaders(map[string]string{}))
	assert.NoError(t, g.ValidateHeaders(map[string]string{
		"Authorization": "Bearer fig_token_123",
		"X-Figma-Token": "abc-def",
		"Accept":        "application/json",
	}))
}

func TestValidateHeaders_Rejects(t *testing.T) {
	g := newTestGuard()

	cases := []struct {
		name    string
		headers map[string]string
		msg     string
	}{
		{"empty key", map[string]string{"": "v"}, "Header key must be a non-empty string"},
		{"empty value", map[string]string{"X-Token": ""}, "Header value must be a non-empty string"},
		{"key too long", map[string]string{strings.Repeat("k", 257): "v"}, "Header key exceeds maximum length of 256 characters"},
		{"value too long", map[string]string{"X-Token": strings.Repeat("v", 8193)}, "Header value exceeds maximum length of 8192 characters"},
		{"key semicolon", map[string]string{"X;Y": "v"}, "Header key contains potentially dangerous characters"},
		{"key newline", map[string]string{"X\nY": "v"}, "Header key contains potentially dangerous characters"},
		{"key quote", map[string]string{`X"Y`: "v"}, "Header key contains potentially dangerous characters"},
		{"value backtick", map[string]string{"X": "a`id`b"}, "Header value contains potentially dangerous characters"},
		{"value newline", map[string]string{"X": "a\nb"}, "Header value contains potentially dangerous characters"},
		{"value angle bracket", map[string]string{"X": "a<b"}, "Header value contains potentially dangerous characters"},
		{"value backslash", map[string]string{"X": `a\b`}, "Header value contains potentially dangerous characters"},
		{"value assignment", map[string]string{"X": "a;PATH=/tmp"}, "Header value contains potential injection pattern"},
		{"value unquoted and", map[string]string{"X": "a && rm x"}, "Header value contains potential injection pattern"},
		{"value unquoted or", map[string]string{"X": "a||b"}, "Header value contains potential injection pattern"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.ValidateHeaders(tc.headers)
			require.Error(t, err)
			assert.Equal(t, tc.msg, err.Error())
		})
	}
}

func TestValidateHeaders_ValueSetIsNarrower(t *testing.T) {
	g := newTestGuard()

	// Separators and quotes are tolerated in values because the assembled
	// command quotes them; they stay banned in keys.
	assert.NoError(t, g.ValidateHeaders(map[string]string{"X-Note": "a;b"}))
	assert.NoError(t, g.ValidateHeaders(map[string]string{"X-Note": "it's a=b&c=d"}))
	assert.NoError(t, g.ValidateHeaders(map[string]string{"X-Note": `say "hi"`}))
	assert.Error(t, g.ValidateHeaders(map[string]string{"X;Note": "v"}))

	// A double-quoted pair spanning the token neutralizes the && scan.
	assert.NoError(t, g.ValidateHeaders(map[string]string{"X-Note": `"a && b"`}))
}

func TestValidateCurlCommand(t *testing.T) {
	g := newTestGuard()

	cases := []struct {
		name string
		cmd  string
		msg  string
	}{
		{"empty", "", "Command must be a non-empty string"},
		{"wget", "wget 'https://api.figma.com'", "Command must start with curl"},
		{"prefix trick", "curl-like 'https://api.figma.com'", "Command must start with curl"},
		{"bash wrapper", `bash -c "curl 'https://api.figma.com'"`, "Command must start with curl"},
		{"unquoted semicolon", "curl 'https://api.figma.com'; rm -rf /", "Curl command contains potentially dangerous patterns"},
		{"unquoted pipe", "curl 'https://api.figma.com' | sh", "Curl command contains potentially dangerous patterns"},
		{"unquoted and", "curl 'https://a.figma.com' && curl 'https://b.figma.com'", "Curl command contains potentially dangerous patterns"},
		{"backtick pair", "curl '`whoami`'", "Curl command contains potentially dangerous patterns"},
		{"substitution", "curl '$(whoami)'", "Curl command contains potentially dangerous patterns"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.ValidateCurlCommand(tc.cmd)
			require.Error(t, err)
			assert.Equal(t, tc.msg, err.Error())
		})
	}

	assert.NoError(t, g.ValidateCurlCommand("curl -s --max-time 30 'https://api.figma.com/v1/files/x'"))
	assert.NoError(t, g.ValidateCurlCommand("curl -s -H 'X-Note: a;b' 'https://api.figma.com/v1'"))
	assert.NoError(t, g.ValidateCurlCommand(`curl -s -H 'X-Note: it'\''s fine' 'https://api.figma.com/v1'`))
}

// The three defense layers must fire independently: the character class on
// the raw URL, the injection scan on header values, and the structural
// check on the assembled command.
func TestDefenseLayers_FireIndependently(t *testing.T) {
	g := newTestGuard()

	err := g.ValidateURL("https://api.figma.com/x;y")
	require.Error(t, err)
	assert.Equal(t, "URL contains potentially dangerous characters", err.Error())

	// Passes the value character class, caught only by the injection scan.
	err = g.ValidateHeaders(map[string]string{"X": "v;IFS=x"})
	require.Error(t, err)
	assert.Equal(t, "Header value contains potential injection pattern", err.Error())

	// Passes neither earlier layer (never saw them), caught by the command gate.
	err = g.ValidateCurlCommand("curl 'https://api.figma.com'; id")
	require.Error(t, err)
	assert.Equal(t, "Curl command contains potentially dangerous patterns", err.Error())
}
