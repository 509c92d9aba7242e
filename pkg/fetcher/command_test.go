package fetcher

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fetchguard/fetchguard/pkg/config"
	"github.com/fetchguard/fetchguard/pkg/domain"
	"github.com/fetchguard/fetchguard/pkg/guard"
)

func TestBuildCurlCommand_Basic(t *testing.T) {
	cmd := BuildCurlCommand("https://api.figma.com/v1/files/x", domain.RequestOptions{})
	assert.Equal(t, "curl -s --max-time 30 'https://api.figma.com/v1/files/x'", cmd)
}

func TestBuildCurlCommand_HeadersSortedAndQuoted(t *testing.T) {
	cmd := BuildCurlCommand("https://api.figma.com/v1/me", domain.RequestOptions{
		Headers: map[string]string{
			"X-Figma-Token": "tok",
			"Accept":        "application/json",
		},
	})
	assert.Equal(t,
		"curl -s --max-time 30 -H 'Accept: application/json' -H 'X-Figma-Token: tok' 'https://api.figma.com/v1/me'",
		cmd)
}

func TestBuildCurlCommand_UpgradesHTTP(t *testing.T) {
	cmd := BuildCurlCommand("http://api.figma.com/v1/me", domain.RequestOptions{})
	assert.Contains(t, cmd, "'https://api.figma.com/v1/me'")
	assert.NotContains(t, cmd, "http://")
}

func TestBuildCurlCommand_MethodAndBody(t *testing.T) {
	cmd := BuildCurlCommand("https://api.figma.com/v1/comments", domain.RequestOptions{
		Method: http.MethodPost,
		Body:   `{"message":"hi"}`,
	})
	assert.Contains(t, cmd, "-X POST")
	assert.Contains(t, cmd, `--data '{"message":"hi"}'`)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'plain'", shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "'a;b|c'", shellQuote("a;b|c"))
}

// Any URL and header map that pass validation must produce a command the
// final gate also accepts: assembly may not reintroduce unsafe sequences.
func TestBuildCurlCommand_ValidatedInputsPassFinalGate(t *testing.T) {
	g := guard.New(config.Default().Security, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rapid.Check(t, func(t *rapid.T) {
		path := rapid.StringMatching(`[a-z0-9/._-]{0,20}`).Draw(t, "path")
		url := "https://api.figma.com/" + path

		key := rapid.StringMatching(`[A-Za-z][A-Za-z0-9-]{0,15}`).Draw(t, "key")
		value := rapid.StringMatching(`[A-Za-z0-9 ;:&|'".=_-]{1,24}`).Draw(t, "value")

		if g.ValidateURL(url) != nil || g.ValidateHeaders(map[string]string{key: value}) != nil {
			t.Skip("input rejected upstream")
		}

		cmd := BuildCurlCommand(url, domain.RequestOptions{Headers: map[string]string{key: value}})
		require.True(t, strings.HasPrefix(cmd, "curl "))
		assert.NoError(t, g.ValidateCurlCommand(cmd))
	})
}
