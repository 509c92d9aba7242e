package guard

import (
	"regexp"
	"strings"
)

// Metacharacter classes. URLs and header keys get the full shell set;
// header values get a narrower set because values are placed inside
// quoting in the assembled command, so bare separators and quote
// characters are tolerated here and re-checked by the injection scan and
// the final command validation. Substitution syntax and angle brackets
// are never acceptable in a value regardless of quoting context.
const (
	urlMetachars         = ";&|`$(){}[]\\'\"<>"
	headerKeyMetachars   = ";&|`$(){}[]\\'\"<>\n\r"
	headerValueMetachars = "`$(){}[]\\<>\n\r"
)

// assignmentPattern matches a shell variable-assignment shape after a
// statement separator, e.g. `;PATH=`.
var assignmentPattern = regexp.MustCompile(`;\s*[A-Za-z_][A-Za-z0-9_]*=`)

// hasInjectionPattern scans a header value for substring shapes that alter
// shell semantics when interpolated: assignment after `;`, `&&`/`||`
// outside double quotes, and command substitution.
func hasInjectionPattern(value string) bool {
	if assignmentPattern.MatchString(value) {
		return true
	}
	if hasTokenOutsideDoubleQuotes(value, "&&") || hasTokenOutsideDoubleQuotes(value, "||") {
		return true
	}
	return strings.Contains(value, "$(") || strings.Contains(value, "${")
}

// hasTokenOutsideDoubleQuotes reports whether token occurs at a position
// not spanned by a pair of double quotes. Quote pairing is tracked by
// parity: an occurrence preceded by an even number of double quotes is
// outside any pair.
func hasTokenOutsideDoubleQuotes(s, token string) bool {
	quotes := 0
	for i := 0; i+len(token) <= len(s); i++ {
		if s[i] == '"' {
			quotes++
			continue
		}
		if s[i:i+len(token)] == token && quotes%2 == 0 {
			return true
		}
	}
	return false
}

// backtickPair matches a pair of backticks enclosing any content.
var backtickPair = regexp.MustCompile("`[^`]*`")

// hasDangerousCommandPattern scans an assembled command line for shapes
// that would introduce a second command. It is a conservative structural
// approximation of shell grammar, not a parser: a separator is accepted
// only while inside a quoted argument, and backtick pairs or `$(`
// substitution are rejected wherever they appear.
func hasDangerousCommandPattern(command string) bool {
	if backtickPair.MatchString(command) {
		return true
	}
	if strings.Contains(command, "$(") {
		return true
	}
	return hasUnquotedSeparator(command)
}

// hasUnquotedSeparator walks the command tracking POSIX sh quote state:
// inside single quotes every byte is literal; inside double quotes `;`,
// `&` and `|` are literal; outside quotes a backslash escapes the next
// byte. Any separator seen outside quotes is dangerous.
func hasUnquotedSeparator(command string) bool {
	inSingle, inDouble := false, false
	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			// Inside double quotes a backslash escapes a following quote.
			if c == '\\' && i+1 < len(command) {
				i++
			} else if c == '"' {
				inDouble = false
			}
		default:
			switch c {
			case '\\':
				i++
			case '\'':
				inSingle = true
			case '"':
				inDouble = true
			case ';', '&', '|':
				return true
			}
		}
	}
	return false
}
