package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello", "hello"},
		{"emphasis kept, tail escaped", "Hello *world*!", `Hello *world*\!`},
		{"emphasis inner escaped", "*a.b*", `*a\.b*`},
		{"link verbatim", "see [docs](https://x.io/a_b) now.", `see [docs](https://x.io/a_b) now\.`},
		{"lone star", "2 * 3 = 6", `2 \* 3 \= 6`},
		{"adjacent spans do not merge", "*a* and *b*", `*a* and *b*`},
		{"unterminated after span", "*a* *b", `*a* \*b`},
		{"reserved set", "_[]()~`>#+-=|{}.!", "\\_\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
		{"backslash", `a\b`, `a\\b`},
		{"multiline emphasis", "*line one\nline two*", "*line one\nline two*"},
		{"unicode untouched", "привет, мир!", `привет, мир\!`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in))
		})
	}
}

func TestEscape_NoDoubledEscapes(t *testing.T) {
	inputs := []string{
		"Hello *world*!",
		"v1.2.3 - (beta) [draft]",
		"a_b_c #tag +1 = 2!",
		"*x.y* then [l](u) then {z}.",
	}

	for _, in := range inputs {
		out := Escape(in)
		assert.NotContains(t, out, `\\`, "input %q", in)
	}
}

func TestEscape_ReservedAlwaysPrefixedOutsideSpans(t *testing.T) {
	out := Escape("price: 10.5 (approx) - final!")
	for i, r := range out {
		if !IsReserved(r) || r == '\\' {
			continue
		}
		assert.True(t, i > 0 && out[i-1] == '\\', "reserved %q at %d not escaped in %q", r, i, out)
	}
}

func TestEscapePlain(t *testing.T) {
	assert.Equal(t, `\*bold\* user\_name`, EscapePlain("*bold* user_name"))
	assert.Equal(t, "", EscapePlain(""))
	assert.False(t, strings.Contains(EscapePlain("[x](y)"), "[x]"))
}
