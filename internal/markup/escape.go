// Package markup converts free text into Telegram MarkdownV2-safe text.
//
// Two span kinds survive escaping: inline links of the form [label](url), which
// are copied through verbatim, and *emphasis* spans, whose asterisks are kept
// while the text between them is escaped. Everything else has each reserved
// character prefixed with a backslash.
package markup

import (
	"regexp"
	"strings"
)

// reserved lists every character MarkdownV2 requires to be escaped outside entities.
const reserved = "_*[]()~`>#+-=|{}.!\\"

// spanRe matches either a link or a non-greedy emphasis span. Spans do not nest.
var spanRe = regexp.MustCompile(`(?s)(\[[^\]]+\]\([^)]+\))|(\*([^*]+?)\*)`)

// Escape escapes text for MarkdownV2 while keeping links and emphasis spans intact.
// An unmatched '*' is escaped like any other reserved character.
func Escape(text string) string {
	if text == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(text) + len(text)/4)

	last := 0
	for _, m := range spanRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		writeEscaped(&sb, text[last:start])

		if m[2] >= 0 {
			// link: keep label and url exactly as written
			sb.WriteString(text[m[2]:m[3]])
		} else {
			sb.WriteByte('*')
			writeEscaped(&sb, text[m[6]:m[7]])
			sb.WriteByte('*')
		}
		last = end
	}
	writeEscaped(&sb, text[last:])

	return sb.String()
}

// EscapePlain escapes every reserved character with no span detection.
// Use it for values that are interpolated into a template, such as author names.
func EscapePlain(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + len(text)/4)
	writeEscaped(&sb, text)
	return sb.String()
}

func writeEscaped(sb *strings.Builder, s string) {
	for _, r := range s {
		if IsReserved(r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
}

// IsReserved reports whether r must be escaped outside an entity.
func IsReserved(r rune) bool {
	return r < 128 && strings.IndexByte(reserved, byte(r)) >= 0
}
