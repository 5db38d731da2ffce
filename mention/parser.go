// Package mention extracts @agent-id mentions from message text.
//
// A mention is an '@' followed by one or more identifier characters
// ([A-Za-z0-9_-]). The '@' must sit at the start of the text or after
// whitespace, so addresses like "foo@example.com" inside prose are never
// treated as mentions. A token immediately followed by '.' or '@' and another
// identifier character is rejected as email- or domain-like text.
package mention

import "strings"

// Mention is one @token occurrence, in text order. Start and End are byte
// offsets of the full "@token" substring within the original text.
type Mention struct {
	Token string
	Start int
	End   int
}

func isIdentChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_' || b == '-'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Parse returns all mentions in text, preserving the order they appear.
// Text with no mention yields an empty slice. Parse never fails: malformed
// or boundary-ambiguous tokens simply degrade to plain text.
func Parse(text string) []Mention {
	var mentions []Mention
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		// Word boundary: '@' must be at the start or preceded by whitespace.
		if i > 0 && !isSpace(text[i-1]) {
			continue
		}
		j := i + 1
		for j < len(text) && isIdentChar(text[j]) {
			j++
		}
		if j == i+1 {
			// '@' with no identifier characters after it.
			continue
		}
		// Reject domain-like continuations: "@foo.bar" or "@foo@bar".
		if j+1 < len(text) && (text[j] == '.' || text[j] == '@') && isIdentChar(text[j+1]) {
			i = j
			continue
		}
		mentions = append(mentions, Mention{Token: text[i+1 : j], Start: i, End: j})
		i = j
	}
	return mentions
}

// Strip removes every mention's "@token" substring from text and collapses
// the surrounding whitespace, leaving the remainder as the payload.
func Strip(text string, mentions []Mention) string {
	if len(mentions) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, m := range mentions {
		b.WriteString(text[prev:m.Start])
		prev = m.End
	}
	b.WriteString(text[prev:])
	return strings.Join(strings.Fields(b.String()), " ")
}
