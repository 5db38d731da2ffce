package dispatch

import (
	"fmt"
	"strings"
)

// fragment is one per-target outcome: a reply on success, a failure reason
// otherwise.
type fragment struct {
	target string
	text   string
	ok     bool
}

// compose merges per-target fragments into the single reply returned to the
// caller. A single target's text is returned verbatim so the common
// one-mention case stays clean; multiple targets are labeled and joined in
// mention order.
func compose(frags []fragment) string {
	if len(frags) == 1 {
		return frags[0].text
	}

	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		parts = append(parts, fmt.Sprintf("[%s]: %s", f.target, f.text))
	}
	return strings.Join(parts, "\n\n")
}
