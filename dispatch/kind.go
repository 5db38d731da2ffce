package dispatch

import "github.com/a2alab/agentbridge/domain"

// messageKind is decided once at the dispatch boundary instead of scattering
// string-prefix checks through the handlers.
type messageKind int

const (
	kindFreeText messageKind = iota
	kindRelayed
	kindCommand
	kindSearch
)

func classify(msg *domain.Message) messageKind {
	if msg.IsRelayed() {
		return kindRelayed
	}
	if len(msg.Text) > 0 {
		switch msg.Text[0] {
		case '/':
			return kindCommand
		case '?':
			return kindSearch
		}
	}
	return kindFreeText
}
