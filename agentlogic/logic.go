// Package agentlogic defines the local reasoning contract the dispatcher
// hands non-routed messages to, plus the built-in logics the original
// deployment examples ship with.
package agentlogic

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Func produces a reply for a local message. conversationID correlates
// multi-turn exchanges; implementations may ignore it.
type Func func(ctx context.Context, text, conversationID string) (string, error)

// Echo replies with the input text unchanged.
func Echo() Func {
	return func(_ context.Context, text, _ string) (string, error) {
		return "Echo: " + text, nil
	}
}

// Pirate wraps the input in pirate speak.
func Pirate() Func {
	return func(_ context.Context, text, _ string) (string, error) {
		return fmt.Sprintf("Arrr! %s, matey!", text), nil
	}
}

// Helpful answers a few fixed intents and otherwise acknowledges the input.
func Helpful() Func {
	return func(_ context.Context, text, _ string) (string, error) {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "time"):
			return "Current time: " + time.Now().Format("15:04:05"), nil
		case strings.Contains(lower, "help"):
			return "I can help with time and general questions!", nil
		default:
			return "I can help with: " + text, nil
		}
	}
}

// FromName returns a built-in logic by name, or false when the name is
// unknown. The "claude" logic is constructed separately since it needs
// credentials.
func FromName(name string) (Func, bool) {
	switch name {
	case "echo":
		return Echo(), true
	case "pirate":
		return Pirate(), true
	case "helpful":
		return Helpful(), true
	default:
		return nil, false
	}
}
