package transport

import "fmt"

// ErrorKind classifies a failed delivery attempt.
type ErrorKind int

const (
	// KindTimeout means the attempt exceeded its deadline.
	KindTimeout ErrorKind = iota
	// KindUnreachable means the endpoint could not be contacted.
	KindUnreachable
	// KindProtocol means the endpoint answered with a non-success status or
	// a payload that cannot be interpreted as a reply.
	KindProtocol
)

// String returns a human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnreachable:
		return "unreachable"
	case KindProtocol:
		return "protocol error"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by Client.Send. It wraps the underlying
// cause so callers can classify failures per target.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s contacting %s: %v", e.Kind, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s contacting %s", e.Kind, e.Endpoint)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the transport error kind, or (0, false) for other errors.
func KindOf(err error) (ErrorKind, bool) {
	te, ok := err.(*Error)
	if !ok {
		return 0, false
	}
	return te.Kind, true
}
