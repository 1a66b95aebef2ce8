package portal

import (
	"errors"
	"fmt"
)

// Error is returned for transport failures, non-2xx answers and undecodable bodies.
// Body is kept verbatim; Reply is set when the body still decoded as an envelope.
type Error struct {
	Op         string
	StatusCode int
	Body       []byte
	Reply      *Reply
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("portal %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("portal %s: http %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("portal %s: %v", e.Op, e.Err)
	default:
		return "portal " + e.Op + ": failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

var (
	ErrNoAntiForgery = errors.New("anti-forgery cookie missing")
	ErrNoSession     = errors.New("session cookie missing")
)
