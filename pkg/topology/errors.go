package topology

import (
	"errors"
	"fmt"
)

// Error kinds. A *ParseError unwraps to exactly one of these, so callers
// can match with errors.Is.
var (
	ErrMalformedMachineLine   = errors.New("malformed machine line")
	ErrMalformedLanLine       = errors.New("malformed lan line")
	ErrMalformedOspfLine      = errors.New("malformed ospf line")
	ErrMalformedAsLine        = errors.New("malformed as line")
	ErrMalformedNetwork       = errors.New("malformed network")
	ErrUnknownMode            = errors.New("unknown mode")
	ErrUnresolvedLanReference = errors.New("unresolved lan reference")
	ErrDuplicateMachineName   = errors.New("duplicate machine name")
	ErrDuplicateLan           = errors.New("duplicate lan")
)

// Expected shapes, quoted in error messages.
const (
	shapeMachine = "name:type[+bgp]:lanChars.octet[.octet...]"
	shapeLan     = "lanId:network/mask"
	shapeOspf    = "network/mask area"
	shapeAs      = "as<number>"
	shapeNetwork = "a.b.c.d/len"
)

// ParseError describes a fatal problem in the lab description.
type ParseError struct {
	Kind     error  // one of the Err* sentinels
	Line     int    // 1-based source line, 0 if not tied to a line
	Text     string // offending line, trimmed
	Detail   string
	Expected string
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Expected != "" {
		msg += " (expected " + e.Expected + ")"
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %q", e.Line, msg, e.Text)
	}
	return msg
}

// Unwrap returns the error kind.
func (e *ParseError) Unwrap() error {
	return e.Kind
}

func lineError(kind error, ln line, expected, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:     kind,
		Line:     ln.num,
		Text:     ln.text,
		Detail:   fmt.Sprintf(format, args...),
		Expected: expected,
	}
}
