package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/advect/internal/ir"
)

// ErrUnsupported is wrapped by every operation the active communication
// pattern cannot perform.
var ErrUnsupported = errors.New("unsupported for this communication pattern")

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeConfiguration marks a fatal setup problem detected before the
	// driver loop starts.
	CodeConfiguration ErrorCode = "CONFIGURATION"

	// CodeProtocol marks a cross-rank protocol anomaly. These are logged
	// and counted, never returned from Step.
	CodeProtocol ErrorCode = "PROTOCOL"

	// CodeUnsupported marks a fail-fast unsupported operation.
	CodeUnsupported ErrorCode = "UNSUPPORTED"

	// CodeNumerical marks a per-curve solver failure. The curve is
	// terminated; the run continues.
	CodeNumerical ErrorCode = "NUMERICAL"

	// CodeInvariant marks a broken engine invariant. The engine stops.
	CodeInvariant ErrorCode = "INVARIANT"
)

// Error is the structured error type of the engine.
type Error struct {
	Code    ErrorCode
	Message string

	// Rank is the reporting rank, or -1 when no rank is involved.
	Rank int

	// Key is the domain involved, if any.
	Key *ir.DomainKey

	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.Rank >= 0 {
		ctx = append(ctx, fmt.Sprintf("rank=%d", e.Rank))
	}
	if e.Key != nil {
		ctx = append(ctx, "key="+e.Key.String())
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ctx = append(ctx, k+"="+e.Details[k])
		}
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func hasCode(err error, code ErrorCode) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsConfigurationError reports whether err is a CONFIGURATION error.
func IsConfigurationError(err error) bool { return hasCode(err, CodeConfiguration) }

// IsProtocolError reports whether err is a PROTOCOL error.
func IsProtocolError(err error) bool { return hasCode(err, CodeProtocol) }

// IsUnsupported reports whether err is an UNSUPPORTED error or wraps
// ErrUnsupported.
func IsUnsupported(err error) bool {
	return hasCode(err, CodeUnsupported) || errors.Is(err, ErrUnsupported)
}

// IsNumericalError reports whether err is a NUMERICAL error.
func IsNumericalError(err error) bool { return hasCode(err, CodeNumerical) }

// IsInvariantViolation reports whether err is an INVARIANT error.
func IsInvariantViolation(err error) bool { return hasCode(err, CodeInvariant) }

// NewConfigurationError creates a CONFIGURATION error not tied to a rank.
func NewConfigurationError(format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...), Rank: -1}
}

func unsupportedError(rank int, pattern, op string) *Error {
	return &Error{
		Code:    CodeUnsupported,
		Message: op,
		Rank:    rank,
		Details: map[string]string{"pattern": pattern},
		Err:     ErrUnsupported,
	}
}

func protocolError(rank int, key *ir.DomainKey, format string, args ...any) *Error {
	return &Error{Code: CodeProtocol, Message: fmt.Sprintf(format, args...), Rank: rank, Key: key}
}

func invariantError(rank int, format string, args ...any) *Error {
	return &Error{Code: CodeInvariant, Message: fmt.Sprintf(format, args...), Rank: rank}
}
