package benchmark

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable failure category. Callers branch on Kind, not on messages.
type Kind string

const (
	KindIOFailure            Kind = "IOFailure"
	KindCryptoFailure        Kind = "CryptoFailure"
	KindCorrectnessViolation Kind = "CorrectnessViolation"
	KindInsufficientSamples  Kind = "InsufficientSamples"
	KindInterrupted          Kind = "Interrupted"
	KindInvalidConfig        Kind = "InvalidConfig"
)

// Error carries the failing stage and as much measurement context as is known.
// Zero FileSize/Iteration mean "not applicable".
type Error struct {
	Kind      Kind
	Stage     State
	Profile   string
	FileSize  int
	Iteration int
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s during %s", e.Kind, e.Stage)

	var ctx []string
	if e.Profile != "" {
		ctx = append(ctx, "profile="+e.Profile)
	}
	if e.FileSize > 0 {
		ctx = append(ctx, fmt.Sprintf("size=%d", e.FileSize))
	}
	if e.Iteration > 0 {
		ctx = append(ctx, fmt.Sprintf("iteration=%d", e.Iteration))
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(ctx, " "))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var be *Error
	ok := errors.As(err, &be)
	return be, ok
}

func cryptoFailure(profile string, err error) error {
	if be, ok := AsError(err); ok && be.Kind == KindCryptoFailure {
		return err
	}
	return &Error{Kind: KindCryptoFailure, Stage: StateMeasuring, Profile: profile, Cause: err}
}
