package oracle

import (
	"errors"
	"fmt"
)

type Kind int

const (
	NonConvergence Kind = iota + 1
	OutOfRange
	NumericalFailure
)

var (
	ErrNonConvergence   = errors.New("property evaluation did not converge")
	ErrOutOfRange       = errors.New("state outside oracle validity range")
	ErrNumericalFailure = errors.New("numerical failure in property evaluation")
)

func (k Kind) String() string {
	switch k {
	case NonConvergence:
		return "NonConvergence"
	case OutOfRange:
		return "OutOfRange"
	case NumericalFailure:
		return "NumericalFailure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case NonConvergence:
		return ErrNonConvergence
	case OutOfRange:
		return ErrOutOfRange
	case NumericalFailure:
		return ErrNumericalFailure
	}
	return nil
}

// PropertyError reports a failed evaluation. errors.Is matches it against the sentinel of
// its Kind.
type PropertyError struct {
	Kind Kind
	Op   string
	Spec Spec
	Err  error
}

func (e *PropertyError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Spec, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PropertyError) Unwrap() error { return e.Err }

func (e *PropertyError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Errorf builds a PropertyError with a formatted cause.
func Errorf(kind Kind, op string, spec Spec, format string, args ...interface{}) *PropertyError {
	return &PropertyError{Kind: kind, Op: op, Spec: spec, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var pe *PropertyError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
