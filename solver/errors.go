package solver

import (
	"fmt"

	"plasflow/model"
)

// Status is the terminal state of a solve.
type Status int

const (
	Converged Status = iota
	Diverged
	OracleFailed
	Cancelled
	InvalidInput
	NonConvergence
)

var statusNames = map[Status]string{
	Converged:      "Converged",
	Diverged:       "Diverged",
	OracleFailed:   "OracleFailed",
	Cancelled:      "Cancelled",
	InvalidInput:   "InvalidInput",
	NonConvergence: "NonConvergence",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for k, v := range statusNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown solver status %q", b)
}

// Failure describes why a solve did not converge.
type Failure struct {
	Kind      Status           `json:"kind"`
	Message   string           `json:"message"`
	Iteration int              `json:"iteration"`
	Last      *model.Candidate `json:"last_candidate,omitempty"`
	Err       error            `json:"-"`
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s at iteration %d: %s", f.Kind, f.Iteration, f.Message)
	if f.Last != nil {
		msg += " (last candidate " + f.Last.String() + ")"
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }
