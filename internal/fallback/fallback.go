// Package fallback runs an explicit, ordered list of attempts and reports a
// tagged outcome for each, so fallback chains are data rather than nested
// error handling.
package fallback

import (
	"context"
	"errors"
)

// Status tags the outcome of one attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	// StatusSkipped means the attempt did not apply to this input
	StatusSkipped Status = "skipped"
	// StatusDefault marks the deterministic value used when every attempt missed
	StatusDefault Status = "default"
)

// ErrSkip is returned by an attempt that does not apply.
var ErrSkip = errors.New("attempt skipped")

// Attempt is one named step in a fallback chain.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Outcome is the tagged result of an attempt.
type Outcome[T any] struct {
	Name   string
	Status Status
	Value  T
	Err    error
}

// OK reports whether the outcome carries a usable value.
func (o Outcome[T]) OK() bool {
	return o.Status == StatusSuccess || o.Status == StatusDefault
}

// Result is the selected outcome plus the trail of every attempt made.
type Result[T any] struct {
	Outcome[T]
	Trail []Outcome[T]
}

// LastErr returns the error of the most recent failed attempt, if any.
func (r Result[T]) LastErr() error {
	for i := len(r.Trail) - 1; i >= 0; i-- {
		if r.Trail[i].Status == StatusFailed {
			return r.Trail[i].Err
		}
	}
	return nil
}

// Run tries attempts in order and returns the first success. When every
// attempt fails or is skipped, def builds the deterministic default from the
// trail. A cancelled context stops the chain early and falls through to def.
func Run[T any](ctx context.Context, attempts []Attempt[T], def func(trail []Outcome[T]) T) Result[T] {
	trail := make([]Outcome[T], 0, len(attempts))

	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			trail = append(trail, Outcome[T]{Name: a.Name, Status: StatusFailed, Err: err})
			break
		}

		v, err := a.Run(ctx)
		switch {
		case errors.Is(err, ErrSkip):
			trail = append(trail, Outcome[T]{Name: a.Name, Status: StatusSkipped})
		case err != nil:
			trail = append(trail, Outcome[T]{Name: a.Name, Status: StatusFailed, Err: err})
		default:
			o := Outcome[T]{Name: a.Name, Status: StatusSuccess, Value: v}
			return Result[T]{Outcome: o, Trail: append(trail, o)}
		}
	}

	var v T
	if def != nil {
		v = def(trail)
	}
	return Result[T]{
		Outcome: Outcome[T]{Name: "default", Status: StatusDefault, Value: v},
		Trail:   trail,
	}
}
