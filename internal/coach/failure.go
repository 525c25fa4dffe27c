package coach

import (
	"errors"
	"fmt"

	"bridgeai/internal/llm"
)

// Kind classifies why a coach call failed so callers can pick a fallback.
type Kind string

const (
	KindTransport  Kind = "transport"
	KindParse      Kind = "parse"
	KindCredential Kind = "credential"
)

// Failure is the error returned by every coach call that reached the model
// boundary and did not produce a usable answer.
type Failure struct {
	Op   llm.Task
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("coach %s: %s failure: %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

func classify(op llm.Task, err error) *Failure {
	kind := KindTransport
	if errors.Is(err, llm.ErrMissingCredential) {
		kind = KindCredential
	}
	return &Failure{Op: op, Kind: kind, Err: err}
}
