package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable matches failures where the answer service could not be
	// reached in time, retries included. Callers should try again later.
	ErrServiceUnavailable = errors.New("answer service unavailable")
	// ErrNoAnswer matches failures where the service responded but could not
	// answer from the given context. Answerer implementations return it too.
	ErrNoAnswer = errors.New("no answer for the given context")
)

type FailureKind int

const (
	ServiceUnavailable FailureKind = iota + 1
	NoAnswer
)

func (k FailureKind) String() string {
	switch k {
	case ServiceUnavailable:
		return "ServiceUnavailable"
	case NoAnswer:
		return "NoAnswer"
	default:
		return "Unknown"
	}
}

// Failure is the typed error returned by Gateway.Ask.
type Failure struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s after %d attempt(s)", f.Kind, f.Attempts)
	}
	return fmt.Sprintf("%s after %d attempt(s): %v", f.Kind, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool {
	switch target {
	case ErrServiceUnavailable:
		return f.Kind == ServiceUnavailable
	case ErrNoAnswer:
		return f.Kind == NoAnswer
	}
	return false
}

// UserMessage is the text shown to end users for this failure.
func (f *Failure) UserMessage() string {
	if f.Kind == NoAnswer {
		return "Not enough shelf data to answer this question."
	}
	return "The answer service is temporarily unavailable, please try again later."
}

// permanentError marks a collaborator error that retrying cannot fix.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the gateway gives up without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
