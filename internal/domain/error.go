package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrUpstreamFailure   = errors.New("text generation backend failure")
	ErrIO                = errors.New("document i/o failure")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDispatch          = errors.New("job dispatch failed")
	ErrLocked            = errors.New("resource is locked")
)

// Failure classifies an error under one of the sentinel kinds above while
// keeping the original message text intact.
type Failure struct {
	Kind error
	Err  error
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

func (f *Failure) Is(target error) bool { return target == f.Kind }

// Upstream marks err as a text-generation backend failure.
func Upstream(err error) error {
	if err == nil || errors.Is(err, ErrUpstreamFailure) {
		return err
	}
	return &Failure{Kind: ErrUpstreamFailure, Err: err}
}

// IO marks err as a document rendering or file access failure.
func IO(err error) error {
	if err == nil || errors.Is(err, ErrIO) {
		return err
	}
	return &Failure{Kind: ErrIO, Err: err}
}
