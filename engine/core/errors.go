package core

import (
	"errors"
)

var (
	// Recoverable: the device can be rebuilt, the wait retried or the file fixed.
	ErrDeviceLost  = errors.New("device removed or reset")
	ErrWaitTimeout = errors.New("fence wait timed out")
	ErrDataFormat  = errors.New("malformed data")

	// Fatal for the current run.
	ErrResourceCreation   = errors.New("resource creation failed")
	ErrSubmission         = errors.New("command submission failed")
	ErrUnpairedTransition = errors.New("resource not returned to its boundary state")
	ErrInvalidTransition  = errors.New("barrier does not match the current resource state")
	ErrUntrackedResource  = errors.New("resource is not tracked by this command list")
	ErrBlurRadius         = errors.New("blur radius out of range")
	ErrOutOfRange         = errors.New("index out of range")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrUnknown            = errors.New("unknown")
)

// ErrorClass splits failures into what the frame loop may survive and what it may not.
type ErrorClass uint8

const (
	ErrorClassFatal ErrorClass = iota
	ErrorClassRecoverable
)

func (c ErrorClass) String() string {
	if c == ErrorClassRecoverable {
		return "recoverable"
	}
	return "fatal"
}

// Classify returns the class of err. Anything not known to be recoverable is fatal.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrDeviceLost),
		errors.Is(err, ErrWaitTimeout),
		errors.Is(err, ErrDataFormat):
		return ErrorClassRecoverable
	default:
		return ErrorClassFatal
	}
}

func IsRecoverable(err error) bool {
	return err != nil && Classify(err) == ErrorClassRecoverable
}
