package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	recoverable := []error{
		ErrDeviceLost,
		ErrWaitTimeout,
		ErrDataFormat,
		fmt.Errorf("frame 12: %w", ErrWaitTimeout),
		fmt.Errorf("present: %w", fmt.Errorf("queue: %w", ErrDeviceLost)),
	}
	for _, err := range recoverable {
		assert.Equal(t, ErrorClassRecoverable, Classify(err), err.Error())
		assert.True(t, IsRecoverable(err))
	}

	fatal := []error{
		ErrResourceCreation,
		ErrSubmission,
		ErrUnpairedTransition,
		ErrInvalidTransition,
		ErrUntrackedResource,
		ErrBlurRadius,
		ErrOutOfRange,
		ErrInvalidConfig,
		errors.New("something else"),
	}
	for _, err := range fatal {
		assert.Equal(t, ErrorClassFatal, Classify(err), err.Error())
		assert.False(t, IsRecoverable(err))
	}

	assert.False(t, IsRecoverable(nil))
	assert.Equal(t, "recoverable", ErrorClassRecoverable.String())
	assert.Equal(t, "fatal", ErrorClassFatal.String())
}
