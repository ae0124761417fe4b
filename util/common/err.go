// Package common provides shared helpers used across the service.
package common

import (
	"errors"
	"fmt"

	"github.com/akellavk/V2RaySub/logger"
)

// NewErrorf creates a new error with a formatted message.
func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

// NewError creates a new error whose message is the space-joined arguments.
func NewError(a ...any) error {
	msg := fmt.Sprintln(a...)
	return errors.New(msg)
}

// Combine wraps err with a context message, preserving the original for errors.Is/As.
func Combine(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Recover recovers from a panic and logs it with the given message.
// Returns the recovered value, nil when no panic occurred.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
