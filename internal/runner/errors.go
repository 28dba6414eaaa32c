package runner

import (
	"errors"
	"fmt"
)

// ErrHashMismatch indicates an applied script's content changed on disk.
var ErrHashMismatch = errors.New("script hash mismatch")

// ErrExecutionFailed indicates the database rejected a script; its
// transaction was rolled back.
var ErrExecutionFailed = errors.New("script execution failed")

// HashMismatchError reports drift between the ledger and a script file.
// It matches ErrHashMismatch with errors.Is.
type HashMismatchError struct {
	Name       string
	SequenceID int64
	Expected   string // hash recorded in the ledger
	Actual     string // hash of the file as it is now
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("%s: %s (id %d): recorded=%s current=%s",
		ErrHashMismatch, e.Name, e.SequenceID, e.Expected, e.Actual)
}

// Is reports whether target is ErrHashMismatch.
func (e *HashMismatchError) Is(target error) bool {
	return target == ErrHashMismatch
}

// ExecutionError wraps the database error that failed a script.
// It matches ErrExecutionFailed with errors.Is and unwraps to the cause.
type ExecutionError struct {
	Name       string
	SequenceID int64
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s (id %d): %v", ErrExecutionFailed, e.Name, e.SequenceID, e.Err)
}

// Is reports whether target is ErrExecutionFailed.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionFailed
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
