package ledger

import (
	"errors"
	"fmt"
)

// ErrDuplicateEntry indicates the ledger already holds a row with the same
// file name. The runner checks names before executing, so this is only
// reached when verification is bypassed.
var ErrDuplicateEntry = errors.New("duplicate ledger entry")

// ErrSequenceCollision indicates the ledger already holds a row with the same
// sequence id under a different file name, typically a renamed script.
var ErrSequenceCollision = errors.New("script sequence id already recorded")

// ErrBootstrap indicates the pg_scripts table could not be created.
var ErrBootstrap = errors.New("bootstrapping pg_scripts table")

// ErrClosed indicates the store's session has already been released.
var ErrClosed = errors.New("ledger store is closed")

// SequenceCollisionError names both scripts claiming one sequence id.
// Recorded is empty when the existing row could not be read back.
// It matches ErrSequenceCollision with errors.Is.
type SequenceCollisionError struct {
	SequenceID int64
	Name       string // script being applied
	Recorded   string // script already holding the id
	Err        error
}

func (e *SequenceCollisionError) Error() string {
	recorded := e.Recorded
	if recorded == "" {
		recorded = "an existing entry"
	}

	return fmt.Sprintf("%s: %s (id %d) collides with %s", ErrSequenceCollision, e.Name, e.SequenceID, recorded)
}

// Is reports whether target is ErrSequenceCollision.
func (e *SequenceCollisionError) Is(target error) bool {
	return target == ErrSequenceCollision
}

func (e *SequenceCollisionError) Unwrap() error {
	return e.Err
}
