// Package runner applies scripts against a ledger: verify the content hash,
// then execute and record each script in a single transaction.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"

	"github.com/aqasim81/pgscripts/internal/fingerprint"
	"github.com/aqasim81/pgscripts/internal/ledger"
	"github.com/aqasim81/pgscripts/internal/script"
)

var logger = loggo.GetLogger("pgscripts.runner")

// State is a script's position in the apply state machine. Each script
// reports exactly one of these paths:
//
//	Verified -> Executed -> Recorded
//	Verified -> Executed -> ExecutionFailed  (recording failed)
//	Verified -> ExecutionFailed
//	Verified                                 (dry run)
//	Skipped
//	Rejected
type State string

// States reported via ProgressEvent.
const (
	StateVerified        State = "verified"
	StateExecuted        State = "executed"
	StateRecorded        State = "recorded"
	StateSkipped         State = "skipped"
	StateRejected        State = "rejected"
	StateExecutionFailed State = "execution_failed"
)

// ProgressEvent is emitted by the runner as a script changes state.
type ProgressEvent struct {
	Script   *script.Script
	State    State
	DryRun   bool
	Duration time.Duration
	Error    error
}

// Ledger abstracts the pg_scripts operations the runner needs.
type Ledger interface {
	Lookup(ctx context.Context, name string) (ledger.Entry, bool, error)
	LookupSequence(ctx context.Context, id int64) (ledger.Entry, bool, error)
	Entries(ctx context.Context) ([]ledger.Entry, error)
	WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error
}

// Summary lists what a batch did, by script name.
type Summary struct {
	Applied []string
	Skipped []string
	Pending []string // dry run only: scripts that would be applied
}

// Runner applies scripts strictly in order and stops at the first failure.
type Runner struct {
	ledger     Ledger
	clock      clock.Clock
	dryRun     bool
	onProgress func(ProgressEvent)
}

// Option configures a Runner.
type Option func(*Runner)

// WithDryRun verifies scripts against the ledger without executing them.
func WithDryRun(b bool) Option {
	return func(r *Runner) { r.dryRun = b }
}

// WithProgressCallback sets a function called on every state change.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// WithClock sets the clock used to time script execution.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// New creates a Runner over the given ledger.
func New(l Ledger, opts ...Option) *Runner {
	r := &Runner{ledger: l, clock: clock.WallClock}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// outcome is what happened to one script.
type outcome int

const (
	outcomeApplied outcome = iota
	outcomeSkipped
	outcomePending
)

// ApplyDir loads every script in dir and applies the batch.
func (r *Runner) ApplyDir(ctx context.Context, dir string) (Summary, error) {
	set, err := script.Load(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("loading scripts: %w", err)
	}

	return r.ApplySet(ctx, set)
}

// ApplySet applies the scripts of set in ascending sequence order. Scripts
// already recorded with the same hash are skipped, so rerunning a directory
// executes nothing new. The first failure aborts the batch.
func (r *Runner) ApplySet(ctx context.Context, set *script.Set) (Summary, error) {
	var summary Summary

	logger.Debugf("applying %d script(s) from %s", set.Len(), set.Dir())

	for sc, err := range set.All() {
		if err != nil {
			return summary, fmt.Errorf("loading scripts: %w", err)
		}

		out, err := r.applyOne(ctx, &sc, false)
		if err != nil {
			return summary, err
		}

		switch out {
		case outcomeApplied:
			summary.Applied = append(summary.Applied, sc.Name)
		case outcomeSkipped:
			summary.Skipped = append(summary.Skipped, sc.Name)
		case outcomePending:
			summary.Pending = append(summary.Pending, sc.Name)
		}
	}

	return summary, nil
}

// ApplyFile reads one script file and applies it.
func (r *Runner) ApplyFile(ctx context.Context, path string, bypass bool) error {
	sc, err := script.ReadFile(path)
	if err != nil {
		return err
	}

	return r.ApplyScript(ctx, sc, bypass)
}

// ApplyScript applies a single script. With bypass set the ledger is not
// consulted: the script always runs and is always recorded.
func (r *Runner) ApplyScript(ctx context.Context, sc script.Script, bypass bool) error {
	_, err := r.applyOne(ctx, &sc, bypass)

	return err
}

// applyOne drives one script through the state machine.
func (r *Runner) applyOne(ctx context.Context, sc *script.Script, bypass bool) (outcome, error) {
	if sc.Hash == "" {
		sc.Hash = fingerprint.Sum(sc.Body)
	}

	if bypass {
		logger.Debugf("%s: verification bypassed", sc.Name)
	} else {
		skip, err := r.verify(ctx, sc)
		if err != nil {
			r.fireProgress(ProgressEvent{Script: sc, State: StateRejected, Error: err})

			return 0, err
		}

		if skip {
			logger.Debugf("%s: already applied", sc.Name)
			r.fireProgress(ProgressEvent{Script: sc, State: StateSkipped})

			return outcomeSkipped, nil
		}
	}

	if r.dryRun {
		r.fireProgress(ProgressEvent{Script: sc, State: StateVerified, DryRun: true})

		return outcomePending, nil
	}

	r.fireProgress(ProgressEvent{Script: sc, State: StateVerified})

	start := r.clock.Now()

	err := r.ledger.WithinTx(ctx, func(tx ledger.Tx) error {
		if err := tx.Execute(ctx, sc.Body); err != nil {
			return err
		}

		r.fireProgress(ProgressEvent{Script: sc, State: StateExecuted, Duration: r.clock.Now().Sub(start)})

		return tx.Record(ctx, ledger.Entry{
			SequenceID: sc.SequenceID,
			Name:       sc.Name,
			Hash:       sc.Hash,
			DurationMs: int(r.clock.Now().Sub(start).Milliseconds()),
		})
	})
	duration := r.clock.Now().Sub(start)

	if err != nil {
		r.nameCollision(ctx, err)

		execErr := &ExecutionError{Name: sc.Name, SequenceID: sc.SequenceID, Err: err}
		r.fireProgress(ProgressEvent{
			Script:   sc,
			State:    StateExecutionFailed,
			Duration: duration,
			Error:    execErr,
		})

		return 0, execErr
	}

	logger.Infof("applied %s in %s", sc.Name, duration)
	r.fireProgress(ProgressEvent{Script: sc, State: StateRecorded, Duration: duration})

	return outcomeApplied, nil
}

// verify returns true if the script is already recorded with the same hash.
// A recorded script whose content changed is rejected.
func (r *Runner) verify(ctx context.Context, sc *script.Script) (bool, error) {
	entry, found, err := r.ledger.Lookup(ctx, sc.Name)
	if err != nil {
		return false, fmt.Errorf("checking script %s: %w", sc.Name, err)
	}

	if !found {
		return false, r.checkSequence(ctx, sc)
	}

	if !fingerprint.Equal(entry.Hash, sc.Hash) {
		return false, &HashMismatchError{
			Name:       sc.Name,
			SequenceID: sc.SequenceID,
			Expected:   entry.Hash,
			Actual:     sc.Hash,
		}
	}

	return true, nil
}

// checkSequence rejects a new script whose sequence id is already recorded
// under another name, so a renamed file never executes.
func (r *Runner) checkSequence(ctx context.Context, sc *script.Script) error {
	entry, found, err := r.ledger.LookupSequence(ctx, sc.SequenceID)
	if err != nil {
		return fmt.Errorf("checking script %s: %w", sc.Name, err)
	}

	if !found {
		return nil
	}

	return &ledger.SequenceCollisionError{
		SequenceID: sc.SequenceID,
		Name:       sc.Name,
		Recorded:   entry.Name,
	}
}

// nameCollision fills in the recorded script name when a bypassed insert
// failed on the sequence id. The transaction has been rolled back by now.
func (r *Runner) nameCollision(ctx context.Context, err error) {
	var collision *ledger.SequenceCollisionError
	if !errors.As(err, &collision) || collision.Recorded != "" {
		return
	}

	entry, found, lerr := r.ledger.LookupSequence(ctx, collision.SequenceID)
	if lerr != nil {
		logger.Warningf("reading ledger id %d: %v", collision.SequenceID, lerr)
		return
	}

	if found {
		collision.Recorded = entry.Name
	}
}

func (r *Runner) fireProgress(event ProgressEvent) {
	if r.onProgress != nil {
		r.onProgress(event)
	}
}
