package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aqasim81/pgscripts/internal/ledger"
)

// errSyntax stands in for a database rejecting a script body.
var errSyntax = errors.New(`syntax error at or near "INVALID"`)

// fakeLedger is an in-memory ledger. Writes made inside WithinTx are staged
// and only become visible when the callback succeeds, like a real transaction.
type fakeLedger struct {
	entries   map[string]ledger.Entry
	executed  []string // committed bodies, in order
	lookups   int
	lookupErr error
	onExecute func() // called for every body that executes successfully
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]ledger.Entry)}
}

func (f *fakeLedger) Lookup(_ context.Context, name string) (ledger.Entry, bool, error) {
	f.lookups++

	if f.lookupErr != nil {
		return ledger.Entry{}, false, f.lookupErr
	}

	e, ok := f.entries[name]

	return e, ok, nil
}

func (f *fakeLedger) LookupSequence(_ context.Context, id int64) (ledger.Entry, bool, error) {
	if f.lookupErr != nil {
		return ledger.Entry{}, false, f.lookupErr
	}

	for _, e := range f.entries {
		if e.SequenceID == id {
			return e, true, nil
		}
	}

	return ledger.Entry{}, false, nil
}

func (f *fakeLedger) Entries(_ context.Context) ([]ledger.Entry, error) {
	out := make([]ledger.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SequenceID < out[j].SequenceID })

	return out, nil
}

func (f *fakeLedger) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx := &fakeTx{parent: f, staged: make(map[string]ledger.Entry)}

	if err := fn(tx); err != nil {
		return err
	}

	for name, e := range tx.staged {
		f.entries[name] = e
	}

	f.executed = append(f.executed, tx.executed...)

	return nil
}

type fakeTx struct {
	parent   *fakeLedger
	staged   map[string]ledger.Entry
	executed []string
}

func (t *fakeTx) Execute(_ context.Context, body []byte) error {
	if strings.Contains(string(body), "INVALID") {
		return fmt.Errorf("executing script body: %w", errSyntax)
	}

	t.executed = append(t.executed, string(body))

	if t.parent.onExecute != nil {
		t.parent.onExecute()
	}

	return nil
}

func (t *fakeTx) Record(_ context.Context, e ledger.Entry) error {
	if _, ok := t.parent.entries[e.Name]; ok {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateEntry, e.Name)
	}

	for _, existing := range t.parent.entries {
		if existing.SequenceID == e.SequenceID {
			return &ledger.SequenceCollisionError{SequenceID: e.SequenceID, Name: e.Name}
		}
	}

	e.AppliedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	t.staged[e.Name] = e

	return nil
}
