package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/aqasim81/pgscripts/internal/fingerprint"
	"github.com/aqasim81/pgscripts/internal/ledger"
	"github.com/aqasim81/pgscripts/internal/script"
)

// Condition describes how a script on disk relates to the ledger.
type Condition string

// Conditions reported by Status.
const (
	ConditionApplied Condition = "applied" // recorded with the current hash
	ConditionPending Condition = "pending" // not recorded yet
	ConditionDrifted Condition = "drifted" // recorded with a different hash
	ConditionMissing Condition = "missing" // recorded, but no file on disk
)

// ScriptStatus is one row of a status report.
type ScriptStatus struct {
	SequenceID   int64     `json:"id"`
	Name         string    `json:"file_name"`
	Condition    Condition `json:"condition"`
	Algorithm    string    `json:"algorithm"` // digest behind Hash and RecordedHash
	Hash         string    `json:"hash,omitempty"`
	RecordedHash string    `json:"recorded_hash,omitempty"`
	AppliedAt    time.Time `json:"applied_at,omitzero"`
}

// Status compares every script in set with the ledger without executing
// anything. Ledger entries with no matching file are reported last.
func (r *Runner) Status(ctx context.Context, set *script.Set) ([]ScriptStatus, error) {
	var report []ScriptStatus

	onDisk := make(map[string]struct{}, set.Len())

	for sc, err := range set.All() {
		if err != nil {
			return nil, fmt.Errorf("loading scripts: %w", err)
		}

		onDisk[sc.Name] = struct{}{}

		entry, found, err := r.ledger.Lookup(ctx, sc.Name)
		if err != nil {
			return nil, fmt.Errorf("checking script %s: %w", sc.Name, err)
		}

		st := ScriptStatus{
			SequenceID: sc.SequenceID,
			Name:       sc.Name,
			Condition:  ConditionPending,
			Algorithm:  fingerprint.Algorithm,
			Hash:       sc.Hash,
		}

		if found {
			st.RecordedHash = entry.Hash
			st.AppliedAt = entry.AppliedAt
			st.Condition = ConditionApplied

			if !fingerprint.Equal(entry.Hash, sc.Hash) {
				st.Condition = ConditionDrifted
			}
		}

		report = append(report, st)
	}

	entries, err := r.ledger.Entries(ctx)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if _, ok := onDisk[e.Name]; ok || e.Name == ledger.BootstrapName {
			continue
		}

		report = append(report, ScriptStatus{
			SequenceID:   e.SequenceID,
			Name:         e.Name,
			Condition:    ConditionMissing,
			Algorithm:    fingerprint.Algorithm,
			RecordedHash: e.Hash,
			AppliedAt:    e.AppliedAt,
		})
	}

	return report, nil
}
