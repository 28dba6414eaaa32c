package script

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// BootstrapSequence is the sequence id of the script that creates the
// ledger table. Scripts loaded from disk may not use it.
const BootstrapSequence int64 = 0

// entry is a validated directory listing row; the body is read on demand.
type entry struct {
	seq  int64
	name string
}

// Set is an ordered collection of scripts discovered in a directory.
// Names are validated when the Set is built; bodies are read each time the
// Set is iterated.
type Set struct {
	fsys    fs.FS
	dir     string
	display string
	entries []entry
}

// Load scans dir on the local filesystem for scripts.
func Load(dir string) (*Set, error) {
	return load(os.DirFS(dir), ".", dir)
}

// LoadFS scans dir inside fsys for scripts. Entries without the .sql
// extension and subdirectories are ignored. A .sql file without a numeric
// prefix fails the whole load.
func LoadFS(fsys fs.FS, dir string) (*Set, error) {
	return load(fsys, dir, dir)
}

func load(fsys fs.FS, dir, display string) (*Set, error) {
	dirEntries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading script directory %s: %w", display, err)
	}

	entries, err := scanEntries(dirEntries)
	if err != nil {
		return nil, err
	}

	return &Set{fsys: fsys, dir: dir, display: display, entries: entries}, nil
}

// scanEntries filters, parses and orders directory entries.
func scanEntries(dirEntries []fs.DirEntry) ([]entry, error) {
	var entries []entry

	for _, de := range dirEntries {
		if de.IsDir() || !IsScript(de.Name()) {
			continue
		}

		seq, err := ParseName(de.Name())
		if err != nil {
			return nil, err
		}

		if err := checkReserved(de.Name(), seq); err != nil {
			return nil, err
		}

		entries = append(entries, entry{seq: seq, name: de.Name()})
	}

	sortEntries(entries)

	for i := 1; i < len(entries); i++ {
		if entries[i].seq == entries[i-1].seq {
			return nil, fmt.Errorf("%w: %d used by %s and %s",
				ErrDuplicateSequence, entries[i].seq, entries[i-1].name, entries[i].name)
		}
	}

	return entries, nil
}

func checkReserved(name string, seq int64) error {
	if seq == BootstrapSequence {
		return fmt.Errorf("%w: %s (id %d belongs to the ledger bootstrap)", ErrReservedSequence, name, seq)
	}

	return nil
}

// sortEntries orders by sequence id, then name. With zero-padded prefixes
// this is the same as sorting by name.
func sortEntries(entries []entry) {
	slices.SortStableFunc(entries, func(a, b entry) int {
		if a.seq != b.seq {
			if a.seq < b.seq {
				return -1
			}

			return 1
		}

		return strings.Compare(a.name, b.name)
	})
}

// Len returns the number of scripts in the set.
func (s *Set) Len() int {
	return len(s.entries)
}

// Names returns the script names in application order.
func (s *Set) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}

	return names
}

// Dir returns the directory the set was loaded from.
func (s *Set) Dir() string {
	return s.display
}

// All yields the scripts in ascending sequence order, reading each body as it
// is reached. Iteration stops after the first read error.
func (s *Set) All() iter.Seq2[Script, error] {
	return func(yield func(Script, error) bool) {
		for _, e := range s.entries {
			sc, err := s.read(e)
			if !yield(sc, err) || err != nil {
				return
			}
		}
	}
}

func (s *Set) read(e entry) (Script, error) {
	p := path.Join(s.dir, e.name)

	body, err := fs.ReadFile(s.fsys, p)
	if err != nil {
		return Script{}, fmt.Errorf("reading script %s: %w", e.name, err)
	}

	sc, err := New(e.name, body)
	if err != nil {
		return Script{}, err
	}

	sc.Path = filepath.Join(s.display, e.name)

	return sc, nil
}

// ReadFile reads a single script from the local filesystem. Like Load, it
// rejects the bootstrap sequence id.
func ReadFile(p string) (Script, error) {
	body, err := os.ReadFile(p)
	if err != nil {
		return Script{}, fmt.Errorf("reading script file %s: %w", p, err)
	}

	sc, err := New(filepath.Base(p), body)
	if err != nil {
		return Script{}, err
	}

	if err := checkReserved(sc.Name, sc.SequenceID); err != nil {
		return Script{}, err
	}

	sc.Path = p

	return sc, nil
}

// ReadFS reads a single script from fsys. Any sequence id is accepted,
// including the bootstrap's.
func ReadFS(fsys fs.FS, p string) (Script, error) {
	body, err := fs.ReadFile(fsys, p)
	if err != nil {
		return Script{}, fmt.Errorf("reading script file %s: %w", p, err)
	}

	sc, err := New(path.Base(p), body)
	if err != nil {
		return Script{}, err
	}

	sc.Path = p

	return sc, nil
}
