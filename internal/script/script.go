package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aqasim81/pgscripts/internal/fingerprint"
)

// Extension is the file extension recognized as a script.
const Extension = ".sql"

// Separator splits the numeric prefix from the descriptive part of a name,
// as in 001__create_users.sql.
const Separator = "__"

// Script is one candidate unit of work read from disk.
type Script struct {
	SequenceID int64  // 1 for "001__create_users.sql"
	Name       string // "001__create_users.sql", the ledger identity key
	Body       []byte // raw file contents, executed as one batch
	Hash       string // fingerprint of Body
	Path       string // where Body was read from
}

// New builds a Script from a base name and its raw contents.
func New(name string, body []byte) (Script, error) {
	seq, err := ParseName(name)
	if err != nil {
		return Script{}, err
	}

	return Script{
		SequenceID: seq,
		Name:       name,
		Body:       body,
		Hash:       fingerprint.Sum(body),
	}, nil
}

// ParseName extracts the sequence id from a script file name.
func ParseName(name string) (int64, error) {
	prefix, _, found := strings.Cut(name, Separator)
	if !found || prefix == "" {
		return 0, fmt.Errorf("%w: %q has no %q separator", ErrMalformedScriptName, name, Separator)
	}

	for _, r := range prefix {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q prefix %q is not numeric", ErrMalformedScriptName, name, prefix)
		}
	}

	seq, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrMalformedScriptName, name, err)
	}

	return seq, nil
}

// IsScript reports whether a file name carries the script extension.
func IsScript(name string) bool {
	return strings.HasSuffix(name, Extension)
}
