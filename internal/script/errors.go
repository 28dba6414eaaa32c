package script

import "errors"

// ErrMalformedScriptName indicates a .sql file whose name has no numeric prefix
// before the separator.
var ErrMalformedScriptName = errors.New("malformed script name")

// ErrDuplicateSequence indicates two scripts in one directory share a sequence id.
var ErrDuplicateSequence = errors.New("duplicate script sequence id")

// ErrReservedSequence indicates a user script numbered with the sequence id
// reserved for the ledger's bootstrap script.
var ErrReservedSequence = errors.New("script sequence id is reserved")
