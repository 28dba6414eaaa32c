// Package pgscripts applies versioned SQL scripts to a PostgreSQL database
// exactly once.
//
// Scripts live in a directory and are named <digits>__<description>.sql, for
// example 001__create_users.sql. They are applied in ascending order of their
// numeric prefix. Each script runs in its own transaction together with the
// insert of its row in the pg_scripts ledger, so a script is either applied
// and recorded or neither.
//
// The ledger stores the SHA-256 of every applied file. A rerun skips scripts
// whose hash matches and fails with ErrHashMismatch if a recorded script was
// edited afterwards. There are no down scripts.
//
//	h, err := pgscripts.Open(ctx, pgscripts.ConfigFromEnv())
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//
//	summary, err := h.ApplyDir(ctx, "db/scripts")
package pgscripts
