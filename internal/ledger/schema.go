package ledger

import (
	"embed"

	"github.com/aqasim81/pgscripts/internal/script"
)

// TableName is the ledger table created by the bootstrap script.
const TableName = "pg_scripts"

// BootstrapName is the ledger name of the bootstrap script.
const BootstrapName = "000__create_pg_scripts.sql"

// sequenceConstraint is the name PostgreSQL gives the UNIQUE constraint on
// pg_scripts.id; the primary key on file_name is pg_scripts_pkey.
const sequenceConstraint = TableName + "_id_key"

const bootstrapPath = "sql/" + BootstrapName

//go:embed sql/000__create_pg_scripts.sql
var bootstrapFS embed.FS

// BootstrapScript returns the script that creates the ledger table.
// It is applied without hash verification and then records itself.
func BootstrapScript() (script.Script, error) {
	return script.ReadFS(bootstrapFS, bootstrapPath)
}

const tableExistsSQL = `SELECT EXISTS (
    SELECT 1
    FROM information_schema.tables
    WHERE table_schema = current_schema()
      AND table_name = $1
)`

const lookupSQL = `SELECT id, file_name, hash, applied_at, duration_ms
FROM pg_scripts
WHERE file_name = $1`

const lookupSequenceSQL = `SELECT id, file_name, hash, applied_at, duration_ms
FROM pg_scripts
WHERE id = $1`

const entriesSQL = `SELECT id, file_name, hash, applied_at, duration_ms
FROM pg_scripts
ORDER BY id`

const recordSQL = `INSERT INTO pg_scripts (id, file_name, hash, duration_ms)
VALUES ($1, $2, $3, $4)`
