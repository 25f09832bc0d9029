package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Schema generations:
//
//	1 - single flat recordings table with a `timestamp` column and inline audio
//	2 - metadata split from audio into recordingMeta + recordingBlobs
//	3 - the split abandoned: recombined into one recordings table
//	4 - timestamp replaced by createdAt/updatedAt; transformations, pipelines,
//	    pipelineRuns, transformationResults tables added
const CurrentSchemaVersion = 4

// Migration is one ledger entry: the procedure that upgrades the on-disk
// schema from generation From to generation To. Apply runs inside a
// transaction that also stamps user_version, so a failing step rolls the
// version back together with the data.
type Migration struct {
	From  int
	To    int
	Apply func(tx *sql.Tx) error
}

// Ledger declares the migration sequence as data rather than code branches.
// New generations are additive: append an entry, bump CurrentSchemaVersion.
var Ledger = []Migration{
	{From: 1, To: 2, Apply: migrateV1SplitBlobs},
	{From: 2, To: 3, Apply: migrateV2RecombineBlobs},
	{From: 3, To: 4, Apply: migrateV3TimestampsAndPipelines},
}

// DiagnosticDump is the JSON document captured when a migration step fails:
// the current (possibly partially-migrated) contents of every table that
// existed before the step, keyed by table name. It is handed to the user as
// the manual-recovery escape hatch; the transaction itself is rolled back.
type DiagnosticDump struct {
	FromVersion int                         `json:"fromVersion"`
	ToVersion   int                         `json:"toVersion"`
	Failure     string                      `json:"failure"`
	Tables      map[string][]map[string]any `json:"tables"`
}

// WriteFile serializes the dump as indented JSON, creating parent
// directories as needed.
func (d *DiagnosticDump) WriteFile(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal diagnostic dump: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dump directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write diagnostic dump: %w", err)
	}
	return nil
}

// Migrate inspects the persisted schema version and applies, in strictly
// increasing order, every ledger entry between it and CurrentSchemaVersion.
//
// A fresh file (user_version 0, no tables) receives the current schema
// directly. On step failure the engine snapshots the pre-step tables into a
// DiagnosticDump, rolls the transaction back, and returns a KindMigration
// error carrying the dump. The store is either fully migrated or untouched.
func Migrate(db *sql.DB, ledger []Migration) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return transportErr("failed to read schema version", err)
	}

	if version == 0 {
		return initSchema(db)
	}

	if version > CurrentSchemaVersion {
		return newError(KindMigration, "database is too new",
			fmt.Sprintf("on-disk schema version %d exceeds supported version %d", version, CurrentSchemaVersion), nil)
	}

	for _, m := range ledger {
		if m.To <= version {
			continue
		}
		if m.From != version {
			return newError(KindMigration, "migration ledger gap",
				fmt.Sprintf("no migration from version %d (next entry starts at %d)", version, m.From), nil)
		}

		if err := applyMigration(db, m); err != nil {
			return err
		}
		version = m.To
		slog.Info("schema migrated", "from", m.From, "to", m.To)
	}

	if version != CurrentSchemaVersion {
		return newError(KindMigration, "incomplete migration ledger",
			fmt.Sprintf("ledger ends at version %d, current is %d", version, CurrentSchemaVersion), nil)
	}

	return nil
}

// initSchema installs the current schema into a fresh database file.
func initSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return transportErr("failed to begin schema transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return transportErr("failed to install schema", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
		return transportErr("failed to stamp schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return transportErr("failed to commit schema", err)
	}
	return nil
}

// applyMigration runs one ledger entry in its own transaction. The version
// stamp participates in the transaction, so rollback restores both data and
// version. On failure the pre-step table contents are snapshotted from
// inside the failing transaction before rollback.
func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return transportErr("failed to begin migration transaction", err)
	}
	defer tx.Rollback()

	preTables, err := listTables(tx)
	if err != nil {
		return transportErr("failed to list tables before migration", err)
	}

	if applyErr := m.Apply(tx); applyErr != nil {
		dump := snapshotTables(tx, preTables, m, applyErr)
		// Rollback happens via the deferred call; the error re-raised here
		// forces the caller to treat initialization as failed.
		return &Error{
			Kind:   KindMigration,
			Title:  fmt.Sprintf("migration v%d→v%d failed", m.From, m.To),
			Detail: "the store was rolled back to its pre-migration state; export the diagnostic dump or reset the store",
			Cause:  applyErr,
			Dump:   dump,
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.To)); err != nil {
		return transportErr("failed to stamp schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return transportErr("failed to commit migration", err)
	}
	return nil
}

// listTables returns the user table names visible in the transaction.
func listTables(tx *sql.Tx) ([]string, error) {
	rows, err := tx.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// snapshotTables captures whatever the listed tables currently hold. Tables
// the failing step already dropped are skipped; snapshotting itself must not
// fail the recovery path, so per-table errors degrade to omission.
func snapshotTables(tx *sql.Tx, tables []string, m Migration, cause error) *DiagnosticDump {
	dump := &DiagnosticDump{
		FromVersion: m.From,
		ToVersion:   m.To,
		Failure:     cause.Error(),
		Tables:      make(map[string][]map[string]any, len(tables)),
	}
	for _, table := range tables {
		rows, err := readAllRows(tx, table)
		if err != nil {
			slog.Warn("diagnostic dump skipped table", "table", table, "error", err)
			continue
		}
		dump.Tables[table] = rows
	}
	return dump
}

// readAllRows reads a whole table into generic rows, column names preserved.
// TEXT values come back from the driver as []byte; they are converted to
// strings so the diagnostic dump stays human-readable (blobs stay raw and
// serialize as base64).
func readAllRows(tx *sql.Tx, table string) ([]map[string]any, error) {
	rows, err := tx.Query("SELECT * FROM " + table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok && isTextColumn(colTypes[i].DatabaseTypeName()) {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func isTextColumn(declType string) bool {
	switch strings.ToUpper(declType) {
	case "TEXT", "CLOB", "VARCHAR", "CHAR":
		return true
	default:
		return false
	}
}

// migrateV1SplitBlobs implements v1→v2: audio payloads move out of the flat
// recordings table into a blob-keyed side table (the attempted optimization).
func migrateV1SplitBlobs(tx *sql.Tx) error {
	rows, err := readAllRows(tx, "recordings")
	if err != nil {
		return fmt.Errorf("read v1 recordings: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE recordingMeta (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL DEFAULT '',
			subtitle        TEXT NOT NULL DEFAULT '',
			timestamp       INTEGER NOT NULL,
			transcribedText TEXT NOT NULL DEFAULT '',
			transcriptionStatus TEXT NOT NULL DEFAULT 'UNPROCESSED'
		);
		CREATE TABLE recordingBlobs (
			recordingId TEXT PRIMARY KEY,
			audio       BLOB
		);
	`); err != nil {
		return fmt.Errorf("create v2 tables: %w", err)
	}

	for _, row := range rows {
		if _, err := tx.Exec(`
			INSERT INTO recordingMeta (id, title, subtitle, timestamp, transcribedText, transcriptionStatus)
			VALUES (?, ?, ?, ?, ?, ?)
		`, row["id"], row["title"], row["subtitle"], row["timestamp"], row["transcribedText"], row["transcriptionStatus"]); err != nil {
			return fmt.Errorf("insert recording meta %v: %w", row["id"], err)
		}
		if row["audio"] != nil {
			if _, err := tx.Exec(`
				INSERT INTO recordingBlobs (recordingId, audio) VALUES (?, ?)
			`, row["id"], row["audio"]); err != nil {
				return fmt.Errorf("insert recording blob %v: %w", row["id"], err)
			}
		}
	}

	if _, err := tx.Exec("DROP TABLE recordings"); err != nil {
		return fmt.Errorf("drop v1 recordings: %w", err)
	}
	return nil
}

// migrateV2RecombineBlobs implements v2→v3: the metadata/blob split is
// abandoned and recordings become one table again, audio inline.
func migrateV2RecombineBlobs(tx *sql.Tx) error {
	meta, err := readAllRows(tx, "recordingMeta")
	if err != nil {
		return fmt.Errorf("read v2 recording meta: %w", err)
	}
	blobs, err := readAllRows(tx, "recordingBlobs")
	if err != nil {
		return fmt.Errorf("read v2 recording blobs: %w", err)
	}

	audioByID := make(map[any]any, len(blobs))
	for _, b := range blobs {
		audioByID[b["recordingId"]] = b["audio"]
	}

	if _, err := tx.Exec(`
		CREATE TABLE recordings (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL DEFAULT '',
			subtitle        TEXT NOT NULL DEFAULT '',
			timestamp       INTEGER NOT NULL,
			transcribedText TEXT NOT NULL DEFAULT '',
			transcriptionStatus TEXT NOT NULL DEFAULT 'UNPROCESSED',
			audio           BLOB
		)
	`); err != nil {
		return fmt.Errorf("create v3 recordings: %w", err)
	}

	for _, row := range meta {
		if _, err := tx.Exec(`
			INSERT INTO recordings (id, title, subtitle, timestamp, transcribedText, transcriptionStatus, audio)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, row["id"], row["title"], row["subtitle"], row["timestamp"],
			row["transcribedText"], row["transcriptionStatus"], audioByID[row["id"]]); err != nil {
			return fmt.Errorf("insert recombined recording %v: %w", row["id"], err)
		}
	}

	if _, err := tx.Exec("DROP TABLE recordingMeta"); err != nil {
		return fmt.Errorf("drop recordingMeta: %w", err)
	}
	if _, err := tx.Exec("DROP TABLE recordingBlobs"); err != nil {
		return fmt.Errorf("drop recordingBlobs: %w", err)
	}
	return nil
}

// migrateV3TimestampsAndPipelines implements v3→v4: the single timestamp
// splits into createdAt/updatedAt (both seeded from it) and the pipeline
// tables are introduced via the embedded current schema.
func migrateV3TimestampsAndPipelines(tx *sql.Tx) error {
	rows, err := readAllRows(tx, "recordings")
	if err != nil {
		return fmt.Errorf("read v3 recordings: %w", err)
	}

	if _, err := tx.Exec("DROP TABLE recordings"); err != nil {
		return fmt.Errorf("drop v3 recordings: %w", err)
	}
	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("install v4 schema: %w", err)
	}

	for _, row := range rows {
		if _, err := tx.Exec(`
			INSERT INTO recordings (id, title, subtitle, createdAt, updatedAt, transcribedText, transcriptionStatus, audio)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, row["id"], row["title"], row["subtitle"], row["timestamp"], row["timestamp"],
			row["transcribedText"], row["transcriptionStatus"], row["audio"]); err != nil {
			return fmt.Errorf("insert v4 recording %v: %w", row["id"], err)
		}
	}
	return nil
}
