package archive

import (
	"database/sql"
	"time"
)

func buildCreateExportsTable() string {
	return `CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exported_at TEXT NOT NULL,
		karts INTEGER NOT NULL,
		teams INTEGER NOT NULL,
		payload BLOB NOT NULL);`
}

func buildInsertExport(e Entry, payload []byte) (string, []any) {
	return `INSERT INTO exports (exported_at, karts, teams, payload) VALUES (?, ?, ?, ?)`,
		[]any{e.ExportedAt.Format(time.RFC3339Nano), e.Karts, e.Teams, payload}
}

func buildSelectExports() (string, func(*sql.Rows) ([]Entry, error)) {
	fields := "id, exported_at, karts, teams, length(payload)"
	return `SELECT ` + fields + ` FROM exports ORDER BY id DESC LIMIT ?`, processSelectExportsRows
}

func buildSelectPayload() string {
	return `SELECT payload FROM exports WHERE id = ?`
}

func processSelectExportsRows(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &at, &e.Karts, &e.Teams, &e.Bytes); err != nil {
			return entries, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return entries, err
		}
		e.ExportedAt = parsed
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
