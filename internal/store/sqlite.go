package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLite keeps every table in a single records table with JSON-encoded fields, which
// keeps the schema-loose behaviour of the remote store.
type SQLite struct {
	DB *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens a SQLite DB. In-memory databases are pinned to one connection so
// every statement sees the same data.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func NewSQLite(db *sql.DB) *SQLite { return &SQLite{DB: db} }

func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	table_name TEXT NOT NULL,
	fields TEXT NOT NULL,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS records_table_name ON records(table_name);
`)
	return err
}

func (s *SQLite) List(ctx context.Context, table string, filter Filter, fields ...string) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, fields, created_at FROM records WHERE table_name = ? ORDER BY seq`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", table, err)
	}

	var all []Record
	for rows.Next() {
		var (
			rec     Record
			encoded string
			created sql.NullString
		)
		if err := rows.Scan(&rec.ID, &encoded, &created); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(encoded), &rec.Fields); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
		}
		rec.CreatedTime = created.String
		all = append(all, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows must be closed before lookups run: an in-memory DB has a single connection.
	lookup := func(id string) (map[string]any, bool) {
		found, err := s.get(ctx, id)
		if err != nil {
			return nil, false
		}
		return found.Fields, true
	}

	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if !filter.Match(rec.Fields, lookup) {
			continue
		}
		rec.Fields = Project(rec.Fields, fields)
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLite) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return Record{}, fmt.Errorf("encode fields: %w", err)
	}

	id := NewRecordID()
	if _, err := s.DB.ExecContext(ctx,
		`INSERT INTO records (id, table_name, fields) VALUES (?, ?, ?)`,
		id, table, string(encoded),
	); err != nil {
		return Record{}, fmt.Errorf("insert into %q: %w", table, err)
	}

	return s.get(ctx, id)
}

// Update merges fields into the stored ones, the way a PATCH does.
func (s *SQLite) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return Record{}, err
	}

	merged := current.Fields
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range fields {
		merged[k] = v
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return Record{}, fmt.Errorf("encode fields: %w", err)
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE records SET fields = ? WHERE id = ? AND table_name = ?`,
		string(encoded), id, table,
	)
	if err != nil {
		return Record{}, fmt.Errorf("update %s in %q: %w", id, table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Record{}, fmt.Errorf("record %s not found in %q", id, table)
	}

	return s.get(ctx, id)
}

func (s *SQLite) Delete(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, table)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM records WHERE table_name = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("delete from %q: %w", table, err)
	}
	return nil
}

func (s *SQLite) get(ctx context.Context, id string) (Record, error) {
	var (
		rec     Record
		encoded string
		created sql.NullString
	)
	row := s.DB.QueryRowContext(ctx, `SELECT id, fields, created_at FROM records WHERE id = ?`, id)
	switch err := row.Scan(&rec.ID, &encoded, &created); err {
	case nil:
	case sql.ErrNoRows:
		return Record{}, fmt.Errorf("record %s not found", id)
	default:
		return Record{}, err
	}

	if err := json.Unmarshal([]byte(encoded), &rec.Fields); err != nil {
		return Record{}, fmt.Errorf("decode fields of %s: %w", id, err)
	}
	rec.CreatedTime = created.String
	return rec, nil
}
