// Package journal records every emitted command unit in a sqlite database,
// so operators can see what the robot was told to do and why.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nadzzz/cozmoagent/internal/iu"
)

const schema = `
CREATE TABLE IF NOT EXISTS commands (
	id          TEXT PRIMARY KEY,
	grounded_in TEXT NOT NULL,
	step_number INTEGER NOT NULL,
	function    TEXT NOT NULL,
	parameters  TEXT NOT NULL,
	tool_result TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS commands_created_at ON commands(created_at);
`

// timeLayout is fixed-width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal is a sqlite-backed command log.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record stores units in one transaction.
func (j *Journal) Record(ctx context.Context, units []iu.CommandUnit) error {
	if len(units) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO commands(id, grounded_in, step_number, function, parameters, tool_result, created_at)
		 VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, u := range units {
		params, err := json.Marshal(u.Parameters)
		if err != nil {
			return fmt.Errorf("marshalling parameters of %s: %w", u.ID, err)
		}
		result := string(u.ToolResult)
		if result == "" {
			result = "{}"
		}
		if _, err := stmt.ExecContext(ctx, u.ID, u.GroundedIn, u.StepNumber, u.Function,
			string(params), result, u.CreatedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("inserting %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit units, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]iu.CommandUnit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, grounded_in, step_number, function, parameters, tool_result, created_at
		 FROM commands ORDER BY created_at DESC, step_number DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var units []iu.CommandUnit
	for rows.Next() {
		var (
			u              iu.CommandUnit
			params, result string
			createdAt      string
		)
		if err := rows.Scan(&u.ID, &u.GroundedIn, &u.StepNumber, &u.Function, &params, &result, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &u.Parameters); err != nil {
			return nil, fmt.Errorf("decoding parameters of %s: %w", u.ID, err)
		}
		u.ToolResult = json.RawMessage(result)
		u.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		units = append(units, u)
	}
	return units, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
