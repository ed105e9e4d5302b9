package snapshot

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

const metadataKey = "snapshot"

// SQLiteBackend keeps one row per giveaway and per subscription.
type SQLiteBackend struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Load(ctx context.Context) (*Document, error) {
	doc := NewDocument()

	rows, err := b.db.QueryContext(ctx, `SELECT id, doc FROM giveaways`)
	if err != nil {
		return nil, fmt.Errorf("query giveaways: %w", err)
	}
	defer rows.Close()
	raw := map[string]json.RawMessage{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		raw[id] = json.RawMessage(body)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := b.db.QueryContext(ctx, `SELECT guild_id, doc FROM subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer subRows.Close()
	subRaw := map[string]json.RawMessage{}
	for subRows.Next() {
		var id, body string
		if err := subRows.Scan(&id, &body); err != nil {
			return nil, err
		}
		subRaw[id] = json.RawMessage(body)
	}
	if err := subRows.Err(); err != nil {
		return nil, err
	}

	var meta string
	err = b.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, metadataKey).Scan(&meta)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query metadata: %w", err)
	}

	// Reuse Decode so every backend normalizes records the same way.
	assembled, err := json.Marshal(map[string]any{
		"giveaways":     raw,
		"subscriptions": subRaw,
		"metadata":      json.RawMessage(orEmptyObject(meta)),
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 && len(subRaw) == 0 && meta == "" {
		return doc, nil
	}
	return Decode(assembled)
}

func (b *SQLiteBackend) Save(ctx context.Context, doc *Document) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM giveaways`, `DELETE FROM subscriptions`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	for id, g := range doc.Giveaways {
		body, err := json.Marshal(g)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO giveaways (id, doc) VALUES (?, ?)`, id, string(body)); err != nil {
			return fmt.Errorf("save giveaway %s: %w", id, err)
		}
	}
	for id, s := range doc.Subscriptions {
		body, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO subscriptions (guild_id, doc) VALUES (?, ?)`, id, string(body)); err != nil {
			return fmt.Errorf("save subscription %s: %w", id, err)
		}
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metadataKey, string(meta)); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}

	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func orEmptyObject(s string) string {
	if s == "" {
		return "{}"
	}
	return s
}
