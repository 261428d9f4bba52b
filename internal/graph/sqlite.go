package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mlava/better-tasks/internal/model"
)

const sqliteSchemaVersion = 1

// SQLiteStore keeps the graph in a single sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs
// migrations. Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= sqliteSchemaVersion {
		return nil
	}

	const ddl = `
	CREATE TABLE IF NOT EXISTS blocks (
		id        TEXT PRIMARY KEY,
		title     TEXT,
		page_id   TEXT NOT NULL DEFAULT '',
		parent_id TEXT NOT NULL DEFAULT '',
		ord       INTEGER NOT NULL DEFAULT 0,
		body      TEXT NOT NULL DEFAULT '',
		props     TEXT NOT NULL DEFAULT '{}',
		series_id TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_blocks_parent ON blocks(parent_id, ord);
	CREATE INDEX IF NOT EXISTS idx_blocks_series ON blocks(series_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_blocks_title ON blocks(title) WHERE title IS NOT NULL;
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion))
	return err
}

func (s *SQLiteStore) GenerateID() model.BlockID {
	return model.BlockID(uuid.NewString())
}

func unmarshalProps(raw string) model.Props {
	var p model.Props
	if raw == "" {
		return p
	}
	// Malformed props degrade to empty, mirroring how the host treats
	// unreadable props JSON.
	_ = json.Unmarshal([]byte(raw), &p)
	return p
}

func marshalProps(p model.Props) string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (s *SQLiteStore) readRow(ctx context.Context, q string, args ...any) (model.Block, error) {
	var (
		b       model.Block
		rawProp string
	)
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&b.ID, &b.PageID, &b.Text, &rawProp)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Block{}, ErrNotFound
	}
	if err != nil {
		return model.Block{}, err
	}
	b.Props = unmarshalProps(rawProp)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body FROM blocks WHERE parent_id = ? ORDER BY ord`, b.ID)
	if err != nil {
		return model.Block{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c model.Child
		if err := rows.Scan(&c.ID, &c.Text); err != nil {
			return model.Block{}, err
		}
		b.Children = append(b.Children, c)
	}
	return b, rows.Err()
}

func (s *SQLiteStore) ReadBlock(ctx context.Context, id model.BlockID) (model.Block, error) {
	return s.readRow(ctx, `SELECT id, page_id, body, props FROM blocks WHERE id = ?`, id)
}

func (s *SQLiteStore) FindBlockBySeriesID(ctx context.Context, seriesID string) (model.Block, error) {
	if seriesID == "" {
		return model.Block{}, ErrNotFound
	}
	return s.readRow(ctx, `SELECT id, page_id, body, props FROM blocks WHERE series_id = ? LIMIT 1`, seriesID)
}

func (s *SQLiteStore) WriteText(ctx context.Context, id model.BlockID, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE blocks SET body = ? WHERE id = ?`, text, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) MergeProps(ctx context.Context, id model.BlockID, patch model.PropsPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT props FROM blocks WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	props := unmarshalProps(raw)
	patch.Apply(&props)

	if _, err := tx.ExecContext(ctx,
		`UPDATE blocks SET props = ?, series_id = ? WHERE id = ?`,
		marshalProps(props), props.RT.ID, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ReplaceProps(ctx context.Context, id model.BlockID, props model.Props) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE blocks SET props = ?, series_id = ? WHERE id = ?`,
		marshalProps(props), props.RT.ID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) CreateBlock(ctx context.Context, parent model.BlockID, order int, text string, explicitID model.BlockID) (model.BlockID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var (
		parentTitle sql.NullString
		parentPage  model.BlockID
	)
	err = tx.QueryRowContext(ctx, `SELECT title, page_id FROM blocks WHERE id = ?`, parent).
		Scan(&parentTitle, &parentPage)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	pageID := parentPage
	if parentTitle.Valid && parentTitle.String != "" {
		pageID = parent
	}

	id := explicitID
	if id == "" {
		id = s.GenerateID()
	}
	if order < 0 {
		order = 0
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE blocks SET ord = ord + 1 WHERE parent_id = ? AND ord >= ?`, parent, order); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blocks (id, page_id, parent_id, ord, body, props) VALUES (?, ?, ?, ?, ?, '{}')`,
		id, pageID, parent, order, text); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) DeleteBlock(ctx context.Context, id model.BlockID) error {
	res, err := s.db.ExecContext(ctx, `
		WITH RECURSIVE sub(id) AS (
			SELECT id FROM blocks WHERE id = ?
			UNION ALL
			SELECT b.id FROM blocks b JOIN sub s ON b.parent_id = s.id
		)
		DELETE FROM blocks WHERE id IN (SELECT id FROM sub)`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) FindOrCreatePage(ctx context.Context, title string) (model.BlockID, error) {
	var id model.BlockID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM blocks WHERE title = ?`, title).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = s.GenerateID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO blocks (id, title, page_id, body, props) VALUES (?, ?, ?, '', '{}')`,
		id, title, id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) FindOrCreateHeadingChild(ctx context.Context, parent model.BlockID, heading string) (model.BlockID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body FROM blocks WHERE parent_id = ? ORDER BY ord`, parent)
	if err != nil {
		return "", err
	}
	want := strings.TrimSpace(heading)
	for rows.Next() {
		var (
			id   model.BlockID
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			rows.Close()
			return "", err
		}
		if strings.TrimSpace(body) == want {
			rows.Close()
			return id, nil
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return "", err
	}
	rows.Close()

	return s.CreateBlock(ctx, parent, 0, heading, "")
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
