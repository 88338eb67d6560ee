package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/ripple-memory/internal/model"
)

// metadataDB is the metadata artifact: a single-file SQLite database holding
// one row per memory, keyed by its index position. Rollback-journal mode
// keeps the artifact a single file between transactions so it can be copied.
type metadataDB struct {
	db      *sql.DB
	entropy *rand.Rand
}

func openMetadata(path string) (*metadataDB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(delete)&_pragma=synchronous(full)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// every write goes through the store's lock; one connection is enough
	db.SetMaxOpenConns(1)

	m := &metadataDB{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}

func (m *metadataDB) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}

func (m *metadataDB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		position     INTEGER PRIMARY KEY,
		id           TEXT NOT NULL UNIQUE,
		summary      TEXT NOT NULL,
		conversation TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS store_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := m.db.Exec(schema)
	return err
}

// dimension returns the recorded vector dimension, or 0 if none is stored.
func (m *metadataDB) dimension(ctx context.Context) (int, error) {
	var v string
	err := m.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (m *metadataDB) setDimension(ctx context.Context, dim int) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES ('dimension', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(dim))
	return err
}

// insert adds the record at position inside a new transaction and returns
// it uncommitted, so the caller can commit only once the index is on disk.
func (m *metadataDB) insert(ctx context.Context, position int, rec model.Record) (*sql.Tx, error) {
	conv, err := json.Marshal(rec.Conversation)
	if err != nil {
		return nil, fmt.Errorf("encode conversation: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (position, id, summary, conversation, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		position, rec.ID, rec.Summary, string(conv), rec.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return tx, nil
}

// load returns every record ordered by position, together with the
// positions themselves for alignment checks.
func (m *metadataDB) load(ctx context.Context) ([]model.Record, []int, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT position, id, summary, conversation, created_at FROM memories ORDER BY position`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var records []model.Record
	var positions []int
	for rows.Next() {
		pos, rec, err := scanRecord(rows)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
		positions = append(positions, pos)
	}
	return records, positions, rows.Err()
}

func (m *metadataDB) close() error {
	return m.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (int, model.Record, error) {
	var rec model.Record
	var pos int
	var conv, createdAt string

	if err := row.Scan(&pos, &rec.ID, &rec.Summary, &conv, &createdAt); err != nil {
		return 0, rec, err
	}
	if err := json.Unmarshal([]byte(conv), &rec.Conversation); err != nil {
		return 0, rec, fmt.Errorf("decode conversation at position %d: %w", pos, err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return 0, rec, fmt.Errorf("decode timestamp at position %d: %w", pos, err)
	}
	rec.Timestamp = t
	return pos, rec, nil
}
