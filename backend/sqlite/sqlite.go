// Package sqlite is a kvstore backend on pure-Go SQLite (modernc.org/sqlite).
// Every version is a row in kv_versions; rows of one key come back in insert
// order.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/internal/wire"
)

var (
	ErrNoPath       = errors.New("sqlite backend: path is required")
	ErrNotConnected = errors.New("sqlite backend: not connected")
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_versions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	key        BLOB    NOT NULL,
	created_at INTEGER NOT NULL,
	ttl        INTEGER NOT NULL DEFAULT 0,
	type       BLOB    NOT NULL,
	payload    BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS kv_versions_key ON kv_versions(key, id);`

type Backend struct {
	path  string
	mode  kvstore.ConflictMode
	alloc kvstore.Allocator
	log   kvstore.Logger
	now   func() time.Time

	mu sync.RWMutex // guards db
	db *sql.DB

	writeMu sync.Mutex // serializes MergeOnWrite transactions
}

var (
	_ kvstore.Backend        = (*Backend)(nil)
	_ kvstore.AllocatorAware = (*Backend)(nil)
)

type Config struct {
	// Path of the database file. ":memory:" works but keeps a single connection.
	Path   string
	Mode   kvstore.ConflictMode
	Logger kvstore.Logger
}

func New(cfg Config) (*Backend, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	b := &Backend{
		path:  cfg.Path,
		mode:  cfg.Mode,
		alloc: kvstore.HeapAllocator{},
		log:   cfg.Logger,
		now:   time.Now,
	}
	if b.log == nil {
		b.log = kvstore.NopLogger{}
	}
	return b, nil
}

func (b *Backend) UseAllocator(a kvstore.Allocator) { b.alloc = a }

// Connect opens the database, enables WAL and creates the schema.
// Connecting twice is a no-op.
func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", b.path)
	if err != nil {
		return fmt.Errorf("open sqlite %q: %w", b.path, err)
	}
	if b.path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	// Enable WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}
	b.db = db
	return nil
}

// Disconnect closes the database. Data stays in the file.
func (b *Backend) Disconnect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *Backend) conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, ErrNotConnected
	}
	return b.db, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// load returns the live versions of key and deletes expired rows.
func (b *Backend) load(ctx context.Context, q querier, key kvstore.Key) ([]wire.Record, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, created_at, ttl, type, payload FROM kv_versions WHERE key = ? ORDER BY id`,
		[]byte(key),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := b.now()
	var (
		recs    []wire.Record
		expired []int64
	)
	for rows.Next() {
		var (
			id  int64
			rec wire.Record
		)
		if err := rows.Scan(&id, &rec.Creation, &rec.TTL, &rec.Type, &rec.Payload); err != nil {
			return nil, err
		}
		if rec.Expired(now) {
			expired = append(expired, id)
			continue
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, id := range expired {
		if _, err := q.ExecContext(ctx, `DELETE FROM kv_versions WHERE id = ?`, id); err != nil {
			b.log.Warn("expired row not deleted", kvstore.Fields{"id": id, "err": err})
		}
	}
	return recs, nil
}

func insert(ctx context.Context, q querier, key kvstore.Key, rec wire.Record) error {
	typ, payload := rec.Type, rec.Payload
	if typ == nil {
		typ = []byte{}
	}
	if payload == nil {
		payload = []byte{}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO kv_versions (key, created_at, ttl, type, payload) VALUES (?, ?, ?, ?, ?)`,
		[]byte(key), rec.Creation, rec.TTL, typ, payload,
	)
	return err
}

func (b *Backend) Get(ctx context.Context, key kvstore.Key) ([]*kvstore.Value, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	recs, err := b.load(ctx, db, key)
	if err != nil {
		return nil, err
	}
	return wire.Values(b.alloc, recs)
}

// Set inserts a row, or in MergeOnWrite mode replaces the key's rows with the
// merge result inside one transaction.
func (b *Backend) Set(ctx context.Context, merge kvstore.MergePolicy, key kvstore.Key, v *kvstore.Value) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	if b.mode != kvstore.MergeOnWrite {
		return insert(ctx, db, key, wire.FromValue(v, b.now()))
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	recs, err := b.load(ctx, tx, key)
	if err != nil {
		return err
	}
	stored, err := wire.Values(b.alloc, recs)
	if err != nil {
		return err
	}
	merged, err := kvstore.Resolve(merge, key, stored, v)
	if err != nil {
		return err
	}
	defer merged.Destroy()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv_versions WHERE key = ?`, []byte(key)); err != nil {
		return err
	}
	if err := insert(ctx, tx, key, wire.FromValue(merged, b.now())); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *Backend) Remove(ctx context.Context, key kvstore.Key) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM kv_versions WHERE key = ?`, []byte(key))
	return err
}

// Destroy closes the database if it is still open.
func (b *Backend) Destroy(ctx context.Context) error {
	return b.Disconnect(ctx)
}
