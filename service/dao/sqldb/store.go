package sqldb

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/viant/vigil/service/dao"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store persists a collection as one row per record in a two column table.
type Store[K cmp.Ordered, T any] struct {
	db      *sql.DB
	table   string
	dialect Dialect
	key     dao.KeyFunc[K, T]
	mu      sync.Mutex
}

// Ensure Store implements dao.Snapshot
var _ dao.Snapshot[string, struct{}] = (*Store[string, struct{}])(nil)

// Open opens a database for the given driver ("sqlite" or "postgres").
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// a single connection keeps in-memory databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// New creates the store, creating the table when missing.
func New[K cmp.Ordered, T any](ctx context.Context, db *sql.DB, dialect Dialect, table string, key dao.KeyFunc[K, T]) (*Store[K, T], error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	if key == nil {
		return nil, fmt.Errorf("key selector cannot be nil")
	}
	s := &Store[K, T]{db: db, table: table, dialect: dialect, key: key}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store[K, T]) migrate(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Load reads every row; a row that cannot be decoded fails the whole load.
func (s *Store[K, T]) Load(ctx context.Context) (map[K]*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, payload FROM %s ORDER BY id", s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.table, err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[K]*T)
	for rows.Next() {
		var id, payload string
		if err = rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.table, err)
		}
		record := new(T)
		if err = json.Unmarshal([]byte(payload), record); err != nil {
			return nil, fmt.Errorf("%w: %s row %s: %v", dao.ErrCorrupt, s.table, id, err)
		}
		result[s.key(record)] = record
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.table, err)
	}
	return result, nil
}

// SaveAll replaces the table content in a single transaction.
func (s *Store[K, T]) SaveAll(ctx context.Context, records map[K]*T) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.table, err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (id, payload) VALUES (%s, %s)", s.table, s.placeholder(1), s.placeholder(2))
	for _, k := range dao.SortedKeys(records) {
		record := records[k]
		if record == nil {
			continue
		}
		payload, mErr := json.Marshal(record)
		if mErr != nil {
			err = fmt.Errorf("failed to encode record %v: %w", k, mErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, insert, fmt.Sprint(k), string(payload)); err != nil {
			return fmt.Errorf("failed to insert record %v: %w", k, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", s.table, err)
	}
	return nil
}

func (s *Store[K, T]) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
