package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore is a DurableStore keeping one JSON document per row.
// Tables are created on first use.
type SQLiteStore struct {
	db *sql.DB

	mu     sync.Mutex
	tables map[string]bool
	closed bool
}

var _ DurableStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("memory: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open sqlite db: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" is per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, tables: make(map[string]bool)}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("memory: init sqlite: %w", err)
		}
	}
	for _, t := range []string{TableSessions, TableSessionMemory, TableEmotionScores, TableEvaluationReports} {
		if err := s.ensureTable(context.Background(), t); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ensureTable(ctx context.Context, table string) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidName, table)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if s.tables[table] {
		return nil
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);`, table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("memory: create table %s: %w", table, err)
	}
	s.tables[table] = true
	return nil
}

// Upsert inserts rec or replaces the row with the same id. A missing id is
// filled in on rec with a new UUID.
func (s *SQLiteStore) Upsert(ctx context.Context, table string, rec Record) error {
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}
	id := rec.String("id")
	if id == "" {
		id = uuid.NewString()
		rec["id"] = id
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memory: encode %s record: %w", table, err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %q (id, doc, updated_at_ms) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at_ms = excluded.updated_at_ms`, table)
	if _, err := s.db.ExecContext(ctx, stmt, id, string(doc), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("memory: upsert %s: %w", table, err)
	}
	return nil
}

// Select returns the records matching f. Without OrderBy, rows come back in
// insertion order.
func (s *SQLiteStore) Select(ctx context.Context, table string, f Filter) ([]Record, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	keys := make([]string, 0, len(f.Equals))
	for k := range f.Equals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !identRe.MatchString(k) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, k)
		}
		where = append(where, fmt.Sprintf(`json_extract(doc, '$.%s') = ?`, k))
		args = append(args, sqlValue(f.Equals[k]))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT doc FROM %q`, table)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	if f.OrderBy != "" {
		if !identRe.MatchString(f.OrderBy) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, f.OrderBy)
		}
		fmt.Fprintf(&b, ` ORDER BY json_extract(doc, '$.%s') %s, rowid %s`, f.OrderBy, dir, dir)
	} else {
		fmt.Fprintf(&b, ` ORDER BY rowid %s`, dir)
	}
	if f.Limit > 0 {
		fmt.Fprintf(&b, ` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("memory: select %s: %w", table, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("memory: scan %s: %w", table, err)
		}
		rec := Record{}
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("memory: decode %s record: %w", table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

// sqlValue maps a filter value to what json_extract yields for it.
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case fmt.Stringer:
		return x.String()
	}
	return v
}
