package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by FetchByID when no event exists for the
// requested kind and id.
var ErrNotFound = errors.New("event not found")

// Store is the durable event store: one table per event kind, ids
// auto-assigned by the database and unique within the kind. Events are
// append-only; nothing here updates or deletes.
type Store struct {
	db      *sql.DB
	dialect dialect
}

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// Open connects to the event store. Supported drivers are "postgres"
// (lib/pq) and "sqlite3" (embedded, used for local runs and tests).
func Open(driver, dsn string) (*Store, error) {
	var d dialect
	switch driver {
	case "postgres":
		d = dialectPostgres
	case "sqlite3":
		d = dialectSQLite
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if d == dialectPostgres {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	} else {
		// sqlite serializes writers; a single connection avoids
		// table-lock errors under concurrent cycle workers.
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, dialect: d}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTables creates every event table that does not exist yet.
func (s *Store) CreateTables() error {
	kinds := Kinds()
	sort.Strings(kinds)

	for _, kind := range kinds {
		if _, err := s.db.Exec(s.createTableSQL(kind)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", kind, err)
		}
	}
	return nil
}

func (s *Store) createTableSQL(kind string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(kind)
	if s.dialect == dialectPostgres {
		b.WriteString(" (_id BIGSERIAL PRIMARY KEY")
	} else {
		b.WriteString(" (_id INTEGER PRIMARY KEY AUTOINCREMENT")
	}
	for _, col := range schema[kind] {
		sqlType := col.sqlType
		if s.dialect == dialectPostgres {
			switch sqlType {
			case "REAL":
				sqlType = "DOUBLE PRECISION"
			case "INTEGER":
				sqlType = "BIGINT"
			}
		}
		fmt.Fprintf(&b, ", %s %s", col.name, sqlType)
	}
	b.WriteString(")")
	return b.String()
}

func (s *Store) placeholder(n int) string {
	if s.dialect == dialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Insert persists one event and returns its new id. Unknown kinds or
// columns fail with SchemaError before anything is written.
func (s *Store) Insert(kind string, fields map[string]any) (int64, error) {
	valid, err := validColumns(kind)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !valid[name] {
			return 0, &SchemaError{Kind: kind, Column: name}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	placeholders := make([]string, len(names))
	values := make([]any, len(names))
	for i, name := range names {
		placeholders[i] = s.placeholder(i + 1)
		values[i] = fields[name]
	}

	if s.dialect == dialectPostgres {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING _id",
			kind, strings.Join(names, ", "), strings.Join(placeholders, ", "))
		var id int64
		if err := s.db.QueryRow(query, values...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert %s: %w", kind, err)
		}
		return id, nil
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		kind, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	result, err := s.db.Exec(query, values...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s: %w", kind, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id for %s: %w", kind, err)
	}
	return id, nil
}

// FetchByID retrieves one event's fields by kind and id.
func (s *Store) FetchByID(kind string, id int64) (map[string]any, error) {
	if _, ok := schema[kind]; !ok {
		return nil, &SchemaError{Kind: kind}
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE _id = %s", kind, s.placeholder(1))
	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%d: %w", kind, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	fields, err := scanRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s/%d: %w", kind, id, err)
	}
	return fields, nil
}

// FetchAll retrieves every event of a kind in insertion order.
func (s *Store) FetchAll(kind string) ([]map[string]any, error) {
	if _, ok := schema[kind]; !ok {
		return nil, &SchemaError{Kind: kind}
	}

	rows, err := s.db.Query(fmt.Sprintf("SELECT * FROM %s ORDER BY _id", kind))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch all %s: %w", kind, err)
	}
	defer rows.Close()

	var all []map[string]any
	for rows.Next() {
		fields, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		all = append(all, fields)
	}
	return all, rows.Err()
}

// RunQuery executes a read-only ad-hoc query. Anything that is not a
// plain SELECT is rejected.
func (s *Store) RunQuery(query string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(query)
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return nil, errors.New("only SELECT queries are allowed")
	}

	rows, err := s.db.Query(trimmed)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	results := []map[string]any{}
	for rows.Next() {
		fields, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query row: %w", err)
		}
		results = append(results, fields)
	}
	return results, rows.Err()
}

// scanRow reads the current row into a column-name keyed map.
func scanRow(rows *sql.Rows) (map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(cols))
	for i, col := range cols {
		v := values[i]
		// Drivers hand back []byte for some column types; normalize
		// to string so callers and JSON encoding see plain values.
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		fields[col] = v
	}
	return fields, nil
}
