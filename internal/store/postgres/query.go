package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/MrWong99/dbbridge/internal/store"
)

// Row is a single result row. Keys iterate (and marshal to JSON) in column
// order.
type Row = *orderedmap.OrderedMap[string, any]

// Result is the full outcome of [Store.Query].
type Result struct {
	// Columns lists the result column names in select-list order. Empty for
	// statements that return no rows (INSERT without RETURNING, DDL, …).
	Columns []string

	// Rows holds every returned row. Never nil.
	Rows []Row

	// RowCount is len(Rows) for row-returning statements and the number of
	// affected rows otherwise.
	RowCount int64
}

// TableInfo is one entry of [Store.Tables].
type TableInfo struct {
	Name string `json:"table_name" db:"table_name"`
	Type string `json:"table_type" db:"table_type"`
}

// Column describes one column of a table as reported by
// information_schema.columns.
type Column struct {
	Name      string  `json:"column_name" db:"column_name"`
	DataType  string  `json:"data_type" db:"data_type"`
	Nullable  string  `json:"is_nullable" db:"is_nullable"`
	Default   *string `json:"column_default" db:"column_default"`
	MaxLength *int32  `json:"character_maximum_length" db:"character_maximum_length"`
}

// Query executes sql with positional params ($1, $2, …) and returns the
// complete result set. It fails with [store.ErrNotConnected] on a
// Disconnected store and with a [*store.QueryError] when the server rejects
// the statement. Nothing is retried.
func (s *Store) Query(ctx context.Context, sql string, params ...any) (*Result, error) {
	pool, err := s.currentPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, s.queryErr("query", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &Result{
		Columns: make([]string, len(fields)),
		Rows:    []Row{},
	}
	for i, f := range fields {
		res.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, s.queryErr("query", err)
		}
		row := orderedmap.New[string, any]()
		for i, v := range values {
			row.Set(res.Columns[i], jsonValue(v))
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryErr("query", err)
	}

	if len(fields) > 0 {
		res.RowCount = int64(len(res.Rows))
	} else {
		res.RowCount = rows.CommandTag().RowsAffected()
	}
	return res, nil
}

// jsonValue converts driver values that encoding/json would render
// unhelpfully into their textual form.
func jsonValue(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	default:
		return v
	}
}

// ListTables returns the names of all tables in the public schema in
// lexical order.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	return collect(ctx, s, "list tables",
		`SELECT tablename::text
		   FROM pg_tables
		  WHERE schemaname = $1
		  ORDER BY tablename`,
		pgx.RowTo[string], DefaultSchema)
}

// Tables returns every table and view of schema with its type, ordered by
// name. An empty schema means [DefaultSchema].
func (s *Store) Tables(ctx context.Context, schema string) ([]TableInfo, error) {
	return collect(ctx, s, "list tables",
		`SELECT table_name::text AS table_name,
		        table_type::text AS table_type
		   FROM information_schema.tables
		  WHERE table_schema = $1
		  ORDER BY table_name`,
		pgx.RowToStructByName[TableInfo], schemaOrDefault(schema))
}

// DescribeTable returns the columns of schema.table in declaration order.
// An unknown table yields an empty slice, not an error.
func (s *Store) DescribeTable(ctx context.Context, schema, table string) ([]Column, error) {
	return collect(ctx, s, "describe table",
		`SELECT column_name::text              AS column_name,
		        data_type::text                AS data_type,
		        is_nullable::text              AS is_nullable,
		        column_default::text           AS column_default,
		        character_maximum_length::int4 AS character_maximum_length
		   FROM information_schema.columns
		  WHERE table_schema = $1 AND table_name = $2
		  ORDER BY ordinal_position`,
		pgx.RowToStructByName[Column], schemaOrDefault(schema), table)
}

// CountRows returns the number of rows in schema.table. Both identifiers
// are quoted, so mixed-case names must be passed exactly as stored.
func (s *Store) CountRows(ctx context.Context, schema, table string) (int64, error) {
	pool, err := s.currentPool()
	if err != nil {
		return 0, err
	}

	sql := "SELECT COUNT(*) FROM " + pgx.Identifier{schemaOrDefault(schema), table}.Sanitize()
	var n int64
	if err := pool.QueryRow(ctx, sql).Scan(&n); err != nil {
		return 0, s.queryErr("count", err)
	}
	return n, nil
}

// ListDatabases returns the names of all non-template databases in lexical
// order. The connecting role needs CONNECT visibility on pg_database.
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	return collect(ctx, s, "list databases",
		`SELECT datname::text
		   FROM pg_database
		  WHERE datistemplate = false
		  ORDER BY datname`,
		pgx.RowTo[string])
}

// collect runs an introspection query and scans every row with fn.
func collect[T any](ctx context.Context, s *Store, op, sql string, fn pgx.RowToFunc[T], args ...any) ([]T, error) {
	pool, err := s.currentPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.queryErr(op, err)
	}
	out, err := pgx.CollectRows(rows, fn)
	if err != nil {
		return nil, s.queryErr(op, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (s *Store) queryErr(op string, err error) error {
	slog.Warn("postgres store: query error", "op", op, "err", err)
	return &store.QueryError{Backend: backendName, Op: op, Err: err}
}

func schemaOrDefault(schema string) string {
	if schema == "" {
		return DefaultSchema
	}
	return schema
}
