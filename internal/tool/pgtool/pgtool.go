// Package pgtool provides the relational tool set: SQL execution and schema
// introspection bound to one Postgres Store Handle.
//
// Use [NewTools] to obtain the tools for registration in a [tool.Catalog].
package pgtool

import (
	"context"

	"github.com/MrWong99/dbbridge/internal/store/postgres"
	"github.com/MrWong99/dbbridge/internal/tool"
)

// Store is the subset of the relational Store Handle the tools call.
// [*postgres.Store] satisfies it.
type Store interface {
	Query(ctx context.Context, sql string, params ...any) (*postgres.Result, error)
	Tables(ctx context.Context, schema string) ([]postgres.TableInfo, error)
	DescribeTable(ctx context.Context, schema, table string) ([]postgres.Column, error)
	CountRows(ctx context.Context, schema, table string) (int64, error)
	ListDatabases(ctx context.Context) ([]string, error)
}

var _ Store = (*postgres.Store)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Response payloads
// ─────────────────────────────────────────────────────────────────────────────

type queryResponse struct {
	RowCount int64          `json:"rowCount"`
	Rows     []postgres.Row `json:"rows"`
}

type describeTableResponse struct {
	Schema  string            `json:"schema"`
	Table   string            `json:"table"`
	Columns []postgres.Column `json:"columns"`
}

type listTablesResponse struct {
	Schema string               `json:"schema"`
	Tables []postgres.TableInfo `json:"tables"`
}

type countResponse struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Count  int64  `json:"count"`
}

type listDatabasesResponse struct {
	Count     int      `json:"count"`
	Databases []string `json:"databases"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Tool constructors
// ─────────────────────────────────────────────────────────────────────────────

func schemaField() tool.Field {
	return tool.Field{
		Name:        "schema",
		Type:        tool.String,
		Description: "Schema name (default: public)",
		Default:     postgres.DefaultSchema,
	}
}

func tableField(desc string) tool.Field {
	return tool.Field{Name: "tableName", Type: tool.String, Required: true, Description: desc}
}

// NewTools returns the relational tools bound to s, in the order they are
// advertised: postgres_query, postgres_describe_table, postgres_list_tables,
// postgres_count, postgres_list_databases.
func NewTools(s Store) []tool.Tool {
	return []tool.Tool{
		{
			Name:        "postgres_query",
			Title:       "Execute SQL Query",
			Description: "Execute a SQL query on the PostgreSQL database and return every resulting row.",
			Schema: tool.Schema{Fields: []tool.Field{
				{Name: "query", Type: tool.String, Required: true, Description: "SQL query to execute; use $1, $2, … for parameters"},
				{Name: "params", Type: tool.Array, Description: "Optional positional query parameters"},
			}},
			Handler: makeQueryHandler(s),
		},
		{
			Name:        "postgres_describe_table",
			Title:       "Describe Table Schema",
			Description: "Get the column definitions of a PostgreSQL table in declaration order.",
			Schema: tool.Schema{Fields: []tool.Field{
				tableField("Name of the table to describe"),
				schemaField(),
			}},
			Handler: makeDescribeTableHandler(s),
		},
		{
			Name:        "postgres_list_tables",
			Title:       "List Tables",
			Description: "List all tables in a PostgreSQL schema, sorted by name.",
			Schema:      tool.Schema{Fields: []tool.Field{schemaField()}},
			Handler:     makeListTablesHandler(s),
		},
		{
			Name:        "postgres_count",
			Title:       "Count Table Rows",
			Description: "Get the number of rows in a PostgreSQL table.",
			Schema: tool.Schema{Fields: []tool.Field{
				tableField("Name of the table to count"),
				schemaField(),
			}},
			Handler: makeCountHandler(s),
		},
		{
			Name:        "postgres_list_databases",
			Title:       "List Databases",
			Description: "List the databases on the PostgreSQL server that accept connections.",
			Handler:     makeListDatabasesHandler(s),
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

func makeQueryHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		res, err := s.Query(ctx, args.String("query"), args.List("params")...)
		if err != nil {
			return nil, err
		}
		rows := res.Rows
		if rows == nil {
			rows = []postgres.Row{}
		}
		return queryResponse{RowCount: res.RowCount, Rows: rows}, nil
	}
}

func makeDescribeTableHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		schema, table := args.String("schema"), args.String("tableName")
		cols, err := s.DescribeTable(ctx, schema, table)
		if err != nil {
			return nil, err
		}
		if cols == nil {
			cols = []postgres.Column{}
		}
		return describeTableResponse{Schema: schema, Table: table, Columns: cols}, nil
	}
}

func makeListTablesHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		schema := args.String("schema")
		tables, err := s.Tables(ctx, schema)
		if err != nil {
			return nil, err
		}
		if tables == nil {
			tables = []postgres.TableInfo{}
		}
		return listTablesResponse{Schema: schema, Tables: tables}, nil
	}
}

func makeCountHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		schema, table := args.String("schema"), args.String("tableName")
		n, err := s.CountRows(ctx, schema, table)
		if err != nil {
			return nil, err
		}
		return countResponse{Schema: schema, Table: table, Count: n}, nil
	}
}

func makeListDatabasesHandler(s Store) tool.Handler {
	return func(ctx context.Context, _ tool.Args) (any, error) {
		dbs, err := s.ListDatabases(ctx)
		if err != nil {
			return nil, err
		}
		if dbs == nil {
			dbs = []string{}
		}
		return listDatabasesResponse{Count: len(dbs), Databases: dbs}, nil
	}
}
