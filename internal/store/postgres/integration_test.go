package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dbbridge/internal/store"
	"github.com/MrWong99/dbbridge/internal/store/postgres"
)

// testConfig returns a Config for the database named by
// DBBRIDGE_TEST_POSTGRES_DSN, or skips the test if it is not set.
func testConfig(t *testing.T) postgres.Config {
	t.Helper()
	dsn := os.Getenv("DBBRIDGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DBBRIDGE_TEST_POSTGRES_DSN not set; skipping PostgreSQL integration tests")
	}
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cc := pc.ConnConfig
	return postgres.Config{
		Host:     cc.Host,
		Port:     int(cc.Port),
		Database: cc.Database,
		User:     cc.User,
		Password: cc.Password,
	}
}

// newTestStore connects a Store and creates an isolated schema that is
// dropped when the test finishes.
func newTestStore(t *testing.T) (*postgres.Store, string) {
	t.Helper()
	s := postgres.New(testConfig(t))
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Disconnect() })

	schema := fmt.Sprintf("dbbridge_test_%d", os.Getpid())
	mustExec(t, s, "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
	mustExec(t, s, "CREATE SCHEMA "+schema)
	t.Cleanup(func() { _, _ = s.Query(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE") })
	return s, schema
}

func mustExec(t *testing.T, s *postgres.Store, sql string, args ...any) {
	t.Helper()
	if _, err := s.Query(context.Background(), sql, args...); err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}

func TestIntegration_ConnectLifecycle(t *testing.T) {
	s := postgres.New(testConfig(t))
	ctx := context.Background()

	if s.IsConnected() {
		t.Fatal("connected before Connect")
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.IsConnected() {
		t.Fatal("not connected after Connect")
	}
	// Second Connect must be a no-op.
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if s.IsConnected() {
		t.Fatal("connected after Disconnect")
	}
}

func TestIntegration_CountRoundTrip(t *testing.T) {
	s, schema := newTestStore(t)
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE "+schema+".items (id serial PRIMARY KEY, label text NOT NULL)")

	n, err := s.CountRows(ctx, schema, "items")
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if n != 0 {
		t.Fatalf("count on empty table = %d, want 0", n)
	}

	const inserted = 7
	for i := range inserted {
		mustExec(t, s, "INSERT INTO "+schema+".items (label) VALUES ($1)", "item-"+strconv.Itoa(i))
	}
	n, err = s.CountRows(ctx, schema, "items")
	if err != nil {
		t.Fatalf("CountRows: %v", err)
	}
	if n != inserted {
		t.Errorf("count = %d, want %d", n, inserted)
	}
}

func TestIntegration_TablesSortedAndUnique(t *testing.T) {
	s, schema := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"zebra", "apple", "mango"} {
		mustExec(t, s, "CREATE TABLE "+schema+"."+name+" (id int)")
	}

	tables, err := s.Tables(ctx, schema)
	if err != nil {
		t.Fatalf("Tables: %v", err)
	}
	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.Name)
		if tbl.Type != "BASE TABLE" {
			t.Errorf("%s: type = %q, want BASE TABLE", tbl.Name, tbl.Type)
		}
	}
	want := []string{"apple", "mango", "zebra"}
	if !slices.Equal(names, want) {
		t.Errorf("tables = %v, want %v", names, want)
	}

	// ListTables only reads the public schema, so its tables are created
	// there under a per-process prefix.
	prefix := fmt.Sprintf("dbbridge_test_%d_", os.Getpid())
	for _, name := range []string{"zebra", "apple", "mango"} {
		tbl := "public." + prefix + name
		mustExec(t, s, "DROP TABLE IF EXISTS "+tbl)
		mustExec(t, s, "CREATE TABLE "+tbl+" (id int)")
		t.Cleanup(func() { _, _ = s.Query(context.Background(), "DROP TABLE IF EXISTS "+tbl) })
	}
	public, err := s.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if !slices.IsSorted(public) {
		t.Errorf("ListTables not sorted: %v", public)
	}
	if len(slices.Compact(slices.Clone(public))) != len(public) {
		t.Errorf("ListTables has duplicates: %v", public)
	}
	var ours []string
	for _, name := range public {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			ours = append(ours, rest)
		}
	}
	if !slices.Equal(ours, want) {
		t.Errorf("ListTables prefixed entries = %v, want %v", ours, want)
	}
}

func TestIntegration_DescribeTable(t *testing.T) {
	s, schema := newTestStore(t)
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE "+schema+".people (id serial PRIMARY KEY, name varchar(40) NOT NULL, nick text)")

	cols, err := s.DescribeTable(ctx, schema, "people")
	if err != nil {
		t.Fatalf("DescribeTable: %v", err)
	}
	if len(cols) != 3 {
		t.Fatalf("got %d columns, want 3", len(cols))
	}
	if cols[0].Name != "id" || cols[1].Name != "name" || cols[2].Name != "nick" {
		t.Errorf("columns out of declaration order: %+v", cols)
	}
	if cols[1].MaxLength == nil || *cols[1].MaxLength != 40 {
		t.Errorf("name max length = %v, want 40", cols[1].MaxLength)
	}
	if cols[1].Nullable != "NO" || cols[2].Nullable != "YES" {
		t.Errorf("nullability = %q/%q", cols[1].Nullable, cols[2].Nullable)
	}
	if cols[0].Default == nil {
		t.Error("serial column should report a default")
	}
}

func TestIntegration_QueryResult(t *testing.T) {
	s, schema := newTestStore(t)
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE "+schema+".kv (k text, v int)")

	res, err := s.Query(ctx, "INSERT INTO "+schema+".kv VALUES ($1, $2), ($3, $4)", "a", 1, "b", 2)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if res.RowCount != 2 || len(res.Rows) != 0 {
		t.Errorf("insert result = %d rows affected, %d rows", res.RowCount, len(res.Rows))
	}

	res, err = s.Query(ctx, "SELECT v, k FROM "+schema+".kv ORDER BY k")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if res.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", res.RowCount)
	}
	if !slices.Equal(res.Columns, []string{"v", "k"}) {
		t.Errorf("Columns = %v", res.Columns)
	}
	first := res.Rows[0]
	if k, _ := first.Get("k"); k != "a" {
		t.Errorf("first k = %v", k)
	}
	if pair := first.Oldest(); pair.Key != "v" {
		t.Errorf("first column = %q, want v", pair.Key)
	}
}

func TestIntegration_QueryErrorKeepsDiagnostic(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Query(context.Background(), "SELEC 1")
	if err == nil {
		t.Fatal("expected syntax error")
	}
	var qerr *store.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("err = %T, want *store.QueryError", err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("driver error not reachable through QueryError: %v", err)
	}
	if pgErr.Code != "42601" {
		t.Errorf("SQLSTATE = %s, want 42601", pgErr.Code)
	}
}

func TestIntegration_ListDatabases(t *testing.T) {
	cfg := testConfig(t)
	s, _ := newTestStore(t)
	dbs, err := s.ListDatabases(context.Background())
	if err != nil {
		t.Fatalf("ListDatabases: %v", err)
	}
	if !slices.Contains(dbs, cfg.Database) {
		t.Errorf("databases %v do not include %q", dbs, cfg.Database)
	}
	if !slices.IsSorted(dbs) {
		t.Errorf("databases not sorted: %v", dbs)
	}
}
