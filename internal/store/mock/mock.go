// Package mock provides in-memory test doubles for the two Store Handles.
//
// [Postgres] and [Redis] record every method call for assertion in tests and
// expose exported fields that control what each method returns. Both are
// safe for concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	r := &mock.Redis{}
//	r.GetResult, r.GetFound = "hello", true
//
//	// inject r into the tool set under test …
//
//	if got := r.CallCount("Get"); got != 1 {
//	    t.Errorf("expected 1 Get call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/dbbridge/internal/store/postgres"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the store method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// recorder is the call log shared by both doubles.
type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) record(method string, args ...any) {
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of all recorded method invocations.
func (r *recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallCount returns how many times the named method was invoked. An empty
// method counts every call.
func (r *recorder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if method == "" {
		return len(r.calls)
	}
	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Postgres
// ─────────────────────────────────────────────────────────────────────────────

// Postgres is a configurable test double for the relational Store Handle.
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil / zero values.
type Postgres struct {
	recorder

	// QueryResult is returned by [Postgres.Query] when QueryErr is nil.
	// When nil, an empty non-nil result is returned.
	QueryResult *postgres.Result
	QueryErr    error

	TablesResult []postgres.TableInfo
	TablesErr    error

	DescribeTableResult []postgres.Column
	DescribeTableErr    error

	CountRowsResult int64
	CountRowsErr    error

	ListDatabasesResult []string
	ListDatabasesErr    error

	PingErr error
}

// Query implements pgtool.Store.
func (p *Postgres) Query(_ context.Context, sql string, params ...any) (*postgres.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Query", sql, params)
	if p.QueryErr != nil {
		return nil, p.QueryErr
	}
	if p.QueryResult == nil {
		return &postgres.Result{Columns: []string{}, Rows: []postgres.Row{}}, nil
	}
	cp := *p.QueryResult
	return &cp, nil
}

// Tables implements pgtool.Store.
func (p *Postgres) Tables(_ context.Context, schema string) ([]postgres.TableInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Tables", schema)
	if p.TablesErr != nil {
		return nil, p.TablesErr
	}
	return append([]postgres.TableInfo{}, p.TablesResult...), nil
}

// DescribeTable implements pgtool.Store.
func (p *Postgres) DescribeTable(_ context.Context, schema, table string) ([]postgres.Column, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("DescribeTable", schema, table)
	if p.DescribeTableErr != nil {
		return nil, p.DescribeTableErr
	}
	return append([]postgres.Column{}, p.DescribeTableResult...), nil
}

// CountRows implements pgtool.Store.
func (p *Postgres) CountRows(_ context.Context, schema, table string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("CountRows", schema, table)
	return p.CountRowsResult, p.CountRowsErr
}

// ListDatabases implements pgtool.Store.
func (p *Postgres) ListDatabases(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("ListDatabases")
	if p.ListDatabasesErr != nil {
		return nil, p.ListDatabasesErr
	}
	return append([]string{}, p.ListDatabasesResult...), nil
}

// Ping records the call and returns PingErr.
func (p *Postgres) Ping(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Ping")
	return p.PingErr
}

// ─────────────────────────────────────────────────────────────────────────────
// Redis
// ─────────────────────────────────────────────────────────────────────────────

// Redis is a configurable test double for the key-value Store Handle.
type Redis struct {
	recorder

	// GetResult and GetFound are returned by [Redis.Get] when GetErr is nil.
	GetResult string
	GetFound  bool
	GetErr    error

	SetErr error

	DelResult int64
	DelErr    error

	ExistsResult int64
	ExistsErr    error

	// KeysResult is returned by [Redis.Keys]. When nil, an empty non-nil
	// slice is returned.
	KeysResult []string
	KeysErr    error

	TTLResult int64
	TTLErr    error

	ExpireResult bool
	ExpireErr    error

	GetAllResult map[string]string
	GetAllErr    error

	InfoResult string
	InfoErr    error

	PingErr error
}

// Get implements redistool.Store.
func (r *Redis) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Get", key)
	if r.GetErr != nil {
		return "", false, r.GetErr
	}
	return r.GetResult, r.GetFound, nil
}

// Set implements redistool.Store.
func (r *Redis) Set(_ context.Context, key, value string, expirationSeconds int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Set", key, value, expirationSeconds)
	return r.SetErr
}

// Del implements redistool.Store.
func (r *Redis) Del(_ context.Context, keys ...string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Del", keys)
	if r.DelErr != nil {
		return 0, r.DelErr
	}
	return r.DelResult, nil
}

// Exists implements redistool.Store.
func (r *Redis) Exists(_ context.Context, keys ...string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Exists", keys)
	if r.ExistsErr != nil {
		return 0, r.ExistsErr
	}
	return r.ExistsResult, nil
}

// Keys implements redistool.Store.
func (r *Redis) Keys(_ context.Context, pattern string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Keys", pattern)
	if r.KeysErr != nil {
		return nil, r.KeysErr
	}
	return append([]string{}, r.KeysResult...), nil
}

// TTL implements redistool.Store.
func (r *Redis) TTL(_ context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("TTL", key)
	return r.TTLResult, r.TTLErr
}

// Expire implements redistool.Store.
func (r *Redis) Expire(_ context.Context, key string, seconds int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Expire", key, seconds)
	if r.ExpireErr != nil {
		return false, r.ExpireErr
	}
	return r.ExpireResult, nil
}

// GetAll implements redistool.Store.
func (r *Redis) GetAll(_ context.Context, pattern string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("GetAll", pattern)
	if r.GetAllErr != nil {
		return nil, r.GetAllErr
	}
	out := make(map[string]string, len(r.GetAllResult))
	for k, v := range r.GetAllResult {
		out[k] = v
	}
	return out, nil
}

// Info implements redistool.Store.
func (r *Redis) Info(_ context.Context, sections ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Info", sections)
	if r.InfoErr != nil {
		return "", r.InfoErr
	}
	return r.InfoResult, nil
}

// Ping records the call and returns PingErr.
func (r *Redis) Ping(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Ping")
	return r.PingErr
}
