package redistool_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/MrWong99/dbbridge/internal/store"
	"github.com/MrWong99/dbbridge/internal/store/mock"
	"github.com/MrWong99/dbbridge/internal/store/redis"
	"github.com/MrWong99/dbbridge/internal/tool"
	"github.com/MrWong99/dbbridge/internal/tool/redistool"
)

var _ redistool.Store = (*mock.Redis)(nil)

func findTool(t *testing.T, s redistool.Store, name string) tool.Tool {
	t.Helper()
	for _, tl := range redistool.NewTools(s) {
		if tl.Name == name {
			return tl
		}
	}
	t.Fatalf("tool %q not found", name)
	return tool.Tool{}
}

// call validates raw against the tool's schema, runs its handler and returns
// the payload marshalled to compact JSON.
func call(t *testing.T, s redistool.Store, name, raw string) (string, error) {
	t.Helper()
	tl := findTool(t, s, name)
	args, err := tl.Schema.Validate(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("Validate(%s): %v", raw, err)
	}
	out, err := tl.Handler(context.Background(), args)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return string(data), nil
}

func TestNewTools_Names(t *testing.T) {
	t.Parallel()
	want := []string{
		"redis_get", "redis_set", "redis_del", "redis_exists", "redis_expire",
		"redis_keys", "redis_info", "redis_ttl", "redis_get_all",
	}
	tools := redistool.NewTools(&mock.Redis{})
	var got []string
	for _, tl := range tools {
		got = append(got, tl.Name)
	}
	if !slices.Equal(got, want) {
		t.Errorf("names = %v, want %v", got, want)
	}
	if _, err := tool.NewCatalog(tools...); err != nil {
		t.Errorf("tools do not form a valid catalog: %v", err)
	}
}

func TestHandlers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		setup  func(m *mock.Redis)
		tool   string
		args   string
		want   string
		method string
		params []any
	}{
		{
			name:   "get found",
			setup:  func(m *mock.Redis) { m.GetResult, m.GetFound = "v1", true },
			tool:   "redis_get",
			args:   `{"key":"k"}`,
			want:   `{"key":"k","value":"v1"}`,
			method: "Get",
			params: []any{"k"},
		},
		{
			name:   "get missing",
			tool:   "redis_get",
			args:   `{"key":"absent"}`,
			want:   `{"key":"absent","value":null}`,
			method: "Get",
			params: []any{"absent"},
		},
		{
			name:   "set without expiry",
			tool:   "redis_set",
			args:   `{"key":"k","value":"v"}`,
			want:   `{"success":true,"key":"k","expiresIn":"never"}`,
			method: "Set",
			params: []any{"k", "v", int64(0)},
		},
		{
			name:   "set with expiry",
			tool:   "redis_set",
			args:   `{"key":"k","value":"v","expirationSeconds":60}`,
			want:   `{"success":true,"key":"k","expiresIn":"60s"}`,
			method: "Set",
			params: []any{"k", "v", int64(60)},
		},
		{
			name:   "set with zero expiry",
			tool:   "redis_set",
			args:   `{"key":"k","value":"v","expirationSeconds":0}`,
			want:   `{"success":true,"key":"k","expiresIn":"never"}`,
			method: "Set",
			params: []any{"k", "v", int64(0)},
		},
		{
			name:   "del",
			setup:  func(m *mock.Redis) { m.DelResult = 2 },
			tool:   "redis_del",
			args:   `{"keys":["a","b","c"]}`,
			want:   `{"deletedCount":2,"keys":["a","b","c"]}`,
			method: "Del",
			params: []any{[]string{"a", "b", "c"}},
		},
		{
			name:   "exists",
			setup:  func(m *mock.Redis) { m.ExistsResult = 1 },
			tool:   "redis_exists",
			args:   `{"keys":["a","b"]}`,
			want:   `{"existingCount":1,"keys":["a","b"]}`,
			method: "Exists",
			params: []any{[]string{"a", "b"}},
		},
		{
			name:   "expire",
			setup:  func(m *mock.Redis) { m.ExpireResult = true },
			tool:   "redis_expire",
			args:   `{"key":"k","seconds":30}`,
			want:   `{"success":true,"key":"k","expiresIn":"30s"}`,
			method: "Expire",
			params: []any{"k", int64(30)},
		},
		{
			name:   "expire missing key",
			tool:   "redis_expire",
			args:   `{"key":"gone","seconds":30}`,
			want:   `{"success":false,"key":"gone","expiresIn":"30s"}`,
			method: "Expire",
			params: []any{"gone", int64(30)},
		},
		{
			name:   "keys default pattern",
			setup:  func(m *mock.Redis) { m.KeysResult = []string{"a", "b"} },
			tool:   "redis_keys",
			args:   `{}`,
			want:   `{"pattern":"*","count":2,"keys":["a","b"]}`,
			method: "Keys",
			params: []any{"*"},
		},
		{
			name:   "keys none",
			tool:   "redis_keys",
			args:   `{"pattern":"user:*"}`,
			want:   `{"pattern":"user:*","count":0,"keys":[]}`,
			method: "Keys",
			params: []any{"user:*"},
		},
		{
			name:   "info all",
			setup:  func(m *mock.Redis) { m.InfoResult = "# Server\r\nredis_version:7.2.0\r\n" },
			tool:   "redis_info",
			args:   `{}`,
			want:   `{"info":"# Server\r\nredis_version:7.2.0\r\n"}`,
			method: "Info",
			params: []any{[]string(nil)},
		},
		{
			name:   "info section",
			setup:  func(m *mock.Redis) { m.InfoResult = "# Memory\r\n" },
			tool:   "redis_info",
			args:   `{"section":"memory"}`,
			want:   `{"info":"# Memory\r\n"}`,
			method: "Info",
			params: []any{[]string{"memory"}},
		},
		{
			name:   "ttl",
			setup:  func(m *mock.Redis) { m.TTLResult = -1 },
			tool:   "redis_ttl",
			args:   `{"key":"k"}`,
			want:   `{"key":"k","ttl":-1}`,
			method: "TTL",
			params: []any{"k"},
		},
		{
			name:   "get all",
			setup:  func(m *mock.Redis) { m.GetAllResult = map[string]string{"user:2": "bob", "user:1": "alice"} },
			tool:   "redis_get_all",
			args:   `{"pattern":"user:*"}`,
			want:   `{"pattern":"user:*","count":2,"entries":{"user:1":"alice","user:2":"bob"}}`,
			method: "GetAll",
			params: []any{"user:*"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := &mock.Redis{}
			if tc.setup != nil {
				tc.setup(m)
			}
			got, err := call(t, m, tc.tool, tc.args)
			if err != nil {
				t.Fatalf("handler: %v", err)
			}
			if got != tc.want {
				t.Errorf("payload = %s\nwant      %s", got, tc.want)
			}
			calls := m.Calls()
			if len(calls) != 1 {
				t.Fatalf("got %d store calls, want exactly 1: %+v", len(calls), calls)
			}
			if calls[0].Method != tc.method {
				t.Errorf("method = %s, want %s", calls[0].Method, tc.method)
			}
			if !reflect.DeepEqual(calls[0].Args, tc.params) {
				t.Errorf("args = %#v, want %#v", calls[0].Args, tc.params)
			}
		})
	}
}

func TestHandlers_ErrorsPassThrough(t *testing.T) {
	t.Parallel()
	boom := &store.QueryError{Backend: "redis", Op: "get", Err: errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")}
	m := &mock.Redis{GetErr: boom, SetErr: store.ErrNotConnected}

	if _, err := call(t, m, "redis_get", `{"key":"k"}`); err != boom {
		t.Errorf("get err = %v, want the store error unchanged", err)
	}
	if _, err := call(t, m, "redis_set", `{"key":"k","value":"v"}`); !errors.Is(err, store.ErrNotConnected) {
		t.Errorf("set err = %v, want ErrNotConnected", err)
	}
}

func TestExpirySchemas_RejectOutOfRange(t *testing.T) {
	t.Parallel()
	m := &mock.Redis{}
	for _, tc := range []struct{ tool, raw, field string }{
		{"redis_set", `{"key":"k","value":"v","expirationSeconds":10000000000}`, "expirationSeconds"},
		{"redis_expire", `{"key":"k","seconds":10000000000}`, "seconds"},
		{"redis_expire", `{"key":"k","seconds":-10000000000}`, "seconds"},
	} {
		_, err := findTool(t, m, tc.tool).Schema.Validate(json.RawMessage(tc.raw))
		var verr *tool.ValidationError
		if !errors.As(err, &verr) || !slices.Equal(verr.Fields(), []string{tc.field}) {
			t.Errorf("%s %s: err = %v, want a validation problem on %s", tc.tool, tc.raw, err, tc.field)
		}
	}
	if calls := m.Calls(); len(calls) != 0 {
		t.Errorf("store reached by invalid input: %+v", calls)
	}

	limit := strconv.FormatInt(redis.MaxExpireSeconds, 10)
	if _, err := findTool(t, m, "redis_expire").Schema.Validate(json.RawMessage(`{"key":"k","seconds":` + limit + `}`)); err != nil {
		t.Errorf("seconds at the limit rejected: %v", err)
	}
}

// TestSetThenGet_RealStore drives the tools against an in-memory Redis to
// check that a write with expiry is readable at once and carries its TTL.
func TestSetThenGet_RealStore(t *testing.T) {
	t.Parallel()
	m := miniredis.RunT(t)
	s := redis.New(redis.Config{Host: m.Host(), Port: mustPort(t, m)})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = s.Disconnect() })

	if _, err := call(t, s, "redis_set", `{"key":"session:1","value":"token","expirationSeconds":5}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := call(t, s, "redis_get", `{"key":"session:1"}`)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `{"key":"session:1","value":"token"}` {
		t.Errorf("get payload = %s", got)
	}

	got, err = call(t, s, "redis_ttl", `{"key":"session:1"}`)
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	var ttl struct{ TTL int64 }
	if err := json.Unmarshal([]byte(got), &ttl); err != nil {
		t.Fatalf("decode ttl: %v", err)
	}
	if ttl.TTL <= 0 || ttl.TTL > 5 {
		t.Errorf("ttl = %d, want in (0, 5]", ttl.TTL)
	}

	if _, err := call(t, s, "redis_set", `{"key":"user:1","value":"alice"}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err = call(t, s, "redis_get_all", `{"pattern":"user:*"}`)
	if err != nil {
		t.Fatalf("get_all: %v", err)
	}
	if !strings.Contains(got, `"entries":{"user:1":"alice"}`) {
		t.Errorf("get_all payload = %s", got)
	}
}

func mustPort(t *testing.T, m *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(m.Port())
	if err != nil {
		t.Fatalf("miniredis port %q: %v", m.Port(), err)
	}
	return port
}
