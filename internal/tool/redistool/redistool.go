// Package redistool provides the key-value tool set bound to one Redis Store
// Handle.
//
// Use [NewTools] to obtain the tools for registration in a [tool.Catalog].
package redistool

import (
	"context"
	"strconv"

	"github.com/MrWong99/dbbridge/internal/store/redis"
	"github.com/MrWong99/dbbridge/internal/tool"
)

// Store is the subset of the key-value Store Handle the tools call.
// [*redis.Store] satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, expirationSeconds int64) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	TTL(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, seconds int64) (bool, error)
	GetAll(ctx context.Context, pattern string) (map[string]string, error)
	Info(ctx context.Context, sections ...string) (string, error)
}

var _ Store = (*redis.Store)(nil)

// neverExpires is reported as expiresIn for keys written without a TTL.
const neverExpires = "never"

// ─────────────────────────────────────────────────────────────────────────────
// Response payloads
// ─────────────────────────────────────────────────────────────────────────────

type getResponse struct {
	Key string `json:"key"`
	// Value is null when the key does not exist.
	Value *string `json:"value"`
}

type setResponse struct {
	Success   bool   `json:"success"`
	Key       string `json:"key"`
	ExpiresIn string `json:"expiresIn"`
}

type delResponse struct {
	DeletedCount int64    `json:"deletedCount"`
	Keys         []string `json:"keys"`
}

type existsResponse struct {
	ExistingCount int64    `json:"existingCount"`
	Keys          []string `json:"keys"`
}

type expireResponse struct {
	Success   bool   `json:"success"`
	Key       string `json:"key"`
	ExpiresIn string `json:"expiresIn"`
}

type keysResponse struct {
	Pattern string   `json:"pattern"`
	Count   int      `json:"count"`
	Keys    []string `json:"keys"`
}

type infoResponse struct {
	Info string `json:"info"`
}

type ttlResponse struct {
	Key string `json:"key"`
	TTL int64  `json:"ttl"`
}

type getAllResponse struct {
	Pattern string            `json:"pattern"`
	Count   int               `json:"count"`
	Entries map[string]string `json:"entries"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Tool constructors
// ─────────────────────────────────────────────────────────────────────────────

func keyField(desc string) tool.Field {
	return tool.Field{Name: "key", Type: tool.String, Required: true, Description: desc}
}

func keysField(desc string) tool.Field {
	return tool.Field{Name: "keys", Type: tool.StringArray, Required: true, Description: desc}
}

func patternField() tool.Field {
	return tool.Field{
		Name:        "pattern",
		Type:        tool.String,
		Description: "Glob pattern to match keys (default: *)",
		Default:     redis.DefaultPattern,
	}
}

// NewTools returns the key-value tools bound to s, in the order they are
// advertised.
func NewTools(s Store) []tool.Tool {
	return []tool.Tool{
		{
			Name:        "redis_get",
			Title:       "Get Value",
			Description: "Get a value from Redis by key. The value is null when the key does not exist.",
			Schema:      tool.Schema{Fields: []tool.Field{keyField("Redis key to retrieve")}},
			Handler:     makeGetHandler(s),
		},
		{
			Name:        "redis_set",
			Title:       "Set Value",
			Description: "Set a key-value pair in Redis with optional expiration.",
			Schema: tool.Schema{Fields: []tool.Field{
				keyField("Redis key to set"),
				{Name: "value", Type: tool.String, Required: true, Description: "Value to store"},
				{Name: "expirationSeconds", Type: tool.Integer, Max: redis.MaxExpireSeconds, Description: "Optional expiration time in seconds"},
			}},
			Handler: makeSetHandler(s),
		},
		{
			Name:        "redis_del",
			Title:       "Delete Keys",
			Description: "Delete one or more keys from Redis.",
			Schema:      tool.Schema{Fields: []tool.Field{keysField("Redis keys to delete")}},
			Handler:     makeDelHandler(s),
		},
		{
			Name:        "redis_exists",
			Title:       "Check Keys",
			Description: "Count how many of the given keys exist in Redis.",
			Schema:      tool.Schema{Fields: []tool.Field{keysField("Redis keys to check")}},
			Handler:     makeExistsHandler(s),
		},
		{
			Name:        "redis_expire",
			Title:       "Set Expiration",
			Description: "Set the expiration time of a Redis key.",
			Schema: tool.Schema{Fields: []tool.Field{
				keyField("Redis key to set expiration on"),
				{Name: "seconds", Type: tool.Integer, Required: true, Min: -redis.MaxExpireSeconds, Max: redis.MaxExpireSeconds, Description: "Expiration time in seconds"},
			}},
			Handler: makeExpireHandler(s),
		},
		{
			Name:        "redis_keys",
			Title:       "List Keys",
			Description: "Get all Redis keys matching a pattern.",
			Schema:      tool.Schema{Fields: []tool.Field{patternField()}},
			Handler:     makeKeysHandler(s),
		},
		{
			Name:        "redis_info",
			Title:       "Server Info",
			Description: "Get Redis server information.",
			Schema: tool.Schema{Fields: []tool.Field{
				{Name: "section", Type: tool.String, Description: `Optional info section (e.g. "server", "memory", "stats")`},
			}},
			Handler: makeInfoHandler(s),
		},
		{
			Name:        "redis_ttl",
			Title:       "Time To Live",
			Description: "Get the remaining time to live of a key in seconds; -1 means no expiry and -2 means the key does not exist.",
			Schema:      tool.Schema{Fields: []tool.Field{keyField("Redis key to inspect")}},
			Handler:     makeTTLHandler(s),
		},
		{
			Name:        "redis_get_all",
			Title:       "Get Matching Values",
			Description: "Get every key matching a pattern together with its value. Not atomic: the result is a best-effort snapshot.",
			Schema:      tool.Schema{Fields: []tool.Field{patternField()}},
			Handler:     makeGetAllHandler(s),
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────────────────────────────────────

func makeGetHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		key := args.String("key")
		v, found, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		resp := getResponse{Key: key}
		if found {
			resp.Value = &v
		}
		return resp, nil
	}
}

func makeSetHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		key := args.String("key")
		exp, _ := args.Int("expirationSeconds")
		if err := s.Set(ctx, key, args.String("value"), exp); err != nil {
			return nil, err
		}
		expiresIn := neverExpires
		if exp > 0 {
			expiresIn = seconds(exp)
		}
		return setResponse{Success: true, Key: key, ExpiresIn: expiresIn}, nil
	}
}

func makeDelHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		keys := args.Strings("keys")
		n, err := s.Del(ctx, keys...)
		if err != nil {
			return nil, err
		}
		return delResponse{DeletedCount: n, Keys: keys}, nil
	}
}

func makeExistsHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		keys := args.Strings("keys")
		n, err := s.Exists(ctx, keys...)
		if err != nil {
			return nil, err
		}
		return existsResponse{ExistingCount: n, Keys: keys}, nil
	}
}

func makeExpireHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		key := args.String("key")
		secs, _ := args.Int("seconds")
		ok, err := s.Expire(ctx, key, secs)
		if err != nil {
			return nil, err
		}
		return expireResponse{Success: ok, Key: key, ExpiresIn: seconds(secs)}, nil
	}
}

func makeKeysHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		pattern := args.String("pattern")
		keys, err := s.Keys(ctx, pattern)
		if err != nil {
			return nil, err
		}
		return keysResponse{Pattern: pattern, Count: len(keys), Keys: keys}, nil
	}
}

func makeInfoHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		var sections []string
		if sec := args.String("section"); sec != "" {
			sections = append(sections, sec)
		}
		info, err := s.Info(ctx, sections...)
		if err != nil {
			return nil, err
		}
		return infoResponse{Info: info}, nil
	}
}

func makeTTLHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		key := args.String("key")
		ttl, err := s.TTL(ctx, key)
		if err != nil {
			return nil, err
		}
		return ttlResponse{Key: key, TTL: ttl}, nil
	}
}

func makeGetAllHandler(s Store) tool.Handler {
	return func(ctx context.Context, args tool.Args) (any, error) {
		pattern := args.String("pattern")
		entries, err := s.GetAll(ctx, pattern)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = map[string]string{}
		}
		return getAllResponse{Pattern: pattern, Count: len(entries), Entries: entries}, nil
	}
}

func seconds(n int64) string {
	return strconv.FormatInt(n, 10) + "s"
}
