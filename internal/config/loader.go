package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadOptions selects the optional configuration sources.
type LoadOptions struct {
	// Path is a YAML configuration file. Empty skips it.
	Path string

	// EnvFile is a .env file read with godotenv. A missing file is ignored;
	// empty skips it.
	EnvFile string

	// LookupEnv reads the process environment. Defaults to [os.LookupEnv].
	LookupEnv func(key string) (string, bool)

	// DisablePostgres and DisableRedis switch a backend off after every
	// other source, so its settings are not validated.
	DisablePostgres bool
	DisableRedis    bool
}

// Load builds a validated [Config] from the defaults and every source named
// in opts.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.Path != "" {
		f, err := os.Open(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", opts.Path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", opts.Path, err)
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if opts.EnvFile != "" {
		dotenv, err := godotenv.Read(opts.EnvFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config: no env file", "path", opts.EnvFile)
		case err != nil:
			return nil, fmt.Errorf("config: read %q: %w", opts.EnvFile, err)
		default:
			lookup = layered(lookup, dotenv)
		}
	}

	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if opts.DisablePostgres {
		cfg.Postgres.Enabled = false
	}
	if opts.DisableRedis {
		cfg.Redis.Enabled = false
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// layered returns a lookup that prefers the real environment and falls back
// to values read from a .env file.
func layered(env func(string) (string, bool), dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// ApplyEnv overrides cfg with the recognised environment variables. Numeric
// variables that fail to parse are reported together.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
			return
		}
		*dst = n
	}

	var level string
	str("DBBRIDGE_LOG_LEVEL", &level)
	if level != "" {
		cfg.Server.LogLevel = LogLevel(level)
	}
	str("DBBRIDGE_HTTP_ADDR", &cfg.Server.HTTPAddr)

	pg := &cfg.Postgres
	str("POSTGRES_HOST", &pg.Host)
	num("POSTGRES_PORT", &pg.Port)
	str("POSTGRES_DB", &pg.Database)
	str("POSTGRES_USER", &pg.User)
	str("POSTGRES_PASSWORD", &pg.Password)
	str("POSTGRES_SSLMODE", &pg.SSLMode)
	num("POSTGRES_MAX_CONNECTIONS", &pg.MaxConnections)
	num("POSTGRES_IDLE_TIMEOUT", &pg.IdleTimeoutMS)
	num("POSTGRES_CONNECT_TIMEOUT", &pg.ConnectTimeoutMS)

	rd := &cfg.Redis
	str("REDIS_HOST", &rd.Host)
	num("REDIS_PORT", &rd.Port)
	str("REDIS_PASSWORD", &rd.Password)
	num("REDIS_DB", &rd.DB)
	num("REDIS_CONNECT_TIMEOUT", &rd.ConnectTimeoutMS)

	return errors.Join(errs...)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if pg := cfg.Postgres; pg.Enabled {
		errs = append(errs, checkEndpoint("postgres", pg.Host, pg.Port)...)
		if pg.Database == "" {
			errs = append(errs, errors.New("postgres.database is required"))
		}
		if pg.User == "" {
			errs = append(errs, errors.New("postgres.user is required"))
		}
		if pg.MaxConnections <= 0 {
			errs = append(errs, fmt.Errorf("postgres.max_connections %d must be positive", pg.MaxConnections))
		}
		if pg.IdleTimeoutMS < 0 {
			errs = append(errs, fmt.Errorf("postgres.idle_timeout_ms %d must not be negative", pg.IdleTimeoutMS))
		}
		if pg.ConnectTimeoutMS < 0 {
			errs = append(errs, fmt.Errorf("postgres.connect_timeout_ms %d must not be negative", pg.ConnectTimeoutMS))
		}
		switch pg.SSLMode {
		case "", "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			errs = append(errs, fmt.Errorf("postgres.sslmode %q is invalid", pg.SSLMode))
		}
	}

	if rd := cfg.Redis; rd.Enabled {
		errs = append(errs, checkEndpoint("redis", rd.Host, rd.Port)...)
		if rd.DB < 0 {
			errs = append(errs, fmt.Errorf("redis.db %d must not be negative", rd.DB))
		}
		if rd.ConnectTimeoutMS < 0 {
			errs = append(errs, fmt.Errorf("redis.connect_timeout_ms %d must not be negative", rd.ConnectTimeoutMS))
		}
	}

	if !cfg.Postgres.Enabled && !cfg.Redis.Enabled {
		slog.Warn("both stores are disabled; the server will expose no tools")
	}

	return errors.Join(errs...)
}

func checkEndpoint(prefix, host string, port int) []error {
	var errs []error
	if host == "" {
		errs = append(errs, fmt.Errorf("%s.host is required", prefix))
	}
	if port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("%s.port %d is out of range [1, 65535]", prefix, port))
	}
	return errs
}
