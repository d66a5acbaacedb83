// Package postgres provides the relational Store Handle backed by a
// [pgxpool.Pool].
//
// The handle owns at most one pool at a time. Connectivity is tracked by
// pool presence alone: pgxpool reports broken connections on every call, so
// [Store.IsConnected] does not contact the server.
//
// Usage:
//
//	s := postgres.New(postgres.Config{Host: "localhost", Port: 5432, Database: "testdb", User: "postgres"})
//	if err := s.Connect(ctx); err != nil { … }
//	defer s.Disconnect()
//
//	res, err := s.Query(ctx, "SELECT id, name FROM users WHERE id = $1", 42)
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/dbbridge/internal/store"
)

// backendName identifies this store in errors, logs and metrics.
const backendName = "postgres"

// DefaultSchema is the schema used when a caller does not name one.
const DefaultSchema = "public"

const (
	defaultMaxConns       = 10
	defaultIdleTimeout    = 30 * time.Second
	defaultConnectTimeout = 2 * time.Second
	defaultSSLMode        = "disable"
)

// Config holds the connection parameters for a [Store].
// Zero values for MaxConns, IdleTimeout, ConnectTimeout and SSLMode are
// replaced by their defaults (10, 30s, 2s, "disable").
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	// MaxConns bounds the number of concurrent backend connections. Acquires
	// beyond the bound queue inside the pool.
	MaxConns int32

	// IdleTimeout closes pooled connections idle for longer than this.
	IdleTimeout time.Duration

	// ConnectTimeout bounds each dial, including the verification acquire
	// performed by [Store.Connect].
	ConnectTimeout time.Duration

	// SSLMode is passed through as the libpq sslmode parameter.
	SSLMode string

	// ApplicationName is reported to the server in pg_stat_activity.
	ApplicationName string
}

// Addr returns the host:port pair the store dials.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// withDefaults returns a copy of c with unset tunables filled in.
func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.SSLMode == "" {
		c.SSLMode = defaultSSLMode
	}
	return c
}

// connString renders c as a postgres:// URL understood by pgxpool.ParseConfig.
func (c Config) connString() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   c.Addr(),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// poolConfig translates c into a pgxpool configuration.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.connString())
	if err != nil {
		return nil, err
	}
	pc.MaxConns = c.MaxConns
	pc.MaxConnIdleTime = c.IdleTimeout
	pc.ConnConfig.ConnectTimeout = c.ConnectTimeout
	return pc, nil
}

// Store is the relational Store Handle. The zero value is not usable; create
// instances with [New]. All methods are safe for concurrent use.
type Store struct {
	cfg Config

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// New returns a Disconnected Store for cfg. No network activity happens
// until [Store.Connect].
func New(cfg Config) *Store {
	return &Store{cfg: cfg.withDefaults()}
}

// Connect creates the pool and verifies reachability by acquiring and
// immediately releasing one connection. Calling Connect on a Connected
// store is a no-op.
//
// On failure the store stays Disconnected, holds no pool, and the returned
// error is a [*store.ConnectionError] wrapping the driver's cause.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		slog.Info("postgres store: connection pool already exists", "addr", s.cfg.Addr())
		return nil
	}

	pc, err := s.cfg.poolConfig()
	if err != nil {
		return s.connectErr(fmt.Errorf("build pool config: %w", err))
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return s.connectErr(err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return s.connectErr(err)
	}
	conn.Release()

	s.pool = pool
	slog.Info("postgres store: connected",
		"database", s.cfg.Database,
		"addr", s.cfg.Addr(),
		"max_conns", s.cfg.MaxConns,
	)
	return nil
}

func (s *Store) connectErr(err error) error {
	slog.Error("postgres store: connection failed", "addr", s.cfg.Addr(), "err", err)
	return &store.ConnectionError{Backend: backendName, Addr: s.cfg.Addr(), Err: err}
}

// Disconnect closes the pool and returns the store to Disconnected. It is a
// no-op on a Disconnected store. The error is always nil; it exists so both
// Store Handles share one lifecycle signature.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool = nil
	slog.Info("postgres store: connection pool closed", "addr", s.cfg.Addr())
	return nil
}

// IsConnected reports whether the store holds a pool.
func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool != nil
}

// State returns the current connection state.
func (s *Store) State() store.State {
	if s.IsConnected() {
		return store.Connected
	}
	return store.Disconnected
}

// Ping round-trips to the server through the pool.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.currentPool()
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return &store.QueryError{Backend: backendName, Op: "ping", Err: err}
	}
	return nil
}

// currentPool returns the held pool or [store.ErrNotConnected].
func (s *Store) currentPool() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pool == nil {
		return nil, store.ErrNotConnected
	}
	return s.pool, nil
}
