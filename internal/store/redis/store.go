// Package redis provides the key-value Store Handle backed by a go-redis
// client.
//
// Unlike the relational handle, connectivity here reflects live socket
// state: a hook installed on the client watches every dial and command and
// flips [Store.IsConnected] to false when the connection drops, even though
// the client object is still held. Operations keep working through go-redis'
// own reconnects; they only fail with [store.ErrNotConnected] when no client
// is held at all.
package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrWong99/dbbridge/internal/store"
)

// backendName identifies this store in errors, logs and metrics.
const backendName = "redis"

const defaultConnectTimeout = 5 * time.Second

// Config holds the connection parameters for a [Store].
type Config struct {
	Host string
	Port int

	// Password is optional; an empty value sends no AUTH.
	Password string

	// DB selects the logical database index. Default 0.
	DB int

	// ConnectTimeout bounds each dial. Default 5s.
	ConnectTimeout time.Duration
}

// Addr returns the host:port pair the store dials.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL renders the connection URL, redis://[:password@]host:port/db.
func (c Config) URL() string {
	u := url.URL{
		Scheme: "redis",
		Host:   c.Addr(),
		Path:   "/" + strconv.Itoa(c.DB),
	}
	if c.Password != "" {
		u.User = url.UserPassword("", c.Password)
	}
	return u.String()
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	return c
}

// Store is the key-value Store Handle. The zero value is not usable; create
// instances with [New]. All methods are safe for concurrent use.
type Store struct {
	cfg Config

	mu     sync.RWMutex
	client *goredis.Client
	live   *liveness
}

// New returns a Disconnected Store for cfg.
func New(cfg Config) *Store {
	return &Store{cfg: cfg.withDefaults()}
}

// Connect builds the client, registers the connection-error hook, and
// completes the handshake with a PING. Calling Connect on a Connected store
// is a no-op.
//
// On failure the client is closed, the store stays Disconnected, and the
// returned error is a [*store.ConnectionError].
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		slog.Info("redis store: client already connected", "addr", s.cfg.Addr())
		return nil
	}

	opts, err := goredis.ParseURL(s.cfg.URL())
	if err != nil {
		return s.connectErr(fmt.Errorf("parse url: %w", err))
	}
	opts.DialTimeout = s.cfg.ConnectTimeout

	client := goredis.NewClient(opts)
	live := &liveness{addr: s.cfg.Addr()}
	client.AddHook(live)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return s.connectErr(err)
	}

	s.client = client
	s.live = live
	slog.Info("redis store: connected", "addr", s.cfg.Addr(), "db", s.cfg.DB)
	return nil
}

func (s *Store) connectErr(err error) error {
	slog.Error("redis store: connection failed", "addr", s.cfg.Addr(), "err", err)
	return &store.ConnectionError{Backend: backendName, Addr: s.cfg.Addr(), Err: err}
}

// Disconnect closes the client and returns the store to Disconnected. It is
// a no-op on a Disconnected store.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.live = nil
	if err != nil {
		return fmt.Errorf("redis store: close: %w", err)
	}
	slog.Info("redis store: connection closed", "addr", s.cfg.Addr())
	return nil
}

// IsConnected reports whether a client is held and its socket is currently
// open.
func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil && s.live.open.Load()
}

// State returns the current connection state.
func (s *Store) State() store.State {
	if s.IsConnected() {
		return store.Connected
	}
	return store.Disconnected
}

// currentClient returns the held client or [store.ErrNotConnected].
func (s *Store) currentClient() (*goredis.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.client == nil {
		return nil, store.ErrNotConnected
	}
	return s.client, nil
}

// liveness is a go-redis hook that logs asynchronous connection errors and
// tracks whether the most recent dial or command saw an open socket.
type liveness struct {
	addr string
	open atomic.Bool
}

var _ goredis.Hook = (*liveness)(nil)

func (l *liveness) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			l.down(err)
			return nil, err
		}
		l.open.Store(true)
		return conn, nil
	}
}

func (l *liveness) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		l.observe(err)
		return err
	}
}

func (l *liveness) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		err := next(ctx, cmds)
		l.observe(err)
		return err
	}
}

func (l *liveness) observe(err error) {
	if err == nil || errors.Is(err, goredis.Nil) {
		l.open.Store(true)
		return
	}
	if isConnErr(err) {
		l.down(err)
	}
}

func (l *liveness) down(err error) {
	if l.open.Swap(false) {
		slog.Error("redis store: client error", "addr", l.addr, "err", err)
	}
}

// isConnErr reports whether err means the socket is gone, as opposed to a
// command-level error reply.
func isConnErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, goredis.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
