// Package snowflake owns the single Snowflake session of an invocation and
// the provisioning and bulk-loading operations issued on it.
package snowflake

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"flakeload/pkg/errors"
)

const defaultApplication = "flakeload"

// Credentials authenticate one user with an RSA key pair.
type Credentials struct {
	Account    string
	User       string
	PrivateKey *rsa.PrivateKey
}

type options struct {
	application  string
	loginTimeout time.Duration
	logger       *slog.Logger
}

// Option customizes Open.
type Option func(*options)

// WithApplication sets the application name reported to Snowflake.
func WithApplication(name string) Option {
	return func(o *options) { o.application = name }
}

// WithLoginTimeout bounds authentication.
func WithLoginTimeout(d time.Duration) Option {
	return func(o *options) { o.loginTimeout = d }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{application: defaultApplication, loginTimeout: 60 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Session is one authenticated Snowflake session. Temporary stages and
// USE statements are scoped to it, so every statement runs on the same
// pinned connection. A Session is not safe for concurrent use.
type Session struct {
	db     *sql.DB
	conn   *sql.Conn
	user   string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Config builds the driver configuration for key-pair authentication.
func Config(creds Credentials, opts ...Option) (*gosnowflake.Config, error) {
	if creds.Account == "" || creds.User == "" {
		return nil, errors.New(errors.ErrCodeConfigMissing, "account and user are required to open a session")
	}
	if creds.PrivateKey == nil {
		return nil, errors.New(errors.ErrCodePrivateKey, "a private key is required for key-pair authentication")
	}

	o := buildOptions(opts)
	abortDetached := "true"
	return &gosnowflake.Config{
		Account:       creds.Account,
		User:          creds.User,
		Authenticator: gosnowflake.AuthTypeJwt,
		PrivateKey:    creds.PrivateKey,
		Application:   o.application,
		LoginTimeout:  o.loginTimeout,
		Params: map[string]*string{
			// Cancel in-flight queries if the client disappears.
			"ABORT_DETACHED_QUERY": &abortDetached,
		},
	}, nil
}

// Open authenticates and returns the session. Failures are returned as a
// single connection error; there is no retry.
func Open(ctx context.Context, creds Credentials, opts ...Option) (*Session, error) {
	cfg, err := Config(creds, opts...)
	if err != nil {
		return nil, err
	}

	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return nil, errors.ConnectionError("Failed to build Snowflake DSN", err).
			WithContext("account", creds.Account)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.ConnectionError("Failed to open Snowflake connection", err).
			WithContext("account", creds.Account)
	}

	return NewSession(ctx, db, creds.User, opts...)
}

// NewSession pins one connection of db and verifies it. db is owned by
// the session from here on and is closed on failure.
func NewSession(ctx context.Context, db *sql.DB, user string, opts ...Option) (*Session, error) {
	o := buildOptions(opts)

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, classifyConnectError(err, user)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, classifyConnectError(err, user)
	}

	o.logger.DebugContext(ctx, "Opened Snowflake session", slog.String("user", user))
	return &Session{db: db, conn: conn, user: user, logger: o.logger}, nil
}

func classifyConnectError(err error, user string) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "jwt") || strings.Contains(msg, "authentication") {
		return errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Authentication failed").
			WithSeverity(errors.SeverityCritical).
			WithContext("user", user).
			WithSuggestions(
				"Verify the public key registered with ALTER USER ... SET RSA_PUBLIC_KEY",
				"Compare RSA_PUBLIC_KEY_FP from DESC USER with the key fingerprint",
			)
	}
	return errors.ConnectionError("Failed to connect to Snowflake", err).
		WithContext("user", user)
}

// User is the authenticated login name.
func (s *Session) User() string {
	return s.user
}

// Exec runs one statement outside any transaction.
func (s *Session) Exec(ctx context.Context, query string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx, query)
	return err
}

// QueryInt64 runs a single-value query.
func (s *Session) QueryInt64(ctx context.Context, query string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.conn.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Session) begin(ctx context.Context) (*sql.Tx, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.conn.BeginTx(ctx, nil)
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeSessionClosed, "Snowflake session is closed")
	}
	return nil
}

// Close releases the pinned connection and the pool. Calling it again is
// a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	connErr := s.conn.Close()
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConnectionFailed, "failed to close Snowflake connection")
	}
	if connErr != nil {
		return errors.Wrap(connErr, errors.ErrCodeConnectionFailed, "failed to release Snowflake session")
	}
	s.logger.Debug("Closed Snowflake session", slog.String("user", s.user))
	return nil
}
