package snowflake

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/snowflakedb/gosnowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flakeload/internal/testutil"
	"flakeload/pkg/errors"
)

const testUser = "LOADER_USER"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := testutil.NewMockDB(t)
	s, err := NewSession(context.Background(), db, testUser, WithLogger(discardLogger()))
	require.NoError(t, err)
	return s, mock
}

func TestConfig(t *testing.T) {
	creds := Credentials{Account: "xy12345.eu-west-1", User: testUser, PrivateKey: testutil.PrivateKey(t)}

	cfg, err := Config(creds, WithApplication("flakeload-test"), WithLoginTimeout(5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, "xy12345.eu-west-1", cfg.Account)
	assert.Equal(t, testUser, cfg.User)
	assert.Equal(t, gosnowflake.AuthTypeJwt, cfg.Authenticator)
	assert.Same(t, creds.PrivateKey, cfg.PrivateKey)
	assert.Equal(t, "flakeload-test", cfg.Application)
	assert.Equal(t, 5*time.Second, cfg.LoginTimeout)
	require.Contains(t, cfg.Params, "ABORT_DETACHED_QUERY")
	assert.Equal(t, "true", *cfg.Params["ABORT_DETACHED_QUERY"])
	assert.Empty(t, cfg.Role)

	dsn, err := gosnowflake.DSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(dsn), "authenticator=snowflake_jwt")
}

func TestConfigRejectsIncompleteCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		code  errors.ErrorCode
	}{
		{name: "no account", creds: Credentials{User: testUser, PrivateKey: testutil.PrivateKey(t)}, code: errors.ErrCodeConfigMissing},
		{name: "no user", creds: Credentials{Account: "acct", PrivateKey: testutil.PrivateKey(t)}, code: errors.ErrCodeConfigMissing},
		{name: "no key", creds: Credentials{Account: "acct", User: testUser}, code: errors.ErrCodePrivateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Config(tt.creds)
			assert.True(t, errors.HasCode(err, tt.code))
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, mock := newTestSession(t)

	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Exec(context.Background(), "SELECT 1"))
	assert.Equal(t, testUser, s.User())

	mock.ExpectClose()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is a no-op")

	err := s.Exec(context.Background(), "SELECT 1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeSessionClosed))
}

func TestNewSessionPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(assert.AnError)
	mock.ExpectClose()

	_, err = NewSession(context.Background(), db, testUser, WithLogger(discardLogger()))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectionFailed))
	assert.True(t, errors.Is(err, assert.AnError))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyConnectError(t *testing.T) {
	err := classifyConnectError(errors.New(errors.ErrCodeInternal, "JWT token is invalid"), testUser)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuthenticationFailed))

	err = classifyConnectError(assert.AnError, testUser)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConnectionFailed))
}
