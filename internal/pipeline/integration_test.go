package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flakeload/internal/config"
	"flakeload/internal/records"
	"flakeload/internal/snowflake"
	"flakeload/pkg/errors"
)

// TestIntegration runs against a real account configured through the
// usual environment. Enable with SNOWFLAKE_INTEGRATION=1.
func TestIntegration(t *testing.T) {
	if os.Getenv("SNOWFLAKE_INTEGRATION") != "1" {
		t.Skip("set SNOWFLAKE_INTEGRATION=1 to run against Snowflake")
	}

	settings, err := config.Load(config.LoadOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := &Runner{Settings: settings, Opener: DefaultOpener(logger), Logger: logger}

	// Provisioning is idempotent; the second pass must succeed too.
	for i := 0; i < 2; i++ {
		_, err := r.Run(ctx, NewModeSet(ModeInitJob))
		require.NoError(t, err)
	}

	// The first run creates the table so it can be counted.
	_, err = r.Run(ctx, NewModeSet(ModeRun))
	require.NoError(t, err)

	session, err := r.Opener(ctx, snowflake.Credentials{
		Account:    settings.Credentials.Account,
		User:       settings.Credentials.User,
		PrivateKey: settings.Credentials.PrivateKey,
	})
	require.NoError(t, err)
	defer session.Close()
	require.NoError(t, session.Exec(ctx, fmt.Sprintf("USE SCHEMA %s.%s", settings.Database, settings.Schema)))

	gen, err := records.NewGenerator(0, settings.Locales...)
	require.NoError(t, err)
	req, err := loadRequest(settings, gen)
	require.NoError(t, err)

	loader := snowflake.NewLoader(session, logger)
	count := func() int64 {
		n, err := loader.CountRows(ctx, req.Table.Name)
		require.NoError(t, err)
		return n
	}

	t.Run("run adds exactly the generated rows", func(t *testing.T) {
		before := count()
		report, err := r.Run(ctx, NewModeSet(ModeRun))
		require.NoError(t, err)
		assert.False(t, report.Failed())
		assert.Equal(t, before+int64(req.Rows), count())
	})

	t.Run("failed load leaves the table unchanged", func(t *testing.T) {
		before := count()
		bad := req
		bad.Rows = req.Rows + 1
		_, err := loader.Load(ctx, bad)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeRowMismatch))
		assert.Equal(t, before, count(), "COPY INTO was rolled back")
	})
}
