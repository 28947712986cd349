package snowflake

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/snowflakedb/gosnowflake"

	"flakeload/pkg/errors"
)

// FormatType is the TYPE of a Snowflake file format.
type FormatType string

const (
	FormatCSV  FormatType = "CSV"
	FormatJSON FormatType = "JSON"
)

// FileFormat names the file format object created before each load.
type FileFormat struct {
	Name string
	Type FormatType
}

// Column is one target column. Source is the JSON path read from the
// staged file; CSV columns are read by position.
type Column struct {
	Name    string
	Type    string
	Source  string
	NotNull bool
}

// TableSpec describes the target table, created if missing.
type TableSpec struct {
	Name       string
	Columns    []Column
	PrimaryKey string
}

// SessionContext is applied with USE statements before staging. Empty
// fields are skipped. The session keeps its login role.
type SessionContext struct {
	Warehouse string
	Database  string
	Schema    string
}

// LoadRequest is one bulk load of an in-memory file.
type LoadRequest struct {
	Table    TableSpec
	Format   FileFormat
	FileName string
	Data     []byte
	Rows     int
	Context  SessionContext
}

// LoadResult reports a committed load.
type LoadResult struct {
	Table      string
	Stage      string
	FileName   string
	Bytes      int
	RowsLoaded int64
	Duration   time.Duration
}

// Loader stages serialized records in a temporary stage and copies them
// into the target table in one transaction.
type Loader struct {
	session   *Session
	logger    *slog.Logger
	stageName func() string
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithStageNames replaces the generator of temporary stage names.
func WithStageNames(fn func() string) LoaderOption {
	return func(l *Loader) { l.stageName = fn }
}

// NewLoader returns a Loader issuing statements on session.
func NewLoader(session *Session, logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{session: session, logger: logger, stageName: newStageName}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func newStageName() string {
	return "TEMP_STAGE_" + strings.ReplaceAll(uuid.NewString(), "-", "_")
}

// Load runs the whole load. The file format, stage, PUT and target table
// are issued outside the transaction; only COPY INTO and the row check run
// inside it, so a failed COPY or row mismatch leaves the table unchanged.
// The stage is dropped on every path and errors wrap the original cause.
func (l *Loader) Load(ctx context.Context, req LoadRequest) (LoadResult, error) {
	start := time.Now()
	stage := l.stageName()

	if req.FileName == "" {
		return LoadResult{}, errors.New(errors.ErrCodeLoadFailed, "load request has no file name")
	}
	if len(req.Table.Columns) == 0 {
		return LoadResult{}, errors.Newf(errors.ErrCodeLoadFailed, "table %s has no columns", req.Table.Name)
	}

	formatSQL, err := fileFormatStatement(req.Format)
	if err != nil {
		return LoadResult{}, err
	}
	stageSQL, err := createStageStatement(stage)
	if err != nil {
		return LoadResult{}, err
	}
	putSQL, err := putStatement(req.FileName, stage)
	if err != nil {
		return LoadResult{}, err
	}
	tableSQL, err := createTableStatement(req.Table)
	if err != nil {
		return LoadResult{}, err
	}
	copySQL, err := copyStatement(req.Table, req.Format, stage, req.FileName)
	if err != nil {
		return LoadResult{}, err
	}

	if err := l.useContext(ctx, req.Context); err != nil {
		return LoadResult{}, err
	}

	stageFile := func(ctx context.Context) error {
		if err := l.session.Exec(ctx, formatSQL); err != nil {
			return errors.LoadError(errors.ErrCodeFileFormat, "failed to create file format", err).
				WithContext("file_format", req.Format.Name)
		}

		if err := l.session.Exec(ctx, stageSQL); err != nil {
			return errors.LoadError(errors.ErrCodeStagingFailed, "failed to create temporary stage", err)
		}

		putCtx := gosnowflake.WithFileStream(ctx, bytes.NewReader(req.Data))
		if err := l.session.Exec(putCtx, putSQL); err != nil {
			return errors.LoadError(errors.ErrCodeStagingFailed, "failed to PUT file", err).
				WithContext("file", req.FileName).
				WithContext("bytes", len(req.Data))
		}
		l.logger.DebugContext(ctx, "Staged file", slog.String("stage", stage), slog.String("file", req.FileName), slog.Int("bytes", len(req.Data)))

		if err := l.session.Exec(ctx, tableSQL); err != nil {
			return errors.LoadError(errors.ErrCodeLoadFailed, "failed to create target table", err).
				WithContext("table", req.Table.Name)
		}
		return nil
	}

	var loaded int64
	err = l.session.WithStagedTransaction(ctx, stage, stageFile, func(ctx context.Context, tx *sql.Tx) error {
		n, err := copyInto(ctx, tx, copySQL)
		if err != nil {
			return errors.LoadError(errors.ErrCodeCopyFailed, "COPY INTO failed", err).
				WithContext("table", req.Table.Name)
		}
		if n != int64(req.Rows) {
			return errors.LoadError(errors.ErrCodeRowMismatch, fmt.Sprintf("expected %d rows, COPY INTO loaded %d", req.Rows, n), nil).
				WithContext("table", req.Table.Name).
				WithSuggestions("Check the file format matches the staged data")
		}
		loaded = n
		return nil
	})
	if err != nil {
		return LoadResult{}, err
	}

	result := LoadResult{
		Table:      req.Table.Name,
		Stage:      stage,
		FileName:   req.FileName,
		Bytes:      len(req.Data),
		RowsLoaded: loaded,
		Duration:   time.Since(start),
	}
	l.logger.InfoContext(ctx, "Loaded rows",
		slog.String("table", result.Table),
		slog.Int64("rows", result.RowsLoaded),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// CountRows returns the current row count of table.
func (l *Loader) CountRows(ctx context.Context, table string) (int64, error) {
	stmt, err := countStatement(table)
	if err != nil {
		return 0, err
	}
	n, err := l.session.QueryInt64(ctx, stmt)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeLoadFailed, "failed to count rows").
			WithContext("table", table)
	}
	return n, nil
}

func (l *Loader) useContext(ctx context.Context, sc SessionContext) error {
	for _, use := range []struct{ kind, name string }{
		{"WAREHOUSE", sc.Warehouse},
		{"DATABASE", sc.Database},
		{"SCHEMA", sc.Schema},
	} {
		if use.name == "" {
			continue
		}
		stmt, err := useStatement(use.kind, use.name)
		if err != nil {
			return err
		}
		if err := l.session.Exec(ctx, stmt); err != nil {
			return errors.LoadError(errors.ErrCodeLoadFailed, "failed to set session context", err).
				WithContext("statement", stmt)
		}
	}
	return nil
}

// copyInto runs COPY INTO and sums the rows_loaded column of its result.
// A COPY that processed no files returns a single status column.
func copyInto(ctx context.Context, tx *sql.Tx, query string) (int64, error) {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	idx := -1
	for i, c := range cols {
		if strings.EqualFold(c, "rows_loaded") {
			idx = i
			break
		}
	}

	var total int64
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, err
		}
		if idx < 0 {
			continue
		}
		n, err := toInt64(values[idx])
		if err != nil {
			return 0, fmt.Errorf("unexpected rows_loaded value: %w", err)
		}
		total += n
	}
	return total, rows.Err()
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("type %T", v)
	}
}
