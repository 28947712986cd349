package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"flakeload/pkg/errors"
)

const cleanupTimeout = 30 * time.Second

// WithStagedTransaction runs prepare on the session connection, then body
// inside one transaction. Snowflake commits any open transaction before a
// DDL statement or PUT, so prepare holds those and body holds only DML.
//
// An error from prepare is returned before any transaction begins. body's
// error, a panic, or a cancelled ctx rolls the transaction back; otherwise
// it is committed. The temporary stage is dropped afterwards in every case,
// with a context that ignores ctx's cancellation. A failed drop is logged
// and never replaces the result.
//
// Returned errors wrap the callback's error unchanged, so errors.Is still
// matches the driver error that caused the failure.
func (s *Session) WithStagedTransaction(ctx context.Context, stage string, prepare func(ctx context.Context) error, body func(ctx context.Context, tx *sql.Tx) error) (err error) {
	defer func() {
		p := recover()
		s.dropStage(ctx, stage)
		if p != nil {
			panic(p)
		}
	}()

	if prepare != nil {
		if err = prepare(ctx); err != nil {
			return errors.LoadError(errors.ErrCodeLoadFailed, "bulk load failed before COPY INTO", err).
				WithContext("stage", stage)
		}
	}
	return s.inTransaction(ctx, stage, body)
}

func (s *Session) inTransaction(ctx context.Context, stage string, body func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return errors.LoadError(errors.ErrCodeLoadFailed, "failed to begin transaction", err).
			WithContext("stage", stage)
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			s.rollback(tx, stage, fmt.Errorf("panic: %v", p))
			panic(p)
		}
		if !committed {
			s.rollback(tx, stage, err)
		}
	}()

	if err = body(ctx, tx); err != nil {
		return errors.LoadError(errors.ErrCodeLoadFailed, "bulk load failed and was rolled back", err).
			WithContext("stage", stage)
	}
	if err = ctx.Err(); err != nil {
		return errors.LoadError(errors.ErrCodeLoadFailed, "bulk load cancelled and was rolled back", err).
			WithContext("stage", stage)
	}

	if err = tx.Commit(); err != nil {
		// A failed COMMIT leaves nothing to roll back.
		committed = true
		return errors.LoadError(errors.ErrCodeCommitFailed, "failed to commit bulk load", err).
			WithContext("stage", stage)
	}
	committed = true
	return nil
}

func (s *Session) rollback(tx *sql.Tx, stage string, cause error) {
	s.logger.Error("Rolling back bulk load", slog.String("stage", stage), slog.Any("cause", cause))
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.Error("Rollback failed",
			slog.String("stage", stage),
			slog.Any("error", errors.LoadError(errors.ErrCodeRollbackFailed, "rollback failed", err)),
		)
	}
}

func (s *Session) dropStage(ctx context.Context, stage string) {
	stmt, err := dropStageStatement(stage)
	if err != nil {
		s.logger.Warn("Could not render stage cleanup", slog.String("stage", stage), slog.Any("error", err))
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.Exec(cleanupCtx, stmt); err != nil {
		s.logger.Warn("Failed to drop temporary stage; it expires with the session",
			slog.String("stage", stage),
			slog.Any("error", err),
		)
		return
	}
	s.logger.Debug("Dropped temporary stage", slog.String("stage", stage))
}
