// Package pipeline runs the init_job and run jobs of one invocation on a
// single Snowflake session.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"flakeload/internal/config"
	"flakeload/internal/records"
	"flakeload/internal/snowflake"
	"flakeload/pkg/errors"
)

// Opener authenticates and returns the session of an invocation.
type Opener func(ctx context.Context, creds snowflake.Credentials) (*snowflake.Session, error)

// DefaultOpener opens a real Snowflake session.
func DefaultOpener(logger *slog.Logger) Opener {
	return func(ctx context.Context, creds snowflake.Credentials) (*snowflake.Session, error) {
		return snowflake.Open(ctx, creds, snowflake.WithLogger(logger))
	}
}

// Runner executes the selected modes. Settings and Opener are required;
// a nil Generator draws from the configured locales.
type Runner struct {
	Settings  *config.Settings
	Opener    Opener
	Generator *records.Generator
	Logger    *slog.Logger
	Reporter  Reporter

	stageName func() string
}

// Run opens one session, runs init_job then run, and closes the session
// on every path. The report holds every step attempted, including the
// failed one.
func (r *Runner) Run(ctx context.Context, modes ModeSet) (*Report, error) {
	report := &Report{}
	if modes.Empty() {
		return report, errors.New(errors.ErrCodeConfigInvalid, "at least one mode is required").
			WithSuggestions("Pass --mode init_job, --mode run, or both")
	}
	if r.Settings == nil || r.Opener == nil {
		return report, errors.New(errors.ErrCodeInternal, "runner is missing settings or opener")
	}
	logger := r.logger()

	var session *snowflake.Session
	err := r.step(report, "connect", r.Settings.Credentials.Account, func() (string, error) {
		var err error
		session, err = r.Opener(ctx, snowflake.Credentials{
			Account:    r.Settings.Credentials.Account,
			User:       r.Settings.Credentials.User,
			PrivateKey: r.Settings.Credentials.PrivateKey,
		})
		if err != nil {
			return "", err
		}
		return "user " + r.Settings.Credentials.User, nil
	})
	if err != nil {
		return report, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("Failed to close Snowflake session", slog.Any("error", cerr))
		}
	}()

	for _, m := range modes.Modes() {
		logger.InfoContext(ctx, "Starting job", slog.String("mode", string(m)))
		switch m {
		case ModeInitJob:
			err = r.initJob(ctx, session, report)
		case ModeRun:
			err = r.run(ctx, session, report)
		}
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (r *Runner) initJob(ctx context.Context, session *snowflake.Session, report *Report) error {
	p := snowflake.NewProvisioner(session, r.logger())
	for _, t := range Topology(r.Settings) {
		err := r.step(report, "provision", t.Role, func() (string, error) {
			res, err := p.Provision(ctx, t)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d statements, warehouses %s", res.Statements, strings.Join(t.Warehouses, ", ")), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, session *snowflake.Session, report *Report) error {
	var req snowflake.LoadRequest
	if err := r.step(report, "generate", string(r.Settings.Dataset), func() (string, error) {
		gen, err := r.generator()
		if err != nil {
			return "", err
		}
		req, err = loadRequest(r.Settings, gen)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d records, %d bytes", req.Rows, len(req.Data)), nil
	}); err != nil {
		return err
	}

	var opts []snowflake.LoaderOption
	if r.stageName != nil {
		opts = append(opts, snowflake.WithStageNames(r.stageName))
	}
	loader := snowflake.NewLoader(session, r.logger(), opts...)

	if err := r.step(report, "load", req.Table.Name, func() (string, error) {
		res, err := loader.Load(ctx, req)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d rows loaded via %s", res.RowsLoaded, res.FileName), nil
	}); err != nil {
		return err
	}

	return r.step(report, "count", req.Table.Name, func() (string, error) {
		n, err := loader.CountRows(ctx, req.Table.Name)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d rows in table", n), nil
	})
}

func (r *Runner) step(report *Report, name, target string, fn func() (string, error)) error {
	start := time.Now()
	detail, err := fn()
	s := Step{Name: name, Target: target, Status: StatusOK, Detail: detail, Duration: time.Since(start)}
	if err != nil {
		s.Status = StatusFailed
		s.Detail = err.Error()
	}
	r.record(report, s)
	return err
}

func (r *Runner) record(report *Report, s Step) {
	report.Steps = append(report.Steps, s)
	if r.Reporter != nil {
		r.Reporter.StepFinished(s)
	}
}

func (r *Runner) generator() (*records.Generator, error) {
	if r.Generator != nil {
		return r.Generator, nil
	}
	return records.NewGenerator(0, r.Settings.Locales...)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
