// Package cmd wires the flakeload command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flakeload/internal/config"
	"flakeload/internal/observability"
	"flakeload/internal/pipeline"
	"flakeload/internal/ui"
)

// app carries what commands need from the outside world so tests can
// replace the Snowflake session and the settings source.
type app struct {
	loadSettings func(configFile string) (*config.Settings, error)
	opener       func(logger *slog.Logger) pipeline.Opener
	stdout       io.Writer
	stderr       io.Writer

	configFile string
	noColor    bool
}

func defaultApp() *app {
	return &app{
		loadSettings: func(configFile string) (*config.Settings, error) {
			return config.Load(config.LoadOptions{ConfigFile: configFile})
		},
		opener: pipeline.DefaultOpener,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Execute runs the command line. A failure is printed to stderr and
// returned; commands have already logged it.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := defaultApp()
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		ui.NewPrinter(a.stderr, a.noColor).ShowError(err)
		return err
	}
	return nil
}

func newRootCmd(a *app) *cobra.Command {
	var modes pipeline.ModeSet

	root := &cobra.Command{
		Use:   "flakeload",
		Short: "Provision Snowflake objects and bulk-load synthetic data",
		Long: `flakeload provisions a Snowflake role, warehouse, database and schema,
then loads generated customers (or a fixed CSV sample) through a
temporary stage with PUT and COPY INTO.

  flakeload --mode init_job          provision objects and grants
  flakeload --mode run               generate and load the dataset
  flakeload --mode init_job,run      both, in that order`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if modes.Empty() {
				return fmt.Errorf("at least one --mode is required (init_job, run)")
			}
			return a.withSettings(cmd, func(ctx context.Context, s *config.Settings, logger *slog.Logger) error {
				return a.runModes(ctx, s, logger, modes)
			})
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.Flags().Var(&modes, "mode", "job to run: init_job, run (repeatable or comma separated)")
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML settings file (default ./flakeload.yaml or ~/.flakeload/flakeload.yaml)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(newOrdersCmd(a), newConfigCmd(a), newVersionCmd())

	return root
}

func (a *app) runModes(ctx context.Context, s *config.Settings, logger *slog.Logger, modes pipeline.ModeSet) error {
	printer := ui.NewPrinter(a.stdout, a.noColor)
	printer.ShowHeader("flakeload " + modes.String())

	runner := &pipeline.Runner{
		Settings: s,
		Opener:   a.opener(logger),
		Logger:   logger,
		Reporter: printer,
	}
	report, err := runner.Run(ctx, modes)
	printer.ShowSummary(report)
	if err != nil {
		return err
	}
	printer.ShowSuccess(fmt.Sprintf("%d steps completed", len(report.Steps)))
	return nil
}

// withSettings loads settings, builds the logger and logs a failure of fn
// before returning it.
func (a *app) withSettings(cmd *cobra.Command, fn func(ctx context.Context, s *config.Settings, logger *slog.Logger) error) error {
	s, err := a.loadSettings(a.configFile)
	if err != nil {
		return err
	}

	logger, closeLog, err := observability.NewLogger(s.Log, observability.LoggerOptions{
		Console: a.stdout,
		NoColor: a.noColor,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); cerr != nil {
			fmt.Fprintf(a.stderr, "failed to close log file: %v\n", cerr)
		}
	}()

	logger.Debug("Resolved settings", slog.Any("sources", s.Sources))
	if err := fn(cmd.Context(), s, logger); err != nil {
		logger.Error("Command failed", slog.String("command", cmd.CommandPath()), slog.Any("error", err))
		return err
	}
	return nil
}
