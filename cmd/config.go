package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"flakeload/pkg/errors"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSettings(a.configFile)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(s.Redacted())
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to render settings")
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
