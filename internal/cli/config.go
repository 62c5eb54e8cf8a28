package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/apitrace/internal/cli/helpers"
	"github.com/coral-mesh/apitrace/internal/config"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	var src helpers.SourceFlags

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after layering the annotation file and the
APITRACE_* environment variables on top of the built-in defaults.

Without --config the built-in OpenCL defaults are printed, which is a
convenient starting point for a new annotation file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, opts, &src)
			if err != nil {
				return err
			}
			logger.Debug().Str("config", src.Config).Msg("Loaded config")
			return config.Save(cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVarP(&src.Config, "config", "c", "", "Annotation file layered on the built-in defaults")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the annotation file JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.SchemaJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
