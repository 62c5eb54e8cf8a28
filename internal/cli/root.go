package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/apitrace/internal/cli/helpers"
	"github.com/coral-mesh/apitrace/internal/logging"
	"github.com/coral-mesh/apitrace/pkg/version"
)

type globalOptions struct {
	logLevel string
	pretty   bool
}

// logger builds the command logger. The --log-level flag wins over the
// level from the annotation file.
func (o *globalOptions) logger(cmd *cobra.Command, configLevel string) zerolog.Logger {
	cfg := logging.DefaultConfig()
	cfg.Output = cmd.ErrOrStderr()
	cfg.Pretty = o.pretty
	cfg.Level = o.logLevel
	if !cmd.Flags().Changed("log-level") && configLevel != "" {
		cfg.Level = configLevel
	}
	return logging.NewWithComponent(cfg, cmd.Name())
}

// NewRootCmd creates the apitrace command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "apitrace",
		Short: "Generate trace models for C API registries",
		Long: `Build a tracing model from a C API registry (such as the OpenCL cl.xml)
and an annotation file.

The model describes, for every traced function, the entry and exit events and
their fields, the enums and bitfields, the object handle types and, for
extension functions, the foreign-call signature used to build trampolines.

Commands:
- model: generate the model as YAML or JSON
- events: show the events of traced functions as a tree
- signatures: list the extension function signatures
- check: report stale or inconsistent annotations
- config: print the effective configuration
- schema: print the annotation file JSON schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "Human-readable console logs")

	rootCmd.AddCommand(newModelCmd(opts))
	rootCmd.AddCommand(newEventsCmd(opts))
	rootCmd.AddCommand(newSignaturesCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	var format string
	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatYAML}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, supported); err != nil {
				return err
			}
			info := version.Get()
			if f := helpers.OutputFormat(format); f != helpers.FormatTable {
				return writeFormatted(cmd.OutOrStdout(), f, info)
			}
			cmd.Printf("apitrace version %s\n", info.Version)
			cmd.Printf("Git commit: %s\n", info.GitCommit)
			cmd.Printf("Build date: %s\n", info.BuildDate)
			cmd.Printf("Go version: %s\n", info.GoVersion)
			return nil
		},
	}
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
