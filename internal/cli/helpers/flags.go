package helpers

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// AddFormatFlag adds a standard --format/-o flag to a command.
// Validates that the format is in the supportedFormats list.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supportedFormats []OutputFormat) {
	formatNames := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formatNames[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(formatNames, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "o", string(defaultFormat), description)

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return formatNames, cobra.ShellCompDirectiveNoFileComp
	})
}

// SourceFlags locate the registry document and the annotation file.
type SourceFlags struct {
	Registry string
	Config   string
}

// AddFlags adds --registry/-r and --config/-c to a FlagSet.
func (f *SourceFlags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&f.Registry, "registry", "r", "", "API registry XML document (e.g. cl.xml)")
	flags.StringVarP(&f.Config, "config", "c", "", "Annotation file layered on the built-in defaults")
}

// Register adds the source flags to cmd, marks --registry required and
// restricts completion to the expected file extensions.
func (f *SourceFlags) Register(cmd *cobra.Command) {
	f.AddFlags(cmd.Flags())
	_ = cmd.MarkFlagRequired("registry")
	_ = cmd.MarkFlagFilename("registry", "xml")
	_ = cmd.MarkFlagFilename("config", "yaml", "yml")
}

// AddStrictFlag adds a standard --strict flag.
func AddStrictFlag(cmd *cobra.Command, strictVar *bool) {
	cmd.Flags().BoolVar(strictVar, "strict", false, "Exit non-zero when any derivation mismatch is found")
}

// ValidateFormat checks if the format is in the supported list.
func ValidateFormat(format string, supported []OutputFormat) error {
	for _, s := range supported {
		if format == string(s) {
			return nil
		}
	}

	supportedNames := make([]string, len(supported))
	for i, s := range supported {
		supportedNames[i] = string(s)
	}

	return fmt.Errorf("unsupported format %q, must be one of: %s",
		format, strings.Join(supportedNames, ", "))
}
