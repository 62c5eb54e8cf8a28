package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/apitrace/internal/cli/helpers"
	"github.com/coral-mesh/apitrace/internal/errors"
)

func newCheckCmd(opts *globalOptions) *cobra.Command {
	var (
		src    helpers.SourceFlags
		format string
		strict bool
	)

	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatYAML}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report stale or inconsistent annotations",
		Long: `Generate the model and report every finding instead of the model itself.

Errors are event fields whose source could not be derived, usually because
an annotation refers to a parameter that was renamed. Warnings cover
duplicate fields, enums without constants, annotations for untraced
functions and typedefs that do not resolve.

With --strict, the command exits non-zero when any error is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, supported); err != nil {
				return err
			}

			s, err := generate(cmd, opts, &src)
			if err != nil {
				return err
			}
			m, diags := s.model, s.diags

			switch helpers.OutputFormat(format) {
			case helpers.FormatTable:
				err = helpers.RenderReport(cmd.OutOrStdout(), helpers.Report{
					Registry:    src.Registry,
					Fingerprint: m.Fingerprint,
					Commands:    len(m.Commands),
					Events:      len(m.Events.List),
					Signatures:  len(m.Signatures),
					Diagnostics: diags,
				})
			default:
				if diags == nil {
					diags = errors.Diagnostics{}
				}
				err = writeFormatted(cmd.OutOrStdout(), helpers.OutputFormat(format), diags)
			}
			if err != nil {
				return err
			}

			if strict && diags.HasErrors() {
				return fmt.Errorf("%d derivation errors: %w", diags.Count(errors.SeverityError), diags.Err())
			}
			return nil
		},
	}

	src.Register(cmd)
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	helpers.AddStrictFlag(cmd, &strict)

	return cmd
}
