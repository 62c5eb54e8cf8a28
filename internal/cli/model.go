package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/apitrace/internal/cli/helpers"
	"github.com/coral-mesh/apitrace/internal/safe"
)

func newModelCmd(opts *globalOptions) *cobra.Command {
	var (
		src    helpers.SourceFlags
		format string
		out    string
	)

	supported := []helpers.OutputFormat{helpers.FormatYAML, helpers.FormatJSON}

	cmd := &cobra.Command{
		Use:   "model",
		Short: "Generate the trace model",
		Long: `Generate the trace model of every traced function in the registry.

Functions are traced unless an exclusion filter matches them; supported
extension functions are always traced. Annotation mistakes that make the
model unbuildable abort the run. Stale annotations are reported as warnings
and the affected fields are left out of the model.`,
		Example: `  apitrace model -r cl.xml -c opencl.yaml
  apitrace model -r cl.xml -o json --out model.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, supported); err != nil {
				return err
			}

			s, err := generate(cmd, opts, &src)
			if err != nil {
				return err
			}
			logDiagnostics(s.logger, s.diags)
			m := s.model

			if out == "" {
				return writeFormatted(cmd.OutOrStdout(), helpers.OutputFormat(format), m)
			}
			err = safe.WriteFile(out, 0o644, func(w io.Writer) error {
				return writeFormatted(w, helpers.OutputFormat(format), m)
			})
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			s.logger.Info().Str("path", out).Str("fingerprint", m.Fingerprint).Msg("Wrote model")
			return nil
		},
	}

	src.Register(cmd)
	helpers.AddFormatFlag(cmd, &format, helpers.FormatYAML, supported)
	cmd.Flags().StringVar(&out, "out", "", "Write the model to a file instead of stdout")

	return cmd
}

func writeFormatted(w io.Writer, format helpers.OutputFormat, data any) error {
	formatter, err := helpers.NewFormatter(format)
	if err != nil {
		return err
	}
	return formatter.Format(data, w)
}
