package cli

import (
	"fmt"
	"io"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/apitrace/internal/cli/helpers"
	"github.com/coral-mesh/apitrace/internal/generator"
	"github.com/coral-mesh/apitrace/internal/model"
)

func newEventsCmd(opts *globalOptions) *cobra.Command {
	var (
		src      helpers.SourceFlags
		format   string
		function string
	)

	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatYAML}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the entry and exit events of traced functions",
		Long: `Show the events of every traced function as a tree: the function, its
start and stop events, and the fields of each event with their encoding,
type and value expression.`,
		Example: `  apitrace events -r cl.xml -c opencl.yaml --function '^clEnqueue'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := helpers.ValidateFormat(format, supported); err != nil {
				return err
			}
			filter, err := regexp.Compile(function)
			if err != nil {
				return fmt.Errorf("invalid --function pattern: %w", err)
			}

			s, err := generate(cmd, opts, &src)
			if err != nil {
				return err
			}
			logDiagnostics(s.logger, s.diags)

			set := generator.EventSet{Provider: s.model.Provider}
			for _, ev := range s.model.Events.List {
				if filter.MatchString(ev.Function) {
					set.List = append(set.List, ev)
				}
			}

			if f := helpers.OutputFormat(format); f != helpers.FormatTable {
				return writeFormatted(cmd.OutOrStdout(), f, set)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), helpers.RenderTree(eventTree(set)))
			return err
		},
	}

	src.Register(cmd)
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	cmd.Flags().StringVar(&function, "function", "", "Only show functions matching this regular expression")

	return cmd
}

// eventTree groups the events of set by function, keeping their order.
func eventTree(set generator.EventSet) []helpers.TreeNode {
	var (
		roots []helpers.TreeNode
		last  *helpers.Node
	)
	for _, ev := range set.List {
		if last == nil || last.Name != ev.Function {
			last = &helpers.Node{Name: ev.Function}
			roots = append(roots, last)
		}
		node := last.Add(ev.Name(set.Provider))
		for _, f := range ev.Fields() {
			node.Add(fieldLabel(f))
		}
	}
	return roots
}

func fieldLabel(f model.Field) string {
	label := fmt.Sprintf("%s: %s", f.Name, f.Encoding)
	if f.Type != "" {
		label += " " + f.Type
	}
	if f.Length != "" {
		label += fmt.Sprintf("[%s]", f.Length)
	}
	return label + " = " + f.Value
}
