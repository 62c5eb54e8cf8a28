package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/apitrace/internal/cli/helpers"
	"github.com/coral-mesh/apitrace/internal/trampoline"
	"github.com/coral-mesh/apitrace/internal/types"
)

type signatureRow struct {
	Function   string `header:"FUNCTION"`
	Return     string `header:"RETURN"`
	Args       string `header:"ARGS"`
	Trampoline string `header:"TRAMPOLINE"`
}

func newSignaturesCmd(opts *globalOptions) *cobra.Command {
	var (
		src    helpers.SourceFlags
		format string
		probe  bool
	)

	supported := []helpers.OutputFormat{helpers.FormatTable, helpers.FormatJSON, helpers.FormatYAML, helpers.FormatCSV}

	cmd := &cobra.Command{
		Use:   "signatures",
		Short: "List foreign-call signatures of extension functions",
		Long: `List the foreign-call signature of every traced extension function.

Extension functions are not exported by the loader and are reached through
the address returned by clGetExtensionFunctionAddress. Their signatures
describe the trampolines built for those addresses.

With --probe, a trampoline is built for every signature and called once with
zeroed arguments against a recording dispatcher, which checks that each
signature can be instantiated.`,
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

			f := helpers.OutputFormat(format)
			if !probe && (f == helpers.FormatJSON || f == helpers.FormatYAML) {
				return writeFormatted(cmd.OutOrStdout(), f, s.model.Signatures)
			}

			rows := signatureRows(s.model.Signatures)
			if probe {
				if err := probeTrampolines(cmd.Context(), s, rows); err != nil {
					return err
				}
			}
			return writeFormatted(cmd.OutOrStdout(), f, rows)
		},
	}

	src.Register(cmd)
	helpers.AddFormatFlag(cmd, &format, helpers.FormatTable, supported)
	cmd.Flags().BoolVar(&probe, "probe", false, "Build and call a trampoline for every signature")

	return cmd
}

func signatureRows(sigs map[string]trampoline.Signature) []signatureRow {
	names := make([]string, 0, len(sigs))
	for name := range sigs {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]signatureRow, len(names))
	for i, name := range names {
		sig := sigs[name]
		args := make([]string, len(sig.Args))
		for j, a := range sig.Args {
			args[j] = a.String()
		}
		rows[i] = signatureRow{
			Function:   name,
			Return:     sig.Return.String(),
			Args:       strings.Join(args, ", "),
			Trampoline: "-",
		}
	}
	return rows
}

// probeTrampolines resolves every row through the trampoline cache with a
// synthetic address and checks that the call reaches the dispatcher.
func probeTrampolines(ctx context.Context, s *session, rows []signatureRow) error {
	if ctx == nil {
		ctx = context.Background()
	}

	resolver, err := s.gen.Resolver()
	if err != nil {
		return err
	}

	echo := trampoline.DispatcherFunc(func(_ context.Context, call trampoline.Call) (uint64, error) {
		if len(call.Args) != len(call.Signature.Args) {
			return 0, fmt.Errorf("%s: got %d arguments, want %d", call.Function, len(call.Args), len(call.Signature.Args))
		}
		return uint64(call.Target), nil
	})
	alloc := trampoline.NewWazeroAllocator(ctx, echo)
	defer func() {
		if err := alloc.Close(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close trampoline runtime")
		}
	}()

	cache := trampoline.NewCache(resolver, alloc, s.logger)
	extensions := trampoline.NewResolver(s.model.Commands, cache)

	for i := range rows {
		target := uintptr(i+1) << 12
		t, ok, err := extensions.Resolve(ctx, rows[i].Function, target)
		if err != nil {
			rows[i].Trampoline = "build failed"
			continue
		}
		if !ok {
			continue
		}

		ret, err := t.Call(ctx, make([]uint64, len(t.Signature.Args))...)
		switch {
		case err != nil:
			rows[i].Trampoline = "call failed"
			s.logger.Warn().Err(err).Str("function", rows[i].Function).Msg("Trampoline call failed")
		case t.Signature.Return != types.ForeignVoid && ret != uint64(target):
			rows[i].Trampoline = fmt.Sprintf("returned %#x", ret)
		default:
			rows[i].Trampoline = t.Name()
		}
	}

	s.logger.Info().
		Int("extensions", extensions.Extensions()).
		Int("trampolines", cache.Len()).
		Int64("builds", cache.Builds()).
		Msg("Probed trampolines")
	return nil
}
