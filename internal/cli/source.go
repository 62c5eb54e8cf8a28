package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/apitrace/internal/cli/helpers"
	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/generator"
	"github.com/coral-mesh/apitrace/internal/registry"
)

// loadConfig loads the annotation file and builds the command logger.
func loadConfig(cmd *cobra.Command, opts *globalOptions, src *helpers.SourceFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFile(src.Config)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, opts.logger(cmd, cfg.Log.Level), nil
}

// session is the result of one generator run.
type session struct {
	model  *generator.Model
	diags  errors.Diagnostics
	logger zerolog.Logger
	gen    *generator.Generator
}

// generate loads both inputs and runs the generator.
func generate(cmd *cobra.Command, opts *globalOptions, src *helpers.SourceFlags) (*session, error) {
	cfg, logger, err := loadConfig(cmd, opts, src)
	if err != nil {
		return nil, err
	}

	reg, err := registry.LoadFile(src.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	logger.Debug().
		Str("registry", src.Registry).
		Int("commands", len(reg.Commands)).
		Int("structs", len(reg.Structs)).
		Msg("Loaded registry")

	gen := generator.New(cfg, reg, logger)
	m, diags, err := gen.Generate()
	if err != nil {
		return nil, err
	}
	return &session{model: m, diags: diags, logger: logger, gen: gen}, nil
}

// logDiagnostics logs every finding at warn level.
func logDiagnostics(logger zerolog.Logger, diags errors.Diagnostics) {
	for _, d := range diags {
		logger.Warn().
			Str("severity", string(d.Severity)).
			Str("function", d.Function).
			Str("field", d.Field).
			Msg(d.Message)
	}
}
