package testutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/registry"
	"github.com/coral-mesh/apitrace/internal/types"
)

// RepoPath returns a path relative to the repository root.
func RepoPath(parts ...string) string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "..", "..")
	return filepath.Join(append([]string{root}, parts...)...)
}

// RegistryPath is the fixture registry document.
func RegistryPath() string {
	return RepoPath("internal", "registry", "testdata", "cl.xml")
}

// ConfigPath is the fixture annotation file.
func ConfigPath() string {
	return RepoPath("internal", "config", "testdata", "opencl.yaml")
}

// Registry loads the fixture registry.
func Registry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.LoadFile(RegistryPath())
	if err != nil {
		t.Fatalf("failed to load fixture registry: %v", err)
	}
	return reg
}

// Config loads the fixture annotation file on top of the defaults.
func Config(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFile(ConfigPath())
	if err != nil {
		t.Fatalf("failed to load fixture config: %v", err)
	}
	return cfg
}

// Resolver builds a type resolver over cfg and reg.
func Resolver(t *testing.T, cfg *config.Config, reg *registry.Registry) *types.Resolver {
	t.Helper()
	tables, err := cfg.ResolverTables(reg.TypedefMap(), reg.StructNames())
	if err != nil {
		t.Fatalf("failed to build type tables: %v", err)
	}
	return types.NewResolver(tables)
}
