package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/types"
)

func TestLoadFile_Fixture(t *testing.T) {
	cfg, err := LoadFile("testdata/opencl.yaml")
	require.NoError(t, err)

	assert.Equal(t, "lttng_ust_opencl", cfg.Provider)

	// Defaults survive sections the file does not mention.
	assert.Equal(t, DefaultMatchers(), cfg.Conventions.Matchers)
	assert.Equal(t, "cl_int", cfg.Conventions.StatusType)
	assert.Contains(t, cfg.Types.Handles, "cl_context")

	ctx := cfg.MetaParameters["clCreateContext"]
	require.Len(t, ctx, 2)
	assert.Equal(t, MetaInNullArray, ctx[0].Kind)
	assert.Equal(t, []string{"devices", "num_devices"}, ctx[1].Args)

	custom := cfg.MetaParameters["clCreateSubDevicesEXT"][0]
	assert.Equal(t, MetaInCustomArray, custom.Kind)
	assert.Contains(t, custom.Arg(1, ""), "_properties_size = 0;")

	assert.Equal(t, []StructEntry{{Param: "image_format", Struct: "cl_image_format"}}, cfg.MetaStructs["clCreateImage2D"])

	require.Len(t, cfg.Hooks, 6)
	assert.Equal(t, `name.startsWith("clEnqueue")`, cfg.Hooks[0].When)
	assert.Equal(t, []string{"clCreateBuffer"}, cfg.Hooks[1].Functions)

	require.Len(t, cfg.Enums, 4)
	assert.Equal(t, "cl_command_execution_status", cfg.Enums[2].TypeName)
}

func TestLoadFile_Empty(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, cfg.Provider)
	assert.True(t, cfg.Filters.Extension.MatchString("clCreateProgramWithILKHR"))
}

func TestLoadFile_NotExists(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_MergesMaps(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
types:
  overrides:
    cl_GLsizei: int
  int_scalars:
    cl_bool:
      width: 32
`))
	require.NoError(t, err)

	assert.Equal(t, "int", cfg.Types.Overrides["cl_GLsizei"])
	assert.Equal(t, "int", cfg.Types.Overrides["cl_GLint"])
	assert.Equal(t, IntScalar{Width: 32}, cfg.Types.IntScalars["cl_bool"])
	assert.Equal(t, IntScalar{Width: 32, Signed: true}, cfg.Types.IntScalars["cl_int"])
}

func TestLoad_ReplacesLists(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
conventions:
  matchers:
    - {kind: out_scalar, param: errcode_ret}
filters:
  exclude: ["INTEL$"]
`))
	require.NoError(t, err)

	assert.Len(t, cfg.Conventions.Matchers, 1)
	require.Len(t, cfg.Filters.Exclude, 1)
	assert.True(t, cfg.Filters.Excluded("clFooINTEL"))
	assert.False(t, cfg.Filters.Excluded("clFooQCOM"))
	// Scalars of a partially written section keep their defaults.
	assert.Equal(t, DefaultCallbackMarker, cfg.Conventions.CallbackMarker)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "unknown field",
			input:   "providr: x\n",
			wantErr: "field providr not found",
		},
		{
			name:    "bad pattern",
			input:   "filters:\n  extension: \"(KHR\"\n",
			wantErr: "invalid pattern",
		},
		{
			name:    "empty meta parameter",
			input:   "meta_parameters:\n  clFoo:\n    - []\n",
			wantErr: "empty meta parameter",
		},
		{
			name:    "meta struct arity",
			input:   "meta_structs:\n  clFoo:\n    - [image_format]\n",
			wantErr: "needs [parameter, struct]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSave_RoundTripsAnnotations(t *testing.T) {
	cfg, err := LoadFile("testdata/opencl.yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, cfg))
	assert.Contains(t, buf.String(), "- [InArray, devices, num_devices]")
	assert.Contains(t, buf.String(), "- [image_format, cl_image_format]")

	again, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg.MetaParameters, again.MetaParameters)
	assert.Equal(t, cfg.Filters.Init.String(), again.Filters.Init.String())
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("APITRACE_PROVIDER", "lttng_ust_custom")
	t.Setenv("APITRACE_LOG_LEVEL", "debug")

	cfg, err := LoadFile("testdata/opencl.yaml")
	require.NoError(t, err)
	assert.Equal(t, "lttng_ust_custom", cfg.Provider)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromEnv_InvalidBool(t *testing.T) {
	t.Setenv("APITRACE_LOG_PRETTY", "maybe")

	err := MergeFromEnv(DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APITRACE_LOG_PRETTY")
}

func TestResolverTables(t *testing.T) {
	cfg := DefaultConfig()

	tables, err := cfg.ResolverTables(map[string]string{"cl_bool": "cl_uint"}, []string{"cl_image_format"})
	require.NoError(t, err)

	assert.Equal(t, types.ForeignPointer, tables.Foreign["size_t"])
	assert.Equal(t, types.IntScalar{Width: 32, Signed: true}, tables.Ints["cl_int"])

	r := types.NewResolver(tables)
	k, err := r.ResolveForeign("cl_half")
	require.NoError(t, err)
	assert.Equal(t, types.ForeignU16, k)

	tt, err := r.ResolveTrace("cl_bool")
	require.NoError(t, err)
	assert.Equal(t, types.TraceInt, tt.Kind)

	cfg.Types.Foreign["quad"] = "f128"
	_, err = cfg.ResolverTables(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestLoadFile_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: \"\"\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}
