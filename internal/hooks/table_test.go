package hooks

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/model"
	"github.com/coral-mesh/apitrace/internal/testutil"
)

func commands(t *testing.T, cfg *config.Config) []*model.Command {
	t.Helper()
	reg := testutil.Registry(t)
	b := model.NewBuilder(cfg, testutil.Resolver(t, cfg, reg), reg.StructMap(), zerolog.Nop())

	var out []*model.Command
	for _, node := range reg.Commands {
		if cfg.Filters.Excluded(node.Name()) {
			continue
		}
		cmd, err := b.Build(node)
		require.NoError(t, err, node.Name())
		out = append(out, cmd)
	}
	return out
}

func TestCompileSelector(t *testing.T) {
	tests := []struct {
		expr    string
		attrs   Attributes
		want    bool
		wantErr bool
	}{
		{expr: `name.startsWith("clEnqueue")`, attrs: Attributes{Name: "clEnqueueReadBuffer"}, want: true},
		{expr: `name.startsWith("clEnqueue")`, attrs: Attributes{Name: "clCreateBuffer"}, want: false},
		{expr: `event_output && !returns_event`, attrs: Attributes{EventOutput: true}, want: true},
		{expr: `event_output && !returns_event`, attrs: Attributes{EventOutput: true, ReturnsEvent: true}, want: false},
		{expr: `extension || init`, attrs: Attributes{Init: true}, want: true},
		{expr: `name.matches("^clSVM")`, attrs: Attributes{Name: "clSVMFree"}, want: true},
		{expr: `name`, wantErr: true},
		{expr: `unknown_attribute`, wantErr: true},
		{expr: `name.startsWith(`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sel, err := CompileSelector(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, sel.String())

			got, err := sel.Match(tt.attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild_FixtureHooks(t *testing.T) {
	cfg := testutil.Config(t)
	cmds := commands(t, cfg)

	table, err := Build(cfg, cmds, testutil.NewTestLogger(t))
	require.NoError(t, err)

	t.Run("enqueue selects counter and profiling", func(t *testing.T) {
		pro := table.Prologues("clEnqueueReadBuffer")
		require.Len(t, pro, 2)
		assert.Contains(t, pro[0], "tracepoint(lttng_ust_opencl_dump, enqueue_counter, _enqueue_counter);")
		assert.Contains(t, pro[1], "tracepoint_enabled(lttng_ust_opencl_profiling, event_profiling)")

		epi := table.Epilogues("clEnqueueReadBuffer")
		require.Len(t, epi, 1)
		assert.Contains(t, epi[0], "clSetEventCallback_ptr(*event, CL_COMPLETE, event_notify, NULL);")
		assert.Contains(t, epi[0], "clReleaseEvent_ptr(*event);")
		assert.NotContains(t, epi[0], "{{")
	})

	t.Run("explicit functions keep registration order", func(t *testing.T) {
		require.Len(t, table.Prologues("clCreateBuffer"), 1)
		require.Len(t, table.Epilogues("clCreateBuffer"), 1)
		assert.Contains(t, table.Epilogues("clCreateBuffer")[0], "add_buffer(_retval, size);")
		assert.Empty(t, table.Prologues("clSVMAlloc"))
		assert.Len(t, table.Epilogues("clSVMAlloc"), 1)
		assert.Len(t, table.Prologues("clSVMFree"), 1)
	})

	t.Run("returned event", func(t *testing.T) {
		assert.Empty(t, table.Prologues("clCreateUserEvent"))
		epi := table.Epilogues("clCreateUserEvent")
		require.Len(t, epi, 1)
		assert.Contains(t, epi[0], "clSetEventCallback_ptr(_retval, CL_COMPLETE, event_notify, NULL);")
	})

	t.Run("unselected", func(t *testing.T) {
		assert.Empty(t, table.Prologues("clGetPlatformIDs"))
		assert.Empty(t, table.Epilogues("clReleaseEvent"))
	})

	t.Run("apply", func(t *testing.T) {
		var cmd *model.Command
		for _, c := range cmds {
			if c.Name() == "clCreateBuffer" {
				cmd = c
			}
		}
		require.NotNil(t, cmd)
		table.Apply(cmd)
		assert.Equal(t, table.Prologues("clCreateBuffer"), cmd.Prologues)
		assert.Equal(t, table.Epilogues("clCreateBuffer"), cmd.Epilogues)
	})
}

func TestBuild_TemplateData(t *testing.T) {
	cfg := testutil.Config(t)
	cfg.Provider = "my_provider"
	cfg.Hooks = []config.HookEntry{{
		Functions: []string{"clSVMFree"},
		Prologue:  `/* {{ .Name }} {{ .Provider }} {{ pointer_type .Name }} */`,
	}}

	table, err := Build(cfg, commands(t, cfg), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"/* clSVMFree my_provider clSVMFree_t */"}, table.Prologues("clSVMFree"))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		hook config.HookEntry
		kind errors.Kind
	}{
		{
			name: "unknown function",
			hook: config.HookEntry{Functions: []string{"clNoSuchFunction"}, Prologue: "x"},
			kind: errors.KindMissingParameter,
		},
		{
			name: "pointer to unknown command",
			hook: config.HookEntry{Functions: []string{"clSVMFree"}, Epilogue: `{{ pointer "clNoSuchFunction" }}();`},
			kind: errors.KindMissingParameter,
		},
		{
			name: "invalid template",
			hook: config.HookEntry{Functions: []string{"clSVMFree"}, Prologue: `{{ pointer `},
			kind: errors.KindInvalidConfig,
		},
		{
			name: "non boolean selector",
			hook: config.HookEntry{When: `name + "x"`, Prologue: "x"},
			kind: errors.KindInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutil.Config(t)
			cfg.Hooks = []config.HookEntry{tt.hook}

			_, err := Build(cfg, commands(t, cfg), zerolog.Nop())
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrConfiguration)
			assert.ErrorIs(t, err, &errors.Error{Kind: tt.kind})
		})
	}
}

func TestAttributesOf(t *testing.T) {
	cfg := testutil.Config(t)
	byName := map[string]Attributes{}
	for _, cmd := range commands(t, cfg) {
		byName[cmd.Name()] = AttributesOf(cmd)
	}

	assert.Equal(t, Attributes{Name: "clCreateSubDevicesEXT", Extension: true}, byName["clCreateSubDevicesEXT"])
	assert.Equal(t, Attributes{Name: "clGetPlatformIDs", Init: true}, byName["clGetPlatformIDs"])
	assert.Equal(t, Attributes{Name: "clCreateUserEvent", ReturnsEvent: true, EventOutput: true}, byName["clCreateUserEvent"])
	assert.Equal(t, Attributes{Name: "clEnqueueNDRangeKernel", EventOutput: true}, byName["clEnqueueNDRangeKernel"])
}
