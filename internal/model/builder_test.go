package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/apitrace/internal/config"
	"github.com/coral-mesh/apitrace/internal/errors"
	"github.com/coral-mesh/apitrace/internal/registry"
	"github.com/coral-mesh/apitrace/internal/testutil"
)

type fixture struct {
	reg *registry.Registry
	cfg *config.Config
	b   *Builder
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	reg := testutil.Registry(t)
	cfg := testutil.Config(t)
	for _, m := range mutate {
		m(cfg)
	}
	r := testutil.Resolver(t, cfg, reg)
	return &fixture{
		reg: reg,
		cfg: cfg,
		b:   NewBuilder(cfg, r, reg.StructMap(), testutil.NewTestLogger(t)),
	}
}

func (f *fixture) build(t *testing.T, name string) *Command {
	t.Helper()
	node, ok := f.reg.Command(name)
	require.True(t, ok, "fixture has no command %s", name)
	cmd, err := f.b.Build(node)
	require.NoError(t, err)
	return cmd
}

func (f *fixture) buildErr(t *testing.T, name string) error {
	t.Helper()
	node, ok := f.reg.Command(name)
	require.True(t, ok, "fixture has no command %s", name)
	_, err := f.b.Build(node)
	require.Error(t, err)
	return err
}

func metaFields(cmd *Command) []string {
	var out []string
	for _, m := range cmd.MetaParameters {
		out = append(out, m.Field().Name)
	}
	return out
}

func TestBuild_CreateContext(t *testing.T) {
	f := newFixture(t)
	cmd := f.build(t, "clCreateContext")

	assert.True(t, cmd.IsInit())
	assert.False(t, cmd.IsExtension())
	assert.False(t, cmd.HasEventOutput())

	traced := map[string]*Field{}
	for _, p := range cmd.Parameters {
		traced[p.Name] = p.Trace
	}
	require.NotNil(t, traced["num_devices"])
	assert.Equal(t, Field{Name: "num_devices", Encoding: EncInteger, Type: "cl_uint", Value: "num_devices"}, *traced["num_devices"])
	require.NotNil(t, traced["pfn_notify"])
	assert.Equal(t, EncIntegerHex, traced["pfn_notify"].Encoding)
	assert.Nil(t, traced["devices"])
	assert.Nil(t, traced["properties"])
	assert.Nil(t, traced["errcode_ret"])

	require.NotNil(t, cmd.Prototype.Return)
	assert.Equal(t, "context", cmd.Prototype.Return.Name)
	assert.Equal(t, EncIntegerHex, cmd.Prototype.Return.Encoding)

	assert.Equal(t, []string{"errcode_ret_val", "properties_vals", "devices_vals"}, metaFields(cmd))

	errcode := cmd.MetaParameters[0]
	assert.IsType(t, &OutScalar{}, errcode)
	assert.Equal(t, Exit, errcode.Direction())
	assert.Equal(t, Field{
		Name:     "errcode_ret_val",
		Encoding: EncInteger,
		Type:     "cl_int",
		Value:    "errcode_ret == NULL ? 0 : *errcode_ret",
	}, errcode.Field())

	props, ok := cmd.MetaParameters[1].(*InNullArray)
	require.True(t, ok)
	assert.Equal(t, "_properties_size", props.Size.Name)
	assert.Contains(t, props.Size.Setup, "while(properties[_properties_size++] != 0);")
	assert.Equal(t, Field{
		Name:       "properties_vals",
		Encoding:   EncSequence,
		Type:       "intptr_t",
		Value:      "properties",
		Length:     "properties == NULL ? 0 : _properties_size",
		LengthType: "size_t",
	}, props.Field())

	local, ok := cmd.Local("_properties_size")
	require.True(t, ok)
	assert.Equal(t, "size_t", local.Type)

	devices := cmd.MetaParameters[2]
	assert.Equal(t, Entry, devices.Direction())
	assert.Equal(t, Field{
		Name:       "devices_vals",
		Encoding:   EncSequenceHex,
		Type:       "intptr_t",
		Value:      "devices",
		Length:     "devices == NULL ? 0 : num_devices",
		LengthType: "cl_uint",
	}, devices.Field())
}

func TestBuild_AutomaticMatchers(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		command string
		want    []string
	}{
		{"clEnqueueReadBuffer", []string{"event_wait_list_vals", "event_val"}},
		{"clGetDeviceInfo", []string{"param_value_size_ret_val", "param_value_vals"}},
		{"clReleaseEvent", nil},
		{"clCreateBuffer", []string{"errcode_ret_val"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd := f.build(t, tt.command)
			assert.Equal(t, tt.want, metaFields(cmd))
		})
	}
}

func TestBuild_WaitListAndEvent(t *testing.T) {
	f := newFixture(t)
	cmd := f.build(t, "clEnqueueReadBuffer")

	assert.True(t, cmd.HasEventOutput())
	assert.False(t, cmd.ReturnsEvent())

	wait := cmd.MetaParameters[0].Field()
	assert.Equal(t, EncSequenceHex, wait.Encoding)
	assert.Equal(t, "cl_uint", wait.LengthType)
	assert.Equal(t, "event_wait_list == NULL ? 0 : num_events_in_wait_list", wait.Length)

	ev := cmd.MetaParameters[1].Field()
	assert.Equal(t, EncIntegerHex, ev.Encoding)
	assert.Equal(t, "event == NULL ? 0 : *event", ev.Value)

	// The `event` handle passed by value is not an event output.
	release := f.build(t, "clReleaseEvent")
	assert.False(t, release.HasEventOutput())
	user := f.build(t, "clCreateUserEvent")
	assert.True(t, user.ReturnsEvent())
	assert.True(t, user.HasEventOutput())
}

func TestBuild_ParamValueBuffer(t *testing.T) {
	f := newFixture(t)
	cmd := f.build(t, "clGetDeviceInfo")

	sizeRet := cmd.MetaParameters[0].Field()
	assert.Equal(t, EncInteger, sizeRet.Encoding)
	assert.Equal(t, "size_t", sizeRet.Type)

	value, ok := cmd.MetaParameters[1].(*OutArray)
	require.True(t, ok)
	assert.Equal(t, "param_value_size", value.Count)
	assert.Equal(t, Exit, value.Direction())
	assert.Equal(t, EncSequenceText, value.Field().Encoding)
	assert.Equal(t, "uint8_t", value.Field().Type)
	assert.Equal(t, "size_t", value.Field().LengthType)
}

func TestBuild_DoublePointerDecays(t *testing.T) {
	f := newFixture(t)
	cmd := f.build(t, "clCreateProgramWithSource")

	p, ok := cmd.Parameter("strings")
	require.True(t, ok)
	assert.Equal(t, "char*", p.Type)
	assert.True(t, p.Pointer)

	var strs, lengths Field
	for _, m := range cmd.MetaParameters {
		switch m.Param() {
		case "strings":
			strs = m.Field()
		case "lengths":
			lengths = m.Field()
		}
	}
	assert.Equal(t, EncSequenceHex, strs.Encoding)
	assert.Equal(t, "intptr_t", strs.Type)
	assert.Equal(t, EncSequence, lengths.Encoding)
	assert.Equal(t, "size_t", lengths.Type)
}

func TestBuild_StructMembers(t *testing.T) {
	f := newFixture(t)
	cmd := f.build(t, "clCreateImage2D")

	members := cmd.StructMembers()
	require.Len(t, members, 2)
	assert.Equal(t, Field{
		Name:     "image_format_image_channel_order",
		Encoding: EncInteger,
		Type:     "cl_uint",
		Value:    "image_format != NULL ? image_format->image_channel_order : 0",
	}, members[0].Field())
	assert.Equal(t, "image_channel_data_type", members[1].Member.Name)

	// Struct expansions come after the automatic matchers.
	assert.Equal(t, "errcode_ret_val", cmd.MetaParameters[0].Field().Name)
}

func TestMember_ValueIsNullGuarded(t *testing.T) {
	reg := testutil.Registry(t)
	for _, s := range reg.Structs {
		for _, d := range s.Members {
			for _, prefix := range []string{"p", "image_format", "region"} {
				m := Member{Declaration: newDeclaration(d), Prefix: prefix}
				assert.True(t, strings.HasPrefix(m.Value(), prefix+" != NULL ? "), m.Value())
				assert.True(t, strings.HasSuffix(m.Value(), " : 0"), m.Value())
			}
		}
	}
}

func TestBuild_BlobAndCustomArray(t *testing.T) {
	f := newFixture(t)

	sub := f.build(t, "clCreateSubBuffer")
	var blob *InBlob
	for _, m := range sub.MetaParameters {
		if b, ok := m.(*InBlob); ok {
			blob = b
		}
	}
	require.NotNil(t, blob)
	assert.Equal(t, Field{
		Name:       "buffer_create_info_vals",
		Encoding:   EncSequenceHex,
		Type:       "uint8_t",
		Value:      "buffer_create_info",
		LengthType: "size_t",
		Length:     "buffer_create_info == NULL ? 0 : (buffer_create_type == CL_BUFFER_CREATE_TYPE_REGION ? sizeof(cl_buffer_region) : 0)",
	}, blob.Field())

	dev := f.build(t, "clCreateSubDevicesEXT")
	assert.True(t, dev.IsExtension())
	custom, ok := dev.MetaParameters[0].(*InCustomArray)
	require.True(t, ok)
	assert.Equal(t, f.cfg.MetaParameters["clCreateSubDevicesEXT"][0].Args[1], custom.Size.Setup)
	assert.Equal(t, "properties == NULL ? 0 : _properties_size", custom.Field().Length)
	assert.Equal(t, []string{"properties_vals", "out_devices_vals", "num_devices_val"}, metaFields(dev))
}

func TestBuild_FixedArray(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.MetaParameters["clEnqueueNDRangeKernel"] = []config.MetaEntry{
			{Kind: config.MetaInFixedArray, Args: []string{"global_work_size", "3"}},
		}
	})
	cmd := f.build(t, "clEnqueueNDRangeKernel")

	fixed := cmd.MetaParameters[len(cmd.MetaParameters)-1].Field()
	assert.Equal(t, EncArray, fixed.Encoding)
	assert.True(t, fixed.Encoding.IsArray())
	assert.Equal(t, "3", fixed.Length)
	assert.Empty(t, fixed.LengthType)
}

func TestBuild_FloatArray(t *testing.T) {
	f := newFixture(t)
	node := registry.Command{
		Proto: registry.NewDecl(registry.Type("cl_int"), registry.T(" "), registry.Name("clSetWeights")),
		Params: []registry.Decl{
			registry.NewDecl(registry.Type("cl_uint"), registry.T(" "), registry.Name("count")),
			registry.NewDecl(registry.T("const "), registry.Type("cl_float"), registry.T("* "), registry.Name("weights")),
			registry.NewDecl(registry.Type("cl_double"), registry.T(" "), registry.Name("scale")),
		},
	}
	f.cfg.MetaParameters["clSetWeights"] = []config.MetaEntry{{Kind: config.MetaInArray, Args: []string{"weights", "count"}}}

	cmd, err := f.b.Build(node)
	require.NoError(t, err)

	w := cmd.MetaParameters[0].Field()
	assert.Equal(t, EncSequenceHex, w.Encoding)
	assert.Equal(t, "cl_uint", w.Type)

	scale, _ := cmd.Parameter("scale")
	require.NotNil(t, scale.Trace)
	assert.Equal(t, EncFloat, scale.Trace.Encoding)
	assert.Equal(t, "cl_double", scale.Trace.Type)
}

func TestBuild_ReturnFields(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		command string
		want    *Field
	}{
		{"clSVMAlloc", &Field{Name: "_retval", Encoding: EncIntegerHex, Type: "intptr_t", Value: "_retval"}},
		{"clSVMFree", nil},
		{"clGetPlatformIDs", &Field{Name: "errcode_ret_val", Encoding: EncInteger, Type: "cl_int", Value: "_retval"}},
		{"clCreateBuffer", &Field{Name: "mem", Encoding: EncIntegerHex, Type: "intptr_t", Value: "_retval"}},
		{"clCreateCommandQueueWithPropertiesKHR", &Field{Name: "command_queue", Encoding: EncIntegerHex, Type: "intptr_t", Value: "_retval"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			cmd := f.build(t, tt.command)
			assert.Equal(t, tt.want, cmd.Prototype.Return)
		})
	}
}

func TestHandleFieldName(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "mem", f.b.handleFieldName("cl_mem"))
	assert.Equal(t, "eglImage", f.b.handleFieldName("CLeglImageKHR"))
	assert.Equal(t, "GLsync", f.b.handleFieldName("cl_GLsync"))
}

func TestBuild_VoidParameters(t *testing.T) {
	f := newFixture(t)
	cmd := f.build(t, "clUnloadCompiler")

	assert.True(t, cmd.VoidParameters())
	assert.Nil(t, cmd.Parameters[0].Trace)
	assert.Empty(t, cmd.MetaParameters)
}

func TestBuild_TracePointerAddresses(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Conventions.TracePointerAddresses = true })
	cmd := f.build(t, "clCreateContext")

	p, _ := cmd.Parameter("devices")
	require.NotNil(t, p.Trace)
	assert.Equal(t, Field{Name: "devices", Encoding: EncIntegerHex, Type: "intptr_t", Value: "devices"}, *p.Trace)
}

func TestBuild_AnnotationErrors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		mutate  func(*config.Config)
		kind    errors.Kind
		missing string
	}{
		{
			name:    "missing array parameter",
			command: "clReleaseEvent",
			mutate: func(c *config.Config) {
				c.MetaParameters["clReleaseEvent"] = []config.MetaEntry{{Kind: config.MetaInArray, Args: []string{"events", "num_events"}}}
			},
			kind:    errors.KindMissingParameter,
			missing: "events",
		},
		{
			name:    "missing count parameter",
			command: "clCreateContext",
			mutate: func(c *config.Config) {
				c.MetaParameters["clCreateContext"] = []config.MetaEntry{{Kind: config.MetaInArray, Args: []string{"devices"}}}
			},
			kind:    errors.KindMissingParameter,
			missing: "num_entries",
		},
		{
			name:    "missing out scalar",
			command: "clSVMFree",
			mutate: func(c *config.Config) {
				c.MetaParameters["clSVMFree"] = []config.MetaEntry{{Kind: config.MetaOutScalar, Args: []string{"size_ret"}}}
			},
			kind:    errors.KindMissingParameter,
			missing: "size_ret",
		},
		{
			name:    "missing struct parameter",
			command: "clCreateBuffer",
			mutate: func(c *config.Config) {
				c.MetaStructs["clCreateBuffer"] = []config.StructEntry{{Param: "region", Struct: "cl_buffer_region"}}
			},
			kind:    errors.KindMissingParameter,
			missing: "region",
		},
		{
			name:    "unknown struct",
			command: "clCreateSubBuffer",
			mutate: func(c *config.Config) {
				c.MetaStructs["clCreateSubBuffer"] = []config.StructEntry{{Param: "buffer_create_info", Struct: "cl_buffer_regoin"}}
			},
			kind:    errors.KindUnknownStruct,
			missing: "cl_buffer_regoin",
		},
		{
			name:    "unsupported out scalar type",
			command: "clCreateProgramWithSource",
			mutate: func(c *config.Config) {
				c.MetaParameters["clCreateProgramWithSource"] = []config.MetaEntry{{Kind: config.MetaOutScalar, Args: []string{"strings"}}}
			},
			kind:    errors.KindUnsupportedType,
			missing: "char",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(c *config.Config) {
				if c.MetaParameters == nil {
					c.MetaParameters = map[string][]config.MetaEntry{}
				}
				if c.MetaStructs == nil {
					c.MetaStructs = map[string][]config.StructEntry{}
				}
				tt.mutate(c)
			})
			err := f.buildErr(t, tt.command)

			assert.ErrorIs(t, err, errors.ErrConfiguration)
			assert.ErrorIs(t, err, &errors.Error{Kind: tt.kind})
			assert.Contains(t, err.Error(), tt.command)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestBuild_UnresolvableParameterType(t *testing.T) {
	f := newFixture(t)
	node := registry.Command{
		Proto:  registry.NewDecl(registry.Type("cl_int"), registry.T(" "), registry.Name("clMystery")),
		Params: []registry.Decl{registry.NewDecl(registry.Type("cl_unknown_t"), registry.T(" "), registry.Name("x"))},
	}

	_, err := f.b.Build(node)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindUnresolvedType})
}

func TestParameter_Callback(t *testing.T) {
	reg := testutil.Registry(t)
	node, _ := reg.Command("clSetEventCallback")

	var callbacks []string
	for _, d := range node.Params {
		p := newParameter(d, config.DefaultCallbackMarker)
		if p.Callback {
			callbacks = append(callbacks, p.Name)
			assert.True(t, p.Pointer)
		}
	}
	assert.Equal(t, []string{"pfn_notify"}, callbacks)
}

func TestPrototype(t *testing.T) {
	p := newPrototype(registry.NewDecl(registry.Type("void"), registry.T("* "), registry.Name("clSVMAlloc")))

	assert.Equal(t, "void *", p.ReturnType)
	assert.True(t, p.HasReturn())
	assert.Equal(t, "clSVMAlloc_ptr", p.PointerName())
	assert.Equal(t, "clSVMAlloc_t", p.PointerTypeName())
}

func TestDirection(t *testing.T) {
	assert.Equal(t, "start", Entry.String())
	assert.Equal(t, "stop", Exit.String())

	var d Direction
	require.NoError(t, d.UnmarshalText([]byte("stop")))
	assert.Equal(t, Exit, d)
	assert.Error(t, d.UnmarshalText([]byte("sideways")))
}
