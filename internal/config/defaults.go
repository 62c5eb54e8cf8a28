package config

// Default values for the OpenCL API.
const (
	DefaultProvider       = "lttng_ust_opencl"
	DefaultCallbackMarker = "CL_CALLBACK"
	DefaultStatusType     = "cl_int"
	DefaultEventType      = "cl_event"
	DefaultLogLevel       = "warn"
)

// Default command filters.
const (
	windowsFunctions           = `D3D|DX9`
	vendorExtensions           = `QCOM$|INTEL$|ARM$|APPLE$|IMG$|OCLICD$`
	absentFunctions            = `^clIcdGetPlatformIDsKHR$|^clCreateProgramWithILKHR$|^clTerminateContextKHR$|^clCreateCommandQueueWithPropertiesKHR$|^clEnqueueMigrateMemObjectEXT$`
	extensionFunctions         = `KHR$|EXT$|GL`
	supportedExtensionFunction = `clCreateProgramWithILKHR|clTerminateContextKHR|clCreateCommandQueueWithPropertiesKHR|clEnqueueMigrateMemObjectEXT|clGetICDLoaderInfoOCLICD`
	initFunctions              = `clGetPlatformIDs|clGetPlatformInfo|clGetDeviceIDs|clCreateContext|clCreateContextFromType|clUnloadPlatformCompiler|clGetExtensionFunctionAddressForPlatform|clGetExtensionFunctionAddress|clGetGLContextInfoKHR`
)

// DefaultMatchers returns the automatic matchers in evaluation order.
func DefaultMatchers() []MatcherEntry {
	return []MatcherEntry{
		{Kind: MatcherWaitList, Param: "event_wait_list", Count: "num_events_in_wait_list"},
		{Kind: MatcherOutScalar, Param: "errcode_ret"},
		{Kind: MatcherOutScalar, Param: "param_value_size_ret"},
		{Kind: MatcherValueBuffer, Param: "param_value", Count: "param_value_size"},
		{Kind: MatcherOutScalar, Param: "event"},
	}
}

// DefaultConfig returns the configuration for the OpenCL API, without any
// per-function annotations.
func DefaultConfig() *Config {
	return &Config{
		Version:  SchemaVersion,
		Provider: DefaultProvider,
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Conventions: Conventions{
			CallbackMarker: DefaultCallbackMarker,
			StatusType:     DefaultStatusType,
			EventType:      DefaultEventType,
			HandlePrefixes: []string{"cl_", "CL"},
			HandleSuffixes: []string{"KHR"},
			Matchers:       DefaultMatchers(),
		},
		Types: TypeTables{
			Handles: []string{
				"cl_platform_id", "cl_device_id", "cl_context", "cl_command_queue",
				"cl_mem", "cl_program", "cl_kernel", "cl_event", "cl_sampler",
				"cl_GLsync", "CLeglImageKHR", "CLeglDisplayKHR", "CLeglSyncKHR",
			},
			IntScalars: map[string]IntScalar{
				"unsigned int": {Width: 32},
				"int":          {Width: 32, Signed: true},
				"intptr_t":     {Width: 64, Signed: true},
				"size_t":       {Width: 64},
				"cl_int":       {Width: 32, Signed: true},
				"cl_uint":      {Width: 32},
				"cl_long":      {Width: 64, Signed: true},
				"cl_ulong":     {Width: 64},
				"cl_short":     {Width: 16, Signed: true},
				"cl_ushort":    {Width: 16},
				"cl_char":      {Width: 8, Signed: true},
				"cl_uchar":     {Width: 8},
			},
			FloatScalars: map[string]FloatScalar{
				"cl_half":   {Width: 16, Bits: "cl_ushort"},
				"cl_float":  {Width: 32, Bits: "cl_uint"},
				"cl_double": {Width: 64, Bits: "cl_ulong"},
			},
			Overrides: map[string]string{
				"cl_GLint":  "int",
				"cl_GLenum": "unsigned int",
				"cl_GLuint": "unsigned int",
			},
			Foreign: map[string]string{
				"uint8_t":      "u8",
				"int8_t":       "i8",
				"uint16_t":     "u16",
				"int16_t":      "i16",
				"uint32_t":     "u32",
				"int32_t":      "i32",
				"uint64_t":     "u64",
				"int64_t":      "i64",
				"float":        "float",
				"double":       "double",
				"intptr_t":     "pointer",
				"size_t":       "pointer",
				"int":          "i32",
				"unsigned int": "u32",
			},
			ForeignAliases: map[string]string{
				"cl_char":   "int8_t",
				"cl_uchar":  "uint8_t",
				"cl_short":  "int16_t",
				"cl_ushort": "uint16_t",
				"cl_int":    "int32_t",
				"cl_uint":   "uint32_t",
				"cl_long":   "int64_t",
				"cl_ulong":  "uint64_t",
				"cl_half":   "uint16_t",
				"cl_float":  "float",
				"cl_double": "double",
			},
		},
		Filters: Filters{
			Exclude: []Pattern{
				MustPattern(vendorExtensions),
				MustPattern(absentFunctions),
				MustPattern(windowsFunctions),
			},
			Extension:           MustPattern(extensionFunctions),
			SupportedExtensions: MustPattern(supportedExtensionFunction),
			Init:                MustPattern(initFunctions),
		},
		Enums: []EnumEntry{
			{Name: "cl_bool"},
			{
				Name:      "command execution status",
				TraceName: "command_exec_callback_type",
				TypeName:  "cl_command_execution_status",
			},
		},
	}
}
