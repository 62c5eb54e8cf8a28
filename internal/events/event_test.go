package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/apitrace/internal/model"
)

func sampleEvent() *Event {
	ev := NewEvent("clCreateBuffer", model.Exit)
	ev.Set(model.Field{Name: "mem", Encoding: model.EncIntegerHex, Type: "intptr_t", Value: "_retval"})
	ev.Set(model.Field{
		Name:     "errcode_ret_val",
		Encoding: model.EncInteger,
		Type:     "cl_int",
		Value:    "errcode_ret == NULL ? 0 : *errcode_ret",
		Source:   &model.Source{Type: "cl_int", Pointer: true},
	})
	return ev
}

func TestEvent_Set(t *testing.T) {
	ev := sampleEvent()
	assert.Equal(t, 2, ev.Len())

	replaced := ev.Set(model.Field{Name: "mem", Encoding: model.EncInteger, Value: "0"})
	assert.True(t, replaced)
	assert.Equal(t, []string{"mem", "errcode_ret_val"}, ev.Names())

	f, ok := ev.Field("mem")
	require.True(t, ok)
	assert.Equal(t, model.Field{Name: "mem", Encoding: model.EncInteger, Value: "0"}, f)

	assert.False(t, ev.Set(model.Field{Name: "size"}))
	assert.Equal(t, 3, ev.Len())
}

func TestEvent_FieldsIsACopy(t *testing.T) {
	ev := sampleEvent()
	fields := ev.Fields()
	fields[0].Name = "changed"

	assert.Equal(t, "mem", ev.Names()[0])
}

func TestEvent_MarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(sampleEvent())
	require.NoError(t, err)

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal(out, &doc))
	root := doc.Content[0]
	require.Equal(t, yaml.MappingNode, root.Kind)
	require.Len(t, root.Content, 4)
	assert.Equal(t, "mem", root.Content[0].Value)
	assert.Equal(t, "errcode_ret_val", root.Content[2].Value)

	var decoded map[string]model.Field
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "errcode_ret == NULL ? 0 : *errcode_ret", decoded["errcode_ret_val"].Value)
	assert.Equal(t, &model.Source{Type: "cl_int", Pointer: true}, decoded["errcode_ret_val"].Source)
	assert.Equal(t, model.EncIntegerHex, decoded["mem"].Encoding)
}

func TestEvent_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(sampleEvent())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"mem": {"encoding": "integer_hex", "type": "intptr_t", "value": "_retval"},
		"errcode_ret_val": {
			"encoding": "integer", "type": "cl_int",
			"value": "errcode_ret == NULL ? 0 : *errcode_ret",
			"source": {"type": "cl_int", "pointer": true}
		}
	}`, string(out))
	// JSONEq ignores key order; check it separately.
	assert.Less(t, strings.Index(string(out), `"mem"`), strings.Index(string(out), `"errcode_ret_val"`))
}

func TestEvent_EmptyMarshal(t *testing.T) {
	ev := NewEvent("clSVMFree", model.Exit)

	out, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))
}
