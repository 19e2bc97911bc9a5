package codec_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/diagram/pkg/codec"
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireForm(t *testing.T) {
	data, err := codec.Encode(domain.ActionMessage{
		ClientID: "c1",
		Action:   &domain.ServerStatusAction{Severity: domain.SeverityWarning, Message: "slow"},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"clientId": "c1",
		"action": {"kind": "serverStatus", "severity": "WARNING", "message": "slow"}
	}`, string(data))
}

func TestDecode_SetModelWithNestedRoot(t *testing.T) {
	data := []byte(`{
		"clientId": "c1",
		"action": {
			"kind": "setModel",
			"responseId": "rm-1",
			"newRoot": {
				"type": "graph",
				"id": "root",
				"revision": 4,
				"children": [
					{"type": "node", "id": "n1", "position": {"x": 10, "y": 20}, "size": {"width": 100, "height": 50}},
					{"type": "node", "id": "n2", "properties": {"label": "Second"}}
				]
			}
		}
	}`)

	msg, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "c1", msg.ClientID)

	set, ok := msg.Action.(*domain.SetModelAction)
	require.True(t, ok, "got %T", msg.Action)
	assert.Equal(t, "rm-1", set.ResponseID)
	require.NotNil(t, set.NewRoot)
	assert.Equal(t, "root", set.NewRoot.ID)
	assert.Equal(t, "graph", set.NewRoot.Type)
	assert.Equal(t, int64(4), set.NewRoot.Revision)
	require.Len(t, set.NewRoot.Children, 2)
	assert.Equal(t, &domain.Point{X: 10, Y: 20}, set.NewRoot.Children[0].Position)
	assert.Equal(t, 50.0, set.NewRoot.Children[0].Size.Height)
	assert.Equal(t, "Second", set.NewRoot.Children[1].Properties["label"])
}

func TestDecode_ComputedBoundsIsResponse(t *testing.T) {
	msg, err := codec.Decode([]byte(`{"action": {
		"kind": "computedBounds",
		"responseId": "req-1",
		"bounds": [{"elementId": "n1", "newBounds": {"x": 1, "y": 2, "width": 3, "height": 4}}]
	}}`))
	require.NoError(t, err)

	resp, ok := msg.Action.(domain.ResponseAction)
	require.True(t, ok)
	assert.Equal(t, "req-1", resp.ResponseIdentifier())

	bounds := msg.Action.(*domain.ComputedBoundsAction).Bounds
	require.Len(t, bounds, 1)
	assert.Equal(t, domain.Bounds{X: 1, Y: 2, Width: 3, Height: 4}, bounds[0].NewBounds)
}

func TestRoundTrip_RequestModel(t *testing.T) {
	in := domain.ActionMessage{
		ClientID: "c1",
		Action: &domain.RequestModelAction{
			Options:   map[string]string{"diagramType": "class", "needsClientLayout": "true"},
			RequestID: "rm-1",
		},
	}

	data, err := codec.Encode(in)
	require.NoError(t, err)
	out, err := codec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, in, out)
}

func TestDecode_UnknownKindBecomesGeneric(t *testing.T) {
	msg, err := codec.Decode([]byte(`{"clientId":"c1","action":{"kind":"selectElements","selectedElementsIDs":["a","b"]}}`))
	require.NoError(t, err)

	generic, ok := msg.Action.(*domain.GenericAction)
	require.True(t, ok)
	assert.Equal(t, "selectElements", generic.Kind())
	assert.Equal(t, []any{"a", "b"}, generic.Payload["selectedElementsIDs"])
	assert.NotContains(t, generic.Payload, "kind")

	// And it goes back out unchanged.
	data, err := codec.Encode(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"clientId":"c1","action":{"kind":"selectElements","selectedElementsIDs":["a","b"]}}`, string(data))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "malformed json",
			input: `{"action":`,
			check: func(t *testing.T, err error) { assert.Error(t, err) },
		},
		{
			name:  "missing action",
			input: `{"clientId":"c1"}`,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, codec.ErrMissingAction) },
		},
		{
			name:  "missing kind",
			input: `{"action":{"responseId":"x"}}`,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, codec.ErrMissingKind) },
		},
		{
			name:  "wrong field shape",
			input: `{"action":{"kind":"computedBounds","bounds":"not-a-list"}}`,
			check: func(t *testing.T, err error) {
				var decodeErr *codec.DecodeError
				require.ErrorAs(t, err, &decodeErr)
				assert.Equal(t, "computedBounds", decodeErr.Kind)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode([]byte(tt.input))
			tt.check(t, err)
		})
	}
}

func TestEncode_NilAction(t *testing.T) {
	_, err := codec.Encode(domain.ActionMessage{ClientID: "c1"})
	assert.ErrorIs(t, err, domain.ErrNilAction)
}

type centerAction struct {
	ElementIDs []string `json:"elementIds"`
	Animate    bool     `json:"animate"`
}

func (centerAction) Kind() string { return "center" }

func TestCodec_RegisterExtensionKind(t *testing.T) {
	c := codec.New()
	assert.False(t, c.Known("center"))
	c.Register("center", func() domain.Action { return &centerAction{} })
	assert.True(t, c.Known("center"))

	msg, err := c.Decode([]byte(`{"action":{"kind":"center","elementIds":["n1"],"animate":true}}`))
	require.NoError(t, err)
	assert.Equal(t, &centerAction{ElementIDs: []string{"n1"}, Animate: true}, msg.Action)

	// The default codec is unaffected.
	msg, err = codec.Decode([]byte(`{"action":{"kind":"center"}}`))
	require.NoError(t, err)
	assert.IsType(t, &domain.GenericAction{}, msg.Action)
}

func TestDecodePayload(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"elementIds":["a"],"animate":"true"}`), &raw))

	var target centerAction
	require.NoError(t, codec.DecodePayload(raw, &target))
	assert.Equal(t, []string{"a"}, target.ElementIDs)
	assert.True(t, target.Animate, "weakly typed input accepts string booleans")
}
