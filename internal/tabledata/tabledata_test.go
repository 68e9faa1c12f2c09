package tabledata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/internal/value"
)

func strVal(s string) value.Value { return value.Value{Kind: value.KindString, String: s} }
func numVal(n float64) value.Value { return value.Value{Kind: value.KindNumber, Number: n} }

func sampleRows() []Row {
	return []Row{
		{"id": numVal(1), "name": strVal("alpha")},
		{"id": numVal(2), "name": strVal("beta")},
	}
}

func TestRender_Data(t *testing.T) {
	raw, err := Render(FormatData, []string{"id", "name"}, nil, sampleRows())
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "alpha", out[0]["name"])
	assert.Equal(t, float64(1), out[0]["id"])
}

func TestRender_FlatData(t *testing.T) {
	raw, err := Render(FormatFlatData, []string{"id", "name"}, nil, sampleRows())
	require.NoError(t, err)

	var out flatData
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, []string{"id", "name"}, out.Columns)
	require.Len(t, out.Data, 2)
	assert.Equal(t, json.RawMessage("1"), out.Data[0][0])
	assert.Equal(t, json.RawMessage(`"alpha"`), out.Data[0][1])
}

func TestRender_Keyed_SingleKey(t *testing.T) {
	raw, err := Render(FormatKeyed, []string{"id", "name"}, []string{"id"}, sampleRows())
	require.NoError(t, err)

	var out map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Contains(t, out, "1")
	assert.Equal(t, "alpha", out["1"]["name"])
	assert.NotContains(t, out["1"], "id")
}

func TestRender_Keyed_CompositeKey(t *testing.T) {
	rows := []Row{
		{"tenant": strVal("a"), "id": numVal(1), "name": strVal("alpha")},
	}
	raw, err := Render(FormatKeyed, []string{"tenant", "id", "name"}, []string{"tenant", "id"}, rows)
	require.NoError(t, err)

	var out keyedFlat
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, []string{"tenant", "id"}, out.Columns.Keys)
	assert.Equal(t, []string{"name"}, out.Columns.Values)
	require.Len(t, out.Data, 1)
	assert.Equal(t, json.RawMessage(`"a"`), out.Data[0].Keys[0])
	assert.Equal(t, json.RawMessage(`"alpha"`), out.Data[0].Values[0])
}

func TestRender_Keyed_RequiresKeyColumn(t *testing.T) {
	_, err := Render(FormatKeyed, []string{"id"}, nil, sampleRows())
	assert.Error(t, err)
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(Format("bogus"), nil, nil, nil)
	assert.Error(t, err)
}
