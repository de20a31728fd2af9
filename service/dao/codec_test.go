package dao_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/vigil/service/dao"
)

type record struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func recordKey(r *record) string { return r.ID }

func TestEncodeDecode(t *testing.T) {
	records := map[string]*record{
		"b": {ID: "b", Value: 2},
		"a": {ID: "a", Value: 1},
		"c": nil,
	}
	data, err := dao.Encode(records)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","value":1},{"id":"b","value":2}]`, string(data))

	decoded, err := dao.Decode[string, record](data, recordKey)
	require.NoError(t, err)
	assert.EqualValues(t, map[string]*record{"a": records["a"], "b": records["b"]}, decoded)
}

func TestDecode_Edges(t *testing.T) {
	empty, err := dao.Decode[string, record](nil, recordKey)
	assert.NoError(t, err)
	assert.Empty(t, empty)

	var testCases = []struct {
		description string
		input       string
	}{
		{description: "not json", input: "{not json"},
		{description: "duplicate key", input: `[{"id":"a","value":1},{"id":"a","value":2}]`},
		{description: "empty key", input: `[{"id":"a","value":1},{"value":2}]`},
	}
	for _, testCase := range testCases {
		_, err = dao.Decode[string, record]([]byte(testCase.input), recordKey)
		assert.True(t, errors.Is(err, dao.ErrCorrupt), testCase.description)
	}

	withNull, err := dao.Decode[string, record]([]byte(`[null,{"id":"a","value":1}]`), recordKey)
	require.NoError(t, err)
	assert.Len(t, withNull, 1)
}

func TestClone(t *testing.T) {
	original := map[string]*record{"a": {ID: "a", Value: 1}}
	copied, err := dao.Clone(original)
	require.NoError(t, err)
	copied["a"].Value = 5
	assert.Equal(t, 1, original["a"].Value)
	assert.Equal(t, []string{"a"}, dao.SortedKeys(copied))
}
