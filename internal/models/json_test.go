package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONScan(t *testing.T) {
	testCases := []struct {
		name    string
		value   interface{}
		want    JSON
		wantErr bool
	}{
		{"bytes", []byte(`{"a":1}`), JSON(`{"a":1}`), false},
		{"string", `[1,2]`, JSON(`[1,2]`), false},
		{"nil", nil, nil, false},
		{"invalid", []byte(`{"a":`), nil, true},
		{"unsupported", 42, nil, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var j JSON
			err := j.Scan(tc.value)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, j)
		})
	}
}

func TestJSONValue(t *testing.T) {
	v, err := JSON(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = JSON(`{"User":{}}`).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"User":{}}`), v)
}
