package codec

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Token string `json:"token"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "ok", in: `{"token":"a"}`},
		{name: "unknown field", in: `{"token":"a","x":1}`, wantErr: true},
		{name: "trailing", in: `{"token":"a"}{}`, wantErr: true},
		{name: "empty", in: ``, wantErr: true},
		{name: "wrong type", in: `{"token":1}`, wantErr: true},
		{name: "too large", in: `{"token":"` + strings.Repeat("a", MaxBody) + `"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b body
			err := JSONStrict.Decode(strings.NewReader(tt.in), &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", b.Token)
		})
	}
}

func TestDecodeUsesNumbers(t *testing.T) {
	var m map[string]any
	require.NoError(t, JSONStrict.Unmarshal([]byte(`{"n":1772366400}`), &m))
	assert.Equal(t, json.Number("1772366400"), m["n"])
}

func TestMarshalKeepsHTML(t *testing.T) {
	b, err := JSONStrict.Marshal(map[string]string{"u": "/a?b=1&c=<d>"})
	require.NoError(t, err)
	assert.Equal(t, `{"u":"/a?b=1&c=<d>"}`, string(b))
	assert.Equal(t, "application/json", JSONStrict.ContentType())
}
