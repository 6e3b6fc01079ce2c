package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGuid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "media_pic1312", wantErr: false},
		{name: "short parts", input: "a_b", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "just separator", input: "_", wantErr: true},
		{name: "double separator only", input: "__", wantErr: true},
		{name: "missing type", input: "_foo", wantErr: true},
		{name: "missing id", input: "foo_", wantErr: true},
		{name: "no separator", input: "foobar", wantErr: true},
		{name: "trailing separator", input: "foo_bar_", wantErr: true},
		{name: "too many separators", input: "foo_bar_boo", wantErr: true},
		{name: "leading separator with two parts after", input: "_foo_bar", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGuid(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(g))
		})
	}
}

func TestGuidTypeAndID(t *testing.T) {
	g, err := ParseGuid("media_pic1312")
	require.NoError(t, err)
	assert.Equal(t, "media", g.Type())
	assert.Equal(t, "pic1312", g.ID())
	assert.True(t, g.Valid())
}

func TestNewGuidRejectsUnderscores(t *testing.T) {
	_, err := NewGuid("me_dia", "pic1312")
	assert.Error(t, err)

	_, err = NewGuid("media", "pic_1312")
	assert.Error(t, err)

	g, err := NewGuid("media", "pic1312")
	require.NoError(t, err)
	assert.Equal(t, Guid("media_pic1312"), g)
}

func TestGuidJSONRoundTrip(t *testing.T) {
	g, err := ParseGuid("post_a1b2c3")
	require.NoError(t, err)

	raw, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Equal(t, `"post_a1b2c3"`, string(raw))

	var decoded Guid
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, g, decoded)
}

func TestGuidJSONRejectsMalformed(t *testing.T) {
	var g Guid
	err := json.Unmarshal([]byte(`"not-a-guid"`), &g)
	assert.Error(t, err)
}
