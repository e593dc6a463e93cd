package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare object", in: `{"aqi":42}`, want: `{"aqi":42}`},
		{name: "wrapped in prose", in: "Here you go:\n{\"aqi\": 42}\nStay safe!", want: `{"aqi": 42}`},
		{name: "code fence", in: "```json\n{\"a\":{\"b\":1}}\n```", want: `{"a":{"b":1}}`},
		{name: "braces inside strings", in: `{"note":"use {curly} braces \"}\""}`, want: `{"note":"use {curly} braces \"}\""}`},
		{name: "first of two objects", in: `{"a":1} and {"b":2}`, want: `{"a":1}`},
		{name: "prose braces before object", in: `see {this} then {"ok":true}`, want: `{"ok":true}`},
		{name: "no object", in: "upstream declined to answer", wantErr: true},
		{name: "unbalanced", in: `{"a": {"b": 1}`, wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeJSON_TypeMismatchIsParseError(t *testing.T) {
	var v struct {
		AQI int `json:"aqi"`
	}
	err := DecodeJSON(`{"aqi":"not a number"}`, &v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}
