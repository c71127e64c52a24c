package naming

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		input string
		want  string
	}{
		{"web", "web"},
		{"  web01  ", "web01"},
		{"my web_server", "my-web-server"},
		{"db--primary", "db-primary"},
		{"--edge--", "edge"},
		{"a.b.c", "a-b-c"},
		{"averyveryverylongname", "averyveryverylo"},
		{"abcdefghijklmn-pq", "abcdefghijklmn"},
		{"café", "caf"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := v.Validate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), MaxComputerNameLength)
		})
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	v := NewValidator()
	for _, input := range []string{"", "   ", "___", "é"} {
		_, err := v.Validate(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrEmptyName))
	}
}

func TestValidateCustomLength(t *testing.T) {
	v := VCloudValidator{MaxLength: 4}
	got, err := v.Validate("server")
	require.NoError(t, err)
	assert.Equal(t, "serv", got)

	got, err = VCloudValidator{}.Validate("averyveryverylongname")
	require.NoError(t, err)
	assert.Len(t, got, MaxComputerNameLength)
}

func TestComputerName(t *testing.T) {
	assert.Equal(t, "web", ComputerName("web", 1, 1))
	assert.Equal(t, "web-1", ComputerName("web", 1, 2))
	assert.Equal(t, "web-2", ComputerName("web", 2, 2))
	assert.Equal(t, "abcdefghijklm-3", ComputerName("abcdefghijklmno", 3, 3))
	assert.Equal(t, "abcdefghijkl-10", ComputerName("abcdefghijklmno", 10, 12))
}
