package pageset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Pages
	}{
		{"1,3,5", Pages{1, 3, 5}},
		{"1-3,7", Pages{1, 2, 3, 7}},
		{"4", Pages{4}},
		{"2-2", Pages{2}},
		{"1, 3-5", Pages{1, 3, 4, 5}},
		{" 7 ,9 ", Pages{7, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			pages, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pages)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, input := range []string{
		"",
		"x",
		"3-1",
		"1,,3",
		"1-",
		"-3",
		"1-2-3",
		"1;2",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
