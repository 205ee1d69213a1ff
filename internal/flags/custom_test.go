package flags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCustom(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"whitespace only", " \n\t ", []string{}},
		{"strips define prefix", "-DFOO=1 BAR=2", []string{"FOO=1", "BAR=2"}},
		{"newlines and tabs", "A=1\n\tB=2\r\nC", []string{"A=1", "B=2", "C"}},
		{"bare prefix dropped", "-D A=1", []string{"A=1"}},
		{"only first prefix stripped", "-D-DX=1", []string{"-DX=1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCustom(tt.in))
		})
	}
}

func TestName(t *testing.T) {
	assert.Equal(t, "FOO", Name("FOO=1"))
	assert.Equal(t, "FOO", Name("FOO"))
	assert.Equal(t, "A", Name("A=b=c"))
	assert.Equal(t, "", Name("=x"))
}
