package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single line", "Hello", []string{"Hello"}},
		{"empty", "", []string{""}},
		{
			name: "bullets are indented",
			in:   "Options:\n• first\n• second\nDone",
			want: []string{"Options:", "    • first", "    • second", "Done"},
		},
		{"crlf", "a\r\nb", []string{"a", "b"}},
		{"bullet mid line untouched", "x • y", []string{"x • y"}},
		{"blank lines kept", "a\n\nb", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReply(tt.in))
		})
	}
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(not set)", maskKey(""))
	assert.Equal(t, "***", maskKey("abc"))
	assert.Equal(t, "****", maskKey("abcd"))
	assert.Equal(t, "********6789", maskKey("sk-test-0123456789"))
}
