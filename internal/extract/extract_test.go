package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewcoach/backend/internal/extract"
)

func TestExtract_Text(t *testing.T) {
	text, err := extract.Extract("Resume.TXT", []byte("Ada  Lovelace\r\n\r\n\r\n\r\nEngineer\t\tLondon\n"))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace\n\nEngineer London", text)
}

func TestExtract_Empty(t *testing.T) {
	text, err := extract.Extract("blank.txt", []byte(" \n\t "))
	assert.Empty(t, text)
	assert.ErrorIs(t, err, extract.ErrNoText)
}

func TestExtract_Unsupported(t *testing.T) {
	for _, name := range []string{"cv.pdf", "cv.docx", "noext"} {
		text, err := extract.Extract(name, []byte("data"))
		assert.Empty(t, text)
		var unsupported *extract.UnsupportedTypeError
		require.ErrorAs(t, err, &unsupported, name)
	}

	_, err := extract.Extract("cv.pdf", nil)
	assert.Contains(t, err.Error(), "PDF")
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("café"), "café"},
		{"bom", []byte("\xEF\xBB\xBFhello"), "hello"},
		{"latin1", []byte("caf\xe9"), "café"},
		{"cp1252 quotes", []byte("\x93quoted\x94"), "“quoted”"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extract.Decode(tt.in))
		})
	}
}

func TestClean(t *testing.T) {
	assert.Equal(t, "a\n\nb", extract.Clean("  a\n\n\n\n\nb  "))
	assert.Equal(t, "a b", extract.Clean("a \t b"))
}
