// Package extract turns an uploaded resume or job description into plain
// text for the coach.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// MaxFileSize bounds uploads accepted by the host.
const MaxFileSize = 5 << 20

var ErrNoText = errors.New("the file has no extractable text")

// UnsupportedTypeError names a file type that cannot be read.
type UnsupportedTypeError struct {
	Ext string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Ext == "" {
		return "unsupported file type: upload a .txt file or paste the text"
	}
	return fmt.Sprintf("unsupported file type %s: upload a .txt file or paste the text", strings.ToUpper(e.Ext))
}

// Extract returns the cleaned text of a file. The error is non-nil exactly
// when the returned text is empty.
func Extract(name string, data []byte) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch ext {
	case "txt", "text", "md":
		text := Clean(Decode(data))
		if text == "" {
			return "", ErrNoText
		}
		return text, nil
	default:
		return "", &UnsupportedTypeError{Ext: ext}
	}
}

// Decode reads bytes as UTF-8, falling back to Windows-1252 and then
// ISO-8859-1 for files saved by older editors.
func Decode(data []byte) string {
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data)
	}
	if s, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil && !strings.ContainsRune(string(s), utf8.RuneError) {
		return string(s)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(s)
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

var (
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t]{2,}`)
)

// Clean normalizes line endings, collapses runs of blank lines and of spaces
// or tabs, and trims the result.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
