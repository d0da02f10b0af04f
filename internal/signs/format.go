package signs

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

type Format string

const (
	// (x, y, z): 'text1','text2','text3','text4'
	// Text is written verbatim; quotes, commas and newlines are not escaped.
	FormatLegacy Format = "legacy"
	// One JSON object per line. JSON strings are UTF-8, so invalid bytes in
	// "text" become U+FFFD; such records also carry "text_raw", the exact
	// bytes of each line in standard base64.
	FormatJSONL Format = "jsonl"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatLegacy, "":
		return FormatLegacy, nil
	case FormatJSONL:
		return FormatJSONL, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Source locates a record in the input.
type Source struct {
	File   string
	Slot   int
	ChunkX int
	ChunkZ int
}

type jsonRecord struct {
	X       int32      `json:"x"`
	Y       int32      `json:"y"`
	Z       int32      `json:"z"`
	Text    [4]string  `json:"text"`
	TextRaw *[4]string `json:"text_raw,omitempty"`
	File    string     `json:"file,omitempty"`
	Slot    int        `json:"slot"`
	Chunk   [2]int     `json:"chunk"`
}

// rawText returns base64 copies of the lines when any is not valid UTF-8.
func rawText(text [4]string) *[4]string {
	lossy := false
	for _, t := range text {
		if !utf8.ValidString(t) {
			lossy = true
			break
		}
	}
	if !lossy {
		return nil
	}
	var out [4]string
	for i, t := range text {
		out[i] = base64.StdEncoding.EncodeToString([]byte(t))
	}
	return &out
}

func (r Record) Legacy() string {
	return string(appendLegacy(nil, r))
}

func appendLegacy(dst []byte, r Record) []byte {
	dst = append(dst, '(')
	dst = strconv.AppendInt(dst, int64(r.X), 10)
	dst = append(dst, ", "...)
	dst = strconv.AppendInt(dst, int64(r.Y), 10)
	dst = append(dst, ", "...)
	dst = strconv.AppendInt(dst, int64(r.Z), 10)
	dst = append(dst, "): "...)
	for i, t := range r.Text {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '\'')
		dst = append(dst, t...)
		dst = append(dst, '\'')
	}
	return dst
}

// AppendLine appends r in format f followed by a newline.
func AppendLine(dst []byte, r Record, src Source, f Format) ([]byte, error) {
	switch f {
	case FormatLegacy, "":
		dst = appendLegacy(dst, r)
	case FormatJSONL:
		b, err := json.Marshal(jsonRecord{
			X: r.X, Y: r.Y, Z: r.Z,
			Text:    r.Text,
			TextRaw: rawText(r.Text),
			File:    src.File,
			Slot:    src.Slot,
			Chunk:   [2]int{src.ChunkX, src.ChunkZ},
		})
		if err != nil {
			return dst, err
		}
		dst = append(dst, b...)
	default:
		return dst, fmt.Errorf("unknown output format %q", f)
	}
	return append(dst, '\n'), nil
}
