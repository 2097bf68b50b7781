package authenticity

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"regexp"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// maxTextChunk bounds how much of a compressed text chunk is inflated
const maxTextChunk = 1 << 20

// textChunksMention reports whether any tEXt, zTXt or iTXt chunk of a PNG
// matches re. Generators commonly store their prompt and parameters there.
func textChunksMention(data []byte, re *regexp.Regexp) bool {
	if !bytes.HasPrefix(data, pngMagic) {
		return false
	}

	pos := len(pngMagic)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		kind := string(data[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if length < 0 || end+4 > len(data) {
			return false
		}
		body := data[start:end]

		var text []byte
		switch kind {
		case "tEXt":
			text = body
		case "zTXt":
			text = inflateZTXt(body)
		case "iTXt":
			text = iTXtText(body)
		case "IEND":
			return false
		}
		if text != nil && re.Match(text) {
			return true
		}

		pos = end + 4
	}
	return false
}

// zTXt: keyword NUL method compressed-text
func inflateZTXt(body []byte) []byte {
	i := bytes.IndexByte(body, 0)
	if i < 0 || i+2 > len(body) {
		return nil
	}
	keyword := body[:i]
	r, err := zlib.NewReader(bytes.NewReader(body[i+2:]))
	if err != nil {
		return keyword
	}
	defer r.Close()
	text, _ := io.ReadAll(io.LimitReader(r, maxTextChunk))
	out := append([]byte{}, keyword...)
	return append(append(out, ' '), text...)
}

// iTXt: keyword NUL flag method language NUL translated NUL text
func iTXtText(body []byte) []byte {
	i := bytes.IndexByte(body, 0)
	if i < 0 || i+3 > len(body) {
		return nil
	}
	keyword := body[:i]
	compressed := body[i+1] == 1
	rest := body[i+3:]
	for n := 0; n < 2; n++ {
		j := bytes.IndexByte(rest, 0)
		if j < 0 {
			return keyword
		}
		rest = rest[j+1:]
	}
	if compressed {
		r, err := zlib.NewReader(bytes.NewReader(rest))
		if err != nil {
			return keyword
		}
		defer r.Close()
		rest, _ = io.ReadAll(io.LimitReader(r, maxTextChunk))
	}
	out := append([]byte{}, keyword...)
	return append(append(out, ' '), rest...)
}
