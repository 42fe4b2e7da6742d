package charset

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
)

// decodeIgnoring runs dec over raw and drops every replacement rune the
// decoder substituted for malformed input.
func decodeIgnoring(dec *encoding.Decoder, raw []byte) (string, error) {
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", err
	}
	text := string(out)
	if !strings.ContainsRune(text, utf8.RuneError) {
		return text, nil
	}
	return strings.Map(func(r rune) rune {
		if r == utf8.RuneError {
			return -1
		}
		return r
	}, text), nil
}

// lossy renders raw bytes for log output without emitting invalid UTF-8.
func lossy(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}
