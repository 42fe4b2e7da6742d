package charset

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"rezip/internal/faults"
)

const (
	LabelASCII = "ascii"
	LabelUTF8  = "utf-8"
)

// chardet reports a few names that are not WHATWG labels.
var labelAliases = map[string]string{
	"gb-18030":   "gb18030",
	"ibm420_rtl": "ibm420",
	"ibm420_ltr": "ibm420",
	"ibm424_rtl": "ibm424",
	"ibm424_ltr": "ibm424",
	"shift-jis":  "shift_jis",
	"sjis":       "shift_jis",
	"cp932":      "shift_jis",
}

// Lookup maps a charset label to a decoder-capable encoding and its canonical
// name. Labels without a usable decoder yield faults.ErrEncodingUnavailable.
func Lookup(label string) (encoding.Encoding, string, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if alias, ok := labelAliases[key]; ok {
		key = alias
	}
	switch key {
	case "":
		return nil, "", faults.Wrap(faults.ErrEncodingUnavailable, "resolve", "lookup", "empty charset label", nil)
	case LabelASCII, "us-ascii", LabelUTF8, "utf8":
		return unicode.UTF8, LabelUTF8, nil
	}

	if enc, err := htmlindex.Get(key); err == nil && usable(enc) {
		name, nameErr := htmlindex.Name(enc)
		if nameErr != nil {
			name = key
		}
		return enc, name, nil
	}
	if enc, err := ianaindex.IANA.Encoding(key); err == nil && usable(enc) {
		name, nameErr := ianaindex.IANA.Name(enc)
		if nameErr != nil {
			name = key
		}
		return enc, strings.ToLower(name), nil
	}
	return nil, "", faults.Wrap(faults.ErrEncodingUnavailable, "resolve", "lookup", fmt.Sprintf("no decoder for %q", label), nil)
}

func usable(enc encoding.Encoding) bool {
	return enc != nil && enc != encoding.Replacement
}
