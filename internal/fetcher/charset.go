package fetcher

import (
	"bytes"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText converts raw file bytes in the named charset to a UTF-8 string.
// Labels follow the WHATWG encoding names ("utf-8", "windows-1252",
// "iso-8859-1", ...). An empty label means UTF-8. A leading UTF-8 byte order
// mark is dropped.
func DecodeText(raw []byte, label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "utf-8"
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", eris.Wrapf(err, "charset: unsupported charset %q", label)
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", eris.Wrapf(err, "charset: decode %s", label)
	}
	return string(bytes.TrimPrefix(decoded, utf8BOM)), nil
}
