package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotWellFormed is returned when a document fails strict XML verification.
var ErrNotWellFormed = errors.New("document is not well-formed XML")

// CheckWellFormed decodes data with a strict XML decoder. Besides syntax
// errors it rejects undeclared namespace prefixes, more than one root element
// and text outside the root.
func CheckWellFormed(data []byte) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = true

	depth, roots := 0, 0
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotWellFormed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return fmt.Errorf("%w: multiple root elements", ErrNotWellFormed)
				}
			}
			if undeclared(t.Name) {
				return fmt.Errorf("%w: undeclared namespace prefix %q on <%s>", ErrNotWellFormed, t.Name.Space, t.Name.Local)
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" {
					continue
				}
				if undeclared(a.Name) {
					return fmt.Errorf("%w: undeclared namespace prefix %q on attribute %s", ErrNotWellFormed, a.Name.Space, a.Name.Local)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return fmt.Errorf("%w: text outside the root element", ErrNotWellFormed)
			}
		}
	}
	if roots == 0 {
		return fmt.Errorf("%w: no root element", ErrNotWellFormed)
	}
	if depth != 0 {
		return fmt.Errorf("%w: unexpected EOF", ErrNotWellFormed)
	}
	return nil
}

// undeclared reports whether a decoded name still carries a bare prefix.
// The decoder replaces declared prefixes with their namespace URI.
func undeclared(name xml.Name) bool {
	return name.Space != "" && !strings.Contains(name.Space, ":")
}
