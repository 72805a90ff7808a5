package markup

import (
	"fmt"
	"strings"

	"github.com/yuanying/shamela2epub/internal/book"
)

const (
	XHTMLNamespace = "http://www.w3.org/1999/xhtml"
	OPSNamespace   = "http://www.idpf.org/2007/ops"
)

var allowedTags = map[string]bool{
	"p":          true,
	"br":         true,
	"strong":     true,
	"em":         true,
	"b":          true,
	"i":          true,
	"h1":         true,
	"h2":         true,
	"h3":         true,
	"h4":         true,
	"h5":         true,
	"h6":         true,
	"blockquote": true,
	"ul":         true,
	"ol":         true,
	"li":         true,
	"sup":        true,
	"sub":        true,
}

// droppedTags are removed together with everything inside them.
var droppedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"button":   true,
	"noscript": true,
	"iframe":   true,
	"form":     true,
	"svg":      true,
	"head":     true,
	"title":    true,
	"template": true,
}

// semanticClasses are the only class names the conservative-device profile keeps.
var semanticClasses = map[string]bool{
	"hamesh": true,
}

// Sanitizer restricts parsed markup to the tags and attributes a profile allows.
type Sanitizer struct {
	profile book.Profile
	attrs   map[string]bool
}

// NewSanitizer returns a sanitizer for profile.
func NewSanitizer(profile book.Profile) *Sanitizer {
	s := &Sanitizer{profile: profile}
	switch profile {
	case book.ProfileConservativeDevice:
		s.attrs = map[string]bool{"class": true}
	case book.ProfileStrictXML:
		s.attrs = map[string]bool{"class": true, "dir": true, "lang": true, "epub:type": true}
	default:
		s.attrs = map[string]bool{"class": true, "dir": true, "lang": true}
	}
	return s
}

// Profile returns the profile the sanitizer was built for.
func (s *Sanitizer) Profile() book.Profile {
	return s.profile
}

// Sanitize parses raw chapter markup and cleans it. Under the strict-xml
// profile the result is also verified to serialize as well-formed XML.
func (s *Sanitizer) Sanitize(raw string) (Fragment, error) {
	parsed, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	out := s.Clean(parsed)
	if s.profile == book.ProfileStrictXML {
		if err := s.Verify(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Verify renders f inside a namespaced wrapper and checks it with a strict
// XML decoder.
func (s *Sanitizer) Verify(f Fragment) error {
	doc := `<div xmlns="` + XHTMLNamespace + `" xmlns:epub="` + OPSNamespace + `">` + f.Render() + `</div>`
	if err := CheckWellFormed([]byte(doc)); err != nil {
		return fmt.Errorf("failed to verify sanitized markup: %w", err)
	}
	return nil
}

// Clean applies the profile policy to an already parsed tree and returns a
// new tree. The input is not modified.
func (s *Sanitizer) Clean(f Fragment) Fragment {
	return s.cleanNodes(f)
}

func (s *Sanitizer) cleanNodes(nodes []*Node) Fragment {
	var out Fragment
	for _, n := range nodes {
		out = append(out, s.cleanNode(n)...)
	}
	return out
}

func (s *Sanitizer) cleanNode(n *Node) []*Node {
	if n.Type == TextNode {
		text := s.cleanText(n.Data)
		if text == "" {
			return nil
		}
		return []*Node{Text(text)}
	}

	if droppedTags[n.Tag] || isUICruft(n) {
		return nil
	}
	children := s.cleanNodes(n.Children)

	if !allowedTags[n.Tag] {
		return children
	}
	if IsVoid(n.Tag) {
		return []*Node{Elem(n.Tag, nil)}
	}
	if !IsBlock(n.Tag) && containsBlock(children) {
		return children
	}
	if isBlank(children) {
		return nil
	}
	return []*Node{Elem(n.Tag, s.cleanAttrs(n.Attrs), children...)}
}

func (s *Sanitizer) cleanText(text string) string {
	if s.profile == book.ProfileConservativeDevice {
		text = book.StripControls(text)
	}
	return dropNonXMLChars(text)
}

func (s *Sanitizer) cleanAttrs(attrs []Attr) []Attr {
	var out []Attr
	for _, a := range attrs {
		if !s.attrs[a.Key] {
			continue
		}
		val := strings.TrimSpace(a.Val)
		if a.Key == "class" && s.profile == book.ProfileConservativeDevice {
			val = keepSemanticClasses(val)
		}
		val = dropNonXMLChars(val)
		if val == "" {
			continue
		}
		out = append(out, Attr{Key: a.Key, Val: val})
	}
	return out
}

func keepSemanticClasses(v string) string {
	var kept []string
	for _, c := range strings.Fields(v) {
		if semanticClasses[c] {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, " ")
}

// isUICruft matches icon fonts and buttons from the source site's toolbar.
func isUICruft(n *Node) bool {
	v, ok := n.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if strings.HasPrefix(c, "fa") || strings.HasPrefix(c, "btn") {
			return true
		}
	}
	return false
}

func containsBlock(nodes []*Node) bool {
	for _, n := range nodes {
		if n.Type == ElementNode && IsBlock(n.Tag) {
			return true
		}
	}
	return false
}

// isBlank reports whether nodes hold no element and only whitespace text.
func isBlank(nodes []*Node) bool {
	for _, n := range nodes {
		if n.Type == ElementNode {
			return false
		}
		if strings.TrimSpace(n.Data) != "" {
			return false
		}
	}
	return true
}
