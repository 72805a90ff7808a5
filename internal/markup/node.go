// Package markup holds the typed, balanced content tree used by every stage
// after sanitization, the profile-aware sanitizer that produces it, and the
// XHTML rendering and verification helpers.
package markup

import "strings"

// NodeType distinguishes text from element nodes.
type NodeType int

const (
	TextNode NodeType = iota
	ElementNode
)

// Attr is a single attribute. Key may carry a namespace prefix (e.g. "epub:type").
type Attr struct {
	Key string
	Val string
}

// Node is one node of a sanitized tree. Element nodes always render with a
// matching end tag (or self-closed when void), so any tree is balanced.
type Node struct {
	Type     NodeType
	Tag      string // lower-case element name
	Attrs    []Attr
	Data     string // text content of a TextNode
	Children []*Node
}

// Fragment is an ordered list of sibling nodes.
type Fragment []*Node

// Text creates a text node.
func Text(s string) *Node {
	return &Node{Type: TextNode, Data: s}
}

// Elem creates an element node.
func Elem(tag string, attrs []Attr, children ...*Node) *Node {
	return &Node{Type: ElementNode, Tag: tag, Attrs: attrs, Children: children}
}

// A is a shorthand for building attribute lists from key/value pairs.
func A(kv ...string) []Attr {
	attrs := make([]Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, Attr{Key: kv[i], Val: kv[i+1]})
	}
	return attrs
}

// IsElement reports whether n is an element with the given tag.
func (n *Node) IsElement(tag string) bool {
	return n != nil && n.Type == ElementNode && n.Tag == tag
}

// Attr returns the value of an attribute.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasClass reports whether the class attribute contains class.
func (n *Node) HasClass(class string) bool {
	v, ok := n.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// TextContent returns the concatenated text of n and its descendants.
func (n *Node) TextContent() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	if n.Type == TextNode {
		b.WriteString(n.Data)
		return
	}
	for _, c := range n.Children {
		c.writeText(b)
	}
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Type: n.Type, Tag: n.Tag, Data: n.Data}
	if len(n.Attrs) > 0 {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Clone returns a deep copy of the fragment.
func (f Fragment) Clone() Fragment {
	if f == nil {
		return nil
	}
	out := make(Fragment, len(f))
	for i, n := range f {
		out[i] = n.Clone()
	}
	return out
}

// TextContent returns the text of every node in the fragment.
func (f Fragment) TextContent() string {
	var b strings.Builder
	for _, n := range f {
		n.writeText(&b)
	}
	return b.String()
}

// Walk visits every node of the fragment in document order.
// Returning false from fn skips the node's children.
func (f Fragment) Walk(fn func(n *Node) bool) {
	for _, n := range f {
		walk(n, fn)
	}
}

func walk(n *Node, fn func(n *Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

var voidTags = map[string]bool{
	"br":   true,
	"hr":   true,
	"img":  true,
	"meta": true,
	"link": true,
}

var blockTags = map[string]bool{
	"p":          true,
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
	"div":        true,
	"section":    true,
	"nav":        true,
	"table":      true,
}

// IsVoid reports whether tag never has content.
func IsVoid(tag string) bool {
	return voidTags[tag]
}

// IsBlock reports whether tag is a block-level element.
func IsBlock(tag string) bool {
	return blockTags[tag]
}

// HeadingLevel returns 1..6 for h1..h6 and 0 for anything else.
func HeadingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}
