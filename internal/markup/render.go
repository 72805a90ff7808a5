package markup

import (
	"strings"

	"github.com/yuanying/shamela2epub/internal/book"
)

// Render serializes the fragment as XHTML markup.
func (f Fragment) Render() string {
	var b strings.Builder
	for _, n := range f {
		render(&b, n)
	}
	return b.String()
}

// Render serializes n as XHTML markup.
func (n *Node) Render() string {
	var b strings.Builder
	render(&b, n)
	return b.String()
}

func render(b *strings.Builder, n *Node) {
	if n.Type == TextNode {
		b.WriteString(escapeText(n.Data))
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, a := range n.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Val))
		b.WriteByte('"')
	}
	if IsVoid(n.Tag) && len(n.Children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	for _, c := range n.Children {
		render(b, c)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// normalizeSpace applies the book text normalization to extracted text.
func normalizeSpace(s string) string {
	return book.NormalizeText(s)
}

// isXMLChar reports whether r may appear in an XML 1.0 document.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

// dropNonXMLChars removes characters that XML 1.0 forbids.
func dropNonXMLChars(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return !isXMLChar(r) }) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if !isXMLChar(r) {
			return -1
		}
		return r
	}, s)
}
