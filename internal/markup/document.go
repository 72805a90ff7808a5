package markup

import (
	"strings"
)

const xmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// Page is a complete XHTML content document.
type Page struct {
	Title      string
	Lang       string // defaults to "ar"
	Dir        string // defaults to "rtl"
	Stylesheet string // href relative to the page, omitted when empty
	Body       Fragment
}

// Render serializes the page. The epub namespace is declared on the root
// element whenever the body uses an epub: attribute.
func (p Page) Render() []byte {
	lang := p.Lang
	if lang == "" {
		lang = "ar"
	}
	dir := p.Dir
	if dir == "" {
		dir = "rtl"
	}

	attrs := A("xmlns", XHTMLNamespace)
	if usesPrefix(p.Body, "epub:") {
		attrs = append(attrs, Attr{Key: "xmlns:epub", Val: OPSNamespace})
	}
	attrs = append(attrs, A("xml:lang", lang, "lang", lang, "dir", dir)...)

	head := Elem("head", nil,
		Elem("meta", A("charset", "utf-8")),
		Elem("title", nil, Text(p.Title)),
	)
	if p.Stylesheet != "" {
		head.Children = append(head.Children, Elem("link", A("rel", "stylesheet", "type", "text/css", "href", p.Stylesheet)))
	}
	root := Elem("html", attrs, head, Elem("body", nil, p.Body...))

	var b strings.Builder
	b.WriteString(xmlDeclaration)
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(root.Render())
	b.WriteByte('\n')
	return []byte(b.String())
}

func usesPrefix(f Fragment, prefix string) bool {
	found := false
	f.Walk(func(n *Node) bool {
		if found {
			return false
		}
		for _, a := range n.Attrs {
			if strings.HasPrefix(a.Key, prefix) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
