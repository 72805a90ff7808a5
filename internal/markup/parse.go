package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses an HTML fragment in a <body> context and converts it into a
// typed tree. The HTML parser repairs unclosed and misnested tags; comments,
// doctypes and processing instructions are discarded.
func Parse(raw string) (Fragment, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}
	out := make(Fragment, 0, len(nodes))
	for _, n := range nodes {
		if c := convert(n); c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func convert(n *html.Node) *Node {
	switch n.Type {
	case html.TextNode:
		return Text(n.Data)
	case html.ElementNode:
		el := &Node{Type: ElementNode, Tag: strings.ToLower(n.Data)}
		for _, a := range n.Attr {
			key := strings.ToLower(a.Key)
			if a.Namespace != "" {
				key = a.Namespace + ":" + key
			}
			el.Attrs = append(el.Attrs, Attr{Key: key, Val: a.Val})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if child := convert(c); child != nil {
				el.Children = append(el.Children, child)
			}
		}
		return el
	default:
		return nil
	}
}

// PlainText strips every tag from s, decodes entities and normalizes the
// result for use in metadata fields.
func PlainText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return normalizeSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				skip++
			case atom.Br, atom.P, atom.Div:
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if skip > 0 {
					skip--
				}
			}
		}
	}
}
