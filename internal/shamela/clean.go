package shamela

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/atom"
)

// noiseSelector matches site chrome that never belongs to book text.
const noiseSelector = "script, style, noscript, nav, form, iframe, button, .s-nav"

// tagConversions maps HTML5 sectioning tags onto plain containers.
var tagConversions = map[string]string{
	"article":    "div",
	"section":    "div",
	"main":       "div",
	"aside":      "div",
	"header":     "div",
	"footer":     "div",
	"figure":     "div",
	"figcaption": "p",
}

// forbiddenAttrs lists attributes that are removed from all elements.
var forbiddenAttrs = map[string]bool{
	"contenteditable": true,
	"draggable":       true,
	"hidden":          true,
	"spellcheck":      true,
	"translate":       true,
	"onclick":         true,
	"style":           true,
}

// cleanContent strips site chrome and icon/button widgets from a page,
// renames sectioning tags and drops scripting and data-* attributes.
func cleanContent(sel *goquery.Selection) {
	sel.Find(noiseSelector).Remove()
	sel.Find("i, span, a, div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return isWidget(s)
	}).Remove()

	for origTag, newTag := range tagConversions {
		sel.Find(origTag).Each(func(_ int, s *goquery.Selection) {
			existingClass, _ := s.Attr("class")
			if existingClass != "" {
				s.SetAttr("class", existingClass+" "+origTag)
			} else {
				s.SetAttr("class", origTag)
			}
			node := s.Get(0)
			node.Data = newTag
			node.DataAtom = atom.Lookup([]byte(newTag))
		})
	}

	sel.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		var toRemove []string
		for _, attr := range node.Attr {
			if forbiddenAttrs[attr.Key] || strings.HasPrefix(attr.Key, "data-") {
				toRemove = append(toRemove, attr.Key)
			}
		}
		for _, key := range toRemove {
			s.RemoveAttr(key)
		}
	})
}

var widgetClasses = map[string]bool{"fa": true, "fas": true, "far": true, "fab": true, "btn": true}

// isWidget reports icon fonts (fa, fa-*) and buttons (btn, btn-*).
func isWidget(s *goquery.Selection) bool {
	class, ok := s.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(class) {
		if widgetClasses[c] || strings.HasPrefix(c, "fa-") || strings.HasPrefix(c, "btn-") {
			return true
		}
	}
	return false
}
