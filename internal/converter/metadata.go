package converter

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuanying/shamela2epub/internal/book"
)

const (
	defaultTitle  = "كتاب من الشاملة"
	bookCardTitle = "بطاقة الكتاب"
)

// Book card labels, longest first so "الكتاب" never shadows a longer label.
var cardLabels = []struct {
	label string
	set   func(md *book.Metadata, v string)
}{
	{"عدد الصفحات", func(md *book.Metadata, v string) { md.Pages = v }},
	{"المؤلف", func(md *book.Metadata, v string) { md.Author = v }},
	{"الناشر", func(md *book.Metadata, v string) { md.Publisher = v }},
	{"الطبعة", func(md *book.Metadata, v string) { md.Edition = v }},
	{"الكتاب", func(md *book.Metadata, v string) { md.BookTitle = v }},
}

var authorPageRe = regexp.MustCompile(`صفحة\s*المؤلف\s*:?\s*\[\s*([^\]]+?)\s*\]`)

// ParseMetadata extracts book metadata from the index page and the optional
// book card block. Missing fields stay empty.
func ParseMetadata(indexHTML, infoHTML string) book.Metadata {
	md := book.Metadata{Language: "ar"}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(indexHTML))
	if err != nil {
		md.Title = defaultTitle
		return md
	}

	md.Title = book.NormalizeText(doc.Find("h1 a").First().Text())
	if md.Title == "" {
		md.Title = book.NormalizeText(doc.Find("title").First().Text())
	}
	if md.Title == "" {
		md.Title = defaultTitle
	}

	if m := authorPageRe.FindStringSubmatch(doc.Text()); m != nil {
		md.AuthorPage = book.NormalizeText(m[1])
	}

	scope := bookCard(doc)
	if infoHTML != "" {
		if info, err := goquery.NewDocumentFromReader(strings.NewReader(infoHTML)); err == nil {
			scope = info.Selection
		}
	}
	for _, line := range cardLines(scope) {
		for _, l := range cardLabels {
			if !strings.HasPrefix(line, l.label) {
				continue
			}
			v := strings.TrimSpace(strings.TrimPrefix(line, l.label))
			v = strings.TrimSpace(strings.TrimPrefix(v, ":"))
			if v != "" {
				l.set(&md, v)
			}
			break
		}
	}
	return md
}

// bookCard returns the block under the "book card" heading, or the whole
// document when the page has none.
func bookCard(doc *goquery.Document) *goquery.Selection {
	var card *goquery.Selection
	doc.Find("h1, h2, h3, h4").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(book.NormalizeText(s.Text()), bookCardTitle) {
			card = s.Parent()
			return false
		}
		return true
	})
	if card == nil {
		return doc.Selection
	}
	return card
}

// cardLines splits a selection into normalized text lines at <br> and block boundaries.
func cardLines(s *goquery.Selection) []string {
	s = s.Clone()
	s.Find("br").ReplaceWithHtml("\n")
	s.Find("p, div, li, h1, h2, h3, h4").AppendHtml("\n")

	var lines []string
	for _, raw := range strings.Split(s.Text(), "\n") {
		if line := book.NormalizeText(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
