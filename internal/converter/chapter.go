package converter

import (
	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/markup"
)

// MarkerForm is the source notation of an in-text endnote marker.
type MarkerForm int

const (
	MarkerParen MarkerForm = iota + 1 // (N)
	MarkerBracket                     // [N]
	MarkerSup                         // <sup>N</sup>
)

func (f MarkerForm) String() string {
	switch f {
	case MarkerParen:
		return "paren"
	case MarkerBracket:
		return "bracket"
	case MarkerSup:
		return "sup"
	default:
		return "unknown"
	}
}

// Marker is an in-text footnote reference as found before rewriting.
type Marker struct {
	Local     string // chapter-local number, ASCII digits
	Form      MarkerForm
	SectionID string // nearest preceding section, empty when none
}

// Footnote is a chapter-local footnote extracted from a footnote block.
type Footnote struct {
	Local string
	Text  string
}

// Chapter is one chapter as it moves through the transformation stages.
// Every stage returns a new Chapter; Body trees are never shared between stages.
type Chapter struct {
	ID        string
	Title     string
	Body      markup.Fragment
	Sections  []book.Section
	Markers   []Marker
	Footnotes []Footnote
	Endnotes  []book.Endnote
}

// Book is the transformed book handed to the assembler.
type Book struct {
	Metadata book.Metadata
	Profile  book.Profile
	Chapters []*Chapter
	Endnotes *book.EndnotePage
	Cover    *book.CoverAsset
}

func (c *Chapter) clone() *Chapter {
	out := *c
	out.Body = c.Body.Clone()
	out.Sections = append([]book.Section(nil), c.Sections...)
	out.Markers = append([]Marker(nil), c.Markers...)
	out.Footnotes = append([]Footnote(nil), c.Footnotes...)
	out.Endnotes = append([]book.Endnote(nil), c.Endnotes...)
	return &out
}
