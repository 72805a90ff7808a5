package book

import "strconv"

// Metadata holds the bibliographic fields shown on the book card of the source site.
type Metadata struct {
	Title      string // Page title (falls back to the <title> of the index page)
	BookTitle  string // Full title from the book card, preferred when present
	Author     string
	AuthorPage string // Author name as linked from the author page
	Publisher  string
	Edition    string
	Pages      string
	Language   string // BCP 47 tag, "ar" unless the source says otherwise
	Identifier string // urn:uuid:... assigned at assembly time when empty
}

// DisplayTitle returns the title used for the package and file name.
func (m Metadata) DisplayTitle() string {
	if m.BookTitle != "" {
		return m.BookTitle
	}
	return m.Title
}

// Creator returns the best available author name.
func (m Metadata) Creator() string {
	if m.Author != "" {
		return m.Author
	}
	return m.AuthorPage
}

// RawChapter is one chapter as delivered by a fetch provider.
// Order inside Source.Chapters is the book order and is never changed.
type RawChapter struct {
	ID    string // Source-stable identifier (page id on the source site)
	Title string
	HTML  string // Raw chapter markup (content container only)
}

// Source is everything the conversion core receives from its collaborators.
type Source struct {
	URL       string
	IndexHTML string
	InfoHTML  string // Optional book card block
	Chapters  []RawChapter
	Cover     *CoverAsset
}

// CoverAsset is a validated cover image. It is recorded, never re-encoded, by the assembler.
type CoverAsset struct {
	Data      []byte
	MediaType string
}

// Extension returns the file extension matching the cover media type.
func (c *CoverAsset) Extension() string {
	if c.MediaType == "image/png" {
		return "png"
	}
	return "jpg"
}

// SectionLevel is the heading tier of a Section. Only two tiers exist.
type SectionLevel int

const (
	SectionTop SectionLevel = iota + 1
	SectionSub
)

func (l SectionLevel) String() string {
	switch l {
	case SectionTop:
		return "top"
	case SectionSub:
		return "sub"
	default:
		return "unknown"
	}
}

// Section is a heading-derived navigation entry inside a chapter.
type Section struct {
	ID        string // <chapter-id>-<positional-index>, assigned once
	Level     SectionLevel
	Title     string
	ChapterID string
	ParentID  string // Nearest preceding top-level section for sub sections; empty when none
}

// Endnote is a footnote promoted to book-global numbering.
type Endnote struct {
	Number    int // 1..N in book order
	Text      string
	ChapterID string
	SectionID string // Nearest preceding section of the first in-text marker; empty when none
	Linked    bool   // True when at least one in-text marker points at this note
}

// RefID returns the id of the in-text anchor that points at the note.
func (e Endnote) RefID() string {
	return "ref-" + strconv.Itoa(e.Number)
}

// NoteID returns the id of the note entry on the endnote page.
func (e Endnote) NoteID() string {
	return "note-" + strconv.Itoa(e.Number)
}

// EndnoteEntry is one line of the endnote listing page.
type EndnoteEntry struct {
	Endnote
	SectionTitle string // Title of Endnote.SectionID, empty when the note has no section
}

// EndnotePage is the model of the single endnote listing document.
type EndnotePage struct {
	Title   string
	Entries []EndnoteEntry
}
