package epub

import (
	"time"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/markup"
)

// Chapter is one sanitized, linked chapter ready to be written.
type Chapter struct {
	ID       string
	Title    string
	Body     markup.Fragment
	Sections []book.Section
}

// Publication is everything the assembler consumes. All ids and cross
// references inside it must already be unique and consistent.
type Publication struct {
	Metadata   book.Metadata
	Profile    book.Profile
	SourceURL  string
	Chapters   []Chapter
	Endnotes   *book.EndnotePage // nil or empty when the book has no endnotes
	Cover      *book.CoverAsset
	Stylesheet string // overrides the built-in stylesheet when non-empty
	Modified   time.Time
}

// Item is one manifest entry. Href is relative to the package document.
type Item struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
	Data       []byte
}

// OPF represents a parsed package document, used to verify written archives.
type OPF struct {
	Metadata                 Metadata
	Manifest                 map[string]ManifestItem // id -> item
	Spine                    []SpineItem
	NCXPath                  string
	PageProgressionDirection string
}

// Metadata represents the metadata section of the OPF
type Metadata struct {
	Title      string
	Creators   []string
	Language   string
	Identifier string
	Publisher  string
	Modified   string
	CoverID    string // manifest id from meta name="cover"
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string
	Linear bool
}
