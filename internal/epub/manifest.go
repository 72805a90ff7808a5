package epub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yuanying/shamela2epub/internal/book"
)

// Fixed manifest ids and paths inside the OEBPS directory.
const (
	navID        = "nav"
	ncxID        = "ncx"
	cssID        = "css"
	endnotesID   = "endnotes"
	coverID      = "cover-image"
	navHref      = "nav.xhtml"
	ncxHref      = "toc.ncx"
	cssHref      = "css/style.css"
	endnotesHref = "text/endnotes.xhtml"

	mediaXHTML = "application/xhtml+xml"
	mediaNCX   = "application/x-dtbncx+xml"
	mediaCSS   = "text/css"
)

var (
	// ErrFontAsset is returned when a font would be added to the manifest.
	ErrFontAsset = errors.New("font assets are never embedded")
	// ErrDuplicateItem is returned when two manifest items share an id or path.
	ErrDuplicateItem = errors.New("duplicate manifest item")
)

// Manifest is the immutable model of everything written to the archive.
// It is built once by BuildManifest and only read afterwards.
type Manifest struct {
	metadata book.Metadata
	profile  book.Profile
	modified string
	items    []Item
	spine    []string
	toc      NCX
}

// Items returns a copy of the manifest items in archive order.
func (m *Manifest) Items() []Item {
	return append([]Item(nil), m.items...)
}

// Spine returns a copy of the spine idrefs.
func (m *Manifest) Spine() []string {
	return append([]string(nil), m.spine...)
}

// Metadata returns the package metadata.
func (m *Manifest) Metadata() book.Metadata {
	return m.metadata
}

// Profile returns the profile the manifest was built for.
func (m *Manifest) Profile() book.Profile {
	return m.profile
}

// Item returns the manifest item with id.
func (m *Manifest) Item(id string) (Item, bool) {
	for _, item := range m.items {
		if item.ID == id {
			return item, true
		}
	}
	return Item{}, false
}

// InSpine reports whether id is part of the reading order.
func (m *Manifest) InSpine(id string) bool {
	for _, ref := range m.spine {
		if ref == id {
			return true
		}
	}
	return false
}

func (m *Manifest) hasCover() bool {
	_, ok := m.Item(coverID)
	return ok
}

// IsFontMediaType reports whether mediaType denotes a font resource.
func IsFontMediaType(mediaType string) bool {
	mt := strings.ToLower(mediaType)
	return strings.HasPrefix(mt, "font/") ||
		strings.HasPrefix(mt, "application/font-") ||
		strings.HasPrefix(mt, "application/x-font") ||
		mt == "application/vnd.ms-opentype"
}

type manifestBuilder struct {
	m     *Manifest
	ids   map[string]bool
	hrefs map[string]bool
}

func (b *manifestBuilder) add(item Item) error {
	if IsFontMediaType(item.MediaType) {
		return fmt.Errorf("%w: %s (%s)", ErrFontAsset, item.Href, item.MediaType)
	}
	if b.ids[item.ID] || b.hrefs[item.Href] {
		return fmt.Errorf("%w: %s (%s)", ErrDuplicateItem, item.ID, item.Href)
	}
	b.ids[item.ID] = true
	b.hrefs[item.Href] = true
	b.m.items = append(b.m.items, item)
	return nil
}
