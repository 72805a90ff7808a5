package epub

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

const (
	opfNamespace = "http://www.idpf.org/2007/opf"
	dcNamespace  = "http://purl.org/dc/elements/1.1/"
	ncxNamespace = "http://www.daisy.org/z3986/2005/ncx/"
)

// opfPackage represents the OPF XML structure
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Dir      string      `xml:"dir,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

// opfMetadata represents the metadata section
type opfMetadata struct {
	Title      []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator    []string        `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language   []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publisher  []string        `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Meta       []opfMeta       `xml:"meta"`
}

// opfIdentifier represents an identifier element
type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

// opfMeta represents a meta element (EPUB 2.0 and 3.0)
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"` // EPUB 2.0: attribute value
	Value    string `xml:",chardata"`    // EPUB 3.0: element text content
	Property string `xml:"property,attr"`
}

// opfManifest represents the manifest section
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents an item in the manifest
type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// opfSpine represents the spine section
type opfSpine struct {
	Toc       string       `xml:"toc,attr"`
	Direction string       `xml:"page-progression-direction,attr"`
	ItemRefs  []opfItemRef `xml:"itemref"`
}

// opfItemRef represents an itemref in the spine
type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ParseOPF parses an OPF file content and returns the OPF structure
// opfDir is the directory containing the OPF file (e.g., "OEBPS")
func ParseOPF(content []byte, opfDir string) (*OPF, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	opf := &OPF{
		Manifest:                 make(map[string]ManifestItem),
		PageProgressionDirection: pkg.Spine.Direction,
	}
	opf.Metadata = parseMetadata(&pkg.Metadata, pkg.UniqueID)

	for _, item := range pkg.Manifest.Items {
		manifestItem := ManifestItem{
			ID:        item.ID,
			Href:      path.Join(opfDir, item.Href),
			MediaType: item.MediaType,
		}
		if item.Properties != "" {
			manifestItem.Properties = strings.Fields(item.Properties)
		}
		opf.Manifest[item.ID] = manifestItem
	}

	for _, itemRef := range pkg.Spine.ItemRefs {
		opf.Spine = append(opf.Spine, SpineItem{
			IDRef:  itemRef.IDRef,
			Linear: itemRef.Linear != "no",
		})
	}

	if pkg.Spine.Toc != "" {
		if ncxItem, ok := opf.Manifest[pkg.Spine.Toc]; ok {
			opf.NCXPath = ncxItem.Href
		}
	}

	return opf, nil
}

func parseMetadata(meta *opfMetadata, uniqueID string) Metadata {
	md := Metadata{Creators: meta.Creator}
	if len(meta.Title) > 0 {
		md.Title = meta.Title[0]
	}
	if len(meta.Language) > 0 {
		md.Language = meta.Language[0]
	}
	for _, id := range meta.Identifier {
		if id.ID == uniqueID {
			md.Identifier = id.Value
			break
		}
	}
	if md.Identifier == "" && len(meta.Identifier) > 0 {
		md.Identifier = meta.Identifier[0].Value
	}
	if len(meta.Publisher) > 0 {
		md.Publisher = meta.Publisher[0]
	}
	for _, m := range meta.Meta {
		switch {
		case m.Name == "cover" && m.Content != "":
			md.CoverID = m.Content
		case m.Property == "dcterms:modified":
			md.Modified = strings.TrimSpace(m.Value)
		}
	}
	return md
}

// InSpine reports whether the manifest item id is referenced by the spine.
func (opf *OPF) InSpine(id string) bool {
	for _, ref := range opf.Spine {
		if ref.IDRef == id {
			return true
		}
	}
	return false
}

// FindCoverImage returns the href of the cover image.
func (opf *OPF) FindCoverImage() (string, bool) {
	for _, item := range opf.Manifest {
		for _, prop := range item.Properties {
			if prop == "cover-image" {
				return item.Href, true
			}
		}
	}
	if opf.Metadata.CoverID != "" {
		if item, ok := opf.Manifest[opf.Metadata.CoverID]; ok {
			return item.Href, true
		}
	}
	return "", false
}

// The write side uses literal prefixed names; the prefixes are declared on
// the elements that carry them.

type packageDoc struct {
	XMLName  xml.Name    `xml:"package"`
	Xmlns    string      `xml:"xmlns,attr"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Lang     string      `xml:"xml:lang,attr"`
	Dir      string      `xml:"dir,attr"`
	Metadata metadataDoc `xml:"metadata"`
	Manifest manifestDoc `xml:"manifest"`
	Spine    spineDoc    `xml:"spine"`
}

type metadataDoc struct {
	XmlnsDC    string    `xml:"xmlns:dc,attr"`
	Identifier identDoc  `xml:"dc:identifier"`
	Title      string    `xml:"dc:title"`
	Language   string    `xml:"dc:language"`
	Creator    string    `xml:"dc:creator,omitempty"`
	Publisher  string    `xml:"dc:publisher,omitempty"`
	Meta       []metaDoc `xml:"meta"`
}

type identDoc struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type metaDoc struct {
	Property string `xml:"property,attr,omitempty"`
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type manifestDoc struct {
	Items []itemDoc `xml:"item"`
}

type itemDoc struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type spineDoc struct {
	Toc       string       `xml:"toc,attr"`
	Direction string       `xml:"page-progression-direction,attr"`
	ItemRefs  []itemRefDoc `xml:"itemref"`
}

type itemRefDoc struct {
	IDRef string `xml:"idref,attr"`
}

// marshalOPF serializes the package document of m.
func marshalOPF(m *Manifest) ([]byte, error) {
	md := m.metadata
	doc := packageDoc{
		Xmlns:    opfNamespace,
		Version:  "3.0",
		UniqueID: "bookid",
		Lang:     md.Language,
		Dir:      "rtl",
		Metadata: metadataDoc{
			XmlnsDC:    dcNamespace,
			Identifier: identDoc{ID: "bookid", Value: md.Identifier},
			Title:      md.DisplayTitle(),
			Language:   md.Language,
			Creator:    md.Creator(),
			Publisher:  md.Publisher,
			Meta: []metaDoc{
				{Property: "dcterms:modified", Value: m.modified},
			},
		},
		Spine: spineDoc{Toc: ncxID, Direction: "rtl"},
	}
	if m.hasCover() {
		doc.Metadata.Meta = append(doc.Metadata.Meta, metaDoc{Name: "cover", Content: coverID})
	}
	for _, item := range m.items {
		doc.Manifest.Items = append(doc.Manifest.Items, itemDoc{
			ID:         item.ID,
			Href:       item.Href,
			MediaType:  item.MediaType,
			Properties: strings.Join(item.Properties, " "),
		})
	}
	for _, id := range m.spine {
		doc.Spine.ItemRefs = append(doc.Spine.ItemRefs, itemRefDoc{IDRef: id})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OPF: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
