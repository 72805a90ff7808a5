package epub

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// NCX represents the navigation control structure shared by toc.ncx and nav.xhtml.
type NCX struct {
	UID       string
	Depth     int
	DocTitle  string
	NavPoints []NavPoint
}

// NavPoint represents a single navigation point in the table of contents.
type NavPoint struct {
	ID          string
	PlayOrder   int
	Label       string
	ContentPath string // fragment-free path relative to the package document
	Fragment    string // fragment identifier (without #)
	Children    []NavPoint
}

// Src returns the content reference of the point.
func (np NavPoint) Src() string {
	if np.Fragment == "" {
		return np.ContentPath
	}
	return np.ContentPath + "#" + np.Fragment
}

// splitFragment splits a source path into the path and fragment identifier.
func splitFragment(src string) (path, fragment string) {
	if src == "" {
		return "", ""
	}
	parts := strings.SplitN(src, "#", 2)
	path = parts[0]
	if len(parts) == 2 {
		fragment = parts[1]
	}
	return path, fragment
}

// numberNavPoints assigns ids and play orders in depth-first order and
// returns the depth of the tree.
func numberNavPoints(points []NavPoint) int {
	order := 0
	var walk func(points []NavPoint, level int) int
	walk = func(points []NavPoint, level int) int {
		depth := 0
		for i := range points {
			order++
			points[i].PlayOrder = order
			points[i].ID = "np-" + strconv.Itoa(order)
			d := level
			if len(points[i].Children) > 0 {
				d = walk(points[i].Children, level+1)
			}
			if d > depth {
				depth = d
			}
		}
		return depth
	}
	return walk(points, 1)
}

type ncxDoc struct {
	XMLName  xml.Name   `xml:"ncx"`
	Xmlns    string     `xml:"xmlns,attr"`
	Version  string     `xml:"version,attr"`
	Lang     string     `xml:"xml:lang,attr"`
	Head     []ncxMeta  `xml:"head>meta"`
	DocTitle ncxText    `xml:"docTitle"`
	NavMap   []navPoint `xml:"navMap>navPoint"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxText struct {
	Text string `xml:"text"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     ncxText    `xml:"navLabel"`
	Content   ncxContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// MarshalNCX serializes ncx as a toc.ncx document.
func MarshalNCX(ncx *NCX, lang string) ([]byte, error) {
	doc := ncxDoc{
		Xmlns:   ncxNamespace,
		Version: "2005-1",
		Lang:    lang,
		Head: []ncxMeta{
			{Name: "dtb:uid", Content: ncx.UID},
			{Name: "dtb:depth", Content: strconv.Itoa(ncx.Depth)},
			{Name: "dtb:totalPageCount", Content: "0"},
			{Name: "dtb:maxPageNumber", Content: "0"},
		},
		DocTitle: ncxText{Text: ncx.DocTitle},
		NavMap:   toNavPointDocs(ncx.NavPoints),
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NCX: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func toNavPointDocs(points []NavPoint) []navPoint {
	out := make([]navPoint, 0, len(points))
	for _, p := range points {
		out = append(out, navPoint{
			ID:        p.ID,
			PlayOrder: p.PlayOrder,
			Label:     ncxText{Text: p.Label},
			Content:   ncxContent{Src: p.Src()},
			Children:  toNavPointDocs(p.Children),
		})
	}
	return out
}

// ParseNCX parses a toc.ncx document. Content paths stay relative to the NCX.
func ParseNCX(data []byte) (*NCX, error) {
	var doc ncxDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX XML: %w", err)
	}
	ncx := &NCX{DocTitle: doc.DocTitle.Text, NavPoints: fromNavPointDocs(doc.NavMap)}
	for _, m := range doc.Head {
		switch m.Name {
		case "dtb:uid":
			ncx.UID = m.Content
		case "dtb:depth":
			ncx.Depth, _ = strconv.Atoi(m.Content)
		}
	}
	return ncx, nil
}

func fromNavPointDocs(points []navPoint) []NavPoint {
	var out []NavPoint
	for _, p := range points {
		path, fragment := splitFragment(p.Content.Src)
		out = append(out, NavPoint{
			ID:          p.ID,
			PlayOrder:   p.PlayOrder,
			Label:       strings.TrimSpace(p.Label.Text),
			ContentPath: path,
			Fragment:    fragment,
			Children:    fromNavPointDocs(p.Children),
		})
	}
	return out
}
