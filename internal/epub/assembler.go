package epub

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/markup"
)

const (
	navTitle      = "المحتويات"
	untitled      = "Untitled"
	modifiedStamp = "2006-01-02T15:04:05Z"
)

// Identifier derives a stable urn:uuid identifier from the source URL, so
// repeated runs on the same book produce the same package identifier.
func Identifier(sourceURL, title string) string {
	name := sourceURL
	if name == "" {
		name = "shamela2epub:" + title
	}
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// chapterFile returns the file name of the i-th (0-based) chapter inside text/.
func chapterFile(i int) string {
	return fmt.Sprintf("%04d.xhtml", i+1)
}

// BuildManifest lays out the publication: navigation, NCX, stylesheet,
// chapters, endnotes and cover, and decides the spine for the profile.
func BuildManifest(pub *Publication) (*Manifest, error) {
	if len(pub.Chapters) == 0 {
		return nil, book.ErrNoChapters
	}

	md := pub.Metadata
	if md.Language == "" {
		md.Language = "ar"
	}
	if md.DisplayTitle() == "" {
		md.Title = untitled
	}
	if md.Identifier == "" {
		md.Identifier = Identifier(pub.SourceURL, md.DisplayTitle())
	}
	modified := pub.Modified
	if modified.IsZero() {
		modified = time.Now()
	}

	m := &Manifest{
		metadata: md,
		profile:  pub.Profile,
		modified: modified.UTC().Format(modifiedStamp),
	}
	b := &manifestBuilder{m: m, ids: map[string]bool{}, hrefs: map[string]bool{}}

	hasNotes := pub.Endnotes != nil && len(pub.Endnotes.Entries) > 0
	files := make(map[string]string, len(pub.Chapters))
	for i, ch := range pub.Chapters {
		files[ch.ID] = chapterFile(i)
	}

	points := buildNavPoints(pub.Chapters, files, hasNotes)
	depth := numberNavPoints(points)
	m.toc = NCX{UID: md.Identifier, Depth: depth, DocTitle: md.DisplayTitle(), NavPoints: points}

	if err := b.add(Item{
		ID:         navID,
		Href:       navHref,
		MediaType:  mediaXHTML,
		Properties: []string{"nav"},
		Data:       navDocument(m.toc, md.Language),
	}); err != nil {
		return nil, err
	}

	ncxData, err := MarshalNCX(&m.toc, md.Language)
	if err != nil {
		return nil, err
	}
	if err := b.add(Item{ID: ncxID, Href: ncxHref, MediaType: mediaNCX, Data: ncxData}); err != nil {
		return nil, err
	}

	css := pub.Stylesheet
	if css == "" {
		css = DefaultStylesheet
	}
	if err := b.add(Item{
		ID:        cssID,
		Href:      cssHref,
		MediaType: mediaCSS,
		Data:      []byte(CleanStylesheet(css, pub.Profile)),
	}); err != nil {
		return nil, err
	}

	if pub.Profile != book.ProfileConservativeDevice {
		m.spine = append(m.spine, navID)
	}

	for i, ch := range pub.Chapters {
		id := "ch-" + strconv.Itoa(i+1)
		if err := b.add(Item{
			ID:        id,
			Href:      "text/" + files[ch.ID],
			MediaType: mediaXHTML,
			Data:      chapterDocument(ch, pub.Profile, md.Language),
		}); err != nil {
			return nil, err
		}
		m.spine = append(m.spine, id)
	}

	if hasNotes {
		if err := b.add(Item{
			ID:        endnotesID,
			Href:      endnotesHref,
			MediaType: mediaXHTML,
			Data:      endnotesDocument(pub.Endnotes, files, pub.Profile, md.Language),
		}); err != nil {
			return nil, err
		}
		m.spine = append(m.spine, endnotesID)
	}

	if pub.Cover != nil && len(pub.Cover.Data) > 0 {
		if err := b.add(Item{
			ID:         coverID,
			Href:       "images/cover." + pub.Cover.Extension(),
			MediaType:  pub.Cover.MediaType,
			Properties: []string{"cover-image"},
			Data:       pub.Cover.Data,
		}); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// buildNavPoints nests top sections under their chapter and sub sections
// under their parent. Sub sections without a parent hang off the chapter.
func buildNavPoints(chapters []Chapter, files map[string]string, hasNotes bool) []NavPoint {
	var points []NavPoint
	for _, ch := range chapters {
		path := "text/" + files[ch.ID]
		cp := NavPoint{Label: ch.Title, ContentPath: path}
		if cp.Label == "" {
			cp.Label = ch.ID
		}
		top := -1
		for _, s := range ch.Sections {
			np := NavPoint{Label: s.Title, ContentPath: path, Fragment: s.ID}
			switch {
			case s.Level == book.SectionTop:
				cp.Children = append(cp.Children, np)
				top = len(cp.Children) - 1
			case s.ParentID != "" && top >= 0 && cp.Children[top].Fragment == s.ParentID:
				cp.Children[top].Children = append(cp.Children[top].Children, np)
			default:
				cp.Children = append(cp.Children, np)
			}
		}
		points = append(points, cp)
	}
	if hasNotes {
		points = append(points, NavPoint{Label: endnotesTitle, ContentPath: endnotesHref})
	}
	return points
}

const endnotesTitle = "الهوامش"

func navDocument(toc NCX, lang string) []byte {
	nav := markup.Elem("nav", markup.A("epub:type", "toc", "id", "toc"),
		markup.Elem("h1", nil, markup.Text(navTitle)),
		navList(toc.NavPoints),
	)
	return markup.Page{Title: navTitle, Lang: lang, Stylesheet: cssHref, Body: markup.Fragment{nav}}.Render()
}

func navList(points []NavPoint) *markup.Node {
	ol := markup.Elem("ol", nil)
	for _, p := range points {
		li := markup.Elem("li", nil, markup.Elem("a", markup.A("href", p.Src()), markup.Text(p.Label)))
		if len(p.Children) > 0 {
			li.Children = append(li.Children, navList(p.Children))
		}
		ol.Children = append(ol.Children, li)
	}
	return ol
}

func chapterDocument(ch Chapter, profile book.Profile, lang string) []byte {
	attrs := markup.A("id", ch.ID)
	if profile == book.ProfileStrictXML {
		attrs = append(attrs, markup.Attr{Key: "epub:type", Val: "chapter"})
	}
	section := markup.Elem("section", attrs, markup.Elem("h1", markup.A("class", "chapter-title"), markup.Text(ch.Title)))
	section.Children = append(section.Children, ch.Body...)
	return markup.Page{
		Title:      ch.Title,
		Lang:       lang,
		Stylesheet: "../" + cssHref,
		Body:       markup.Fragment{section},
	}.Render()
}

func endnotesDocument(page *book.EndnotePage, files map[string]string, profile book.Profile, lang string) []byte {
	title := page.Title
	if title == "" {
		title = endnotesTitle
	}
	ol := markup.Elem("ol", markup.A("class", "endnotes"))
	for _, e := range page.Entries {
		attrs := markup.A("id", e.NoteID())
		if profile == book.ProfileStrictXML {
			attrs = append(attrs, markup.Attr{Key: "epub:type", Val: "endnote"})
		}
		// The list marker is the note number.
		li := markup.Elem("li", attrs, markup.Text(e.Text))
		file := files[e.ChapterID]
		if e.Linked {
			li.Children = append(li.Children, markup.Text(" "),
				markup.Elem("a", markup.A("class", "back-link", "href", file+"#"+e.RefID()), markup.Text("↩")))
		}
		if e.SectionID != "" && e.SectionTitle != "" {
			li.Children = append(li.Children, markup.Text(" "),
				markup.Elem("a", markup.A("class", "section-link", "href", file+"#"+e.SectionID), markup.Text("("+e.SectionTitle+")")))
		}
		ol.Children = append(ol.Children, li)
	}

	attrs := markup.A("class", "endnotes")
	if profile == book.ProfileStrictXML {
		attrs = append(attrs, markup.Attr{Key: "epub:type", Val: "endnotes"})
	}
	section := markup.Elem("section", attrs,
		markup.Elem("h1", markup.A("class", "chapter-title"), markup.Text(title)),
		ol,
	)
	return markup.Page{Title: title, Lang: lang, Stylesheet: "../" + cssHref, Body: markup.Fragment{section}}.Render()
}
