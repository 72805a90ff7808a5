package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/markup"
)

// EndnotesFile is the name of the endnote listing document next to the chapters.
const EndnotesFile = "endnotes.xhtml"

// EndnotesTitle is the heading of the endnote listing page.
const EndnotesTitle = "الهوامش"

// footnoteClass marks the trailing footnote blocks of a source chapter.
const footnoteClass = "hamesh"

const digits = `[0-9\x{0660}-\x{0669}\x{06F0}-\x{06F9}]+`

// Brackets around a note number, including the ornate parentheses, and the
// Latin and Arabic punctuation that may follow it.
const (
	noteOpen  = `[(\[{\x{FD3E}\x{FD3F}]`
	noteClose = `[)\]}\x{FD3E}\x{FD3F}]`
	noteSep   = `[.\-\x{2013}\x{2014}:)\x{060C}\x{061B}\x{066B}\x{066C}\x{06D4}]`
)

var (
	noteLineEnclosed = regexp.MustCompile(`^` + noteOpen + `\s*(` + digits + `)\s*` + noteClose + `\s*(.*)$`)
	noteLineSep      = regexp.MustCompile(`^(` + digits + `)\s*` + noteSep + `\s*(.*)$`)
	noteEcho         = regexp.MustCompile(`^(?:` + noteOpen + `\s*` + digits + `\s*` + noteClose + `\s*` + noteSep + `*|` + digits + `\s*` + noteSep + `+)\s*`)
	textMarker       = regexp.MustCompile(`\(\s*(` + digits + `)\s*\)|\[\s*(` + digits + `)\s*\]`)
)

// ExtractEndnotes is the per-chapter first pass. It removes the footnote
// blocks from the body, parses them into chapter-local footnotes and records
// the in-text markers in document order. Nothing is numbered globally here.
func ExtractEndnotes(ch *Chapter) (*Chapter, []book.Warning) {
	out := ch.clone()
	var blocks []*markup.Node
	out.Body = removeFootnoteBlocks(out.Body, &blocks)

	var warnings []book.Warning
	seen := make(map[string]bool)
	out.Footnotes = nil
	for _, block := range blocks {
		for _, fn := range parseFootnoteBlock(block) {
			if seen[fn.Local] {
				warnings = append(warnings, book.Warning{
					Kind:      book.WarningDuplicateFootnote,
					ChapterID: ch.ID,
					Marker:    fn.Local,
					Message:   fmt.Sprintf("footnote %s appears more than once; keeping the first", fn.Local),
				})
				continue
			}
			seen[fn.Local] = true
			out.Footnotes = append(out.Footnotes, fn)
		}
	}

	out.Markers = nil
	v := markerVisitor{
		textMarkers: len(out.Footnotes) > 0,
		visit: func(m Marker) *markup.Node {
			out.Markers = append(out.Markers, m)
			return nil
		},
	}
	v.nodes(out.Body)
	return out, warnings
}

func removeFootnoteBlocks(nodes markup.Fragment, blocks *[]*markup.Node) markup.Fragment {
	var out markup.Fragment
	for _, n := range nodes {
		if n.IsElement("p") && n.HasClass(footnoteClass) {
			*blocks = append(*blocks, n)
			continue
		}
		if n.Type == markup.ElementNode && len(n.Children) > 0 {
			n.Children = removeFootnoteBlocks(n.Children, blocks)
		}
		out = append(out, n)
	}
	return out
}

// parseFootnoteBlock splits a block into lines on <br>. A line starting with
// a number opens a footnote; other lines continue the current one.
func parseFootnoteBlock(block *markup.Node) []Footnote {
	var (
		notes []Footnote
		cur   *Footnote
		parts []string
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = stripEcho(strings.Join(parts, " "))
		if cur.Text != "" {
			notes = append(notes, *cur)
		}
		cur, parts = nil, nil
	}
	for _, line := range splitLines(block.Children) {
		text := lineText(line)
		if text == "" {
			continue
		}
		m := noteLineEnclosed.FindStringSubmatch(text)
		if m == nil {
			m = noteLineSep.FindStringSubmatch(text)
		}
		if m != nil {
			flush()
			local, _ := book.ParseNumber(m[1])
			cur = &Footnote{Local: local}
			parts = []string{m[2]}
			continue
		}
		if cur != nil {
			parts = append(parts, text)
		}
	}
	flush()
	return notes
}

func splitLines(nodes []*markup.Node) [][]*markup.Node {
	var lines [][]*markup.Node
	var cur []*markup.Node
	for _, n := range nodes {
		if n.IsElement("br") {
			lines = append(lines, cur)
			cur = nil
			continue
		}
		cur = append(cur, n)
	}
	return append(lines, cur)
}

// lineText returns the normalized text of a footnote line. A leading
// superscript number is written as "(N)" so every opening form parses alike.
func lineText(line []*markup.Node) string {
	var b strings.Builder
	leading := true
	for _, n := range line {
		if leading && n.IsElement("sup") {
			if local, ok := supNumber(n); ok {
				b.WriteString("(" + local + ") ")
				leading = false
				continue
			}
		}
		text := n.TextContent()
		if strings.TrimSpace(text) != "" {
			leading = false
		}
		b.WriteString(text)
	}
	return book.NormalizeText(b.String())
}

// stripEcho removes every leading number token with its brackets or
// punctuation, such as the "16." in "(16) 16. text" or "(1) ١٦، text",
// whatever its value. Text that would become empty is left alone.
func stripEcho(text string) string {
	text = strings.TrimSpace(text)
	for {
		m := noteEcho.FindString(text)
		if m == "" {
			return text
		}
		rest := strings.TrimSpace(text[len(m):])
		if rest == "" {
			return text
		}
		text = rest
	}
}

// supNumber reports the number inside <sup>N</sup>, <sup>(N)</sup> or <sup>[N]</sup>.
func supNumber(n *markup.Node) (string, bool) {
	text := strings.TrimSpace(book.StripControls(n.TextContent()))
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if first == '(' && last == ')' || first == '[' && last == ']' {
			text = strings.TrimSpace(text[1 : len(text)-1])
		}
	}
	return book.ParseNumber(text)
}

// markerVisitor rebuilds a tree, offering every marker to visit. A nil
// replacement keeps the source notation untouched.
type markerVisitor struct {
	textMarkers bool
	section     string
	visit       func(Marker) *markup.Node
}

func (v *markerVisitor) nodes(in []*markup.Node) markup.Fragment {
	var out markup.Fragment
	for _, n := range in {
		if n.Type == markup.TextNode {
			if v.textMarkers {
				out = append(out, v.text(n.Data)...)
			} else {
				out = append(out, n)
			}
			continue
		}
		if n.Tag == "sup" {
			if local, ok := supNumber(n); ok {
				if r := v.visit(Marker{Local: local, Form: MarkerSup, SectionID: v.section}); r != nil {
					out = append(out, r)
				} else {
					out = append(out, n)
				}
				continue
			}
		}
		if markup.HeadingLevel(n.Tag) > 0 {
			if id, ok := n.Attr("id"); ok {
				v.section = id
			}
		}
		c := *n
		c.Children = v.nodes(n.Children)
		out = append(out, &c)
	}
	return out
}

func (v *markerVisitor) text(s string) []*markup.Node {
	locs := textMarker.FindAllStringSubmatchIndex(s, -1)
	if locs == nil {
		return []*markup.Node{markup.Text(s)}
	}
	var out []*markup.Node
	last := 0
	for _, loc := range locs {
		form, num := MarkerParen, ""
		if loc[2] >= 0 {
			num = s[loc[2]:loc[3]]
		} else {
			form, num = MarkerBracket, s[loc[4]:loc[5]]
		}
		local, _ := book.ParseNumber(num)
		r := v.visit(Marker{Local: local, Form: form, SectionID: v.section})
		if r == nil {
			continue
		}
		if loc[0] > last {
			out = append(out, markup.Text(s[last:loc[0]]))
		}
		out = append(out, r)
		last = loc[1]
	}
	if last < len(s) {
		out = append(out, markup.Text(s[last:]))
	}
	return out
}

// LinkEndnotes is the whole-book second pass. It must receive every chapter
// of the run after ExtractEndnotes; numbering is assigned here and only here.
// Footnotes are numbered 1..N in chapter order and then block order, every
// marker is rewritten to the same link target and the listing page is built.
func LinkEndnotes(chapters []*Chapter, profile book.Profile) ([]*Chapter, *book.EndnotePage, []book.Warning) {
	var (
		out      = make([]*Chapter, 0, len(chapters))
		page     = &book.EndnotePage{Title: EndnotesTitle}
		warnings []book.Warning
		next     = 1
	)
	for _, ch := range chapters {
		linked := ch.clone()
		notes := make([]book.Endnote, len(ch.Footnotes))
		global := make(map[string]int, len(ch.Footnotes))
		for i, fn := range ch.Footnotes {
			notes[i] = book.Endnote{Number: next, Text: fn.Text, ChapterID: ch.ID}
			global[fn.Local] = i
			next++
		}

		v := markerVisitor{
			textMarkers: len(ch.Footnotes) > 0,
			visit: func(m Marker) *markup.Node {
				i, ok := global[m.Local]
				if !ok {
					warnings = append(warnings, book.Warning{
						Kind:      book.WarningUnlinkedEndnote,
						ChapterID: ch.ID,
						Marker:    m.Local,
						Message:   fmt.Sprintf("marker %s has no footnote", m.Local),
					})
					return nil
				}
				first := !notes[i].Linked
				if first {
					notes[i].Linked = true
					notes[i].SectionID = m.SectionID
				}
				return noteRef(notes[i], first, profile)
			},
		}
		linked.Body = v.nodes(ch.Body)

		for i, n := range notes {
			if !n.Linked {
				warnings = append(warnings, book.Warning{
					Kind:      book.WarningUnlinkedEndnote,
					ChapterID: ch.ID,
					Marker:    ch.Footnotes[i].Local,
					Message:   fmt.Sprintf("footnote for endnote %d has no marker in the text", n.Number),
				})
			}
			page.Entries = append(page.Entries, book.EndnoteEntry{
				Endnote:      n,
				SectionTitle: sectionTitle(ch.Sections, n.SectionID),
			})
		}
		linked.Endnotes = notes
		out = append(out, linked)
	}
	return out, page, warnings
}

// noteRef builds <sup><a id="ref-G" href="endnotes.xhtml#note-G">G</a></sup>.
// Only the first reference to a note carries the back-link anchor id.
func noteRef(n book.Endnote, first bool, profile book.Profile) *markup.Node {
	var attrs []markup.Attr
	if first {
		attrs = append(attrs, markup.Attr{Key: "id", Val: n.RefID()})
	}
	attrs = append(attrs, markup.Attr{Key: "href", Val: EndnotesFile + "#" + n.NoteID()})
	if profile == book.ProfileStrictXML {
		attrs = append(attrs, markup.Attr{Key: "epub:type", Val: "noteref"})
	}
	return markup.Elem("sup", nil, markup.Elem("a", attrs, markup.Text(strconv.Itoa(n.Number))))
}

func sectionTitle(sections []book.Section, id string) string {
	if id == "" {
		return ""
	}
	for _, s := range sections {
		if s.ID == id {
			return s.Title
		}
	}
	return ""
}
