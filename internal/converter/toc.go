package converter

import (
	"strconv"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/markup"
)

// headingTier maps a source heading level onto the two supported tiers.
// h1 and h2 become top-level sections, h3 to h6 are flattened into sub sections.
func headingTier(level int) book.SectionLevel {
	if level <= 2 {
		return book.SectionTop
	}
	return book.SectionSub
}

// tierTag is the element a heading of the given tier is rendered as.
func tierTag(level book.SectionLevel) string {
	if level == book.SectionTop {
		return "h2"
	}
	return "h3"
}

// SectionID returns the identifier of the n-th (1-based) heading of a chapter.
func SectionID(chapterID string, n int) string {
	return chapterID + "-" + strconv.Itoa(n)
}

// ExtractSections walks the sanitized body in document order and returns a
// new tree in which every non-empty heading carries its section id and is
// re-tagged for its tier, together with the ordered sections.
func ExtractSections(chapterID string, body markup.Fragment) (markup.Fragment, []book.Section) {
	out := body.Clone()
	var (
		sections []book.Section
		parentID string
		n        int
	)
	out.Walk(func(node *markup.Node) bool {
		level := markup.HeadingLevel(node.Tag)
		if node.Type != markup.ElementNode || level == 0 {
			return true
		}
		title := book.NormalizeText(node.TextContent())
		if title == "" {
			return false
		}
		n++
		s := book.Section{
			ID:        SectionID(chapterID, n),
			Level:     headingTier(level),
			Title:     title,
			ChapterID: chapterID,
		}
		if s.Level == book.SectionTop {
			parentID = s.ID
		} else {
			s.ParentID = parentID
		}
		node.Tag = tierTag(s.Level)
		node.Attrs = setAttr(node.Attrs, "id", s.ID)
		sections = append(sections, s)
		return false
	})
	return out, sections
}

func setAttr(attrs []markup.Attr, key, val string) []markup.Attr {
	out := make([]markup.Attr, 0, len(attrs)+1)
	out = append(out, markup.Attr{Key: key, Val: val})
	for _, a := range attrs {
		if a.Key != key {
			out = append(out, a)
		}
	}
	return out
}
