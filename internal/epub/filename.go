package epub

import (
	"regexp"
	"strings"

	"github.com/yuanying/shamela2epub/internal/book"
)

// bookPrefixRe matches a leading "كتاب" or "الكتاب" used as a generic label,
// optionally followed by a colon or dash.
var bookPrefixRe = regexp.MustCompile(`^(?:ال)?كتاب(?:\s*[:\-–—]\s*|\s+)`)

var pathSeparators = strings.NewReplacer("/", "-", "\\", "-", "\x00", "")

// StripBookPrefix removes the generic "book" word from the start of title.
// A title that consists of the word alone is returned unchanged.
func StripBookPrefix(title string) string {
	loc := bookPrefixRe.FindStringIndex(title)
	if loc == nil || loc[1] == len(title) {
		return title
	}
	return title[loc[1]:]
}

// FileName returns "<Title> - <Publisher>.epub". Script and spacing are kept
// as written; only path separators are replaced.
func FileName(title, publisher string) string {
	title = StripBookPrefix(book.NormalizeText(title))
	if title == "" {
		title = untitled
	}
	name := title
	if p := book.NormalizeText(publisher); p != "" {
		name += " - " + p
	}
	return pathSeparators.Replace(name) + ".epub"
}
