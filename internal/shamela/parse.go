package shamela

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuanying/shamela2epub/internal/book"
)

// ErrInvalidBookURL is returned for URLs that are not of the form https://<host>/book/<id>.
var ErrInvalidBookURL = errors.New("invalid book URL: expected https://shamela.ws/book/<id>")

var (
	bookURLRe   = regexp.MustCompile(`^https?://[\w.:-]+/book/(\d+)/?$`)
	titleSuffix = regexp.MustCompile(`\s*-\s*المكتبة الشاملة.*$`)
)

// TOCEntry is one chapter link of the index page.
type TOCEntry struct {
	PageID  int
	Order   int // 1-based position in the index
	Title   string
	URL     string
	Aliases []string // Other labels linking to the same page
}

// Page is the useful part of one fetched book page.
type Page struct {
	Title   string
	Content string // Inner HTML of the main text container, empty when none
	NextID  int    // Page id behind the "next page" link, zero when absent
}

// BookID validates bookURL and returns its numeric book id.
func BookID(bookURL string) (string, error) {
	m := bookURLRe.FindStringSubmatch(strings.TrimSpace(bookURL))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidBookURL, bookURL)
	}
	return m[1], nil
}

// NormalizeBookURL trims whitespace and trailing slashes.
func NormalizeBookURL(bookURL string) string {
	return strings.TrimRight(strings.TrimSpace(bookURL), "/")
}

func pageURL(bookURL string, pageID int) string {
	return NormalizeBookURL(bookURL) + "/" + strconv.Itoa(pageID)
}

func pagePathRe(bookID string) *regexp.Regexp {
	return regexp.MustCompile(`/book/` + bookID + `/(\d+)$`)
}

// ParseTOC returns the chapter links of an index page in document order.
// Links to a page already listed become aliases of the first entry.
func ParseTOC(bookURL, indexHTML string) ([]TOCEntry, error) {
	bookID, err := BookID(bookURL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(NormalizeBookURL(bookURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBookURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(indexHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse index page: %w", err)
	}

	pathRe := pagePathRe(bookID)
	var (
		entries  []TOCEntry
		byID     = map[int]int{}
		seenHref = map[string]bool{}
	)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		m := pathRe.FindStringSubmatch(abs)
		if m == nil || seenHref[abs] {
			return
		}
		seenHref[abs] = true

		title := book.NormalizeText(s.Text())
		if title == "" {
			return
		}
		id, _ := strconv.Atoi(m[1])
		if i, ok := byID[id]; ok {
			e := &entries[i]
			if title != e.Title && !contains(e.Aliases, title) {
				e.Aliases = append(e.Aliases, title)
			}
			return
		}
		byID[id] = len(entries)
		entries = append(entries, TOCEntry{PageID: id, Order: len(entries) + 1, Title: title, URL: abs})
	})
	return entries, nil
}

// ParsePage extracts the title, main text and next-page link of a book page.
// The largest div.nass block is taken as the text.
func ParsePage(bookID, pageHTML string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse page: %w", err)
	}

	p := Page{Title: pageTitle(doc), NextID: nextPageID(doc, bookID)}

	cleanContent(doc.Selection)
	best := 0
	doc.Find("div.nass").Each(func(_ int, s *goquery.Selection) {
		inner, err := s.Html()
		if err != nil {
			return
		}
		inner = strings.TrimSpace(inner)
		if n := len(strings.Join(strings.Fields(inner), " ")); n > best {
			best = n
			p.Content = inner
		}
	})
	return p, nil
}

func pageTitle(doc *goquery.Document) string {
	if t := book.NormalizeText(doc.Find(".s-nav a.active").First().Text()); t != "" {
		return t
	}
	if t := book.NormalizeText(doc.Find("section.page-header h1").First().Text()); t != "" {
		return t
	}
	t := book.NormalizeText(doc.Find("title").First().Text())
	return titleSuffix.ReplaceAllString(t, "")
}

// nextPageID follows the ">" pager link.
func nextPageID(doc *goquery.Document, bookID string) int {
	pathRe := regexp.MustCompile(`/book/` + bookID + `/(\d+)`)
	id := 0
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != ">" {
			return true
		}
		href, _ := s.Attr("href")
		if m := pathRe.FindStringSubmatch(href); m != nil {
			id, _ = strconv.Atoi(m[1])
			return false
		}
		return true
	})
	return id
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
