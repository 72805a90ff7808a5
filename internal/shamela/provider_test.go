package shamela

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/cache"
)

type site struct {
	mu       sync.Mutex
	pages    map[string]string
	fail     map[string]int // Leading requests answered with 500
	delay    map[string]time.Duration
	hits     map[string]int
	badAgent bool
	referers map[string]string
}

func newSite(t *testing.T, pages map[string]string) (*site, *httptest.Server) {
	t.Helper()
	s := &site{
		pages:    pages,
		fail:     map[string]int{},
		delay:    map[string]time.Duration{},
		hits:     map[string]int{},
		referers: map[string]string{},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		n := s.hits[r.URL.Path]
		failN := s.fail[r.URL.Path]
		delay := s.delay[r.URL.Path]
		if r.Header.Get("User-Agent") != UserAgent {
			s.badAgent = true
		}
		s.referers[r.URL.Path] = r.Header.Get("Referer")
		body, ok := s.pages[r.URL.Path]
		s.mu.Unlock()

		time.Sleep(delay)
		if n <= failN {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *site) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *site) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func pageHTML(title, text string, next int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>", title)
	fmt.Fprintf(&b, `<div class="nass"><p>%s</p></div>`, text)
	if next > 0 {
		fmt.Fprintf(&b, `<div class="text-center"><a href="/book/1/%d">&gt;</a></div>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// twoChapterBook has chapters starting at pages 1 and 3; chapter one spans pages 1 and 2.
func twoChapterBook() map[string]string {
	return map[string]string{
		"/book/1": `<html><body><h1><a href="/book/1">كتاب الاختبار</a></h1>
<ul><li><a href="/book/1/1">الأول</a></li><li><a href="/book/1/3">الثاني</a></li></ul></body></html>`,
		"/book/1/1": pageHTML("الفصل الأول - المكتبة الشاملة", "صفحة 1", 2),
		"/book/1/2": pageHTML("الفصل الأول - المكتبة الشاملة", "صفحة 2", 3),
		"/book/1/3": pageHTML("", "صفحة 3", 0),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type eventCounter struct {
	mu     sync.Mutex
	counts map[book.EventKind]int
	totals map[int]bool
}

func (c *eventCounter) Notify(e book.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[book.EventKind]int{}
		c.totals = map[int]bool{}
	}
	c.counts[e.Kind]++
	c.totals[e.Total] = true
}

func TestProvider_Fetch(t *testing.T) {
	s, srv := newSite(t, twoChapterBook())
	events := &eventCounter{}
	p := NewProvider(Options{Workers: 2, Logger: quietLogger(), Observer: events})

	src, err := p.Fetch(context.Background(), srv.URL+"/book/1/")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if src.URL != srv.URL+"/book/1" {
		t.Errorf("URL = %q", src.URL)
	}
	if !strings.Contains(src.IndexHTML, "كتاب الاختبار") {
		t.Error("index HTML not kept")
	}
	want := []book.RawChapter{
		{ID: "p1", Title: "الفصل الأول", HTML: "<p>صفحة 1</p>\n<p>صفحة 2</p>"},
		{ID: "p3", Title: "الثاني", HTML: "<p>صفحة 3</p>"},
	}
	if len(src.Chapters) != len(want) {
		t.Fatalf("got %d chapters", len(src.Chapters))
	}
	for i, w := range want {
		if src.Chapters[i] != w {
			t.Errorf("chapter %d = %+v, want %+v", i, src.Chapters[i], w)
		}
	}

	if got := s.count("/book/1/3"); got != 1 {
		t.Errorf("page 3 fetched %d times, want 1", got)
	}
	s.mu.Lock()
	if s.badAgent {
		t.Error("request sent without the user agent")
	}
	if got := s.referers["/book/1/2"]; got != srv.URL+"/book/1" {
		t.Errorf("Referer = %q", got)
	}
	s.mu.Unlock()

	if events.counts[book.EventChapterFetchStart] != 2 || events.counts[book.EventChapterFetchDone] != 2 {
		t.Errorf("events = %v", events.counts)
	}
	if len(events.totals) != 1 || !events.totals[2] {
		t.Errorf("totals = %v", events.totals)
	}
}

func TestProvider_Order(t *testing.T) {
	const n = 8
	pages := map[string]string{}
	var index strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&index, `<a href="/book/1/%d">باب %d</a>`, i, i)
		pages[fmt.Sprintf("/book/1/%d", i)] = pageHTML("", fmt.Sprintf("نص %d", i), 0)
	}
	pages["/book/1"] = index.String()
	s, srv := newSite(t, pages)
	s.mu.Lock()
	for i := 1; i <= n; i++ {
		s.delay[fmt.Sprintf("/book/1/%d", i)] = time.Duration(n-i) * 5 * time.Millisecond
	}
	s.mu.Unlock()

	src, err := NewProvider(Options{Workers: MaxWorkers, Logger: quietLogger()}).Fetch(context.Background(), srv.URL+"/book/1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(src.Chapters) != n {
		t.Fatalf("got %d chapters", len(src.Chapters))
	}
	for i, ch := range src.Chapters {
		if want := fmt.Sprintf("p%d", i+1); ch.ID != want {
			t.Errorf("chapter %d id = %s, want %s", i, ch.ID, want)
		}
		if want := fmt.Sprintf("باب %d", i+1); ch.Title != want {
			t.Errorf("chapter %d title = %s, want %s", i, ch.Title, want)
		}
	}
}

func TestProvider_Limit(t *testing.T) {
	s, srv := newSite(t, twoChapterBook())
	src, err := NewProvider(Options{Limit: 1, Logger: quietLogger()}).Fetch(context.Background(), srv.URL+"/book/1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(src.Chapters) != 1 || src.Chapters[0].ID != "p1" {
		t.Fatalf("chapters = %+v", src.Chapters)
	}
	if got := s.count("/book/1/3"); got != 0 {
		t.Errorf("page 3 fetched %d times", got)
	}
}

func TestProvider_Retry(t *testing.T) {
	s, srv := newSite(t, twoChapterBook())
	s.mu.Lock()
	s.fail["/book/1/3"] = 2
	s.mu.Unlock()

	p := NewProvider(Options{Retries: 3, Backoff: time.Millisecond, Logger: quietLogger()})
	src, err := p.Fetch(context.Background(), srv.URL+"/book/1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if src.Chapters[1].HTML != "<p>صفحة 3</p>" {
		t.Errorf("chapter = %+v", src.Chapters[1])
	}
	if got := s.count("/book/1/3"); got != 3 {
		t.Errorf("page 3 fetched %d times, want 3", got)
	}
}

func TestProvider_RetryExhausted(t *testing.T) {
	s, srv := newSite(t, twoChapterBook())
	s.mu.Lock()
	s.fail["/book/1/3"] = 5
	s.mu.Unlock()

	p := NewProvider(Options{Retries: 2, Backoff: time.Millisecond, Logger: quietLogger()})
	_, err := p.Fetch(context.Background(), srv.URL+"/book/1")
	if err == nil {
		t.Fatal("Fetch() error = nil")
	}
	if !strings.Contains(err.Error(), "chapter p3") {
		t.Errorf("error = %v", err)
	}
	if got := s.count("/book/1/3"); got != 2 {
		t.Errorf("page 3 fetched %d times, want 2", got)
	}
}

func TestProvider_Cache(t *testing.T) {
	s, srv := newSite(t, twoChapterBook())
	store := cache.New(t.TempDir())

	first, err := NewProvider(Options{Cache: store, Logger: quietLogger()}).Fetch(context.Background(), srv.URL+"/book/1")
	if err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	requests := s.total()
	if requests != 4 {
		t.Errorf("first run made %d requests, want 4", requests)
	}

	second, err := NewProvider(Options{Cache: store, Logger: quietLogger()}).Fetch(context.Background(), srv.URL+"/book/1")
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if got := s.total(); got != requests {
		t.Errorf("second run made %d requests", got-requests)
	}
	for i := range first.Chapters {
		if first.Chapters[i] != second.Chapters[i] {
			t.Errorf("chapter %d differs: %+v vs %+v", i, first.Chapters[i], second.Chapters[i])
		}
	}
}

func TestProvider_Errors(t *testing.T) {
	_, srv := newSite(t, map[string]string{
		"/book/1": "<html><body><p>لا فهرس</p></body></html>",
	})
	p := NewProvider(Options{Retries: 1, Logger: quietLogger()})

	if _, err := p.Fetch(context.Background(), "https://example.com/author/1"); !errors.Is(err, ErrInvalidBookURL) {
		t.Errorf("invalid URL error = %v", err)
	}
	if _, err := p.Fetch(context.Background(), srv.URL+"/book/1"); !errors.Is(err, ErrEmptyTOC) {
		t.Errorf("empty index error = %v", err)
	}
	if _, err := p.Fetch(context.Background(), srv.URL+"/book/2"); err == nil {
		t.Error("missing book error = nil")
	}
}

func TestClampWorkers(t *testing.T) {
	tests := map[int]int{-1: 1, 0: 1, 1: 1, 3: 3, 4: 4, 9: MaxWorkers}
	for in, want := range tests {
		if got := ClampWorkers(in); got != want {
			t.Errorf("ClampWorkers(%d) = %d, want %d", in, got, want)
		}
	}
}
