// Package shamela fetches books from shamela.ws-like sites.
package shamela

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/cache"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
)

const (
	// UserAgent is sent with every request.
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

	acceptLanguage = "ar,en;q=0.8"

	// MaxWorkers bounds the fetch pool.
	MaxWorkers = 4
	// DefaultThrottle is the default spacing between requests.
	DefaultThrottle = 800 * time.Millisecond
	// DefaultJitter is the default relative jitter applied to the throttle.
	DefaultJitter = 0.3

	defaultRetries = 3
	defaultBackoff = time.Second
	defaultTimeout = 20 * time.Second

	// maxPagesPerChapter guards against pager loops.
	maxPagesPerChapter = 6000
)

// ErrEmptyTOC is returned when the index page lists no chapters.
var ErrEmptyTOC = errors.New("index page lists no chapters")

// Options configures a Provider.
type Options struct {
	Client   *http.Client
	Cache    *cache.Store // nil disables caching
	Workers  int          // Clamped to 1..MaxWorkers
	Throttle time.Duration
	Jitter   float64
	Limit    int // Fetch only the first Limit chapters; zero means all
	Retries  int
	Backoff  time.Duration // Initial retry delay, doubled per attempt
	Logger   *slog.Logger
	Observer book.Observer // Must be safe for concurrent use
}

// Provider fetches the index and chapters of a book.
type Provider struct {
	Options Options
	limiter *Limiter
}

// NewProvider creates a provider, filling unset options with defaults.
func NewProvider(opts Options) *Provider {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: defaultTimeout}
	}
	opts.Workers = ClampWorkers(opts.Workers)
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Provider{Options: opts, limiter: NewLimiter(opts.Throttle, opts.Jitter)}
}

// ClampWorkers bounds n to 1..MaxWorkers.
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// Fetch downloads the book at bookURL. Chapters keep index order regardless
// of the order in which workers finish.
func (p *Provider) Fetch(ctx context.Context, bookURL string) (*book.Source, error) {
	bookID, err := BookID(bookURL)
	if err != nil {
		return nil, err
	}
	bookURL = NormalizeBookURL(bookURL)

	index, err := p.get(ctx, bookURL, bookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index: %w", err)
	}
	toc, err := ParseTOC(bookURL, index)
	if err != nil {
		return nil, err
	}
	if len(toc) == 0 {
		return nil, ErrEmptyTOC
	}
	p.Options.Logger.Info("parsed index", "book", bookID, "chapters", len(toc))

	n := len(toc)
	if p.Options.Limit > 0 && p.Options.Limit < n {
		n = p.Options.Limit
	}

	chapters := make([]book.RawChapter, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Options.Workers)
	for i := 0; i < n; i++ {
		nextID := 0
		if i+1 < len(toc) {
			nextID = toc[i+1].PageID
		}
		i := i // per-iteration copy under go 1.21 loop semantics
		g.Go(func() error {
			ch, err := p.fetchChapter(gctx, bookURL, bookID, toc[i], nextID, i+1, n)
			if err != nil {
				return err
			}
			chapters[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &book.Source{URL: bookURL, IndexHTML: index, Chapters: chapters}, nil
}

// fetchChapter follows the pager from the chapter's first page until the
// next chapter's page, a page already seen, or the page guard.
func (p *Provider) fetchChapter(ctx context.Context, bookURL, bookID string, entry TOCEntry, nextID, index, total int) (book.RawChapter, error) {
	id := "p" + strconv.Itoa(entry.PageID)
	ev := book.Event{ChapterID: id, Index: index, Total: total}
	ev.Kind = book.EventChapterFetchStart
	book.Notify(p.Options.Observer, ev, p.Options.Logger)

	var (
		parts   []string
		title   string
		seen    = map[int]bool{}
		current = entry.PageID
		target  = entry.URL
	)
	for pages := 0; pages < maxPagesPerChapter; pages++ {
		seen[current] = true
		raw, err := p.get(ctx, target, bookURL)
		if err != nil {
			return book.RawChapter{}, fmt.Errorf("failed to fetch chapter %s: %w", id, err)
		}
		page, err := ParsePage(bookID, raw)
		if err != nil {
			return book.RawChapter{}, fmt.Errorf("chapter %s: %w", id, err)
		}
		if title == "" {
			title = page.Title
		}
		if page.Content != "" {
			parts = append(parts, page.Content)
		}

		next := page.NextID
		if next == 0 || seen[next] || (nextID > 0 && next >= nextID) {
			break
		}
		current, target = next, pageURL(bookURL, next)
	}
	if title == "" {
		title = entry.Title
	}

	p.Options.Logger.Debug("fetched chapter", "chapter", id, "pages", len(seen))
	ev.Kind = book.EventChapterFetchDone
	book.Notify(p.Options.Observer, ev, p.Options.Logger)

	return book.RawChapter{ID: id, Title: title, HTML: strings.Join(parts, "\n")}, nil
}

// get returns the page body as UTF-8, from the cache when possible.
// Network fetches are throttled and retried with exponential backoff.
func (p *Provider) get(ctx context.Context, target, referer string) (string, error) {
	if p.Options.Cache != nil {
		data, _, err := p.Options.Cache.Get("html", target)
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			p.Options.Logger.Warn("cache read failed", "url", target, "error", err)
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var lastErr error
	backoff := p.Options.Backoff
	for attempt := 1; attempt <= p.Options.Retries; attempt++ {
		data, contentType, err := p.do(ctx, target, referer)
		if err == nil {
			if p.Options.Cache != nil {
				if err := p.Options.Cache.Put("html", target, data, contentType); err != nil {
					p.Options.Logger.Warn("cache write failed", "url", target, "error", err)
				}
			}
			return string(data), nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == p.Options.Retries {
			break
		}
		p.Options.Logger.Debug("fetch failed, retrying", "url", target, "attempt", attempt, "error", err)
		if err := sleepContext(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
	}
	return "", fmt.Errorf("failed to fetch %s after %d attempts: %w", target, p.Options.Retries, lastErr)
}

func (p *Provider) do(ctx context.Context, target, referer string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Referer", referer)

	resp, err := p.Options.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	contentType := resp.Header.Get("Content-Type")
	r, err := charset.NewReader(resp.Body, contentType)
	if err != nil {
		return nil, "", fmt.Errorf("failed to detect charset: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	return data, contentType, nil
}
