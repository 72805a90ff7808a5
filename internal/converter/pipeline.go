package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/epub"
	"github.com/yuanying/shamela2epub/internal/markup"
)

// DefaultOutputDir is used when neither an output path nor a directory is given.
const DefaultOutputDir = "output"

// ConvertOptions holds options for the conversion pipeline.
type ConvertOptions struct {
	Profile    book.Profile
	Limit      int    // Process only the first Limit chapters; zero means all
	OutputPath string // Full output path; overrides OutputDir
	OutputDir  string
	Stylesheet string // Replaces the default stylesheet when set
	Logger     *slog.Logger
	Observer   book.Observer
	Now        func() time.Time
}

// Result is the outcome of a successful conversion.
type Result struct {
	OutputPath string
	Book       *Book
	Warnings   []book.Warning
}

// chapterSanitizer cleans the raw markup of one chapter.
type chapterSanitizer interface {
	Sanitize(raw string) (markup.Fragment, error)
}

// Pipeline orchestrates the web book to EPUB conversion.
type Pipeline struct {
	Options   ConvertOptions
	sanitizer chapterSanitizer
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts ConvertOptions) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{Options: opts, sanitizer: markup.NewSanitizer(opts.Profile)}
}

// Convert transforms src and writes the EPUB. Nothing is written when any
// chapter fails to transform.
func (p *Pipeline) Convert(ctx context.Context, src *book.Source) (*Result, error) {
	b, warnings, err := p.Transform(ctx, src)
	if err != nil {
		return nil, err
	}

	path := p.outputPath(b.Metadata)
	p.notify(book.Event{Kind: book.EventAssemblyStart, Path: path})

	m, err := epub.BuildManifest(p.publication(b, src.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to build package: %w", err)
	}
	if err := epub.WriteFile(ctx, m, path); err != nil {
		return nil, err
	}

	p.notify(book.Event{Kind: book.EventAssemblyDone, Path: path})
	p.Options.Logger.Info("wrote EPUB",
		"path", path,
		"chapters", len(b.Chapters),
		"endnotes", len(b.Endnotes.Entries),
		"warnings", len(warnings))

	return &Result{OutputPath: path, Book: b, Warnings: warnings}, nil
}

// Transform runs the per-chapter stages and the whole-book endnote pass.
// Every chapter is attempted; all malformed chapters are reported together.
func (p *Pipeline) Transform(ctx context.Context, src *book.Source) (*Book, []book.Warning, error) {
	raws := src.Chapters
	if p.Options.Limit > 0 && len(raws) > p.Options.Limit {
		raws = raws[:p.Options.Limit]
	}
	if len(raws) == 0 {
		return nil, nil, book.ErrNoChapters
	}

	chapters := make([]*Chapter, 0, len(raws))
	var (
		warnings []book.Warning
		errs     []error
	)
	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		ev := book.Event{ChapterID: raw.ID, Index: i + 1, Total: len(raws)}

		ev.Kind = book.EventChapterTransformStart
		p.notify(ev)

		ch, ws, err := transformChapter(p.sanitizer, raw)
		if err != nil {
			p.Options.Logger.Error("chapter failed", "chapter", raw.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		warnings = append(warnings, ws...)
		chapters = append(chapters, ch)
		p.Options.Logger.Debug("transformed chapter",
			"chapter", ch.ID,
			"sections", len(ch.Sections),
			"footnotes", len(ch.Footnotes),
			"markers", len(ch.Markers))

		ev.Kind = book.EventChapterTransformDone
		p.notify(ev)
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}

	linked, page, ws := LinkEndnotes(chapters, p.Options.Profile)
	warnings = append(warnings, ws...)
	for _, w := range warnings {
		p.Options.Logger.Warn(w.Message, "kind", w.Kind.String(), "chapter", w.ChapterID, "marker", w.Marker)
	}

	return &Book{
		Metadata: ParseMetadata(src.IndexHTML, src.InfoHTML),
		Profile:  p.Options.Profile,
		Chapters: linked,
		Endnotes: page,
		Cover:    src.Cover,
	}, warnings, nil
}

// transformChapter sanitizes one raw chapter, assigns section ids and
// collects its footnotes and markers.
func transformChapter(s chapterSanitizer, raw book.RawChapter) (*Chapter, []book.Warning, error) {
	body, err := s.Sanitize(raw.HTML)
	if err != nil {
		return nil, nil, &book.MalformedContentError{ChapterID: raw.ID, Err: err}
	}
	body, sections := ExtractSections(raw.ID, body)

	title := book.NormalizeText(raw.Title)
	if title == "" && len(sections) > 0 {
		title = sections[0].Title
	}
	if title == "" {
		title = raw.ID
	}

	ch, warnings := ExtractEndnotes(&Chapter{ID: raw.ID, Title: title, Body: body, Sections: sections})
	return ch, warnings, nil
}

func (p *Pipeline) publication(b *Book, sourceURL string) *epub.Publication {
	chapters := make([]epub.Chapter, 0, len(b.Chapters))
	for _, ch := range b.Chapters {
		chapters = append(chapters, epub.Chapter{
			ID:       ch.ID,
			Title:    ch.Title,
			Body:     ch.Body,
			Sections: ch.Sections,
		})
	}
	return &epub.Publication{
		Metadata:   b.Metadata,
		Profile:    b.Profile,
		SourceURL:  sourceURL,
		Chapters:   chapters,
		Endnotes:   b.Endnotes,
		Cover:      b.Cover,
		Stylesheet: p.Options.Stylesheet,
		Modified:   p.Options.Now(),
	}
}

func (p *Pipeline) outputPath(md book.Metadata) string {
	if p.Options.OutputPath != "" {
		return p.Options.OutputPath
	}
	dir := p.Options.OutputDir
	if dir == "" {
		dir = DefaultOutputDir
	}
	return filepath.Join(dir, epub.FileName(md.DisplayTitle(), md.Publisher))
}

func (p *Pipeline) notify(e book.Event) {
	book.Notify(p.Options.Observer, e, p.Options.Logger)
}
