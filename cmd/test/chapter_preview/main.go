// Runs the chapter stages on local HTML files.
//
// Usage:
//
//	go run ./cmd/test/chapter_preview/main.go <output-dir> <chapter.html> ...
//
// Each file is treated as one raw chapter (id p1, p2, ...). The sanitized
// chapters are written as XHTML pages to the output directory, and the
// sections, markers and linked endnotes are listed. PROFILE selects the
// sanitizer profile (default lenient); DEBUG=1 enables debug logging.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/converter"
	"github.com/yuanying/shamela2epub/internal/markup"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <output-dir> <chapter.html> ...\n", filepath.Base(os.Args[0]))
		os.Exit(1)
	}
	profile := book.ProfileLenient
	if name := os.Getenv("PROFILE"); name != "" {
		var err error
		if profile, err = book.ParseProfile(name); err != nil {
			log.Fatal(err)
		}
	}

	outDir := os.Args[1]
	files := os.Args[2:]
	src := &book.Source{URL: "file://" + files[0]}
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}
		src.Chapters = append(src.Chapters, book.RawChapter{
			ID:    "p" + strconv.Itoa(i+1),
			Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			HTML:  string(data),
		})
	}

	level := slog.LevelWarn
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	p := converter.NewPipeline(converter.ConvertOptions{
		Profile: profile,
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	})
	b, warnings, err := p.Transform(context.Background(), src)
	if err != nil {
		log.Fatalf("Transform failed: %v", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", outDir, err)
	}

	fmt.Printf("=== Chapters (%s) ===\n", profile)
	for _, ch := range b.Chapters {
		page := markup.Page{Title: ch.Title, Body: ch.Body}
		out := filepath.Join(outDir, ch.ID+".xhtml")
		if err := os.WriteFile(out, page.Render(), 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", out, err)
		}
		fmt.Printf("%s  %s -> %s\n", ch.ID, ch.Title, out)
		for _, s := range ch.Sections {
			indent := "  "
			if s.Level == book.SectionSub {
				indent = "    "
			}
			fmt.Printf("%s#%s %s\n", indent, s.ID, s.Title)
		}
		fmt.Printf("  footnotes: %d, markers: %d\n", len(ch.Footnotes), len(ch.Markers))
	}

	if b.Endnotes != nil && len(b.Endnotes.Entries) > 0 {
		fmt.Printf("\n=== %s ===\n", b.Endnotes.Title)
		for _, e := range b.Endnotes.Entries {
			where := e.ChapterID
			if e.SectionTitle != "" {
				where += " / " + e.SectionTitle
			}
			fmt.Printf("%3d. [%s] %s\n", e.Number, where, e.Text)
		}
	}

	if len(warnings) > 0 {
		fmt.Printf("\n=== Warnings (%d) ===\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("  %s %s %s: %s\n", w.Kind, w.ChapterID, w.Marker, w.Message)
		}
	}
}
