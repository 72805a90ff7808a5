// Inspects a generated EPUB.
//
// Usage:
//
//	go run ./cmd/test/epub_reader/main.go <epub-file> (<content-filename> ...)
//
// Prints the archive entries, package metadata, spine and the NCX tree, then
// runs the same structural verification the writer uses. PROFILE selects the
// verification profile (default lenient).
package main

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/epub"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/epub_reader/main.go <epub-file> (<content-filename> ...)")
		os.Exit(1)
	}
	profile := book.ProfileLenient
	if name := os.Getenv("PROFILE"); name != "" {
		var err error
		if profile, err = book.ParseProfile(name); err != nil {
			log.Fatal(err)
		}
	}

	epubPath := os.Args[1]
	fmt.Printf("Opening EPUB file: %s\n", epubPath)
	reader, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer reader.Close()
	fmt.Printf("OPF Path: %s\n\n", reader.OPFPath())

	names := make([]string, 0, len(reader.Files()))
	for name := range reader.Files() {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("Files (%d):\n", len(names))
	for _, name := range names {
		fmt.Printf("  - %s\n", name)
	}

	opf, err := reader.Package()
	if err != nil {
		log.Fatalf("Failed to read package: %v", err)
	}
	md := opf.Metadata
	fmt.Printf("\nTitle:      %s\n", md.Title)
	fmt.Printf("Creators:   %s\n", strings.Join(md.Creators, ", "))
	fmt.Printf("Publisher:  %s\n", md.Publisher)
	fmt.Printf("Language:   %s\n", md.Language)
	fmt.Printf("Identifier: %s\n", md.Identifier)
	fmt.Printf("Modified:   %s\n", md.Modified)
	if cover, ok := opf.FindCoverImage(); ok {
		fmt.Printf("Cover:      %s\n", cover)
	}

	fmt.Printf("\nSpine (%s):\n", opf.PageProgressionDirection)
	for i, ref := range opf.Spine {
		fmt.Printf("  %2d. %s -> %s\n", i+1, ref.IDRef, opf.Manifest[ref.IDRef].Href)
	}

	if opf.NCXPath != "" {
		data, err := reader.ReadFile(opf.NCXPath)
		if err != nil {
			log.Fatalf("Failed to read NCX: %v", err)
		}
		ncx, err := epub.ParseNCX(data)
		if err != nil {
			log.Fatalf("Failed to parse NCX: %v", err)
		}
		fmt.Printf("\nTOC (depth %d):\n", ncx.Depth)
		printNavPoints(ncx.NavPoints, 1)
	}

	for _, name := range os.Args[2:] {
		content, err := reader.ReadFile(name)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", name, err)
		}
		fmt.Printf("\n--- %s (%d bytes) ---\n%s\n", name, len(content), content)
	}

	if err := epub.Verify(epubPath, profile); err != nil {
		log.Fatalf("Verification failed (%s): %v", profile, err)
	}
	fmt.Printf("\nVerified against %s profile\n", profile)
}

func printNavPoints(points []epub.NavPoint, level int) {
	for _, np := range points {
		fmt.Printf("%s%d. %s [%s]\n", strings.Repeat("  ", level), np.PlayOrder, np.Label, np.Src())
		printNavPoints(np.Children, level+1)
	}
}
