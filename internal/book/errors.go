package book

import (
	"errors"
	"fmt"
)

// ErrNoChapters is returned when a conversion has no chapter left to process.
var ErrNoChapters = errors.New("book has no chapters")

// MalformedContentError reports a chapter whose sanitized markup still fails
// XML well-formedness under the strict-xml profile. It aborts the whole book.
type MalformedContentError struct {
	ChapterID string
	Err       error
}

func (e *MalformedContentError) Error() string {
	return fmt.Sprintf("chapter %s: malformed content: %v", e.ChapterID, e.Err)
}

func (e *MalformedContentError) Unwrap() error {
	return e.Err
}

// AssemblyIOError reports a failure while writing the archive.
// No file is left at Path when it is returned.
type AssemblyIOError struct {
	Path string
	Err  error
}

func (e *AssemblyIOError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *AssemblyIOError) Unwrap() error {
	return e.Err
}

// WarningKind classifies recoverable diagnostics.
type WarningKind int

const (
	// WarningUnlinkedEndnote is a marker without a footnote, or a footnote without a marker.
	WarningUnlinkedEndnote WarningKind = iota + 1
	// WarningDuplicateFootnote is a footnote block encoded twice in one chapter.
	WarningDuplicateFootnote
)

func (k WarningKind) String() string {
	switch k {
	case WarningUnlinkedEndnote:
		return "unlinked-endnote"
	case WarningDuplicateFootnote:
		return "duplicate-footnote"
	default:
		return "unknown"
	}
}

// Warning is a diagnostic that does not stop the build.
type Warning struct {
	Kind      WarningKind
	ChapterID string
	Marker    string // Local footnote number as written in the source (ASCII digits)
	Message   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: chapter %s: %s", w.Kind, w.ChapterID, w.Message)
}
