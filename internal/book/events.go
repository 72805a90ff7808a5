package book

import "log/slog"

// EventKind names a lifecycle notification.
type EventKind int

const (
	EventChapterFetchStart EventKind = iota + 1
	EventChapterFetchDone
	EventChapterTransformStart
	EventChapterTransformDone
	EventAssemblyStart
	EventAssemblyDone
)

func (k EventKind) String() string {
	switch k {
	case EventChapterFetchStart:
		return "chapter-fetch-start"
	case EventChapterFetchDone:
		return "chapter-fetch-done"
	case EventChapterTransformStart:
		return "chapter-transform-start"
	case EventChapterTransformDone:
		return "chapter-transform-done"
	case EventAssemblyStart:
		return "assembly-start"
	case EventAssemblyDone:
		return "assembly-done"
	default:
		return "unknown"
	}
}

// Event is a progress notification. Index is 1-based and Total is the number
// of chapters in the run; both are zero for assembly events.
type Event struct {
	Kind      EventKind
	ChapterID string
	Index     int
	Total     int
	Path      string // Output path for assembly events
}

// Observer receives progress notifications.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// Notify delivers e to o. A panicking observer is logged and otherwise ignored.
func Notify(o Observer, e Event, logger *slog.Logger) {
	if o == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("observer panicked", "event", e.Kind.String(), "panic", r)
		}
	}()
	o.Notify(e)
}
