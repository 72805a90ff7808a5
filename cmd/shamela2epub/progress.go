package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/yuanying/shamela2epub/internal/book"
)

// progressObserver draws one bar per phase (fetching, converting). Fetch
// events arrive from several workers, so every call takes the lock.
type progressObserver struct {
	mu    sync.Mutex
	w     io.Writer
	bar   *progressbar.ProgressBar
	phase string
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (o *progressObserver) Notify(e book.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch e.Kind {
	case book.EventChapterFetchDone:
		o.step("Fetching", e.Total)
	case book.EventChapterTransformDone:
		o.step("Converting", e.Total)
	case book.EventAssemblyStart:
		o.finish()
	}
}

func (o *progressObserver) step(phase string, total int) {
	if o.bar == nil || o.phase != phase {
		o.finish()
		o.phase = phase
		o.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(o.w),
			progressbar.OptionSetDescription(phase),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(65*time.Millisecond),
		)
	}
	_ = o.bar.Add(1)
}

func (o *progressObserver) finish() {
	if o.bar == nil {
		return
	}
	_ = o.bar.Finish()
	fmt.Fprintln(o.w)
	o.bar = nil
}
