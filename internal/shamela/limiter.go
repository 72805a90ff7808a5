package shamela

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces requests by a fixed interval. With jitter j > 0 every gap
// is drawn from [interval*(1-j), interval*(1+j)].
type Limiter struct {
	mu       sync.Mutex
	lim      *rate.Limiter
	interval time.Duration
	jitter   float64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// NewLimiter returns a limiter; a non-positive interval disables throttling.
func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	l := &Limiter{
		interval: interval,
		jitter:   jitter,
		now:      time.Now,
		sleep:    sleepContext,
		rand:     rand.Float64,
	}
	if interval > 0 {
		l.lim = rate.NewLimiter(rate.Every(interval), 1)
	} else {
		l.lim = rate.NewLimiter(rate.Inf, 1)
	}
	return l
}

// Wait blocks until the next request may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	r := l.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if l.interval > 0 && l.jitter > 0 {
		factor := 1 - l.jitter + 2*l.jitter*l.rand()
		l.lim.SetLimitAt(now, rate.Every(time.Duration(float64(l.interval)*factor)))
	}
	l.mu.Unlock()

	if err := l.sleep(ctx, delay); err != nil {
		r.CancelAt(l.now())
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
