// Package tracking holds the rep's live session: GPS fixes, follow mode,
// the recorded trail and the log-a-house flow.
package tracking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/doorline/knock/internal/geo"
)

var (
	// ErrGeolocationDenied is reported when the user refused location access.
	ErrGeolocationDenied = errors.New("geolocation denied")
	// ErrGeolocationUnavailable is reported when no position can be obtained.
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")
)

// Fix is one update from a position stream. Err is set instead of a
// position when the stream failed.
type Fix struct {
	Position geo.Position `json:"position"`
	Accuracy float64      `json:"accuracy,omitempty"`
	At       time.Time    `json:"at"`
	Err      error        `json:"-"`
}

// Source is a push stream of fixes. The channel is closed when ctx is done.
type Source interface {
	Watch(ctx context.Context) (<-chan Fix, error)
}

// Feed is a Source fed from inside the process, for example by the HTTP
// handler that receives browser GPS updates. Slow watchers miss fixes
// rather than block the publisher.
type Feed struct {
	buffer int

	mu   sync.Mutex
	next int
	subs map[int]chan Fix
}

// NewFeed returns a feed whose watchers buffer up to buffer fixes.
func NewFeed(buffer int) *Feed {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed{buffer: buffer, subs: make(map[int]chan Fix)}
}

// Watch implements Source.
func (f *Feed) Watch(ctx context.Context) (<-chan Fix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan Fix, f.buffer)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch, nil
}

// Push delivers a fix to every watcher and reports how many received it.
func (f *Feed) Push(fix Fix) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for _, ch := range f.subs {
		select {
		case ch <- fix:
			delivered++
		default:
		}
	}
	return delivered
}

// Fail pushes a stream error.
func (f *Feed) Fail(err error) int {
	return f.Push(Fix{Err: err, At: time.Now()})
}

// Watchers returns the number of active watchers.
func (f *Feed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
