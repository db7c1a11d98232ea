package geocode

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doorline/knock/internal/geo"
	"github.com/doorline/knock/internal/pin"
)

// AddressSink stores a resolved address on an entry.
type AddressSink interface {
	AttachAddress(day string, ts int64, address string) error
}

// Backfiller fills in entry addresses off the write path.
type Backfiller struct {
	lookup  Lookuper
	sink    AddressSink
	workers int
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewBackfiller creates a backfiller. A nil lookup disables resolution.
func NewBackfiller(lookup Lookuper, sink AddressSink, workers int, logger *slog.Logger) *Backfiller {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfiller{
		lookup:  lookup,
		sink:    sink,
		workers: workers,
		timeout: 15 * time.Second,
		logger:  logger,
	}
}

// Enabled reports whether a lookup service is configured.
func (b *Backfiller) Enabled() bool {
	return b != nil && b.lookup != nil
}

// Resolve looks up the address of one entry in the background and attaches
// it on success. Failures are logged and the entry keeps no address.
func (b *Backfiller) Resolve(day string, ts int64, pos geo.Position) {
	if !b.Enabled() {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		_ = b.resolve(ctx, day, ts, pos)
	}()
}

// Wait blocks until every Resolve started so far has finished.
func (b *Backfiller) Wait() {
	if b == nil {
		return
	}
	b.wg.Wait()
}

// BackfillDay resolves every entry of a day that has no address, with at
// most the configured number of lookups in flight. It returns how many
// addresses were attached. Individual lookup failures are not errors.
func (b *Backfiller) BackfillDay(ctx context.Context, day string, entries []pin.Entry) (int, error) {
	if !b.Enabled() {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		attached int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for _, e := range entries {
		if e.Address != "" {
			continue
		}
		g.Go(func() error {
			if err := b.resolve(ctx, day, e.Timestamp, e.Position); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			mu.Lock()
			attached++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return attached, err
}

func (b *Backfiller) resolve(ctx context.Context, day string, ts int64, pos geo.Position) error {
	addr, err := b.lookup.Lookup(ctx, pos.Lng, pos.Lat)
	if err != nil {
		b.logger.Warn("address lookup failed", "day", day, "timestamp", ts, "position", pos.String(), "error", err)
		return err
	}

	if err := b.sink.AttachAddress(day, ts, addr); err != nil {
		b.logger.Warn("attaching address", "day", day, "timestamp", ts, "error", err)
		return err
	}

	b.logger.Debug("address attached", "day", day, "timestamp", ts, "address", addr)
	return nil
}
