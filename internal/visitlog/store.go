package visitlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/doorline/knock/internal/kv"
	"github.com/doorline/knock/internal/pin"
)

const (
	// StorageKey is the substrate key holding the whole log.
	StorageKey = "pins"
	// CorruptKey keeps an undecodable log so the next write does not destroy it.
	CorruptKey = "pins.corrupt"
)

var (
	// ErrStorageUnavailable is returned when the substrate cannot be read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrEntryNotFound is returned when no entry has the given day and timestamp.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrDuplicateEntry is returned when a day already has an entry with the same timestamp.
	ErrDuplicateEntry = errors.New("duplicate entry timestamp")
)

// Store reads and writes the daily log. Writes are serialized: every
// mutation is a read-modify-write of the single persisted value under one lock.
type Store struct {
	kv     kv.Substrate
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	corrupt []byte
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the timezone used for day keys.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the clock used to stamp new entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger for non-fatal storage warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a store over a substrate.
func NewStore(sub kv.Substrate, opts ...Option) *Store {
	s := &Store{
		kv:     sub,
		loc:    time.Local,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the timezone used for day keys.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Today returns today's day key.
func (s *Store) Today() string {
	return pin.DayKey(s.now(), s.loc)
}

// LoadAll returns the whole log. A missing, unreadable or corrupt value
// yields an empty log; it never fails.
func (s *Store) LoadAll() DailyLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.load()
	if err != nil {
		s.logger.Warn("loading visit log", "error", err)
		return DailyLog{}
	}
	return log
}

// SaveAll replaces the persisted log. The last writer wins.
func (s *Store) SaveAll(log DailyLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(log)
}

// Append stamps, normalizes and validates e, then appends it to the day of
// its timestamp (today for a fresh entry). It returns the stored entry.
func (s *Store) Append(e pin.Entry) (pin.Entry, error) {
	if e.Timestamp == 0 {
		e.Timestamp = s.now().UnixMilli()
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return pin.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.load()
	if err != nil {
		return pin.Entry{}, err
	}

	day := e.Day(s.loc)
	if log.Find(day, e.Timestamp) >= 0 {
		return pin.Entry{}, fmt.Errorf("appending to %s at %d: %w", day, e.Timestamp, ErrDuplicateEntry)
	}
	log[day] = append(log[day], e)

	if err := s.save(log); err != nil {
		return pin.Entry{}, err
	}
	return e, nil
}

// Replace overwrites the editable fields (status, severity, notes and a
// non-empty address) of the entry identified by day and ts. Position and
// timestamp are kept from the stored entry and its index does not change.
func (s *Store) Replace(day string, ts int64, updated pin.Entry) (pin.Entry, error) {
	return s.Edit(day, ts, func(e *pin.Entry) error {
		e.Status = updated.Status
		e.Severity = updated.Severity
		e.Notes = updated.Notes
		if updated.Address != "" {
			e.Address = updated.Address
		}
		return nil
	})
}

// Edit applies fn to the stored entry identified by day and ts and saves the
// result, all under the write lock, so fields fn leaves alone keep the value
// of the latest write. Position and timestamp cannot be changed by fn. An
// error from fn aborts the edit and is returned as is.
func (s *Store) Edit(day string, ts int64, fn func(*pin.Entry) error) (pin.Entry, error) {
	if !pin.ValidDayKey(day) {
		return pin.Entry{}, fmt.Errorf("%w: invalid day %q", pin.ErrInvalidEntry, day)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.load()
	if err != nil {
		return pin.Entry{}, err
	}

	i := log.Find(day, ts)
	if i < 0 {
		return pin.Entry{}, fmt.Errorf("editing %s at %d: %w", day, ts, ErrEntryNotFound)
	}

	stored := log[day][i]
	merged := stored
	if err := fn(&merged); err != nil {
		return pin.Entry{}, err
	}
	merged.Position = stored.Position
	merged.Timestamp = stored.Timestamp
	merged.Normalize()
	if err := merged.Validate(); err != nil {
		return pin.Entry{}, err
	}

	log[day][i] = merged
	if err := s.save(log); err != nil {
		return pin.Entry{}, err
	}
	return merged, nil
}

// AttachAddress sets the resolved address of an entry.
func (s *Store) AttachAddress(day string, ts int64, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.load()
	if err != nil {
		return err
	}

	i := log.Find(day, ts)
	if i < 0 {
		return fmt.Errorf("attaching address to %s at %d: %w", day, ts, ErrEntryNotFound)
	}
	if log[day][i].Address == address {
		return nil
	}
	log[day][i].Address = address
	return s.save(log)
}

// Get returns one entry.
func (s *Store) Get(day string, ts int64) (pin.Entry, error) {
	log := s.LoadAll()
	i := log.Find(day, ts)
	if i < 0 {
		return pin.Entry{}, fmt.Errorf("getting %s at %d: %w", day, ts, ErrEntryNotFound)
	}
	return log[day][i], nil
}

// Day returns the entries of one day in append order.
func (s *Store) Day(day string) []pin.Entry {
	return s.LoadAll()[day]
}

// Days returns every day key with entries, ascending.
func (s *Store) Days() []string {
	return s.LoadAll().Days()
}

// Summaries returns one summary per day, newest day first.
func (s *Store) Summaries() []Summary {
	log := s.LoadAll()
	days := log.Days()
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	out := make([]Summary, 0, len(days))
	for _, d := range days {
		out = append(out, Summarize(d, log[d]))
	}
	return out
}

// load must be called with mu held.
func (s *Store) load() (DailyLog, error) {
	data, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStorageUnavailable, StorageKey, err)
	}
	if !ok || len(data) == 0 {
		return DailyLog{}, nil
	}

	var log DailyLog
	if err := json.Unmarshal(data, &log); err != nil {
		if s.corrupt == nil {
			s.logger.Warn("visit log is corrupt, starting empty", "key", StorageKey, "error", err)
		}
		s.corrupt = data
		return DailyLog{}, nil
	}
	if log == nil {
		log = DailyLog{}
	}
	return log, nil
}

// save must be called with mu held. A nil day is written as null so it
// loads back as nil.
func (s *Store) save(log DailyLog) error {
	if log == nil {
		log = DailyLog{}
	}
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("%w: encoding visit log: %w", ErrStorageUnavailable, err)
	}

	if s.corrupt != nil {
		if err := s.kv.Set(CorruptKey, s.corrupt); err != nil {
			return fmt.Errorf("%w: preserving corrupt log: %w", ErrStorageUnavailable, err)
		}
		s.logger.Warn("preserved corrupt visit log", "key", CorruptKey, "bytes", len(s.corrupt))
		s.corrupt = nil
	}

	if err := s.kv.Set(StorageKey, data); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrStorageUnavailable, StorageKey, err)
	}
	return nil
}
