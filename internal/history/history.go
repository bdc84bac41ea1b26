// Package history retains a bounded per-host log of completed probe records
// and a session-wide cursor for paging back through them.
package history

import (
	"sync"
	"time"

	"github.com/icecake0141/paraping/internal/probe"
)

// Record is one completed probe. Immutable once stored.
type Record struct {
	Host        string
	Seq         uint16
	IssuedAt    time.Time
	CompletedAt time.Time
	Outcome     probe.Outcome
}

// buffer is a fixed-capacity FIFO of records, oldest evicted first.
type buffer struct {
	records []Record
}

// Store holds one buffer per host plus the shared time-travel cursor. It has
// exactly one writer path (Record) and any number of concurrent readers; the
// mutex bounds each mutation so readers never observe a torn buffer.
type Store struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	hosts    map[string]*buffer
	cursor   int // offset from the live edge, 0 = live
}

// NewStore creates a store with the given per-host capacity. Capacity bounds
// both memory and how far the cursor can page back.
func NewStore(capacity int, hosts []string) *Store {
	if capacity < 1 {
		capacity = 1
	}
	s := &Store{
		capacity: capacity,
		hosts:    make(map[string]*buffer, len(hosts)),
	}
	for _, h := range hosts {
		if _, ok := s.hosts[h]; ok {
			continue
		}
		s.order = append(s.order, h)
		s.hosts[h] = &buffer{records: make([]Record, 0, capacity)}
	}
	return s
}

// Record appends a completed probe to its host's buffer, evicting the oldest
// entry at capacity. Records for unknown hosts are dropped.
func (s *Store) Record(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.hosts[rec.Host]
	if !ok {
		return
	}
	if len(b.records) < s.capacity {
		b.records = append(b.records, rec)
		return
	}
	copy(b.records, b.records[1:])
	b.records[s.capacity-1] = rec
}

// Hosts returns the host set in registration order.
func (s *Store) Hosts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len reports how many records a host currently retains.
func (s *Store) Len(host string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.hosts[host]; ok {
		return len(b.records)
	}
	return 0
}

// MoveCursor shifts the session-wide offset by delta (positive = further into
// the past) and returns the clamped offset. The offset never exceeds the
// oldest offset retained by every host, so the cursor cannot reference an
// evicted index, and never drops below the live edge.
func (s *Store) MoveCursor(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor += delta
	if max := s.maxOffsetLocked(); s.cursor > max {
		s.cursor = max
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
	return s.cursor
}

// Cursor returns the current offset from the live edge.
func (s *Store) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

func (s *Store) maxOffsetLocked() int {
	max := -1
	for _, b := range s.hosts {
		n := len(b.records) - 1
		if max == -1 || n < max {
			max = n
		}
	}
	if max < 0 {
		return 0
	}
	return max
}

// Read returns the record at the given offset back from the newest entry for
// host; ok is false when that host's history does not reach that far. Hosts
// may have differing depths, so a valid cursor offset can still be
// unavailable for an individual host.
func (s *Store) Read(host string, offset int) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.hosts[host]
	if !ok || offset < 0 {
		return Record{}, false
	}
	idx := len(b.records) - 1 - offset
	if idx < 0 {
		return Record{}, false
	}
	return b.records[idx], true
}

// Window returns up to n records for host ending at the given offset from the
// live edge, oldest first. The slice is a copy; callers may hold it across
// later appends.
func (s *Store) Window(host string, offset, n int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.hosts[host]
	if !ok || n <= 0 || offset < 0 {
		return nil
	}
	end := len(b.records) - offset
	if end <= 0 {
		return nil
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	return append([]Record(nil), b.records[start:end]...)
}
