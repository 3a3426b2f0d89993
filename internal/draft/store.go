package draft

import (
	"sort"
	"strings"
	"sync"
	"time"

	"jimpitan/internal/domain"
)

// Entry is a draft plus the tag left by the last submission batch that included it.
type Entry struct {
	domain.DonationDraft
	Status  domain.DraftStatus `json:"status"`
	Message string             `json:"message,omitempty"`

	rev uint64
}

// Revision identifies the upsert that produced the entry. A re-entry of the same
// donor gets a new revision.
func (e Entry) Revision() uint64 { return e.rev }

// Store holds the working drafts of the active category, keyed by donor name.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time

	version   uint64
	total     *int64
	remaining remainingCache
}

type remainingCache struct {
	version uint64
	key     string
	names   []string
	valid   bool
}

// New returns an empty store.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty store stamping entries with now.
func NewWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{entries: make(map[string]*Entry), now: now}
}

// Upsert inserts or replaces the draft for donorName. It reports true when a new entry was created.
func (s *Store) Upsert(donorName string, amount int64) (bool, error) {
	name := strings.TrimSpace(donorName)
	if name == "" {
		return false, &domain.ValidationError{Field: "donor_name", Message: "must not be empty"}
	}
	if amount <= 0 {
		return false, &domain.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.entries[name]
	s.invalidateLocked()
	s.entries[name] = &Entry{
		DonationDraft: domain.DonationDraft{DonorName: name, Amount: amount, EnteredAt: s.now()},
		Status:        domain.DraftPending,
		rev:           s.version,
	}
	return !exists, nil
}

// Remove deletes the draft for donorName. Absent names are not an error.
func (s *Store) Remove(donorName string) bool {
	name := strings.TrimSpace(donorName)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return false
	}
	delete(s.entries, name)
	s.invalidateLocked()
	return true
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return
	}
	s.entries = make(map[string]*Entry)
	s.invalidateLocked()
}

// Len returns the number of drafts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns a copy of the entry for donorName.
func (s *Store) Get(donorName string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[strings.TrimSpace(donorName)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// ListOrdered returns drafts in roster order. Drafts for names missing from the
// roster follow, sorted by name.
func (s *Store) ListOrdered(roster []string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	seen := make(map[string]struct{}, len(s.entries))
	for _, name := range roster {
		if _, dup := seen[name]; dup {
			continue
		}
		if e, ok := s.entries[name]; ok {
			out = append(out, *e)
			seen[name] = struct{}{}
		}
	}
	if len(out) == len(s.entries) {
		return out
	}
	extra := make([]string, 0, len(s.entries)-len(out))
	for name := range s.entries {
		if _, ok := seen[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, *s.entries[name])
	}
	return out
}

// Total returns the sum of all draft amounts.
func (s *Store) Total() int64 {
	s.mu.RLock()
	if s.total != nil {
		v := *s.total
		s.mu.RUnlock()
		return v
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total == nil {
		var sum int64
		for _, e := range s.entries {
			sum += e.Amount
		}
		s.total = &sum
	}
	return *s.total
}

// Remaining lists roster names that have no draft yet, in roster order.
func (s *Store) Remaining(roster []string) []string {
	key := strings.Join(roster, "\x00")

	s.mu.RLock()
	if c := s.remaining; c.valid && c.version == s.version && c.key == key {
		names := append([]string(nil), c.names...)
		s.mu.RUnlock()
		return names
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(roster))
	for _, name := range roster {
		if _, ok := s.entries[name]; !ok {
			names = append(names, name)
		}
	}
	s.remaining = remainingCache{version: s.version, key: key, names: names, valid: true}
	return append([]string(nil), names...)
}

// MarkResult tags the draft for donorName with the outcome of a submission attempt.
func (s *Store) MarkResult(donorName string, status domain.DraftStatus, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[strings.TrimSpace(donorName)]
	if !ok {
		return false
	}
	e.Status = status
	e.Message = message
	s.invalidateLocked()
	return true
}

// MarkEntry tags the draft snapshotted as e. It is a no-op when the donor was
// removed or re-entered since the snapshot was taken.
func (s *Store) MarkEntry(e Entry, status domain.DraftStatus, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[e.DonorName]
	if !ok || cur.rev != e.rev {
		return false
	}
	cur.Status = status
	cur.Message = message
	s.invalidateLocked()
	return true
}

// RemoveSettled deletes the drafts of a fully accepted batch: the snapshotted
// entries that are unchanged, plus drafts an earlier batch already got accepted.
// Drafts entered or changed after the snapshot stay. It returns the number removed.
func (s *Store) RemoveSettled(batch []Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := make(map[string]uint64, len(batch))
	for _, e := range batch {
		sent[e.DonorName] = e.rev
	}
	removed := 0
	for name, cur := range s.entries {
		rev, inBatch := sent[name]
		if (inBatch && rev == cur.rev) || cur.Status == domain.DraftAccepted {
			delete(s.entries, name)
			removed++
		}
	}
	if removed > 0 {
		s.invalidateLocked()
	}
	return removed
}

// Status returns the tag of the draft for donorName.
func (s *Store) Status(donorName string) (domain.DraftStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[strings.TrimSpace(donorName)]
	if !ok {
		return "", false
	}
	return e.Status, true
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) invalidateLocked() {
	s.version++
	s.total = nil
	s.remaining.valid = false
}
