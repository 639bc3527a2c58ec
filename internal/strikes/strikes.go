package strikes

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Warning struct {
	ID       string
	Reason   string
	IssuedBy string
	IssuedAt time.Time
}

type Record struct {
	Count   int
	History []Warning
}

// Store holds strike records by user id.
type Store interface {
	Get(userID string) (Record, bool)
	Put(userID string, record Record)
	Delete(userID string)
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(userID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[userID]
	return record, ok
}

func (s *MemoryStore) Put(userID string, record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = record
}

func (s *MemoryStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
}

// Ledger counts strikes and keeps each user's warning history. Every
// read-modify-write runs under one lock so two strikes for the same user
// never collapse into one.
type Ledger struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

func NewLedger(store Store, now func() time.Time) *Ledger {
	if store == nil {
		store = NewMemoryStore()
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

// Increment adds one strike and returns the new count.
func (l *Ledger) Increment(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, _ := l.store.Get(userID)
	record.Count++
	l.store.Put(userID, record)
	return record.Count
}

// RecordWarning appends a history entry and adds one strike.
func (l *Ledger) RecordWarning(userID, reason, issuedBy string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, _ := l.store.Get(userID)
	history := make([]Warning, len(record.History), len(record.History)+1)
	copy(history, record.History)
	record.History = append(history, Warning{
		ID:       uuid.NewString(),
		Reason:   reason,
		IssuedBy: issuedBy,
		IssuedAt: l.now(),
	})
	record.Count++
	l.store.Put(userID, record)
	return record.Count
}

// Get returns a copy of the user's record. Unknown users have a zero record.
func (l *Ledger) Get(userID string) Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.store.Get(userID)
	if !ok {
		return Record{}
	}
	record.History = append([]Warning(nil), record.History...)
	return record
}

// Reset zeroes the count and keeps the history.
func (l *Ledger) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.store.Get(userID)
	if !ok {
		return
	}
	record.Count = 0
	l.store.Put(userID, record)
}

// Clear forgets the user entirely.
func (l *Ledger) Clear(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Delete(userID)
}
