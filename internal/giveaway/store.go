package giveaway

import (
	"slices"
	"sync"
	"time"
)

// Record is one running giveaway, keyed by the id of its entry message.
type Record struct {
	MessageID    string
	ChannelID    string
	GuildID      string
	HostID       string
	Prize        string
	Winners      int
	EndsAt       time.Time
	Participants []string
}

func (r Record) Joined(userID string) bool {
	return slices.Contains(r.Participants, userID)
}

type Store interface {
	Get(messageID string) (Record, bool)
	Put(record Record)
	Delete(messageID string)
}

// MemoryStore keeps records in a map. Participant slices are copied in and
// out so callers never share backing arrays with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(messageID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[messageID]
	record.Participants = slices.Clone(record.Participants)
	return record, ok
}

func (s *MemoryStore) Put(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Participants = slices.Clone(record.Participants)
	s.records[record.MessageID] = record
}

func (s *MemoryStore) Delete(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, messageID)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
