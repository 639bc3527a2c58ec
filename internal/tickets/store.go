package tickets

import (
	"sync"
	"time"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Record is one ticket channel. Claimed is a sub-state of open: ClaimedBy is
// only ever set while Status is open.
type Record struct {
	ChannelID string
	GuildID   string
	OwnerID   string
	Subject   string
	Status    Status
	CreatedAt time.Time
	ClaimedBy string
}

type Line struct {
	Author  string
	Content string
	At      time.Time
}

type Store interface {
	Get(channelID string) (Record, bool)
	Put(record Record)
	Delete(channelID string)
	List() []Record
}

type TranscriptStore interface {
	Append(channelID string, line Line)
	Lines(channelID string) []Line
	Delete(channelID string)
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(channelID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[channelID]
	return record, ok
}

func (s *MemoryStore) Put(record Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ChannelID] = record
}

func (s *MemoryStore) Delete(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, channelID)
}

func (s *MemoryStore) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	return out
}

type MemoryTranscripts struct {
	mu    sync.RWMutex
	lines map[string][]Line
}

func NewMemoryTranscripts() *MemoryTranscripts {
	return &MemoryTranscripts{lines: make(map[string][]Line)}
}

func (t *MemoryTranscripts) Append(channelID string, line Line) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines[channelID] = append(t.lines[channelID], line)
}

func (t *MemoryTranscripts) Lines(channelID string) []Line {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Line(nil), t.lines[channelID]...)
}

func (t *MemoryTranscripts) Delete(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lines, channelID)
}
