package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"warden/internal/storage"
)

type Source interface {
	ListAuditEntries(ctx context.Context, guildID string, since time.Time) ([]storage.AuditEntry, error)
}

type Service struct {
	store Source
}

func New(store Source) *Service {
	return &Service{store: store}
}

type Report struct {
	Since    time.Time
	Total    int
	ByAction map[string]int
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	entries, err := s.store.ListAuditEntries(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{Since: since, ByAction: make(map[string]int)}
	for _, entry := range entries {
		report.Total++
		report.ByAction[entry.Action]++
	}
	return report, nil
}

// PeriodStart maps a report period name to the start of its window.
func PeriodStart(period string, now time.Time) (time.Time, error) {
	switch strings.ToLower(period) {
	case "", "day":
		return now.Add(-24 * time.Hour), nil
	case "week":
		return now.Add(-7 * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}

// Lines renders one "action: count" line per action, busiest first.
func (r Report) Lines() []string {
	actions := make([]string, 0, len(r.ByAction))
	for action := range r.ByAction {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool {
		if r.ByAction[actions[i]] != r.ByAction[actions[j]] {
			return r.ByAction[actions[i]] > r.ByAction[actions[j]]
		}
		return actions[i] < actions[j]
	})
	lines := make([]string, 0, len(actions))
	for _, action := range actions {
		lines = append(lines, fmt.Sprintf("%s: %d", action, r.ByAction[action]))
	}
	return lines
}
