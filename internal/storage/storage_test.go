package storage

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestAuditEntriesRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	entries := []AuditEntry{
		{GuildID: "g1", ActorID: "mod", TargetID: "u1", Action: "mute", Reason: "spam", Duration: 10 * time.Minute, CreatedAt: now.Add(-time.Hour)},
		{GuildID: "g1", ActorID: "mod", TargetID: "u2", Action: "warn", Reason: "caps", CreatedAt: now},
		{GuildID: "g2", ActorID: "mod", TargetID: "u3", Action: "warn", CreatedAt: now},
	}
	for _, entry := range entries {
		if err := store.AddAuditEntry(ctx, entry); err != nil {
			t.Fatalf("add entry: %v", err)
		}
	}

	got, err := store.ListAuditEntries(ctx, "g1", now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Action != "warn" || got[1].Action != "mute" {
		t.Fatalf("expected newest first, got %s then %s", got[0].Action, got[1].Action)
	}
	if got[1].Duration != 10*time.Minute {
		t.Fatalf("unexpected duration: %s", got[1].Duration)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Fatalf("expected distinct generated ids, got %q and %q", got[0].ID, got[1].ID)
	}

	recent, err := store.ListAuditEntries(ctx, "g1", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent entry, got %d", len(recent))
	}
}

func TestCleanupAuditEntries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	_ = store.AddAuditEntry(ctx, AuditEntry{GuildID: "g1", ActorID: "a", Action: "warn", CreatedAt: now.AddDate(0, 0, -40)})
	_ = store.AddAuditEntry(ctx, AuditEntry{GuildID: "g1", ActorID: "a", Action: "warn", CreatedAt: now.AddDate(0, 0, -1)})

	removed, err := store.CleanupAuditEntries(ctx, 30, now)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed entry, got %d", removed)
	}

	left, err := store.ListAuditEntries(ctx, "g1", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 1 {
		t.Fatalf("expected 1 entry left, got %d", len(left))
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	store := openTestStore(t)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
