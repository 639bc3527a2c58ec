package eventlog

import (
	"context"
	"strings"
	"testing"
	"time"

	"warden/internal/platform/platformtest"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func newModule(t *testing.T, size int) (*Module, *platformtest.Fake) {
	t.Helper()
	fake := platformtest.New()
	module, err := New(fake, "modlog", size, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return module, fake
}

func message(id, content string) *discordgo.Message {
	return &discordgo.Message{ID: id, ChannelID: "c1", GuildID: "g1", Content: content, Author: &discordgo.User{ID: "u1", Username: "alice"}}
}

func TestDeletePostsCachedContent(t *testing.T) {
	module, fake := newModule(t, 10)
	module.Remember(message("m1", "hello there"))

	module.HandleDelete(context.Background(), &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1", GuildID: "g1", ChannelID: "c1"}})
	sent := fake.SentTo("modlog")
	if len(sent) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(sent))
	}
	if got := sent[0].Embeds[0].Fields[2].Value; got != "hello there" {
		t.Fatalf("unexpected content %q", got)
	}

	module.HandleDelete(context.Background(), &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1", GuildID: "g1", ChannelID: "c1"}})
	if len(fake.SentTo("modlog")) != 1 {
		t.Fatalf("second delete of the same message should be silent")
	}
}

func TestUncachedAndBotMessagesAreIgnored(t *testing.T) {
	module, fake := newModule(t, 10)
	bot := message("m2", "beep")
	bot.Author.Bot = true
	module.Remember(bot)

	module.HandleDelete(context.Background(), &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m2", GuildID: "g1"}})
	module.HandleDelete(context.Background(), &discordgo.MessageDelete{Message: &discordgo.Message{ID: "unknown", GuildID: "g1"}})
	if n := len(fake.SentTo("modlog")); n != 0 {
		t.Fatalf("expected no notices, got %d", n)
	}
}

func TestEditPostsBeforeAndAfter(t *testing.T) {
	module, fake := newModule(t, 10)
	ctx := context.Background()
	module.Remember(message("m1", "first"))

	module.HandleUpdate(ctx, &discordgo.MessageUpdate{Message: message("m1", "first")})
	if n := len(fake.SentTo("modlog")); n != 0 {
		t.Fatalf("unchanged content should not post, got %d", n)
	}

	module.HandleUpdate(ctx, &discordgo.MessageUpdate{Message: message("m1", "second")})
	module.HandleUpdate(ctx, &discordgo.MessageUpdate{Message: message("m1", "third")})
	sent := fake.SentTo("modlog")
	if len(sent) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(sent))
	}
	fields := sent[1].Embeds[0].Fields
	if fields[2].Value != "second" || fields[3].Value != "third" {
		t.Fatalf("unexpected before/after %q -> %q", fields[2].Value, fields[3].Value)
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	module, fake := newModule(t, 2)
	module.Remember(message("m1", "one"))
	module.Remember(message("m2", "two"))
	module.Remember(message("m3", "three"))

	module.HandleDelete(context.Background(), &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1", GuildID: "g1"}})
	if n := len(fake.SentTo("modlog")); n != 0 {
		t.Fatalf("evicted message should not post, got %d", n)
	}
	module.HandleDelete(context.Background(), &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m3", GuildID: "g1"}})
	if n := len(fake.SentTo("modlog")); n != 1 {
		t.Fatalf("expected 1 notice, got %d", n)
	}
}

func TestJoinRate(t *testing.T) {
	module, fake := newModule(t, 10)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	module.SetClock(func() time.Time { return now })
	ctx := context.Background()

	join := func(id string) {
		module.HandleJoin(ctx, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: id, Username: id}}})
	}
	join("1")
	now = now.Add(5 * time.Minute)
	join("2")
	if got := module.RecentJoins("g1"); got != 2 {
		t.Fatalf("expected 2 recent joins, got %d", got)
	}
	now = now.Add(6 * time.Minute)
	if got := module.RecentJoins("g1"); got != 1 {
		t.Fatalf("expected 1 recent join, got %d", got)
	}

	sent := fake.SentTo("modlog")
	if len(sent) != 2 || !strings.Contains(sent[1].Embeds[0].Fields[1].Value, "2") {
		t.Fatalf("unexpected join notices %+v", sent)
	}

	module.HandleLeave(ctx, &discordgo.GuildMemberRemove{Member: &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "1", Username: "1"}}})
	if sent := fake.SentTo("modlog"); sent[len(sent)-1].Embeds[0].Title != "Member left" {
		t.Fatalf("expected leave notice")
	}
}

func TestDisabledChannel(t *testing.T) {
	fake := platformtest.New()
	module, err := New(fake, "", 10, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	module.Remember(message("m1", "x"))
	module.HandleDelete(context.Background(), &discordgo.MessageDelete{Message: &discordgo.Message{ID: "m1", GuildID: "g1"}})
	if fake.Count("SendMessage") != 0 {
		t.Fatalf("expected no sends")
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("é", fieldLimit+5)
	if got := []rune(clip(long)); len(got) != fieldLimit {
		t.Fatalf("expected %d runes, got %d", fieldLimit, len(got))
	}
	if clip("") != "*empty*" {
		t.Fatalf("empty content placeholder")
	}
}
