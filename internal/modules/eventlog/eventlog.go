// Package eventlog posts message and membership notices to the mod log
// channel. Deleted and edited messages are reported with the content last
// seen on the gateway, kept in a bounded LRU cache.
package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warden/internal/platform"

	"github.com/bwmarrin/discordgo"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	colorDeleted = 0xED4245
	colorEdited  = 0xFEE75C
	colorJoined  = 0x57F287
	colorLeft    = 0x99AAB5

	fieldLimit = 1024
	joinPeriod = 10 * time.Minute
)

type cached struct {
	ChannelID string
	AuthorID  string
	Author    string
	Content   string
	At        time.Time
}

type Module struct {
	client    platform.Client
	channelID string
	cache     *lru.Cache[string, cached]
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	joins map[string]*joinWindow
}

// New returns a module posting to channelID. An empty channelID disables
// every notice while still caching messages.
func New(client platform.Client, channelID string, cacheSize int, logger *zap.Logger) (*Module, error) {
	if cacheSize <= 0 {
		cacheSize = 5000
	}
	cache, err := lru.New[string, cached](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("message cache: %w", err)
	}
	return &Module{
		client:    client,
		channelID: channelID,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
		joins:     make(map[string]*joinWindow),
	}, nil
}

func (m *Module) SetClock(now func() time.Time) {
	m.now = now
}

// Remember caches a guild message authored by a human.
func (m *Module) Remember(msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	m.cache.Add(msg.ID, cached{
		ChannelID: msg.ChannelID,
		AuthorID:  msg.Author.ID,
		Author:    msg.Author.Username,
		Content:   msg.Content,
		At:        msg.Timestamp,
	})
}

// Forget drops a message from the cache, e.g. after automod removed it.
func (m *Module) Forget(messageID string) {
	m.cache.Remove(messageID)
}

func (m *Module) HandleDelete(ctx context.Context, event *discordgo.MessageDelete) {
	if event == nil || event.Message == nil || event.GuildID == "" {
		return
	}
	prev, ok := m.cache.Peek(event.ID)
	if !ok {
		return
	}
	m.cache.Remove(event.ID)
	m.post(ctx, &discordgo.MessageEmbed{
		Title: "Message deleted",
		Color: colorDeleted,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Author", Value: platform.Mention(prev.AuthorID), Inline: true},
			{Name: "Channel", Value: platform.ChannelMention(prev.ChannelID), Inline: true},
			{Name: "Content", Value: clip(prev.Content)},
		},
		Timestamp: m.now().Format(time.RFC3339),
	})
}

func (m *Module) HandleUpdate(ctx context.Context, event *discordgo.MessageUpdate) {
	if event == nil || event.Message == nil || event.GuildID == "" {
		return
	}
	if event.Author != nil && event.Author.Bot {
		return
	}
	prev, ok := m.cache.Peek(event.ID)
	if !ok || prev.Content == event.Content {
		// embed unfurls arrive as updates with unchanged content
		return
	}
	next := prev
	next.Content = event.Content
	m.cache.Add(event.ID, next)

	m.post(ctx, &discordgo.MessageEmbed{
		Title: "Message edited",
		Color: colorEdited,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Author", Value: platform.Mention(prev.AuthorID), Inline: true},
			{Name: "Channel", Value: platform.ChannelMention(prev.ChannelID), Inline: true},
			{Name: "Before", Value: clip(prev.Content)},
			{Name: "After", Value: clip(event.Content)},
		},
		Timestamp: m.now().Format(time.RFC3339),
	})
}

func (m *Module) HandleJoin(ctx context.Context, event *discordgo.GuildMemberAdd) {
	if event == nil || event.Member == nil || event.Member.User == nil {
		return
	}
	now := m.now()
	recent := m.window(event.GuildID).Add(now)
	user := event.Member.User
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: platform.Mention(user.ID) + " " + user.Username, Inline: true},
		{Name: "Joins in the last 10m", Value: fmt.Sprint(recent), Inline: true},
	}
	if created, err := discordgo.SnowflakeTimestamp(user.ID); err == nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Account created", Value: fmt.Sprintf("<t:%d:R>", created.Unix()), Inline: true})
	}
	m.post(ctx, &discordgo.MessageEmbed{
		Title:     "Member joined",
		Color:     colorJoined,
		Fields:    fields,
		Timestamp: now.Format(time.RFC3339),
	})
}

func (m *Module) HandleLeave(ctx context.Context, event *discordgo.GuildMemberRemove) {
	if event == nil || event.Member == nil || event.Member.User == nil {
		return
	}
	user := event.Member.User
	m.post(ctx, &discordgo.MessageEmbed{
		Title: "Member left",
		Color: colorLeft,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: platform.Mention(user.ID) + " " + user.Username, Inline: true},
		},
		Timestamp: m.now().Format(time.RFC3339),
	})
}

// RecentJoins reports joins to guildID inside the trailing window.
func (m *Module) RecentJoins(guildID string) int {
	return m.window(guildID).Count(m.now())
}

func (m *Module) window(guildID string) *joinWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.joins[guildID]
	if w == nil {
		w = newJoinWindow(joinPeriod)
		m.joins[guildID] = w
	}
	return w
}

func (m *Module) post(ctx context.Context, embed *discordgo.MessageEmbed) {
	if m.channelID == "" {
		return
	}
	if _, err := m.client.SendMessage(ctx, m.channelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		m.logger.Warn("event log post failed", zap.String("channel_id", m.channelID), zap.String("event", embed.Title), zap.Error(err))
	}
}

func clip(content string) string {
	if content == "" {
		return "*empty*"
	}
	runes := []rune(content)
	if len(runes) > fieldLimit {
		return string(runes[:fieldLimit-1]) + "…"
	}
	return content
}
