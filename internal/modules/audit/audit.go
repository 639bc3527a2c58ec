package audit

import (
	"context"
	"fmt"
	"time"

	"warden/internal/metrics"
	"warden/internal/platform"
	"warden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	ActionMute        = "mute"
	ActionUnmute      = "unmute"
	ActionWarn        = "warn"
	ActionClearWarns  = "clearwarns"
	ActionAutoMod     = "automod"
	ActionAutoMute    = "automute"
	ActionPurge       = "purge"
	ActionLock        = "lock"
	ActionUnlock      = "unlock"
	ActionSlowmode    = "slowmode"
	ActionRoleAdd     = "role_add"
	ActionRoleRemove  = "role_remove"
	ActionTicketOpen  = "ticket_open"
	ActionTicketClose = "ticket_close"
	ActionGiveaway    = "giveaway"
)

type Entry = storage.AuditEntry

type Archive interface {
	AddAuditEntry(ctx context.Context, entry storage.AuditEntry) error
}

type Logger struct {
	archive Archive
	logger  *zap.Logger
	notify  func(context.Context, Entry)
	now     func() time.Time
}

// NewLogger writes every entry to zap and, when archive is non-nil, to the
// archive as well.
func NewLogger(archive Archive, logger *zap.Logger) *Logger {
	return &Logger{archive: archive, logger: logger, now: time.Now}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

func (l *Logger) SetClock(now func() time.Time) {
	l.now = now
}

func (l *Logger) Log(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	metrics.ModerationActions.WithLabelValues(entry.Action).Inc()
	if l.archive != nil {
		if err := l.archive.AddAuditEntry(ctx, entry); err != nil {
			l.logger.Warn("audit archive write failed", zap.String("action", entry.Action), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("guild_id", entry.GuildID),
		zap.String("actor_id", entry.ActorID),
		zap.String("target_id", entry.TargetID),
		zap.String("action", entry.Action),
		zap.String("reason", entry.Reason),
		zap.Duration("duration", entry.Duration),
		zap.String("detail", entry.Detail),
	)
}

// ChannelNotifier returns a notifier posting each entry as an embed to
// channelID. Send failures are logged and dropped.
func ChannelNotifier(client platform.Client, channelID string, logger *zap.Logger) func(context.Context, Entry) {
	return func(ctx context.Context, entry Entry) {
		if channelID == "" {
			return
		}
		msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{Embed(entry)}}
		if _, err := client.SendMessage(ctx, channelID, msg); err != nil {
			logger.Warn("audit notify failed", zap.String("channel_id", channelID), zap.String("action", entry.Action), zap.Error(err))
		}
	}
}

func Embed(entry Entry) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Actor", Value: platform.Mention(entry.ActorID), Inline: true},
	}
	if entry.TargetID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Target", Value: platform.Mention(entry.TargetID), Inline: true})
	}
	if entry.Duration > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: entry.Duration.String(), Inline: true})
	}
	reason := entry.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: reason})
	if entry.Detail != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Detail", Value: entry.Detail})
	}
	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Moderation: %s", entry.Action),
		Color:     actionColor(entry.Action),
		Fields:    fields,
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
	}
}

func actionColor(action string) int {
	switch action {
	case ActionMute, ActionAutoMute, ActionAutoMod:
		return 0xE74C3C
	case ActionWarn, ActionLock, ActionPurge:
		return 0xF1C40F
	case ActionUnmute, ActionUnlock, ActionClearWarns:
		return 0x2ECC71
	default:
		return 0x3498DB
	}
}
