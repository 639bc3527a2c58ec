package automod

import (
	"context"

	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/permissions"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Module struct {
	matcher  *Matcher
	executor *moderation.Executor
	perms    *permissions.Checker
	logger   *zap.Logger
	enabled  bool
}

func New(matcher *Matcher, executor *moderation.Executor, perms *permissions.Checker, logger *zap.Logger, enabled bool) *Module {
	return &Module{matcher: matcher, executor: executor, perms: perms, logger: logger, enabled: enabled}
}

// HandleMessage evaluates a guild message and hands violations to the
// executor. member may be nil or lack its User; the author fills it in.
func (m *Module) HandleMessage(ctx context.Context, msg *discordgo.Message, member *discordgo.Member, botUserID string) (Result, bool) {
	if !m.enabled || msg == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return Result{}, false
	}
	if member != nil {
		copied := *member
		copied.User = msg.Author
		if m.perms.IsModerator(&copied) {
			return Result{}, false
		}
	} else if m.perms.IsOwner(msg.Author.ID) {
		return Result{}, false
	}

	result := m.matcher.Evaluate(msg.Content)
	if !result.Violation {
		return result, false
	}

	metrics.AutoModViolations.WithLabelValues(result.Rule).Inc()
	m.logger.Info("automod violation",
		zap.String("guild_id", msg.GuildID),
		zap.String("channel_id", msg.ChannelID),
		zap.String("user_id", msg.Author.ID),
		zap.String("rule", result.Rule),
		zap.Bool("normalized", result.Normalized),
	)
	m.executor.HandleViolation(ctx, moderation.Violation{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		UserID:    msg.Author.ID,
		Rule:      result.Rule,
		IssuedBy:  botUserID,
	})
	return result, true
}
