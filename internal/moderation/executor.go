// Package moderation turns moderator commands and automod decisions into
// platform actions. Every action ends in an audit entry; failures of the
// side actions (DM, delete, timeout after a strike) are logged and never stop
// the rest of the flow.
package moderation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"warden/internal/apperr"
	"warden/internal/escalation"
	"warden/internal/modules/audit"
	"warden/internal/permissions"
	"warden/internal/platform"
	"warden/internal/strikes"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Options struct {
	MuteCooldown time.Duration
	DefaultMute  time.Duration
	Now          func() time.Time
}

type Executor struct {
	client    platform.Client
	perms     *permissions.Checker
	ledger    *strikes.Ledger
	policy    escalation.Policy
	audit     *audit.Logger
	logger    *zap.Logger
	cooldowns CooldownStore
	opts      Options

	// muteMu makes the cooldown check and its reservation one step.
	muteMu sync.Mutex
}

func NewExecutor(client platform.Client, perms *permissions.Checker, ledger *strikes.Ledger, policy escalation.Policy, auditLogger *audit.Logger, cooldowns CooldownStore, logger *zap.Logger, opts Options) *Executor {
	if cooldowns == nil {
		cooldowns = NewMemoryCooldowns()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultMute <= 0 {
		opts.DefaultMute = 10 * time.Minute
	}
	return &Executor{
		client:    client,
		perms:     perms,
		ledger:    ledger,
		policy:    policy,
		audit:     auditLogger,
		logger:    logger,
		cooldowns: cooldowns,
		opts:      opts,
	}
}

type MuteRequest struct {
	GuildID  string
	Actor    *discordgo.Member
	TargetID string
	Duration string
	Reason   string
}

// Mute times the target out. It is rate limited per moderator: the window is
// reserved before the timeout call and handed back if the call fails.
func (e *Executor) Mute(ctx context.Context, req MuteRequest) (time.Duration, error) {
	if err := e.perms.RequireModerator(req.Actor); err != nil {
		return 0, err
	}
	if err := e.checkCooldown(req.Actor.User.ID, e.opts.Now()); err != nil {
		return 0, err
	}
	duration, err := muteDuration(req.Duration, e.opts.DefaultMute)
	if err != nil {
		return 0, err
	}
	if _, err := e.target(ctx, req.GuildID, req.Actor, req.TargetID); err != nil {
		return 0, err
	}

	now := e.opts.Now()
	release, err := e.reserveCooldown(req.Actor.User.ID, now)
	if err != nil {
		return 0, err
	}
	until := now.Add(duration)
	if err := e.client.TimeoutMember(ctx, req.GuildID, req.TargetID, &until); err != nil {
		release()
		e.logger.Warn("mute failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.Error(err))
		return 0, apperr.Collaborator("timeout member", err)
	}

	reason := reasonOrDefault(req.Reason)
	e.notify(ctx, req.TargetID, fmt.Sprintf("You have been muted for %s. Reason: %s", duration, reason))
	e.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Actor.User.ID,
		TargetID: req.TargetID,
		Action:   audit.ActionMute,
		Reason:   reason,
		Duration: duration,
	})
	return duration, nil
}

func (e *Executor) checkCooldown(moderatorID string, now time.Time) error {
	e.muteMu.Lock()
	defer e.muteMu.Unlock()
	return e.cooldownError(moderatorID, now)
}

func (e *Executor) cooldownError(moderatorID string, now time.Time) error {
	left := remaining(e.cooldowns, moderatorID, e.opts.MuteCooldown, now)
	if left <= 0 {
		return nil
	}
	secs := int(math.Ceil(left.Seconds()))
	return apperr.Cooldown(fmt.Sprintf("You can mute again in %ds.", secs), left)
}

// reserveCooldown starts moderatorID's window at now. The returned release
// puts the previous state back.
func (e *Executor) reserveCooldown(moderatorID string, now time.Time) (func(), error) {
	e.muteMu.Lock()
	defer e.muteMu.Unlock()
	if err := e.cooldownError(moderatorID, now); err != nil {
		return nil, err
	}
	prev, had := e.cooldowns.Last(moderatorID)
	e.cooldowns.Set(moderatorID, now)
	return func() {
		e.muteMu.Lock()
		defer e.muteMu.Unlock()
		if last, ok := e.cooldowns.Last(moderatorID); !ok || !last.Equal(now) {
			return
		}
		if had {
			e.cooldowns.Set(moderatorID, prev)
		} else {
			e.cooldowns.Clear(moderatorID)
		}
	}, nil
}

type UnmuteRequest struct {
	GuildID  string
	Actor    *discordgo.Member
	TargetID string
	Reason   string
}

func (e *Executor) Unmute(ctx context.Context, req UnmuteRequest) error {
	if err := e.perms.RequireModerator(req.Actor); err != nil {
		return err
	}
	target, err := e.target(ctx, req.GuildID, req.Actor, req.TargetID)
	if err != nil {
		return err
	}
	if target.CommunicationDisabledUntil == nil || !target.CommunicationDisabledUntil.After(e.opts.Now()) {
		return apperr.Conflict("That member is not muted.")
	}
	if err := e.client.TimeoutMember(ctx, req.GuildID, req.TargetID, nil); err != nil {
		e.logger.Warn("unmute failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.Error(err))
		return apperr.Collaborator("lift timeout", err)
	}

	reason := reasonOrDefault(req.Reason)
	e.notify(ctx, req.TargetID, "Your mute has been lifted. Reason: "+reason)
	e.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Actor.User.ID,
		TargetID: req.TargetID,
		Action:   audit.ActionUnmute,
		Reason:   reason,
	})
	return nil
}

type WarnRequest struct {
	GuildID  string
	Actor    *discordgo.Member
	TargetID string
	Reason   string
}

// Outcome reports what a strike led to.
type Outcome struct {
	Count     int
	AutoMuted bool
	Duration  time.Duration
}

func (e *Executor) Warn(ctx context.Context, req WarnRequest) (Outcome, error) {
	if err := e.perms.RequireModerator(req.Actor); err != nil {
		return Outcome{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return Outcome{}, apperr.Invalid("A warning needs a reason.")
	}
	if _, err := e.target(ctx, req.GuildID, req.Actor, req.TargetID); err != nil {
		return Outcome{}, err
	}

	count := e.ledger.RecordWarning(req.TargetID, reason, req.Actor.User.ID)
	e.notify(ctx, req.TargetID, fmt.Sprintf("You have received a warning. Reason: %s (warning %d)", reason, count))
	e.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Actor.User.ID,
		TargetID: req.TargetID,
		Action:   audit.ActionWarn,
		Reason:   reason,
		Detail:   fmt.Sprintf("strikes=%d", count),
	})

	outcome := Outcome{Count: count}
	e.escalate(ctx, req.GuildID, req.TargetID, req.Actor.User.ID, &outcome)
	return outcome, nil
}

// Warnings returns the strike record of targetID. Anyone may look up their
// own record; looking up someone else needs the moderator role.
func (e *Executor) Warnings(actor *discordgo.Member, targetID string) (strikes.Record, error) {
	if actor == nil || actor.User == nil {
		return strikes.Record{}, apperr.Unauthorized("Unknown member.")
	}
	if targetID == "" {
		targetID = actor.User.ID
	}
	if targetID != actor.User.ID {
		if err := e.perms.RequireModerator(actor); err != nil {
			return strikes.Record{}, err
		}
	}
	record := e.ledger.Get(targetID)
	if record.Count == 0 && len(record.History) == 0 {
		return strikes.Record{}, apperr.NotFound("No warnings for this user.")
	}
	return record, nil
}

func (e *Executor) ClearWarns(ctx context.Context, guildID string, actor *discordgo.Member, targetID string) error {
	if err := e.perms.RequireModerator(actor); err != nil {
		return err
	}
	record := e.ledger.Get(targetID)
	if record.Count == 0 && len(record.History) == 0 {
		return apperr.NotFound("No warnings for this user.")
	}
	e.ledger.Clear(targetID)
	e.audit.Log(ctx, audit.Entry{
		GuildID:  guildID,
		ActorID:  actor.User.ID,
		TargetID: targetID,
		Action:   audit.ActionClearWarns,
		Detail:   fmt.Sprintf("cleared=%d", len(record.History)),
	})
	return nil
}

type Violation struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Rule      string
	// IssuedBy is recorded as the issuer of the strike, usually the bot.
	IssuedBy string
}

// HandleViolation removes the offending message, records a strike, tells the
// user and escalates. None of the platform calls can abort it.
func (e *Executor) HandleViolation(ctx context.Context, v Violation) Outcome {
	if err := e.client.DeleteMessage(ctx, v.ChannelID, v.MessageID); err != nil {
		e.logger.Warn("automod delete failed", zap.String("channel_id", v.ChannelID), zap.String("message_id", v.MessageID), zap.Error(err))
	}

	reason := "AutoMod: " + v.Rule
	count := e.ledger.RecordWarning(v.UserID, reason, v.IssuedBy)
	e.notify(ctx, v.UserID, fmt.Sprintf("Your message was removed (%s). Strike %d of %d.", v.Rule, count, e.policy.Threshold))
	e.audit.Log(ctx, audit.Entry{
		GuildID:  v.GuildID,
		ActorID:  v.IssuedBy,
		TargetID: v.UserID,
		Action:   audit.ActionAutoMod,
		Reason:   reason,
		Detail:   fmt.Sprintf("channel=%s strikes=%d", v.ChannelID, count),
	})

	outcome := Outcome{Count: count}
	e.escalate(ctx, v.GuildID, v.UserID, v.IssuedBy, &outcome)
	return outcome
}

func (e *Executor) escalate(ctx context.Context, guildID, userID, actorID string, outcome *Outcome) {
	decision := e.policy.OnStrike(userID, e.ledger)
	if !decision.ShouldAutoMute {
		return
	}
	outcome.AutoMuted = true
	outcome.Duration = decision.MuteDuration

	until := e.opts.Now().Add(decision.MuteDuration)
	detail := fmt.Sprintf("threshold=%d", e.policy.Threshold)
	if err := e.client.TimeoutMember(ctx, guildID, userID, &until); err != nil {
		e.logger.Warn("auto mute failed", zap.String("guild_id", guildID), zap.String("user_id", userID), zap.Error(err))
		detail += " timeout_failed=true"
	} else {
		e.notify(ctx, userID, fmt.Sprintf("You have been muted for %s after reaching %d strikes.", decision.MuteDuration, e.policy.Threshold))
	}
	e.audit.Log(ctx, audit.Entry{
		GuildID:  guildID,
		ActorID:  actorID,
		TargetID: userID,
		Action:   audit.ActionAutoMute,
		Reason:   "Strike threshold reached",
		Duration: decision.MuteDuration,
		Detail:   detail,
	})
}

// target loads the member and checks that actor may act on them.
func (e *Executor) target(ctx context.Context, guildID string, actor *discordgo.Member, targetID string) (*discordgo.Member, error) {
	target, err := e.client.Member(ctx, guildID, targetID)
	if err != nil {
		e.logger.Debug("member lookup failed", zap.String("guild_id", guildID), zap.String("user_id", targetID), zap.Error(err))
		return nil, apperr.NotFound("That member is not in this server.")
	}
	roles, err := e.client.Roles(ctx, guildID)
	if err != nil {
		e.logger.Warn("roles lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return nil, apperr.Collaborator("list roles", err)
	}
	if err := e.perms.CanTargetMember(actor, target, roles); err != nil {
		return nil, err
	}
	return target, nil
}

func (e *Executor) notify(ctx context.Context, userID, content string) {
	if err := e.client.DirectMessage(ctx, userID, &discordgo.MessageSend{Content: content}); err != nil {
		e.logger.Debug("direct message failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func reasonOrDefault(reason string) string {
	if reason = strings.TrimSpace(reason); reason == "" {
		return "No reason provided"
	}
	return reason
}
