package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"warden/internal/apperr"
	"warden/internal/modules/audit"
	"warden/internal/moderation"
	"warden/internal/permissions"
	"warden/internal/platform"
	"warden/internal/schedule"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const MaxSlowmode = 21600

// overwriteSnapshot is the @everyone overwrite as it was before the lock.
type overwriteSnapshot struct {
	allow   int64
	deny    int64
	hasPerm bool
}

type Service struct {
	client platform.Client
	sched  *schedule.Scheduler
	perms  *permissions.Checker
	audit  *audit.Logger
	logger *zap.Logger

	mu      sync.Mutex
	locks   map[string]overwriteSnapshot
	locking map[string]struct{}
}

func New(client platform.Client, sched *schedule.Scheduler, perms *permissions.Checker, auditLogger *audit.Logger, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		sched:  sched,
		perms:  perms,
		audit:  auditLogger,
		logger: logger,
		locks:   make(map[string]overwriteSnapshot),
		locking: make(map[string]struct{}),
	}
}

type LockRequest struct {
	GuildID   string
	ChannelID string
	Actor     *discordgo.Member
	Duration  string
	Reason    string
}

func unlockKey(channelID string) string { return "unlock:" + channelID }

// Lock denies SendMessages to @everyone. With a duration the channel unlocks
// itself; the timer only carries the channel id and no-ops once the channel
// was unlocked by hand.
func (s *Service) Lock(ctx context.Context, req LockRequest) (time.Duration, error) {
	if err := s.perms.RequireModerator(req.Actor); err != nil {
		return 0, err
	}
	var duration time.Duration
	if strings.TrimSpace(req.Duration) != "" {
		d, err := moderation.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			return 0, apperr.Invalid("Use a duration like 30s, 10m, 2h or 1d.")
		}
		duration = d
	}
	if err := s.beginLock(req.ChannelID); err != nil {
		return 0, err
	}
	defer s.endLock(req.ChannelID)

	channel, err := s.client.Channel(ctx, req.ChannelID)
	if err != nil {
		s.logger.Warn("channel lookup failed", zap.String("channel_id", req.ChannelID), zap.Error(err))
		return 0, apperr.Collaborator("fetch channel", err)
	}
	snap := overwriteSnapshot{}
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == req.GuildID {
			snap.allow = overwrite.Allow
			snap.deny = overwrite.Deny
			snap.hasPerm = true
			break
		}
	}

	allow := snap.allow &^ discordgo.PermissionSendMessages
	deny := snap.deny | discordgo.PermissionSendMessages
	if err := s.client.SetPermission(ctx, req.ChannelID, req.GuildID, discordgo.PermissionOverwriteTypeRole, allow, deny); err != nil {
		s.logger.Warn("lock failed", zap.String("channel_id", req.ChannelID), zap.Error(err))
		return 0, apperr.Collaborator("lock channel", err)
	}

	s.mu.Lock()
	s.locks[req.ChannelID] = snap
	s.mu.Unlock()

	if duration > 0 {
		guildID, channelID, actorID := req.GuildID, req.ChannelID, req.Actor.User.ID
		s.sched.After(unlockKey(channelID), duration, func(ctx context.Context) {
			restored, err := s.restore(ctx, guildID, channelID)
			if err != nil {
				s.logger.Warn("auto unlock failed", zap.String("channel_id", channelID), zap.Error(err))
				return
			}
			if !restored {
				return
			}
			s.audit.Log(ctx, audit.Entry{
				GuildID: guildID,
				ActorID: actorID,
				Action:  audit.ActionUnlock,
				Reason:  "Lock expired",
				Detail:  "channel=" + channelID,
			})
		})
	}

	reason := req.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	notice := "🔒 This channel has been locked. Reason: " + reason
	if duration > 0 {
		notice += fmt.Sprintf(" (unlocks in %s)", duration)
	}
	if _, err := s.client.SendMessage(ctx, req.ChannelID, &discordgo.MessageSend{Content: notice}); err != nil {
		s.logger.Debug("lock notice failed", zap.String("channel_id", req.ChannelID), zap.Error(err))
	}
	s.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Actor.User.ID,
		Action:   audit.ActionLock,
		Reason:   reason,
		Duration: duration,
		Detail:   "channel=" + req.ChannelID,
	})
	return duration, nil
}

// beginLock marks channelID as being locked, so a concurrent Lock cannot
// snapshot the overwrite this one is about to write.
func (s *Service) beginLock(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, locked := s.locks[channelID]
	_, busy := s.locking[channelID]
	if locked || busy {
		return apperr.Conflict("This channel is already locked.")
	}
	s.locking[channelID] = struct{}{}
	return nil
}

func (s *Service) endLock(channelID string) {
	s.mu.Lock()
	delete(s.locking, channelID)
	s.mu.Unlock()
}

func (s *Service) Unlock(ctx context.Context, guildID, channelID string, actor *discordgo.Member) error {
	if err := s.perms.RequireModerator(actor); err != nil {
		return err
	}
	restored, err := s.restore(ctx, guildID, channelID)
	if err != nil {
		return apperr.Collaborator("unlock channel", err)
	}
	if !restored {
		return apperr.Conflict("This channel is not locked.")
	}
	s.sched.Cancel(unlockKey(channelID))
	if _, err := s.client.SendMessage(ctx, channelID, &discordgo.MessageSend{Content: "🔓 This channel has been unlocked."}); err != nil {
		s.logger.Debug("unlock notice failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	s.audit.Log(ctx, audit.Entry{
		GuildID: guildID,
		ActorID: actor.User.ID,
		Action:  audit.ActionUnlock,
		Detail:  "channel=" + channelID,
	})
	return nil
}

func (s *Service) Locked(channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.locks[channelID]
	return ok
}

// restore puts the snapshot back. It reports false when there was nothing to
// restore; the snapshot is only dropped once the platform call succeeded.
func (s *Service) restore(ctx context.Context, guildID, channelID string) (bool, error) {
	s.mu.Lock()
	snap, ok := s.locks[channelID]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	var err error
	if snap.hasPerm {
		err = s.client.SetPermission(ctx, channelID, guildID, discordgo.PermissionOverwriteTypeRole, snap.allow, snap.deny)
	} else {
		err = s.client.DeletePermission(ctx, channelID, guildID)
	}
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	delete(s.locks, channelID)
	s.mu.Unlock()
	return true, nil
}

// Forget drops lock state for a channel that no longer exists.
func (s *Service) Forget(channelID string) {
	s.sched.Cancel(unlockKey(channelID))
	s.mu.Lock()
	delete(s.locks, channelID)
	s.mu.Unlock()
}

func (s *Service) Slowmode(ctx context.Context, guildID, channelID string, actor *discordgo.Member, seconds int) error {
	if err := s.perms.RequireModerator(actor); err != nil {
		return err
	}
	if seconds < 0 || seconds > MaxSlowmode {
		return apperr.Invalid(fmt.Sprintf("Slowmode must be between 0 and %d seconds.", MaxSlowmode))
	}
	if err := s.client.SetSlowmode(ctx, channelID, seconds); err != nil {
		s.logger.Warn("slowmode failed", zap.String("channel_id", channelID), zap.Error(err))
		return apperr.Collaborator("set slowmode", err)
	}
	s.audit.Log(ctx, audit.Entry{
		GuildID: guildID,
		ActorID: actor.User.ID,
		Action:  audit.ActionSlowmode,
		Detail:  fmt.Sprintf("channel=%s seconds=%d", channelID, seconds),
	})
	return nil
}
