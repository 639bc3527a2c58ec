// Package tickets runs private support channels through
// open -> claimed -> open -> closed -> deleted.
package tickets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"warden/internal/apperr"
	"warden/internal/metrics"
	"warden/internal/modules/audit"
	"warden/internal/permissions"
	"warden/internal/platform"
	"warden/internal/schedule"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	ownerAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory | discordgo.PermissionAttachFiles
	staffAllow = ownerAllow | discordgo.PermissionManageMessages
	botAllow   = staffAllow | discordgo.PermissionManageChannels
)

type Config struct {
	CategoryID    string
	LogChannelID  string
	SupportRoleID string
	DeleteDelay   time.Duration
}

type Manager struct {
	client      platform.Client
	sched       *schedule.Scheduler
	perms       *permissions.Checker
	store       Store
	transcripts TranscriptStore
	audit       *audit.Logger
	logger      *zap.Logger
	cfg         Config
	botUserID   string

	// mu orders check-then-commit transitions on records; opening holds the
	// owners whose ticket channel is being created.
	mu      sync.Mutex
	opening map[string]struct{}
}

func NewManager(client platform.Client, sched *schedule.Scheduler, perms *permissions.Checker, store Store, transcripts TranscriptStore, auditLogger *audit.Logger, logger *zap.Logger, cfg Config) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if transcripts == nil {
		transcripts = NewMemoryTranscripts()
	}
	if cfg.DeleteDelay < 0 {
		cfg.DeleteDelay = 10 * time.Second
	}
	return &Manager{
		client:      client,
		sched:       sched,
		perms:       perms,
		store:       store,
		transcripts: transcripts,
		audit:       auditLogger,
		logger:      logger,
		cfg:         cfg,
		opening:     make(map[string]struct{}),
	}
}

// SetBotUserID is called once the gateway reports who we are.
func (m *Manager) SetBotUserID(id string) {
	m.botUserID = id
}

func (m *Manager) Get(channelID string) (Record, bool) {
	return m.store.Get(channelID)
}

type CreateRequest struct {
	GuildID     string
	Owner       *discordgo.User
	Subject     string
	Description string
}

// Create opens a ticket channel under the configured category. A user holds
// at most one open ticket.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (Record, error) {
	if req.Owner == nil {
		return Record{}, apperr.Invalid("Unknown user.")
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return Record{}, apperr.Invalid("A ticket needs a subject.")
	}
	if err := m.reserve(req.Owner.ID); err != nil {
		return Record{}, err
	}
	defer m.release(req.Owner.ID)
	if m.cfg.CategoryID == "" {
		return Record{}, apperr.Collaborator("ticket category not configured", nil)
	}
	category, err := m.client.Channel(ctx, m.cfg.CategoryID)
	if err != nil || category.Type != discordgo.ChannelTypeGuildCategory {
		m.logger.Warn("ticket category unavailable", zap.String("channel_id", m.cfg.CategoryID), zap.Error(err))
		return Record{}, apperr.Collaborator("ticket category unavailable", err)
	}

	channel, err := m.client.CreateChannel(ctx, req.GuildID, discordgo.GuildChannelCreateData{
		Name:                 "ticket-" + Slug(req.Owner.Username),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             m.cfg.CategoryID,
		Topic:                subject,
		PermissionOverwrites: m.overwrites(req.GuildID, req.Owner.ID),
	})
	if err != nil {
		m.logger.Warn("ticket channel create failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.Owner.ID), zap.Error(err))
		return Record{}, apperr.Collaborator("create ticket channel", err)
	}

	record := Record{
		ChannelID: channel.ID,
		GuildID:   req.GuildID,
		OwnerID:   req.Owner.ID,
		Subject:   subject,
		Status:    StatusOpen,
		CreatedAt: m.sched.Now(),
	}
	m.store.Put(record)
	metrics.Tickets.WithLabelValues("created").Inc()

	m.send(ctx, channel.ID, controlPanel())
	m.send(ctx, channel.ID, summary(record, strings.TrimSpace(req.Description)))
	m.logTo(ctx, logEmbed("Ticket opened", record, req.Owner.ID, record.CreatedAt))
	m.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Owner.ID,
		TargetID: req.Owner.ID,
		Action:   audit.ActionTicketOpen,
		Reason:   subject,
		Detail:   "channel=" + channel.ID,
	})
	return record, nil
}

// reserve claims the owner's single open-ticket slot until release.
func (m *Manager) reserve(ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.opening[ownerID]; busy {
		return apperr.Conflict("Your ticket is already being created.")
	}
	for _, existing := range m.store.List() {
		if existing.OwnerID == ownerID && existing.Status == StatusOpen {
			return apperr.Conflict("You already have an open ticket: " + platform.ChannelMention(existing.ChannelID))
		}
	}
	m.opening[ownerID] = struct{}{}
	return nil
}

func (m *Manager) release(ownerID string) {
	m.mu.Lock()
	delete(m.opening, ownerID)
	m.mu.Unlock()
}

func (m *Manager) overwrites(guildID, ownerID string) []*discordgo.PermissionOverwrite {
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: ownerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ownerAllow},
	}
	if m.cfg.SupportRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: m.cfg.SupportRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: staffAllow})
	}
	if m.botUserID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: m.botUserID, Type: discordgo.PermissionOverwriteTypeMember, Allow: botAllow})
	}
	return overwrites
}

// Claim marks the ticket as handled by actor and renames the channel after
// them. The rename is cosmetic and may fail without undoing the claim.
func (m *Manager) Claim(ctx context.Context, channelID string, actor *discordgo.Member) (Record, error) {
	m.mu.Lock()
	record, err := m.claim(channelID, actor)
	m.mu.Unlock()
	if err != nil {
		return Record{}, err
	}
	metrics.Tickets.WithLabelValues("claimed").Inc()

	m.rename(ctx, channelID, "ticket-", Slug(actor.User.Username)+"-")
	m.send(ctx, channelID, &discordgo.MessageSend{Content: "🙋 This ticket has been claimed by " + platform.Mention(actor.User.ID) + "."})
	return record, nil
}

func (m *Manager) claim(channelID string, actor *discordgo.Member) (Record, error) {
	record, err := m.openRecord(channelID)
	if err != nil {
		return Record{}, err
	}
	if !m.perms.IsSupport(actor) {
		return Record{}, apperr.Unauthorized("Only the support team can claim tickets.")
	}
	if record.ClaimedBy != "" {
		return Record{}, apperr.Conflict("This ticket is already claimed by " + platform.Mention(record.ClaimedBy) + ".")
	}

	record.ClaimedBy = actor.User.ID
	m.store.Put(record)
	return record, nil
}

// Unclaim releases the claim. Only the claimant or an owner may do it. The
// channel name is restored by swapping the claimant's current username slug
// back to "ticket-"; a renamed claimant leaves the name as it is.
func (m *Manager) Unclaim(ctx context.Context, channelID string, actor *discordgo.Member) (Record, error) {
	m.mu.Lock()
	record, claimant, err := m.unclaim(channelID, actor)
	m.mu.Unlock()
	if err != nil {
		return Record{}, err
	}
	metrics.Tickets.WithLabelValues("unclaimed").Inc()

	claimantName := ""
	if actor.User.ID == claimant {
		claimantName = actor.User.Username
	} else if member, err := m.client.Member(ctx, record.GuildID, claimant); err == nil && member.User != nil {
		claimantName = member.User.Username
	}

	if claimantName != "" {
		m.rename(ctx, channelID, Slug(claimantName)+"-", "ticket-")
	}
	m.send(ctx, channelID, &discordgo.MessageSend{Content: "This ticket is no longer claimed."})
	return record, nil
}

// unclaim clears the claim and returns who held it.
func (m *Manager) unclaim(channelID string, actor *discordgo.Member) (Record, string, error) {
	record, err := m.openRecord(channelID)
	if err != nil {
		return Record{}, "", err
	}
	if record.ClaimedBy == "" {
		return Record{}, "", apperr.Conflict("This ticket is not claimed.")
	}
	if actor == nil || actor.User == nil || (actor.User.ID != record.ClaimedBy && !m.perms.IsOwner(actor.User.ID)) {
		return Record{}, "", apperr.Unauthorized("Only the claimant can unclaim this ticket.")
	}
	claimant := record.ClaimedBy
	record.ClaimedBy = ""
	m.store.Put(record)
	return record, claimant, nil
}

// AddParticipant grants userID view and write access to the ticket.
func (m *Manager) AddParticipant(ctx context.Context, channelID string, actor *discordgo.Member, userID string) error {
	record, err := m.openRecord(channelID)
	if err != nil {
		return err
	}
	if err := m.requireStaffOrOwner(record, actor); err != nil {
		return err
	}
	if err := m.client.SetPermission(ctx, channelID, userID, discordgo.PermissionOverwriteTypeMember, ownerAllow, 0); err != nil {
		m.logger.Warn("ticket add participant failed", zap.String("channel_id", channelID), zap.String("user_id", userID), zap.Error(err))
		return apperr.Collaborator("add participant", err)
	}
	m.send(ctx, channelID, &discordgo.MessageSend{Content: platform.Mention(userID) + " has been added to the ticket."})
	return nil
}

// RemoveParticipant revokes access granted by AddParticipant. The ticket owner
// cannot be removed.
func (m *Manager) RemoveParticipant(ctx context.Context, channelID string, actor *discordgo.Member, userID string) error {
	record, err := m.openRecord(channelID)
	if err != nil {
		return err
	}
	if err := m.requireStaffOrOwner(record, actor); err != nil {
		return err
	}
	if userID == record.OwnerID {
		return apperr.Invalid("The ticket owner cannot be removed.")
	}
	if err := m.client.DeletePermission(ctx, channelID, userID); err != nil {
		m.logger.Warn("ticket remove participant failed", zap.String("channel_id", channelID), zap.String("user_id", userID), zap.Error(err))
		return apperr.Collaborator("remove participant", err)
	}
	m.send(ctx, channelID, &discordgo.MessageSend{Content: platform.Mention(userID) + " has been removed from the ticket."})
	return nil
}

func deleteKey(channelID string) string { return "ticket-delete:" + channelID }

// Close is terminal. The channel is deleted after the grace period by a task
// that only knows the channel id and re-reads the record when it fires.
func (m *Manager) Close(ctx context.Context, channelID string, actor *discordgo.Member) (Record, error) {
	m.mu.Lock()
	record, err := m.close(channelID, actor)
	m.mu.Unlock()
	if err != nil {
		return Record{}, err
	}
	metrics.Tickets.WithLabelValues("closed").Inc()

	delay := m.cfg.DeleteDelay
	m.send(ctx, channelID, &discordgo.MessageSend{Content: fmt.Sprintf("🔒 Ticket closed by %s. This channel will be deleted in %s.", platform.Mention(actor.User.ID), delay)})
	m.logTo(ctx, logEmbed("Ticket closed", record, actor.User.ID, m.sched.Now()))
	m.audit.Log(ctx, audit.Entry{
		GuildID:  record.GuildID,
		ActorID:  actor.User.ID,
		TargetID: record.OwnerID,
		Action:   audit.ActionTicketClose,
		Reason:   record.Subject,
		Detail:   "channel=" + channelID,
	})

	m.scheduleDelete(channelID, delay, 1)
	return record, nil
}

// deleteAttempts bounds how often a failing channel delete is retried before
// the record is dropped anyway.
const deleteAttempts = 3

func (m *Manager) scheduleDelete(channelID string, delay time.Duration, attempt int) {
	m.sched.After(deleteKey(channelID), delay, func(ctx context.Context) {
		m.deleteClosed(ctx, channelID, attempt)
	})
}

func (m *Manager) close(channelID string, actor *discordgo.Member) (Record, error) {
	record, ok := m.store.Get(channelID)
	if !ok {
		return Record{}, apperr.NotFound("This is not a ticket channel.")
	}
	if record.Status == StatusClosed {
		return Record{}, apperr.Conflict("This ticket is already closed.")
	}
	if err := m.requireStaffOrOwner(record, actor); err != nil {
		return Record{}, err
	}
	record.Status = StatusClosed
	record.ClaimedBy = ""
	m.store.Put(record)
	return record, nil
}

func (m *Manager) deleteClosed(ctx context.Context, channelID string, attempt int) {
	record, ok := m.store.Get(channelID)
	if !ok || record.Status != StatusClosed {
		return
	}
	if err := m.client.DeleteChannel(ctx, channelID); err != nil {
		m.logger.Warn("ticket channel delete failed", zap.String("channel_id", channelID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < deleteAttempts {
			m.scheduleDelete(channelID, m.cfg.DeleteDelay, attempt+1)
			return
		}
	}
	m.Purge(channelID)
}

// Purge forgets a ticket whose channel is gone.
func (m *Manager) Purge(channelID string) {
	if _, ok := m.store.Get(channelID); !ok {
		return
	}
	m.sched.Cancel(deleteKey(channelID))
	m.store.Delete(channelID)
	m.transcripts.Delete(channelID)
	metrics.Tickets.WithLabelValues("deleted").Inc()
}

// Capture appends a message to the transcript of an open ticket. It reports
// whether anything was captured.
func (m *Manager) Capture(channelID, author, content string, at time.Time) bool {
	record, ok := m.store.Get(channelID)
	if !ok || record.Status != StatusOpen {
		return false
	}
	m.transcripts.Append(channelID, Line{Author: author, Content: content, At: at})
	return true
}

// ExportTranscript renders the captured messages as a text file.
func (m *Manager) ExportTranscript(ctx context.Context, channelID string, actor *discordgo.Member) (*discordgo.File, error) {
	record, ok := m.store.Get(channelID)
	if !ok {
		return nil, apperr.NotFound("This is not a ticket channel.")
	}
	if err := m.requireStaffOrOwner(record, actor); err != nil {
		return nil, err
	}
	lines := m.transcripts.Lines(channelID)
	if len(lines) == 0 {
		return nil, apperr.NotFound("There are no messages to export yet.")
	}
	return &discordgo.File{
		Name:        fmt.Sprintf("transcript-%s.txt", channelID),
		ContentType: "text/plain",
		Reader:      strings.NewReader(RenderTranscript(lines)),
	}, nil
}

func (m *Manager) openRecord(channelID string) (Record, error) {
	record, ok := m.store.Get(channelID)
	if !ok {
		return Record{}, apperr.NotFound("This is not a ticket channel.")
	}
	if record.Status == StatusClosed {
		return Record{}, apperr.Conflict("This ticket is closed.")
	}
	return record, nil
}

func (m *Manager) requireStaffOrOwner(record Record, actor *discordgo.Member) error {
	if actor == nil || actor.User == nil {
		return apperr.Unauthorized("Unknown member.")
	}
	if actor.User.ID == record.OwnerID || m.perms.IsSupport(actor) || m.perms.IsModerator(actor) {
		return nil
	}
	return apperr.Unauthorized("Only the ticket owner or the support team can do that.")
}

func (m *Manager) rename(ctx context.Context, channelID, from, to string) {
	channel, err := m.client.Channel(ctx, channelID)
	if err != nil {
		m.logger.Warn("ticket channel lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	name := strings.Replace(channel.Name, from, to, 1)
	if name == channel.Name {
		return
	}
	if err := m.client.RenameChannel(ctx, channelID, name); err != nil {
		m.logger.Warn("ticket rename failed", zap.String("channel_id", channelID), zap.String("name", name), zap.Error(err))
	}
}

func (m *Manager) send(ctx context.Context, channelID string, msg *discordgo.MessageSend) {
	if _, err := m.client.SendMessage(ctx, channelID, msg); err != nil {
		m.logger.Warn("ticket message failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (m *Manager) logTo(ctx context.Context, msg *discordgo.MessageSend) {
	if m.cfg.LogChannelID == "" {
		return
	}
	m.send(ctx, m.cfg.LogChannelID, msg)
}
