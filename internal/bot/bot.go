package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warden/internal/analytics"
	"warden/internal/channels"
	"warden/internal/config"
	"warden/internal/escalation"
	"warden/internal/giveaway"
	"warden/internal/moderation"
	"warden/internal/modules/audit"
	"warden/internal/modules/automod"
	"warden/internal/modules/eventlog"
	"warden/internal/permissions"
	"warden/internal/platform"
	"warden/internal/schedule"
	"warden/internal/storage"
	"warden/internal/strikes"
	"warden/internal/tickets"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Responder answers interactions. *discordgo.Session satisfies it.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Deps are the collaborators a Bot is assembled from.
type Deps struct {
	Client    platform.Client
	Responder Responder
	Archive   *storage.Store
	Clock     schedule.Clock
}

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	session *discordgo.Session

	client    platform.Client
	responder Responder
	sched     *schedule.Scheduler
	perms     *permissions.Checker
	audit     *audit.Logger
	analytics *analytics.Service
	matcher   *automod.Matcher

	executor  *moderation.Executor
	automod   *automod.Module
	channels  *channels.Service
	tickets   *tickets.Manager
	giveaways *giveaway.Engine
	eventlog  *eventlog.Module

	commands   map[string]route
	components map[string]route
	modals     map[string]route

	mu        sync.RWMutex
	botUserID string
}

// New opens no connection yet; Start does.
func New(cfg config.Config, logger *zap.Logger, archive *storage.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	session.StateEnabled = true
	// One event lane: handlers run in gateway order on the read loop. Timers
	// still fire on their own goroutines, so components keep their own locks.
	session.SyncEvents = true

	b, err := assemble(cfg, logger, Deps{
		Client:    platform.NewDiscord(session),
		Responder: session,
		Archive:   archive,
	})
	if err != nil {
		return nil, err
	}
	b.session = session
	return b, nil
}

func assemble(cfg config.Config, logger *zap.Logger, deps Deps) (*Bot, error) {
	rules, err := automod.CompileRules(cfg.AutoMod.Rules)
	if err != nil {
		return nil, err
	}
	clock := deps.Clock
	if clock == nil {
		clock = schedule.RealClock()
	}

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		client:    deps.Client,
		responder: deps.Responder,
		sched:     schedule.New(clock, logger),
		perms:     permissions.NewChecker(cfg.OwnerIDs, cfg.ModeratorRoleID, cfg.SupportRoleID),
		matcher:   automod.NewMatcher(rules),
	}

	var archive audit.Archive
	if deps.Archive != nil {
		archive = deps.Archive
		b.analytics = analytics.New(deps.Archive)
	}
	b.audit = audit.NewLogger(archive, logger)
	b.audit.SetClock(clock.Now)
	b.audit.SetNotifier(audit.ChannelNotifier(b.client, cfg.ModLogChannelID, logger))

	ledger := strikes.NewLedger(strikes.NewMemoryStore(), clock.Now)
	policy := escalation.NewPolicy(cfg.AutoMod.StrikeThreshold, time.Duration(cfg.AutoMod.AutoMuteMinutes)*time.Minute)
	b.executor = moderation.NewExecutor(b.client, b.perms, ledger, policy, b.audit, moderation.NewMemoryCooldowns(), logger, moderation.Options{
		MuteCooldown: time.Duration(cfg.Moderation.MuteCooldownSeconds) * time.Second,
		DefaultMute:  time.Duration(cfg.Moderation.DefaultMuteMinutes) * time.Minute,
		Now:          clock.Now,
	})
	b.automod = automod.New(b.matcher, b.executor, b.perms, logger, cfg.AutoMod.Enabled)
	b.channels = channels.New(b.client, b.sched, b.perms, b.audit, logger)
	b.tickets = tickets.NewManager(b.client, b.sched, b.perms, nil, nil, b.audit, logger, tickets.Config{
		CategoryID:    cfg.TicketCategoryID,
		LogChannelID:  cfg.TicketLogChannelID,
		SupportRoleID: cfg.SupportRoleID,
		DeleteDelay:   time.Duration(cfg.Tickets.DeleteDelaySeconds) * time.Second,
	})
	b.giveaways = giveaway.New(b.client, b.sched, b.perms, nil, b.audit, logger, giveaway.Options{
		Tick: time.Duration(cfg.Giveaways.TickSeconds) * time.Second,
	})
	b.eventlog, err = eventlog.New(b.client, cfg.ModLogChannelID, cfg.MessageCacheSize, logger)
	if err != nil {
		return nil, err
	}
	b.eventlog.SetClock(clock.Now)

	b.commands, b.components, b.modals = b.routes()
	return b, nil
}

func (b *Bot) Scheduler() *schedule.Scheduler {
	return b.sched
}

// Start registers gateway handlers, connects and registers commands. Only the
// connect is retried.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onInteractionCreate)

	attempts := b.cfg.Connect.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(attempts-1)), ctx)
	err := backoff.RetryNotify(b.session.Open, policy, func(err error, wait time.Duration) {
		b.logger.Warn("discord connect failed", zap.Duration("retry_in", wait), zap.Error(err))
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		return err
	}
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	b.sched.Stop()
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) BotUserID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.botUserID
}

func (b *Bot) setBotUserID(id string) {
	b.mu.Lock()
	b.botUserID = id
	b.mu.Unlock()
	b.tickets.SetBotUserID(id)
}

// safely runs a gateway handler body, logging instead of crashing the
// session's event goroutine.
func (b *Bot) safely(event string, fn func()) {
	var catcher panics.Catcher
	catcher.Try(fn)
	if recovered := catcher.Recovered(); recovered != nil {
		b.logger.Error("handler panicked", zap.String("event", event), zap.Error(recovered.AsError()))
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	if event.User == nil {
		return
	}
	b.setBotUserID(event.User.ID)
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	b.safely("message_create", func() { b.handleMessage(context.Background(), msg.Message) })
}

// handleMessage captures ticket transcripts before moderation sees the
// message, so removed messages still show up in the transcript.
func (b *Bot) handleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.GuildID == "" {
		return
	}
	if msg.Content != "" {
		b.tickets.Capture(msg.ChannelID, msg.Author.Username, msg.Content, msg.Timestamp)
	}
	if msg.Author.Bot {
		return
	}
	b.eventlog.Remember(msg)
	if _, flagged := b.automod.HandleMessage(ctx, msg, msg.Member, b.BotUserID()); flagged {
		b.eventlog.Forget(msg.ID)
	}
}

func (b *Bot) onMessageUpdate(session *discordgo.Session, event *discordgo.MessageUpdate) {
	b.safely("message_update", func() { b.eventlog.HandleUpdate(context.Background(), event) })
}

func (b *Bot) onMessageDelete(session *discordgo.Session, event *discordgo.MessageDelete) {
	b.safely("message_delete", func() { b.eventlog.HandleDelete(context.Background(), event) })
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	b.safely("member_add", func() { b.eventlog.HandleJoin(context.Background(), event) })
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	b.safely("member_remove", func() { b.eventlog.HandleLeave(context.Background(), event) })
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	if event.Channel == nil {
		return
	}
	b.safely("channel_delete", func() { b.channelGone(event.Channel.ID) })
}

func (b *Bot) channelGone(channelID string) {
	b.tickets.Purge(channelID)
	b.channels.Forget(channelID)
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	b.safely("interaction_create", func() { b.dispatch(context.Background(), interaction) })
}

// RunRetention deletes archived audit entries past the retention window.
func (b *Bot) RunRetention(ctx context.Context, archive *storage.Store) {
	removed, err := archive.CleanupAuditEntries(ctx, b.cfg.Audit.RetentionDays, b.sched.Now())
	if err != nil {
		b.logger.Warn("audit retention failed", zap.Error(err))
		return
	}
	b.logger.Info("audit retention", zap.Int64("removed", removed), zap.Int("retention_days", b.cfg.Audit.RetentionDays))
}
