// Package giveaway runs time-boxed entry pools and draws winners without
// replacement when they expire.
package giveaway

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
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
	MinMinutes = 1
	MaxMinutes = 1440
	MinWinners = 1
	MaxWinners = 100
)

type Options struct {
	// Tick is how often running giveaways are re-rendered and checked for expiry.
	Tick time.Duration
	// IntN returns a uniform value in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
}

// Engine owns every running giveaway. Join and expiry both go through mu so
// per-giveaway mutations apply in arrival order. Message edits go through
// renderMu and read the record inside it, so the last edit shows the latest
// state and nothing overwrites the ended message.
type Engine struct {
	mu       sync.Mutex
	renderMu sync.Mutex

	client platform.Client
	sched  *schedule.Scheduler
	perms  *permissions.Checker
	store  Store
	audit  *audit.Logger
	logger *zap.Logger
	tick   time.Duration
	intn   func(int) int
}

func New(client platform.Client, sched *schedule.Scheduler, perms *permissions.Checker, store Store, auditLogger *audit.Logger, logger *zap.Logger, opts Options) *Engine {
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.Tick <= 0 {
		opts.Tick = 5 * time.Second
	}
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	return &Engine{
		client: client,
		sched:  sched,
		perms:  perms,
		store:  store,
		audit:  auditLogger,
		logger: logger,
		tick:   opts.Tick,
		intn:   opts.IntN,
	}
}

type StartRequest struct {
	GuildID   string
	ChannelID string
	Actor     *discordgo.Member
	Prize     string
	Minutes   int
	Winners   int
}

func tickKey(messageID string) string { return "giveaway:" + messageID }

// Start posts the entry message and begins the recurring check. The returned
// record is keyed by the entry message id.
func (e *Engine) Start(ctx context.Context, req StartRequest) (Record, error) {
	if err := e.perms.RequireModerator(req.Actor); err != nil {
		return Record{}, err
	}
	prize := strings.TrimSpace(req.Prize)
	if prize == "" {
		return Record{}, apperr.Invalid("A giveaway needs a prize.")
	}
	if req.Minutes < MinMinutes || req.Minutes > MaxMinutes {
		return Record{}, apperr.Invalid(fmt.Sprintf("Duration must be between %d and %d minutes.", MinMinutes, MaxMinutes))
	}
	if req.Winners < MinWinners || req.Winners > MaxWinners {
		return Record{}, apperr.Invalid(fmt.Sprintf("Winner count must be between %d and %d.", MinWinners, MaxWinners))
	}

	now := e.sched.Now()
	record := Record{
		ChannelID: req.ChannelID,
		GuildID:   req.GuildID,
		HostID:    req.Actor.User.ID,
		Prize:     prize,
		Winners:   req.Winners,
		EndsAt:    now.Add(time.Duration(req.Minutes) * time.Minute),
	}
	msg, err := e.client.SendMessage(ctx, req.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{runningEmbed(record, now)},
		Components: joinButton(false),
	})
	if err != nil {
		e.logger.Warn("giveaway post failed", zap.String("channel_id", req.ChannelID), zap.Error(err))
		return Record{}, apperr.Collaborator("post giveaway", err)
	}
	record.MessageID = msg.ID

	e.mu.Lock()
	e.store.Put(record)
	e.mu.Unlock()

	id := msg.ID
	e.sched.Every(tickKey(id), e.tick, func(ctx context.Context) {
		e.check(ctx, id)
	})
	metrics.Giveaways.WithLabelValues("started").Inc()
	e.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  record.HostID,
		Action:   audit.ActionGiveaway,
		Reason:   prize,
		Duration: record.EndsAt.Sub(now),
		Detail:   fmt.Sprintf("started message=%s winners=%d", id, req.Winners),
	})
	return record, nil
}

// Join adds userID to the pool. A missing giveaway or a repeat entry is
// rejected without mutation.
func (e *Engine) Join(ctx context.Context, messageID, userID string) (Record, error) {
	e.mu.Lock()
	record, ok := e.store.Get(messageID)
	if !ok {
		e.mu.Unlock()
		return Record{}, apperr.NotFound("This giveaway has ended.")
	}
	if record.Joined(userID) {
		e.mu.Unlock()
		return Record{}, apperr.Conflict("You have already entered this giveaway.")
	}
	record.Participants = append(record.Participants, userID)
	e.store.Put(record)
	e.mu.Unlock()

	metrics.Giveaways.WithLabelValues("joined").Inc()
	e.render(ctx, messageID)
	return record, nil
}

func (e *Engine) Get(messageID string) (Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(messageID)
}

func (e *Engine) check(ctx context.Context, messageID string) {
	e.mu.Lock()
	record, ok := e.store.Get(messageID)
	e.mu.Unlock()
	if !ok {
		e.sched.Cancel(tickKey(messageID))
		return
	}
	if e.sched.Now().Before(record.EndsAt) {
		e.render(ctx, messageID)
		return
	}
	e.finish(ctx, messageID)
}

// finish draws exactly once. Only the caller that cancels the recurring check
// gets to remove the record and draw.
func (e *Engine) finish(ctx context.Context, messageID string) {
	if !e.sched.Cancel(tickKey(messageID)) {
		return
	}
	e.mu.Lock()
	record, ok := e.store.Get(messageID)
	if ok {
		e.store.Delete(messageID)
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	winners := Draw(record.Participants, record.Winners, e.intn)
	metrics.Giveaways.WithLabelValues("ended").Inc()

	if _, err := e.client.SendMessage(ctx, record.ChannelID, &discordgo.MessageSend{
		Content:   announcement(record, winners),
		Reference: &discordgo.MessageReference{MessageID: record.MessageID, ChannelID: record.ChannelID, GuildID: record.GuildID},
	}); err != nil {
		e.logger.Warn("giveaway announce failed", zap.String("message_id", messageID), zap.Error(err))
	}
	embeds := []*discordgo.MessageEmbed{endedEmbed(record, winners)}
	components := joinButton(true)
	e.renderMu.Lock()
	_, err := e.client.EditMessage(ctx, &discordgo.MessageEdit{
		Channel:    record.ChannelID,
		ID:         record.MessageID,
		Embeds:     &embeds,
		Components: &components,
	})
	e.renderMu.Unlock()
	if err != nil {
		e.logger.Warn("giveaway end edit failed", zap.String("message_id", messageID), zap.Error(err))
	}

	detail := "ended no_participants"
	if len(winners) > 0 {
		detail = "ended winners=" + strings.Join(winners, ",")
	}
	e.audit.Log(ctx, audit.Entry{
		GuildID: record.GuildID,
		ActorID: record.HostID,
		Action:  audit.ActionGiveaway,
		Reason:  record.Prize,
		Detail:  detail,
	})
}

func (e *Engine) render(ctx context.Context, messageID string) {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()
	e.mu.Lock()
	record, ok := e.store.Get(messageID)
	e.mu.Unlock()
	if !ok {
		return
	}
	embeds := []*discordgo.MessageEmbed{runningEmbed(record, e.sched.Now())}
	if _, err := e.client.EditMessage(ctx, &discordgo.MessageEdit{
		Channel: record.ChannelID,
		ID:      record.MessageID,
		Embeds:  &embeds,
	}); err != nil {
		e.logger.Debug("giveaway render failed", zap.String("message_id", record.MessageID), zap.Error(err))
	}
}

// Draw picks n distinct participants uniformly at random. It returns nil when
// there are fewer participants than winners.
func Draw(participants []string, n int, intn func(int) int) []string {
	if n <= 0 || len(participants) < n {
		return nil
	}
	pool := slices.Clone(participants)
	for i := 0; i < n; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
