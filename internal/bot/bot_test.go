package bot

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"warden/internal/config"
	"warden/internal/giveaway"
	"warden/internal/platform/platformtest"
	"warden/internal/schedule/scheduletest"
	"warden/internal/tickets"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const guildID = "g1"

type recorder struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
}

func (r *recorder) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recorder) InteractionResponseEdit(interaction *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, edit)
	return &discordgo.Message{}, nil
}

func (r *recorder) last(t *testing.T) *discordgo.InteractionResponse {
	t.Helper()
	require.NotEmpty(t, r.responses)
	return r.responses[len(r.responses)-1]
}

var (
	moderator = &discordgo.Member{User: &discordgo.User{ID: "mod1", Username: "Mod"}, Roles: []string{"mod"}}
	helper    = &discordgo.Member{User: &discordgo.User{ID: "sup1", Username: "Helper"}, Roles: []string{"support"}}
	member    = &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "Alice"}}
)

type harness struct {
	bot   *Bot
	fake  *platformtest.Fake
	resp  *recorder
	clock *scheduletest.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OwnerIDs = []string{"owner"}
	cfg.ModeratorRoleID = "mod"
	cfg.SupportRoleID = "support"
	cfg.TicketCategoryID = "cat"
	cfg.TicketLogChannelID = "ticketlog"
	cfg.ModLogChannelID = "modlog"

	fake := platformtest.New()
	fake.GuildRoles = []*discordgo.Role{{ID: "mod", Position: 5}, {ID: "support", Position: 3}}
	fake.AddChannel(&discordgo.Channel{ID: "cat", GuildID: guildID, Type: discordgo.ChannelTypeGuildCategory})
	fake.AddChannel(&discordgo.Channel{ID: "c1", GuildID: guildID})
	fake.AddMember(guildID, &discordgo.Member{User: &discordgo.User{ID: "u1", Username: "Alice"}})

	clock := scheduletest.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	resp := &recorder{}
	b, err := assemble(cfg, zap.NewNop(), Deps{Client: fake, Responder: resp, Clock: clock})
	require.NoError(t, err)
	t.Cleanup(b.sched.Stop)
	b.setBotUserID("bot")
	return &harness{bot: b, fake: fake, resp: resp, clock: clock}
}

func command(actor *discordgo.Member, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: "c1",
		Member:    actor,
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}}
}

func component(actor *discordgo.Member, channelID, customID string, msg *discordgo.Message) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i-" + customID,
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   guildID,
		ChannelID: channelID,
		Member:    actor,
		Message:   msg,
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}}
}

func opt(name string, kind discordgo.ApplicationCommandOptionType, value interface{}) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: kind, Value: value}
}

func sub(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionSubCommand, Options: opts}
}

func TestSessionDeliversEventsInOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DiscordToken = "token"
	b, err := New(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(b.sched.Stop)
	assert.True(t, b.session.SyncEvents)
	assert.True(t, b.session.StateEnabled)
}

func TestEveryRegisteredCommandHasOneHandler(t *testing.T) {
	h := newHarness(t)

	var registered []string
	for _, def := range commandDefinitions() {
		registered = append(registered, def.Name)
	}
	var routed []string
	for name := range h.bot.commands {
		routed = append(routed, name)
	}
	sort.Strings(registered)
	sort.Strings(routed)
	assert.Equal(t, registered, routed)

	var buttons []string
	for id := range h.bot.components {
		buttons = append(buttons, id)
	}
	sort.Strings(buttons)
	assert.Equal(t, []string{"giveaway_join", "ticket_claim", "ticket_close", "ticket_open", "ticket_purchase", "ticket_transcript", "ticket_unclaim"}, buttons)
	assert.Len(t, h.bot.modals, 1)
	assert.Contains(t, h.bot.modals, tickets.ModalCreate)
}

func TestRejectionIsOneEphemeralReply(t *testing.T) {
	h := newHarness(t)

	h.bot.dispatch(context.Background(), command(member, "warn",
		opt("user", discordgo.ApplicationCommandOptionUser, "u1"),
		opt("reason", discordgo.ApplicationCommandOptionString, "spam"),
	))
	require.Len(t, h.resp.responses, 1)
	data := h.resp.last(t).Data
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
	assert.True(t, strings.HasPrefix(data.Content, "❌"), data.Content)
	assert.Zero(t, h.fake.Count("DirectMessage"))
}

func TestWarnThroughDispatch(t *testing.T) {
	h := newHarness(t)

	h.bot.dispatch(context.Background(), command(moderator, "warn",
		opt("user", discordgo.ApplicationCommandOptionUser, "u1"),
		opt("reason", discordgo.ApplicationCommandOptionString, "spam"),
	))
	require.Len(t, h.resp.responses, 1)
	assert.Contains(t, h.resp.last(t).Data.Content, "strike 1")
	assert.Len(t, h.fake.SentTo("modlog"), 1, "audit entry posted to the mod log")
}

func TestCollaboratorFailureIsGeneric(t *testing.T) {
	h := newHarness(t)
	h.fake.Fail["TimeoutMember"] = true

	h.bot.dispatch(context.Background(), command(moderator, "mute", opt("user", discordgo.ApplicationCommandOptionUser, "u1")))
	content := h.resp.last(t).Data.Content
	assert.Contains(t, content, "Something went wrong")
	assert.NotContains(t, content, "forced failure")
}

func TestSlowRouteDefersThenEdits(t *testing.T) {
	h := newHarness(t)
	h.fake.History["c1"] = []*discordgo.Message{
		{ID: "m2", Author: &discordgo.User{ID: "u1"}, Timestamp: h.clock.Now()},
		{ID: "m1", Author: &discordgo.User{ID: "u1"}, Timestamp: h.clock.Now()},
	}

	h.bot.dispatch(context.Background(), command(moderator, "purge", opt("amount", discordgo.ApplicationCommandOptionInteger, float64(5))))
	require.Len(t, h.resp.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, h.resp.responses[0].Type)
	require.Len(t, h.resp.edits, 1)
	assert.Contains(t, *h.resp.edits[0].Content, "Deleted 2")
}

func TestUnknownAndDirectInteractions(t *testing.T) {
	h := newHarness(t)

	h.bot.dispatch(context.Background(), component(member, "c1", "something_else", nil))
	assert.Empty(t, h.resp.responses)

	dm := command(nil, "warnings")
	dm.GuildID = ""
	dm.User = &discordgo.User{ID: "u1"}
	h.bot.dispatch(context.Background(), dm)
	require.Len(t, h.resp.responses, 1)
	assert.Contains(t, h.resp.last(t).Data.Content, "inside a server")
}

func TestTicketFlowThroughComponents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.dispatch(ctx, component(member, "c1", tickets.ButtonOpen, nil))
	resp := h.resp.last(t)
	assert.Equal(t, discordgo.InteractionResponseModal, resp.Type)
	assert.Equal(t, tickets.ModalCreate, resp.Data.CustomID)

	h.bot.dispatch(ctx, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i-modal",
		Type:      discordgo.InteractionModalSubmit,
		GuildID:   guildID,
		ChannelID: "c1",
		Member:    member,
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: tickets.ModalCreate,
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: tickets.ModalSubject, Value: "Refund"}}},
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: tickets.ModalDescription, Value: "order 42"}}},
			},
		},
	}})
	require.Len(t, h.resp.edits, 1)
	assert.Contains(t, *h.resp.edits[0].Content, "Your ticket is ready")

	channelID := "fake-1"
	record, ok := h.bot.tickets.Get(channelID)
	require.True(t, ok)
	assert.Equal(t, "Refund", record.Subject)

	h.bot.dispatch(ctx, component(helper, channelID, tickets.ButtonClaim, nil))
	assert.Contains(t, h.resp.last(t).Data.Content, "claimed")
	assert.Equal(t, "helper-alice", h.fake.Channels[channelID].Name)

	h.bot.dispatch(ctx, component(member, channelID, tickets.ButtonClaim, nil))
	assert.True(t, strings.HasPrefix(h.resp.last(t).Data.Content, "❌"))

	h.bot.dispatch(ctx, component(helper, channelID, tickets.ButtonClose, nil))
	assert.Contains(t, h.resp.last(t).Data.Content, "closed")

	h.bot.channelGone(channelID)
	_, ok = h.bot.tickets.Get(channelID)
	assert.False(t, ok)
	h.clock.Advance(time.Minute)
	assert.Zero(t, h.fake.Count("DeleteChannel"), "externally deleted ticket is not deleted again")
}

func TestTranscriptCapturedBeforeAutomod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	record, err := h.bot.tickets.Create(ctx, tickets.CreateRequest{GuildID: guildID, Owner: member.User, Subject: "Help"})
	require.NoError(t, err)

	h.bot.handleMessage(ctx, &discordgo.Message{
		ID:        "m1",
		ChannelID: record.ChannelID,
		GuildID:   guildID,
		Content:   "join discord.gg/freestuff",
		Author:    member.User,
		Timestamp: h.clock.Now(),
	})
	assert.Contains(t, h.fake.Deleted, "m1")

	h.bot.dispatch(ctx, component(member, record.ChannelID, tickets.ButtonTranscript, nil))
	resp := h.resp.last(t)
	require.Len(t, resp.Data.Files, 1)
}

func TestGiveawayJoinThroughComponent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.dispatch(ctx, command(moderator, "giveaway", sub("create",
		opt("prize", discordgo.ApplicationCommandOptionString, "Nitro"),
		opt("duration", discordgo.ApplicationCommandOptionInteger, float64(1)),
		opt("winners", discordgo.ApplicationCommandOptionInteger, float64(1)),
	)))
	assert.Contains(t, h.resp.last(t).Data.Content, "Giveaway for **Nitro** started")

	entry := &discordgo.Message{ID: "fake-1", ChannelID: "c1"}
	h.bot.dispatch(ctx, component(member, "c1", giveaway.ButtonJoin, entry))
	assert.Contains(t, h.resp.last(t).Data.Content, "You're in")
	h.bot.dispatch(ctx, component(member, "c1", giveaway.ButtonJoin, entry))
	assert.Contains(t, h.resp.last(t).Data.Content, "already entered")

	h.clock.Advance(time.Minute)
	_, ok := h.bot.giveaways.Get("fake-1")
	assert.False(t, ok)
	sent := h.fake.SentTo("c1")
	assert.Contains(t, sent[len(sent)-1].Content, "<@u1>")
}

func TestModlogWithoutArchive(t *testing.T) {
	h := newHarness(t)
	h.bot.dispatch(context.Background(), command(moderator, "modlog", sub("report")))
	assert.Contains(t, h.resp.last(t).Data.Content, "not enabled")
}

func TestModalValues(t *testing.T) {
	values := modalValues([]discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.TextInput{CustomID: "a", Value: "1"}}},
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: "b", Value: "2"}}},
	})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, values)
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "10m", humanDuration(10*time.Minute))
	assert.Equal(t, "2h", humanDuration(2*time.Hour))
	assert.Equal(t, "1d", humanDuration(24*time.Hour))
	assert.Equal(t, "1m30s", humanDuration(90*time.Second))
}
