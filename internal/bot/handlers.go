package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warden/internal/analytics"
	"warden/internal/apperr"
	"warden/internal/channels"
	"warden/internal/giveaway"
	"warden/internal/moderation"
	"warden/internal/platform"
	"warden/internal/tickets"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type handlerFunc func(ctx context.Context, in *discordgo.InteractionCreate) (reply, error)

// route is one dispatch table entry. Slow routes acknowledge first and edit
// the deferred reply once the handler returns.
type route struct {
	handle handlerFunc
	slow   bool
}

// reply is the single response an interaction gets.
type reply struct {
	content string
	embed   *discordgo.MessageEmbed
	file    *discordgo.File
	modal   *discordgo.InteractionResponseData
}

func (b *Bot) routes() (commands, components, modals map[string]route) {
	commands = map[string]route{
		"mute":        {handle: b.handleMute},
		"unmute":      {handle: b.handleUnmute},
		"warn":        {handle: b.handleWarn},
		"warnings":    {handle: b.handleWarnings},
		"clearwarns":  {handle: b.handleClearWarns},
		"purge":       {handle: b.handlePurge, slow: true},
		"purgebots":   {handle: b.handlePurgeBots, slow: true},
		"purgehumans": {handle: b.handlePurgeHumans, slow: true},
		"purgeall":    {handle: b.handlePurgeAll, slow: true},
		"lock":        {handle: b.handleLock},
		"unlock":      {handle: b.handleUnlock},
		"slowmode":    {handle: b.handleSlowmode},
		"role":        {handle: b.handleRole},
		"giverole":    {handle: b.handleGiveRole},
		"giveaway":    {handle: b.handleGiveaway},
		"ticket":      {handle: b.handleTicket},
		"modlog":      {handle: b.handleModlog},
	}
	components = map[string]route{
		tickets.ButtonOpen:       {handle: b.handleTicketOpen},
		tickets.ButtonPurchase:   {handle: b.handleTicketPurchase, slow: true},
		tickets.ButtonClaim:      {handle: b.handleTicketClaim},
		tickets.ButtonUnclaim:    {handle: b.handleTicketUnclaim},
		tickets.ButtonClose:      {handle: b.handleTicketClose},
		tickets.ButtonTranscript: {handle: b.handleTicketTranscript},
		giveaway.ButtonJoin:      {handle: b.handleGiveawayJoin},
	}
	modals = map[string]route{
		tickets.ModalCreate: {handle: b.handleTicketModal, slow: true},
	}
	return commands, components, modals
}

// dispatch finds the handler for an interaction and turns its result, error
// or not, into exactly one response.
func (b *Bot) dispatch(ctx context.Context, in *discordgo.InteractionCreate) {
	var (
		table map[string]route
		key   string
	)
	switch in.Type {
	case discordgo.InteractionApplicationCommand:
		table, key = b.commands, in.ApplicationCommandData().Name
	case discordgo.InteractionMessageComponent:
		table, key = b.components, in.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		table, key = b.modals, in.ModalSubmitData().CustomID
	default:
		return
	}
	r, ok := table[key]
	if !ok {
		b.logger.Debug("unhandled interaction", zap.String("key", key), zap.Int("type", int(in.Type)))
		return
	}

	if in.GuildID == "" || in.Member == nil || in.Member.User == nil {
		b.respond(in, reply{content: "This only works inside a server."})
		return
	}

	if r.slow {
		if err := b.responder.InteractionRespond(in.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}); err != nil {
			b.logger.Warn("interaction defer failed", zap.String("key", key), zap.Error(err))
			return
		}
	}

	out, err := r.handle(ctx, in)
	if err != nil {
		b.logFailure(key, in, err)
		out = reply{content: b.errorText(err)}
	}
	if r.slow {
		b.editDeferred(in, out)
		return
	}
	b.respond(in, out)
}

func (b *Bot) logFailure(key string, in *discordgo.InteractionCreate, err error) {
	fields := []zap.Field{
		zap.String("key", key),
		zap.String("guild_id", in.GuildID),
		zap.String("user_id", actorID(in)),
		zap.Stringer("kind", apperr.KindOf(err)),
		zap.Error(err),
	}
	switch apperr.KindOf(err) {
	case apperr.KindCollaborator, apperr.KindUnknown:
		b.logger.Warn("interaction failed", fields...)
	default:
		b.logger.Debug("interaction rejected", fields...)
	}
}

func (b *Bot) errorText(err error) string {
	return "❌ " + apperr.UserMessage(err)
}

func (b *Bot) respond(in *discordgo.InteractionCreate, out reply) {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseChannelMessageWithSource}
	if out.modal != nil {
		resp.Type = discordgo.InteractionResponseModal
		resp.Data = out.modal
	} else {
		data := &discordgo.InteractionResponseData{Content: out.content}
		if out.embed != nil {
			data.Embeds = []*discordgo.MessageEmbed{out.embed}
		}
		if out.file != nil {
			data.Files = []*discordgo.File{out.file}
		}
		data.Flags = discordgo.MessageFlagsEphemeral
		if data.Content == "" && data.Embeds == nil && data.Files == nil {
			data.Content = "Done."
		}
		resp.Data = data
	}
	if err := b.responder.InteractionRespond(in.Interaction, resp); err != nil {
		b.logger.Warn("interaction respond failed", zap.String("interaction_id", in.ID), zap.Error(err))
	}
}

func (b *Bot) editDeferred(in *discordgo.InteractionCreate, out reply) {
	content := out.content
	if content == "" && out.embed == nil {
		content = "Done."
	}
	edit := &discordgo.WebhookEdit{Content: &content}
	if out.embed != nil {
		embeds := []*discordgo.MessageEmbed{out.embed}
		edit.Embeds = &embeds
	}
	if _, err := b.responder.InteractionResponseEdit(in.Interaction, edit); err != nil {
		b.logger.Warn("interaction edit failed", zap.String("interaction_id", in.ID), zap.Error(err))
	}
}

func actorID(in *discordgo.InteractionCreate) string {
	if in.Member != nil && in.Member.User != nil {
		return in.Member.User.ID
	}
	if in.User != nil {
		return in.User.ID
	}
	return ""
}

// options indexes command options by name, descending into a subcommand
// when there is one.
type options struct {
	sub    string
	values map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func commandOptions(in *discordgo.InteractionCreate) options {
	opts := in.ApplicationCommandData().Options
	out := options{values: make(map[string]*discordgo.ApplicationCommandInteractionDataOption)}
	if len(opts) == 1 && (opts[0].Type == discordgo.ApplicationCommandOptionSubCommand || opts[0].Type == discordgo.ApplicationCommandOptionSubCommandGroup) {
		out.sub = opts[0].Name
		opts = opts[0].Options
	}
	for _, opt := range opts {
		out.values[opt.Name] = opt
	}
	return out
}

func (o options) text(name string) string {
	opt := o.values[name]
	if opt == nil {
		return ""
	}
	if s, ok := opt.Value.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(opt.Value)
}

func (o options) number(name string) (int, bool) {
	opt := o.values[name]
	if opt == nil {
		return 0, false
	}
	switch v := opt.Value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

func (o options) require(name string) (string, error) {
	value := o.text(name)
	if value == "" {
		return "", apperr.Invalid(fmt.Sprintf("Missing option `%s`.", name))
	}
	return value, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.Round(time.Second).String()
	}
}

func (b *Bot) handleMute(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	target, err := opts.require("user")
	if err != nil {
		return reply{}, err
	}
	d, err := b.executor.Mute(ctx, moderation.MuteRequest{
		GuildID:  in.GuildID,
		Actor:    in.Member,
		TargetID: target,
		Duration: opts.text("duration"),
		Reason:   opts.text("reason"),
	})
	if err != nil {
		return reply{}, err
	}
	return reply{content: fmt.Sprintf("🔇 %s has been muted for %s.", platform.Mention(target), humanDuration(d))}, nil
}

func (b *Bot) handleUnmute(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	target, err := opts.require("user")
	if err != nil {
		return reply{}, err
	}
	if err := b.executor.Unmute(ctx, moderation.UnmuteRequest{GuildID: in.GuildID, Actor: in.Member, TargetID: target, Reason: opts.text("reason")}); err != nil {
		return reply{}, err
	}
	return reply{content: fmt.Sprintf("🔊 %s has been unmuted.", platform.Mention(target))}, nil
}

func (b *Bot) handleWarn(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	target, err := opts.require("user")
	if err != nil {
		return reply{}, err
	}
	outcome, err := b.executor.Warn(ctx, moderation.WarnRequest{GuildID: in.GuildID, Actor: in.Member, TargetID: target, Reason: opts.text("reason")})
	if err != nil {
		return reply{}, err
	}
	content := fmt.Sprintf("⚠️ %s has been warned (strike %d).", platform.Mention(target), outcome.Count)
	if outcome.AutoMuted {
		content = fmt.Sprintf("⚠️ %s has been warned and automatically muted for %s.", platform.Mention(target), humanDuration(outcome.Duration))
	}
	return reply{content: content}, nil
}

func (b *Bot) handleWarnings(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	target := commandOptions(in).text("user")
	record, err := b.executor.Warnings(in.Member, target)
	if err != nil {
		return reply{}, err
	}
	if target == "" {
		target = in.Member.User.ID
	}
	lines := make([]string, 0, len(record.History))
	for i, w := range record.History {
		lines = append(lines, fmt.Sprintf("%d. %s by %s <t:%d:R>", i+1, w.Reason, platform.Mention(w.IssuedBy), w.IssuedAt.Unix()))
	}
	return reply{embed: &discordgo.MessageEmbed{
		Title:       "Warnings",
		Description: strings.Join(lines, "\n"),
		Color:       0xF1C40F,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: platform.Mention(target), Inline: true},
			{Name: "Active strikes", Value: fmt.Sprint(record.Count), Inline: true},
			{Name: "Total warnings", Value: fmt.Sprint(len(record.History)), Inline: true},
		},
	}}, nil
}

func (b *Bot) handleClearWarns(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	target, err := commandOptions(in).require("user")
	if err != nil {
		return reply{}, err
	}
	if err := b.executor.ClearWarns(ctx, in.GuildID, in.Member, target); err != nil {
		return reply{}, err
	}
	return reply{content: fmt.Sprintf("✅ Cleared all warnings for %s.", platform.Mention(target))}, nil
}

func purged(n int) reply {
	return reply{content: fmt.Sprintf("🧹 Deleted %d message(s).", n)}
}

func (b *Bot) handlePurge(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	amount, ok := opts.number("amount")
	if !ok {
		return reply{}, apperr.Invalid("Missing option `amount`.")
	}
	n, err := b.channels.Purge(ctx, channels.PurgeRequest{
		GuildID:   in.GuildID,
		ChannelID: in.ChannelID,
		Actor:     in.Member,
		Amount:    amount,
		UserID:    opts.text("user"),
	})
	if err != nil {
		return reply{}, err
	}
	return purged(n), nil
}

func (b *Bot) handlePurgeBots(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	n, err := b.channels.PurgeBots(ctx, in.GuildID, in.ChannelID, in.Member)
	if err != nil {
		return reply{}, err
	}
	return purged(n), nil
}

func (b *Bot) handlePurgeHumans(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	n, err := b.channels.PurgeHumans(ctx, in.GuildID, in.ChannelID, in.Member)
	if err != nil {
		return reply{}, err
	}
	return purged(n), nil
}

func (b *Bot) handlePurgeAll(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	n, err := b.channels.PurgeAll(ctx, in.GuildID, in.ChannelID, in.Member)
	if err != nil {
		return reply{}, err
	}
	return purged(n), nil
}

func (b *Bot) handleLock(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	d, err := b.channels.Lock(ctx, channels.LockRequest{
		GuildID:   in.GuildID,
		ChannelID: in.ChannelID,
		Actor:     in.Member,
		Duration:  opts.text("duration"),
		Reason:    opts.text("reason"),
	})
	if err != nil {
		return reply{}, err
	}
	if d > 0 {
		return reply{content: fmt.Sprintf("🔒 Channel locked for %s.", humanDuration(d))}, nil
	}
	return reply{content: "🔒 Channel locked."}, nil
}

func (b *Bot) handleUnlock(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	if err := b.channels.Unlock(ctx, in.GuildID, in.ChannelID, in.Member); err != nil {
		return reply{}, err
	}
	return reply{content: "🔓 Channel unlocked."}, nil
}

func (b *Bot) handleSlowmode(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	seconds, ok := commandOptions(in).number("seconds")
	if !ok {
		return reply{}, apperr.Invalid("Missing option `seconds`.")
	}
	if err := b.channels.Slowmode(ctx, in.GuildID, in.ChannelID, in.Member, seconds); err != nil {
		return reply{}, err
	}
	if seconds == 0 {
		return reply{content: "🐢 Slowmode disabled."}, nil
	}
	return reply{content: fmt.Sprintf("🐢 Slowmode set to %ds.", seconds)}, nil
}

func (b *Bot) handleRole(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	roleID, err := opts.require("role")
	if err != nil {
		return reply{}, err
	}
	switch opts.sub {
	case "add", "remove":
		target, err := opts.require("user")
		if err != nil {
			return reply{}, err
		}
		req := moderation.RoleRequest{GuildID: in.GuildID, Actor: in.Member, TargetID: target, RoleID: roleID}
		if opts.sub == "add" {
			if err := b.executor.AddRole(ctx, req); err != nil {
				return reply{}, err
			}
			return reply{content: fmt.Sprintf("✅ Gave %s to %s.", platform.RoleMention(roleID), platform.Mention(target))}, nil
		}
		if err := b.executor.RemoveRole(ctx, req); err != nil {
			return reply{}, err
		}
		return reply{content: fmt.Sprintf("✅ Removed %s from %s.", platform.RoleMention(roleID), platform.Mention(target))}, nil
	case "info":
		role, err := b.executor.RoleInfo(ctx, in.GuildID, roleID)
		if err != nil {
			return reply{}, err
		}
		return reply{embed: roleEmbed(role, b.roleMembers(in.GuildID, role.ID))}, nil
	default:
		return reply{}, apperr.Invalid("Unknown subcommand.")
	}
}

// roleMembers counts holders from the gateway state cache; -1 when unknown.
func (b *Bot) roleMembers(guildID, roleID string) int {
	if b.session == nil || b.session.State == nil {
		return -1
	}
	guild, err := b.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return -1
	}
	count := 0
	for _, member := range guild.Members {
		for _, id := range member.Roles {
			if id == roleID {
				count++
				break
			}
		}
	}
	return count
}

func roleEmbed(role *discordgo.Role, members int) *discordgo.MessageEmbed {
	count := "unknown"
	if members >= 0 {
		count = fmt.Sprint(members)
	}
	return &discordgo.MessageEmbed{
		Title: "Role: " + role.Name,
		Color: role.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "ID", Value: role.ID, Inline: true},
			{Name: "Color", Value: fmt.Sprintf("#%06X", role.Color), Inline: true},
			{Name: "Position", Value: fmt.Sprint(role.Position), Inline: true},
			{Name: "Members", Value: count, Inline: true},
			{Name: "Mentionable", Value: fmt.Sprint(role.Mentionable), Inline: true},
			{Name: "Hoisted", Value: fmt.Sprint(role.Hoist), Inline: true},
		},
	}
}

func (b *Bot) handleGiveRole(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	target, err := opts.require("user")
	if err != nil {
		return reply{}, err
	}
	roleID, err := opts.require("role")
	if err != nil {
		return reply{}, err
	}
	if err := b.executor.AddRole(ctx, moderation.RoleRequest{GuildID: in.GuildID, Actor: in.Member, TargetID: target, RoleID: roleID}); err != nil {
		return reply{}, err
	}
	return reply{content: fmt.Sprintf("✅ Gave %s to %s.", platform.RoleMention(roleID), platform.Mention(target))}, nil
}

func (b *Bot) handleGiveaway(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	if opts.sub != "create" {
		return reply{}, apperr.Invalid("Unknown subcommand.")
	}
	minutes, _ := opts.number("duration")
	winners, _ := opts.number("winners")
	record, err := b.giveaways.Start(ctx, giveaway.StartRequest{
		GuildID:   in.GuildID,
		ChannelID: in.ChannelID,
		Actor:     in.Member,
		Prize:     opts.text("prize"),
		Minutes:   minutes,
		Winners:   winners,
	})
	if err != nil {
		return reply{}, err
	}
	return reply{content: fmt.Sprintf("🎉 Giveaway for **%s** started, ending <t:%d:R>.", record.Prize, record.EndsAt.Unix())}, nil
}

func (b *Bot) handleGiveawayJoin(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	if in.Message == nil {
		return reply{}, apperr.NotFound("This giveaway has ended.")
	}
	record, err := b.giveaways.Join(ctx, in.Message.ID, in.Member.User.ID)
	if err != nil {
		return reply{}, err
	}
	return reply{content: fmt.Sprintf("🎉 You're in! Entries: %d, your chance: %s.", len(record.Participants), giveaway.WinChance(len(record.Participants), record.Winners))}, nil
}

func (b *Bot) handleTicket(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	opts := commandOptions(in)
	switch opts.sub {
	case "create":
		return reply{modal: tickets.CreateModal()}, nil
	case "panel":
		if err := b.perms.RequireModerator(in.Member); err != nil {
			return reply{}, err
		}
		if _, err := b.client.SendMessage(ctx, in.ChannelID, tickets.PanelMessage()); err != nil {
			return reply{}, apperr.Collaborator("post ticket panel", err)
		}
		return reply{content: "✅ Ticket panel posted."}, nil
	case "close":
		return b.handleTicketClose(ctx, in)
	case "claim":
		return b.handleTicketClaim(ctx, in)
	case "unclaim":
		return b.handleTicketUnclaim(ctx, in)
	case "transcript":
		return b.handleTicketTranscript(ctx, in)
	case "add", "remove":
		user, err := opts.require("user")
		if err != nil {
			return reply{}, err
		}
		if opts.sub == "add" {
			if err := b.tickets.AddParticipant(ctx, in.ChannelID, in.Member, user); err != nil {
				return reply{}, err
			}
			return reply{content: fmt.Sprintf("✅ Added %s to the ticket.", platform.Mention(user))}, nil
		}
		if err := b.tickets.RemoveParticipant(ctx, in.ChannelID, in.Member, user); err != nil {
			return reply{}, err
		}
		return reply{content: fmt.Sprintf("✅ Removed %s from the ticket.", platform.Mention(user))}, nil
	default:
		return reply{}, apperr.Invalid("Unknown subcommand.")
	}
}

func (b *Bot) handleTicketOpen(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	return reply{modal: tickets.CreateModal()}, nil
}

func (b *Bot) handleTicketPurchase(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	return b.createTicket(ctx, in, "Purchase", "")
}

func (b *Bot) handleTicketModal(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	values := modalValues(in.ModalSubmitData().Components)
	return b.createTicket(ctx, in, values[tickets.ModalSubject], values[tickets.ModalDescription])
}

func (b *Bot) createTicket(ctx context.Context, in *discordgo.InteractionCreate, subject, description string) (reply, error) {
	record, err := b.tickets.Create(ctx, tickets.CreateRequest{
		GuildID:     in.GuildID,
		Owner:       in.Member.User,
		Subject:     subject,
		Description: description,
	})
	if err != nil {
		return reply{}, err
	}
	return reply{content: "🎫 Your ticket is ready: " + platform.ChannelMention(record.ChannelID)}, nil
}

func (b *Bot) handleTicketClaim(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	if _, err := b.tickets.Claim(ctx, in.ChannelID, in.Member); err != nil {
		return reply{}, err
	}
	return reply{content: "🙋 You claimed this ticket."}, nil
}

func (b *Bot) handleTicketUnclaim(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	if _, err := b.tickets.Unclaim(ctx, in.ChannelID, in.Member); err != nil {
		return reply{}, err
	}
	return reply{content: "✅ Ticket unclaimed."}, nil
}

func (b *Bot) handleTicketClose(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	if _, err := b.tickets.Close(ctx, in.ChannelID, in.Member); err != nil {
		return reply{}, err
	}
	return reply{content: "🔒 Ticket closed."}, nil
}

func (b *Bot) handleTicketTranscript(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	file, err := b.tickets.ExportTranscript(ctx, in.ChannelID, in.Member)
	if err != nil {
		return reply{}, err
	}
	return reply{content: "📄 Transcript attached.", file: file}, nil
}

// modalValues flattens submitted text inputs by custom id. Decoded payloads
// carry pointer components; locally built ones carry values.
func modalValues(components []discordgo.MessageComponent) map[string]string {
	values := make(map[string]string)
	var walk func([]discordgo.MessageComponent)
	walk = func(list []discordgo.MessageComponent) {
		for _, c := range list {
			switch v := c.(type) {
			case *discordgo.ActionsRow:
				walk(v.Components)
			case discordgo.ActionsRow:
				walk(v.Components)
			case *discordgo.TextInput:
				values[v.CustomID] = v.Value
			case discordgo.TextInput:
				values[v.CustomID] = v.Value
			}
		}
	}
	walk(components)
	return values
}

func (b *Bot) handleModlog(ctx context.Context, in *discordgo.InteractionCreate) (reply, error) {
	if err := b.perms.RequireModerator(in.Member); err != nil {
		return reply{}, err
	}
	opts := commandOptions(in)
	if opts.sub != "report" {
		return reply{}, apperr.Invalid("Unknown subcommand.")
	}
	if b.analytics == nil {
		return reply{}, apperr.Invalid("The audit archive is not enabled.")
	}
	period := opts.text("period")
	if period == "" {
		period = "day"
	}
	since, err := analytics.PeriodStart(period, b.sched.Now())
	if err != nil {
		return reply{}, apperr.Invalid("Period must be day or week.")
	}
	report, err := b.analytics.Report(ctx, in.GuildID, since)
	if err != nil {
		return reply{}, apperr.Collaborator("read audit archive", err)
	}
	description := "No moderation activity."
	if lines := report.Lines(); len(lines) > 0 {
		description = strings.Join(lines, "\n")
	}
	return reply{embed: &discordgo.MessageEmbed{
		Title:       "Moderation report (" + period + ")",
		Description: description,
		Color:       0x3498DB,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Total", Value: fmt.Sprint(report.Total), Inline: true},
			{Name: "Since", Value: fmt.Sprintf("<t:%d:f>", report.Since.Unix()), Inline: true},
		},
	}}, nil
}
