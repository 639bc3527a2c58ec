package platform

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord adapts a discordgo session. Reads prefer the gateway state cache
// and fall back to REST, the way the session's own helpers do.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	_ = ctx
	return d.session.ChannelMessageSendComplex(channelID, msg)
}

func (d *Discord) EditMessage(ctx context.Context, edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	_ = ctx
	return d.session.ChannelMessageEditComplex(edit)
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_ = ctx
	return d.session.ChannelMessageDelete(channelID, messageID)
}

func (d *Discord) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	_ = ctx
	return d.session.ChannelMessagesBulkDelete(channelID, messageIDs)
}

func (d *Discord) FetchMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	_ = ctx
	return d.session.ChannelMessages(channelID, limit, beforeID, "", "")
}

func (d *Discord) DirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	_ = ctx
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = d.session.ChannelMessageSendComplex(channel.ID, msg)
	return err
}

func (d *Discord) TimeoutMember(ctx context.Context, guildID, userID string, until *time.Time) error {
	_ = ctx
	return d.session.GuildMemberTimeout(guildID, userID, until)
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	_ = ctx
	if d.session.State != nil {
		if member, err := d.session.State.Member(guildID, userID); err == nil && member != nil {
			return member, nil
		}
	}
	return d.session.GuildMember(guildID, userID)
}

func (d *Discord) Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	_ = ctx
	if d.session.State != nil {
		if guild, err := d.session.State.Guild(guildID); err == nil && guild != nil && len(guild.Roles) > 0 {
			return guild.Roles, nil
		}
	}
	return d.session.GuildRoles(guildID)
}

func (d *Discord) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	_ = ctx
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *Discord) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	_ = ctx
	return d.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (d *Discord) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	_ = ctx
	if d.session.State != nil {
		if channel, err := d.session.State.Channel(channelID); err == nil && channel != nil {
			return channel, nil
		}
	}
	return d.session.Channel(channelID)
}

func (d *Discord) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	_ = ctx
	return d.session.GuildChannelCreateComplex(guildID, data)
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_ = ctx
	_, err := d.session.ChannelDelete(channelID)
	return err
}

func (d *Discord) RenameChannel(ctx context.Context, channelID, name string) error {
	_ = ctx
	_, err := d.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{Name: name})
	return err
}

func (d *Discord) SetSlowmode(ctx context.Context, channelID string, seconds int) error {
	_ = ctx
	_, err := d.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{RateLimitPerUser: &seconds})
	return err
}

func (d *Discord) SetPermission(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	_ = ctx
	return d.session.ChannelPermissionSet(channelID, targetID, targetType, allow, deny)
}

func (d *Discord) DeletePermission(ctx context.Context, channelID, targetID string) error {
	_ = ctx
	return d.session.ChannelPermissionDelete(channelID, targetID)
}
