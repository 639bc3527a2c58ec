// Package platform is the imperative surface the bot acts through. The
// discordgo session implements it in production; tests use platformtest.
package platform

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Client interface {
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	EditMessage(ctx context.Context, edit *discordgo.MessageEdit) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error
	// FetchMessages returns up to limit messages older than beforeID, newest first.
	FetchMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
	DirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error

	// TimeoutMember applies a communication restriction until the given time;
	// nil lifts it.
	TimeoutMember(ctx context.Context, guildID, userID string, until *time.Time) error
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error

	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	SetSlowmode(ctx context.Context, channelID string, seconds int) error
	SetPermission(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error
	DeletePermission(ctx context.Context, channelID, targetID string) error
}

// Mention formats a user mention.
func Mention(userID string) string { return "<@" + userID + ">" }

func ChannelMention(channelID string) string { return "<#" + channelID + ">" }

func RoleMention(roleID string) string { return "<@&" + roleID + ">" }
