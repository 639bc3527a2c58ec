package bot

import (
	"fmt"

	"warden/internal/channels"
	"warden/internal/giveaway"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func floatPtr(v float64) *float64 { return &v }

func userOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: description, Required: required}
}

func roleOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role", Required: true}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: description, Required: required}
}

func intOption(name, description string, required bool, min, max float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    required,
		MinValue:    floatPtr(min),
		MaxValue:    max,
	}
}

func subcommand(name, description string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionSubCommand, Name: name, Description: description, Options: opts}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "mute",
			Description: "Time a member out",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to mute", true),
				stringOption("duration", "Duration such as 30s, 10m, 2h or 1d", false),
				stringOption("reason", "Reason", false),
			},
		},
		{
			Name:        "unmute",
			Description: "Lift a member's timeout",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to unmute", true),
				stringOption("reason", "Reason", false),
			},
		},
		{
			Name:        "warn",
			Description: "Warn a member and record a strike",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to warn", true),
				stringOption("reason", "Reason", true),
			},
		},
		{
			Name:        "warnings",
			Description: "Show warnings for a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption("Member, yourself when empty", false)},
		},
		{
			Name:        "clearwarns",
			Description: "Clear every warning for a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption("Member", true)},
		},
		{
			Name:        "purge",
			Description: "Delete recent messages",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("amount", "How many messages", true, 1, channels.MaxPurge),
				userOption("Only messages from this member", false),
			},
		},
		{Name: "purgebots", Description: "Delete bot messages among the latest 100"},
		{Name: "purgehumans", Description: "Delete human messages among the latest 100"},
		{Name: "purgeall", Description: "Delete up to 500 recent messages"},
		{
			Name:        "lock",
			Description: "Stop @everyone from sending messages here",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("duration", "Unlock automatically after this long", false),
				stringOption("reason", "Reason", false),
			},
		},
		{Name: "unlock", Description: "Restore sending in this channel"},
		{
			Name:        "slowmode",
			Description: "Set the channel slowmode",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("seconds", "Seconds between messages, 0 to disable", true, 0, channels.MaxSlowmode),
			},
		},
		{
			Name:        "role",
			Description: "Manage member roles",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("add", "Give a role to a member", userOption("Member", true), roleOption()),
				subcommand("remove", "Take a role from a member", userOption("Member", true), roleOption()),
				subcommand("info", "Show role details", roleOption()),
			},
		},
		{
			Name:        "giverole",
			Description: "Give a role to a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption("Member", true), roleOption()},
		},
		{
			Name:        "giveaway",
			Description: "Run giveaways",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("create", "Start a giveaway in this channel",
					stringOption("prize", "What is being given away", true),
					intOption("duration", "Duration in minutes", true, giveaway.MinMinutes, giveaway.MaxMinutes),
					intOption("winners", "Number of winners", true, giveaway.MinWinners, giveaway.MaxWinners),
				),
			},
		},
		{
			Name:        "ticket",
			Description: "Support tickets",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("create", "Open a ticket"),
				subcommand("close", "Close this ticket"),
				subcommand("add", "Add a member to this ticket", userOption("Member", true)),
				subcommand("remove", "Remove a member from this ticket", userOption("Member", true)),
				subcommand("claim", "Claim this ticket"),
				subcommand("unclaim", "Release your claim on this ticket"),
				subcommand("transcript", "Export this ticket's transcript"),
				subcommand("panel", "Post the ticket panel in this channel"),
			},
		},
		{
			Name:        "modlog",
			Description: "Moderation log reports",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("report", "Count moderation actions",
					&discordgo.ApplicationCommandOption{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "period",
						Description: "day or week",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "day", Value: "day"},
							{Name: "week", Value: "week"},
						},
					},
				),
			},
		},
	}
}

// registerCommands overwrites the application's commands. A configured guild
// gets guild commands, which update instantly.
func (b *Bot) registerCommands() error {
	if b.session.State == nil || b.session.State.User == nil {
		return fmt.Errorf("register commands: session has no user")
	}
	definitions := commandDefinitions()
	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, definitions)
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.logger.Info("commands registered", zap.Int("count", len(registered)), zap.String("guild_id", b.cfg.GuildID))
	return nil
}
