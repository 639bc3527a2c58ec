package giveaway

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"warden/internal/platform"

	"github.com/bwmarrin/discordgo"
)

// ButtonJoin is the custom id of the entry button.
const ButtonJoin = "giveaway_join"

const (
	colorRunning = 0xF1C40F
	colorEnded   = 0x95A5A6
)

// WinChance renders a single participant's odds of winning.
func WinChance(participants, winners int) string {
	switch {
	case participants <= 0:
		return "0%"
	case participants <= winners:
		return "100%"
	default:
		return fmt.Sprintf("%.1f%%", float64(winners)/float64(participants)*100)
	}
}

func remaining(d time.Duration) string {
	if d <= 0 {
		return "ending now"
	}
	return d.Round(time.Second).String()
}

func runningEmbed(record Record, now time.Time) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🎉 Giveaway",
		Description: "**" + record.Prize + "**\nPress the button below to enter.",
		Color:       colorRunning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Winners", Value: strconv.Itoa(record.Winners), Inline: true},
			{Name: "Entries", Value: strconv.Itoa(len(record.Participants)), Inline: true},
			{Name: "Win chance", Value: WinChance(len(record.Participants), record.Winners), Inline: true},
			{Name: "Time remaining", Value: remaining(record.EndsAt.Sub(now)), Inline: true},
			{Name: "Ends", Value: fmt.Sprintf("<t:%d:R>", record.EndsAt.Unix()), Inline: true},
			{Name: "Hosted by", Value: platform.Mention(record.HostID), Inline: true},
		},
		Timestamp: record.EndsAt.Format(time.RFC3339),
	}
}

func endedEmbed(record Record, winners []string) *discordgo.MessageEmbed {
	result := "No participants"
	if len(winners) > 0 {
		result = mentions(winners)
	}
	return &discordgo.MessageEmbed{
		Title:       "🎉 Giveaway ended",
		Description: "**" + record.Prize + "**",
		Color:       colorEnded,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Winners", Value: result},
			{Name: "Entries", Value: strconv.Itoa(len(record.Participants)), Inline: true},
			{Name: "Hosted by", Value: platform.Mention(record.HostID), Inline: true},
		},
		Timestamp: record.EndsAt.Format(time.RFC3339),
	}
}

func joinButton(disabled bool) []discordgo.MessageComponent {
	label := "Enter"
	if disabled {
		label = "Ended"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: label, Emoji: &discordgo.ComponentEmoji{Name: "🎉"}, Style: discordgo.PrimaryButton, CustomID: ButtonJoin, Disabled: disabled},
		}},
	}
}

func announcement(record Record, winners []string) string {
	if len(winners) == 0 {
		return fmt.Sprintf("The giveaway for **%s** ended with no participants.", record.Prize)
	}
	return fmt.Sprintf("🎉 Congratulations %s! You won **%s**.", mentions(winners), record.Prize)
}

func mentions(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = platform.Mention(id)
	}
	return strings.Join(out, ", ")
}
