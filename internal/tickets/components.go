package tickets

import (
	"fmt"
	"strings"
	"time"

	"warden/internal/platform"

	"github.com/bwmarrin/discordgo"
)

// Component and modal custom ids owned by tickets.
const (
	ButtonOpen       = "ticket_open"
	ButtonPurchase   = "ticket_purchase"
	ButtonClaim      = "ticket_claim"
	ButtonUnclaim    = "ticket_unclaim"
	ButtonClose      = "ticket_close"
	ButtonTranscript = "ticket_transcript"
	ModalCreate      = "ticket_modal"

	ModalSubject     = "ticket_subject"
	ModalDescription = "ticket_description"
)

const (
	colorOpen   = 0x5865F2
	colorClosed = 0xED4245
)

// PanelMessage is the public entry point with the open and purchase buttons.
func PanelMessage() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Support",
			Description: "Need help? Open a ticket and the support team will get back to you.",
			Color:       colorOpen,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Open ticket", Style: discordgo.PrimaryButton, CustomID: ButtonOpen},
				discordgo.Button{Label: "Purchase", Style: discordgo.SuccessButton, CustomID: ButtonPurchase},
			}},
		},
	}
}

// CreateModal asks for the subject and description of a new ticket.
func CreateModal() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: ModalCreate,
		Title:    "Open a ticket",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{CustomID: ModalSubject, Label: "Subject", Style: discordgo.TextInputShort, Required: true, MaxLength: 100},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{CustomID: ModalDescription, Label: "Description", Style: discordgo.TextInputParagraph, Required: false, MaxLength: 1000},
			}},
		},
	}
}

func controlPanel() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: "Ticket controls",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Claim", Style: discordgo.PrimaryButton, CustomID: ButtonClaim},
				discordgo.Button{Label: "Unclaim", Style: discordgo.SecondaryButton, CustomID: ButtonUnclaim},
				discordgo.Button{Label: "Close", Style: discordgo.DangerButton, CustomID: ButtonClose},
				discordgo.Button{Label: "Transcript", Style: discordgo.SecondaryButton, CustomID: ButtonTranscript},
			}},
		},
	}
}

func summary(record Record, description string) *discordgo.MessageSend {
	if description == "" {
		description = "No description provided."
	}
	return &discordgo.MessageSend{
		Content: platform.Mention(record.OwnerID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       record.Subject,
			Description: description,
			Color:       colorOpen,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Opened by", Value: platform.Mention(record.OwnerID), Inline: true},
				{Name: "Status", Value: string(record.Status), Inline: true},
			},
			Timestamp: record.CreatedAt.Format(time.RFC3339),
		}},
	}
}

func logEmbed(title string, record Record, actorID string, at time.Time) *discordgo.MessageSend {
	color := colorOpen
	if record.Status == StatusClosed {
		color = colorClosed
	}
	return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Ticket", Value: platform.ChannelMention(record.ChannelID), Inline: true},
			{Name: "Owner", Value: platform.Mention(record.OwnerID), Inline: true},
			{Name: "By", Value: platform.Mention(actorID), Inline: true},
			{Name: "Subject", Value: record.Subject},
		},
		Timestamp: at.Format(time.RFC3339),
	}}}
}

// Slug turns a username into something usable in a channel name.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	if slug == "" {
		return "user"
	}
	return slug
}

// RenderTranscript formats lines as one "[time] author: content" line each.
func RenderTranscript(lines []Line) string {
	var b strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&b, "[%s] %s: %s\n", line.At.UTC().Format("2006-01-02 15:04:05"), line.Author, line.Content)
	}
	return b.String()
}
