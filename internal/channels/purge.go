package channels

import (
	"context"
	"fmt"
	"time"

	"warden/internal/apperr"
	"warden/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	MaxPurge = 500
	pageSize = 100
	// bulk delete refuses messages older than this
	bulkDeleteMaxAge = 14 * 24 * time.Hour
	// maxScan bounds how far back a filtered purge looks
	maxScan = 1000
)

type PurgeFilter int

const (
	FilterAll PurgeFilter = iota
	FilterUser
	FilterBots
	FilterHumans
)

func (f PurgeFilter) String() string {
	switch f {
	case FilterUser:
		return "user"
	case FilterBots:
		return "bots"
	case FilterHumans:
		return "humans"
	default:
		return "all"
	}
}

type PurgeRequest struct {
	GuildID   string
	ChannelID string
	Actor     *discordgo.Member
	Amount    int
	Filter    PurgeFilter
	UserID    string
}

// Purge implements purge(amount, user?) with amount in 1..500.
func (s *Service) Purge(ctx context.Context, req PurgeRequest) (int, error) {
	if req.Amount < 1 || req.Amount > MaxPurge {
		return 0, apperr.Invalid(fmt.Sprintf("Amount must be between 1 and %d.", MaxPurge))
	}
	if req.UserID != "" {
		req.Filter = FilterUser
	}
	scan := req.Amount
	if req.Filter != FilterAll {
		scan = maxScan
	}
	return s.purge(ctx, req, scan)
}

// PurgeBots removes bot messages among the latest 100.
func (s *Service) PurgeBots(ctx context.Context, guildID, channelID string, actor *discordgo.Member) (int, error) {
	return s.purge(ctx, PurgeRequest{GuildID: guildID, ChannelID: channelID, Actor: actor, Amount: pageSize, Filter: FilterBots}, pageSize)
}

// PurgeHumans removes non-bot messages among the latest 100.
func (s *Service) PurgeHumans(ctx context.Context, guildID, channelID string, actor *discordgo.Member) (int, error) {
	return s.purge(ctx, PurgeRequest{GuildID: guildID, ChannelID: channelID, Actor: actor, Amount: pageSize, Filter: FilterHumans}, pageSize)
}

// PurgeAll removes up to 500 of the latest messages.
func (s *Service) PurgeAll(ctx context.Context, guildID, channelID string, actor *discordgo.Member) (int, error) {
	return s.purge(ctx, PurgeRequest{GuildID: guildID, ChannelID: channelID, Actor: actor, Amount: MaxPurge, Filter: FilterAll}, MaxPurge)
}

func (s *Service) purge(ctx context.Context, req PurgeRequest, scan int) (int, error) {
	if err := s.perms.RequireModerator(req.Actor); err != nil {
		return 0, err
	}
	ids, err := s.collect(ctx, req, scan)
	if err != nil {
		s.logger.Warn("purge fetch failed", zap.String("channel_id", req.ChannelID), zap.Error(err))
		return 0, apperr.Collaborator("fetch messages", err)
	}
	if len(ids) == 0 {
		return 0, apperr.NotFound("No matching messages found.")
	}

	deleted := 0
	var lastErr error
	for start := 0; start < len(ids); start += pageSize {
		end := start + pageSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		if len(chunk) == 1 {
			err = s.client.DeleteMessage(ctx, req.ChannelID, chunk[0])
		} else {
			err = s.client.BulkDeleteMessages(ctx, req.ChannelID, chunk)
		}
		if err != nil {
			lastErr = err
			s.logger.Warn("purge delete failed", zap.String("channel_id", req.ChannelID), zap.Int("chunk", len(chunk)), zap.Error(err))
			continue
		}
		deleted += len(chunk)
	}
	if deleted == 0 {
		return 0, apperr.Collaborator("delete messages", lastErr)
	}

	detail := fmt.Sprintf("channel=%s deleted=%d filter=%s", req.ChannelID, deleted, req.Filter)
	s.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Actor.User.ID,
		TargetID: req.UserID,
		Action:   audit.ActionPurge,
		Detail:   detail,
	})
	return deleted, nil
}

// collect walks the channel newest first and returns up to req.Amount
// matching ids among the first scan messages younger than 14 days.
func (s *Service) collect(ctx context.Context, req PurgeRequest, scan int) ([]string, error) {
	cutoff := s.sched.Now().Add(-bulkDeleteMaxAge)
	var ids []string
	before := ""
	scanned := 0
	for scanned < scan && len(ids) < req.Amount {
		limit := pageSize
		if left := scan - scanned; left < limit {
			limit = left
		}
		page, err := s.client.FetchMessages(ctx, req.ChannelID, limit, before)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, msg := range page {
			scanned++
			if !msg.Timestamp.IsZero() && msg.Timestamp.Before(cutoff) {
				return ids, nil
			}
			if matches(msg, req) {
				ids = append(ids, msg.ID)
				if len(ids) == req.Amount {
					return ids, nil
				}
			}
		}
		if len(page) < limit {
			break
		}
		before = page[len(page)-1].ID
	}
	return ids, nil
}

func matches(msg *discordgo.Message, req PurgeRequest) bool {
	switch req.Filter {
	case FilterUser:
		return msg.Author != nil && msg.Author.ID == req.UserID
	case FilterBots:
		return msg.Author != nil && msg.Author.Bot
	case FilterHumans:
		return msg.Author != nil && !msg.Author.Bot
	default:
		return true
	}
}
