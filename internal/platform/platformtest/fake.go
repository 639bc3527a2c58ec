// Package platformtest provides an in-memory platform.Client that records
// every action for assertions.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

var ErrForced = errors.New("forced failure")

type Call struct {
	Method string
	Args   []string
}

type Timeout struct {
	GuildID string
	UserID  string
	Until   *time.Time
}

type Fake struct {
	mu sync.Mutex

	seq      int
	Calls    []Call
	Sent     map[string][]*discordgo.MessageSend
	Edits    []*discordgo.MessageEdit
	DMs      map[string][]*discordgo.MessageSend
	Timeouts []Timeout
	Deleted  []string

	Members    map[string]*discordgo.Member
	GuildRoles []*discordgo.Role
	Channels   map[string]*discordgo.Channel
	// History holds channel messages newest first.
	History map[string][]*discordgo.Message

	// Fail forces the named method to return ErrForced.
	Fail map[string]bool
	// Delay makes the named method sleep before it takes the fake's lock,
	// so concurrent callers overlap inside it.
	Delay map[string]time.Duration
}

func New() *Fake {
	return &Fake{
		Sent:     make(map[string][]*discordgo.MessageSend),
		DMs:      make(map[string][]*discordgo.MessageSend),
		Members:  make(map[string]*discordgo.Member),
		Channels: make(map[string]*discordgo.Channel),
		History:  make(map[string][]*discordgo.Message),
		Fail:     make(map[string]bool),
		Delay:    make(map[string]time.Duration),
	}
}

func (f *Fake) record(method string, args ...string) error {
	f.Calls = append(f.Calls, Call{Method: method, Args: args})
	if f.Fail[method] {
		return fmt.Errorf("%s: %w", method, ErrForced)
	}
	return nil
}

func (f *Fake) wait(method string) {
	f.mu.Lock()
	d := f.Delay[method]
	f.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func (f *Fake) nextID() string {
	f.seq++
	return "fake-" + strconv.Itoa(f.seq)
}

// Count returns how many times method was called.
func (f *Fake) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.Calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

func (f *Fake) AddMember(guildID string, member *discordgo.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member.GuildID = guildID
	f.Members[member.User.ID] = member
}

func (f *Fake) AddChannel(channel *discordgo.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Channels[channel.ID] = channel
}

func (f *Fake) SentTo(channelID string) []*discordgo.MessageSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.MessageSend(nil), f.Sent[channelID]...)
}

func (f *Fake) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	f.wait("SendMessage")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SendMessage", channelID); err != nil {
		return nil, err
	}
	f.Sent[channelID] = append(f.Sent[channelID], msg)
	return &discordgo.Message{ID: f.nextID(), ChannelID: channelID, Content: msg.Content}, nil
}

func (f *Fake) EditMessage(ctx context.Context, edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	f.wait("EditMessage")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("EditMessage", edit.Channel, edit.ID); err != nil {
		return nil, err
	}
	f.Edits = append(f.Edits, edit)
	return &discordgo.Message{ID: edit.ID, ChannelID: edit.Channel}, nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.wait("DeleteMessage")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteMessage", channelID, messageID); err != nil {
		return err
	}
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *Fake) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	f.wait("BulkDeleteMessages")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("BulkDeleteMessages", append([]string{channelID}, messageIDs...)...); err != nil {
		return err
	}
	f.Deleted = append(f.Deleted, messageIDs...)
	return nil
}

func (f *Fake) FetchMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	f.wait("FetchMessages")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FetchMessages", channelID, beforeID); err != nil {
		return nil, err
	}
	history := f.History[channelID]
	start := 0
	if beforeID != "" {
		start = len(history)
		for i, msg := range history {
			if msg.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(history) {
		end = len(history)
	}
	return append([]*discordgo.Message(nil), history[start:end]...), nil
}

func (f *Fake) DirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) error {
	f.wait("DirectMessage")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DirectMessage", userID); err != nil {
		return err
	}
	f.DMs[userID] = append(f.DMs[userID], msg)
	return nil
}

func (f *Fake) TimeoutMember(ctx context.Context, guildID, userID string, until *time.Time) error {
	f.wait("TimeoutMember")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("TimeoutMember", guildID, userID); err != nil {
		return err
	}
	f.Timeouts = append(f.Timeouts, Timeout{GuildID: guildID, UserID: userID, Until: until})
	if member := f.Members[userID]; member != nil {
		member.CommunicationDisabledUntil = until
	}
	return nil
}

func (f *Fake) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	f.wait("Member")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Member", guildID, userID); err != nil {
		return nil, err
	}
	member := f.Members[userID]
	if member == nil {
		return nil, fmt.Errorf("unknown member %s", userID)
	}
	return member, nil
}

func (f *Fake) Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	f.wait("Roles")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Roles", guildID); err != nil {
		return nil, err
	}
	return f.GuildRoles, nil
}

func (f *Fake) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	f.wait("AddMemberRole")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddMemberRole", guildID, userID, roleID); err != nil {
		return err
	}
	if member := f.Members[userID]; member != nil {
		member.Roles = append(member.Roles, roleID)
	}
	return nil
}

func (f *Fake) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	f.wait("RemoveMemberRole")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RemoveMemberRole", guildID, userID, roleID); err != nil {
		return err
	}
	if member := f.Members[userID]; member != nil {
		kept := member.Roles[:0]
		for _, id := range member.Roles {
			if id != roleID {
				kept = append(kept, id)
			}
		}
		member.Roles = kept
	}
	return nil
}

func (f *Fake) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	f.wait("Channel")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Channel", channelID); err != nil {
		return nil, err
	}
	channel := f.Channels[channelID]
	if channel == nil {
		return nil, fmt.Errorf("unknown channel %s", channelID)
	}
	return channel, nil
}

func (f *Fake) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	f.wait("CreateChannel")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateChannel", guildID, data.Name); err != nil {
		return nil, err
	}
	channel := &discordgo.Channel{
		ID:                   f.nextID(),
		GuildID:              guildID,
		Name:                 data.Name,
		Type:                 data.Type,
		ParentID:             data.ParentID,
		Topic:                data.Topic,
		PermissionOverwrites: data.PermissionOverwrites,
	}
	f.Channels[channel.ID] = channel
	return channel, nil
}

func (f *Fake) DeleteChannel(ctx context.Context, channelID string) error {
	f.wait("DeleteChannel")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeleteChannel", channelID); err != nil {
		return err
	}
	delete(f.Channels, channelID)
	return nil
}

func (f *Fake) RenameChannel(ctx context.Context, channelID, name string) error {
	f.wait("RenameChannel")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RenameChannel", channelID, name); err != nil {
		return err
	}
	if channel := f.Channels[channelID]; channel != nil {
		channel.Name = name
	}
	return nil
}

func (f *Fake) SetSlowmode(ctx context.Context, channelID string, seconds int) error {
	f.wait("SetSlowmode")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetSlowmode", channelID, strconv.Itoa(seconds)); err != nil {
		return err
	}
	if channel := f.Channels[channelID]; channel != nil {
		channel.RateLimitPerUser = seconds
	}
	return nil
}

func (f *Fake) SetPermission(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	f.wait("SetPermission")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetPermission", channelID, targetID); err != nil {
		return err
	}
	channel := f.Channels[channelID]
	if channel == nil {
		return nil
	}
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.ID == targetID {
			overwrite.Allow = allow
			overwrite.Deny = deny
			return nil
		}
	}
	channel.PermissionOverwrites = append(channel.PermissionOverwrites, &discordgo.PermissionOverwrite{ID: targetID, Type: targetType, Allow: allow, Deny: deny})
	return nil
}

func (f *Fake) DeletePermission(ctx context.Context, channelID, targetID string) error {
	f.wait("DeletePermission")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DeletePermission", channelID, targetID); err != nil {
		return err
	}
	channel := f.Channels[channelID]
	if channel == nil {
		return nil
	}
	kept := channel.PermissionOverwrites[:0]
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.ID != targetID {
			kept = append(kept, overwrite)
		}
	}
	channel.PermissionOverwrites = kept
	return nil
}

// Overwrite returns the overwrite for targetID on channelID, if any.
func (f *Fake) Overwrite(channelID, targetID string) *discordgo.PermissionOverwrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel := f.Channels[channelID]
	if channel == nil {
		return nil
	}
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.ID == targetID {
			return overwrite
		}
	}
	return nil
}

// SortedDeleted returns deleted message ids in lexical order.
func (f *Fake) SortedDeleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.Deleted...)
	sort.Strings(out)
	return out
}
