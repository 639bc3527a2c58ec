package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"warden/internal/apperr"
	"warden/internal/escalation"
	"warden/internal/modules/audit"
	"warden/internal/permissions"
	"warden/internal/platform/platformtest"
	"warden/internal/strikes"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const guildID = "g1"

type harness struct {
	fake   *platformtest.Fake
	exec   *Executor
	ledger *strikes.Ledger
	now    time.Time
	mod    *discordgo.Member
	owner  *discordgo.Member
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fake: platformtest.New(), now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	h.fake.GuildRoles = []*discordgo.Role{
		{ID: "mod", Name: "Moderator", Position: 5},
		{ID: "vip", Name: "VIP", Position: 2},
		{ID: "admin", Name: "Admin", Position: 9},
		{ID: "bots", Name: "Bots", Position: 3, Managed: true},
	}
	h.mod = &discordgo.Member{User: &discordgo.User{ID: "mod1"}, Roles: []string{"mod"}}
	h.owner = &discordgo.Member{User: &discordgo.User{ID: "owner"}}
	h.fake.AddMember(guildID, h.mod)
	h.fake.AddMember(guildID, h.owner)
	h.fake.AddMember(guildID, &discordgo.Member{User: &discordgo.User{ID: "u1"}})
	h.fake.AddMember(guildID, &discordgo.Member{User: &discordgo.User{ID: "u2"}})
	h.fake.AddMember(guildID, &discordgo.Member{User: &discordgo.User{ID: "boss"}, Roles: []string{"admin"}})

	clock := func() time.Time { return h.now }
	h.ledger = strikes.NewLedger(nil, clock)
	auditLogger := audit.NewLogger(nil, zap.NewNop())
	h.exec = NewExecutor(
		h.fake,
		permissions.NewChecker([]string{"owner"}, "mod", "support"),
		h.ledger,
		escalation.NewPolicy(3, 30*time.Minute),
		auditLogger,
		nil,
		zap.NewNop(),
		Options{MuteCooldown: time.Minute, DefaultMute: 10 * time.Minute, Now: clock},
	)
	return h
}

func TestMuteCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	d, err := h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)

	h.now = h.now.Add(20 * time.Second)
	_, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u2", Duration: "5m"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 40*time.Second, apperr.RetryAfter(err))
	assert.Equal(t, "You can mute again in 40s.", apperr.UserMessage(err))
	assert.Equal(t, 1, h.fake.Count("TimeoutMember"), "no timeout inside the window")

	h.now = h.now.Add(41 * time.Second)
	d, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u2", Duration: "5m"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
	assert.Equal(t, 2, h.fake.Count("TimeoutMember"))
}

func TestConcurrentMutesShareOneWindow(t *testing.T) {
	h := newHarness(t)
	h.fake.Delay["TimeoutMember"] = 50 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, target := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			_, errs[i] = h.exec.Mute(context.Background(), MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: target})
		}(i, target)
	}
	wg.Wait()

	muted := 0
	for _, err := range errs {
		if err == nil {
			muted++
			continue
		}
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}
	assert.Equal(t, 1, muted)
	assert.Equal(t, 1, h.fake.Count("TimeoutMember"))
}

func TestMuteFailureDoesNotStartCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.fake.Fail["TimeoutMember"] = true
	_, err := h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1"})
	assert.Equal(t, apperr.KindCollaborator, apperr.KindOf(err))

	h.fake.Fail["TimeoutMember"] = false
	_, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1"})
	assert.NoError(t, err)
}

func TestMuteRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plain := &discordgo.Member{User: &discordgo.User{ID: "u2"}}
	_, err := h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: plain, TargetID: "u1"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "boss"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), "target outranks the moderator")

	_, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", Duration: "forever"})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	_, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", Duration: "29d"})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))

	_, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "ghost"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.owner, TargetID: "boss"})
	assert.NoError(t, err, "owners bypass rank")
	assert.Equal(t, 1, h.fake.Count("DirectMessage"))
}

func TestUnmute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.exec.Unmute(ctx, UnmuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = h.exec.Mute(ctx, MuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1"})
	require.NoError(t, err)
	require.NoError(t, h.exec.Unmute(ctx, UnmuteRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", Reason: "appeal"}))

	last := h.fake.Timeouts[len(h.fake.Timeouts)-1]
	assert.Nil(t, last.Until)
}

func TestWarnEscalatesOnThirdStrike(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.exec.Warn(ctx, WarnRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1"})
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err), "reason is required")

	out, err := h.exec.Warn(ctx, WarnRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, Outcome{Count: 1}, out)

	out, _ = h.exec.Warn(ctx, WarnRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", Reason: "spam"})
	assert.False(t, out.AutoMuted)
	assert.Zero(t, h.fake.Count("TimeoutMember"))

	out, _ = h.exec.Warn(ctx, WarnRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", Reason: "spam"})
	assert.True(t, out.AutoMuted)
	assert.Equal(t, 30*time.Minute, out.Duration)
	require.Equal(t, 1, h.fake.Count("TimeoutMember"))
	assert.Equal(t, h.now.Add(30*time.Minute), *h.fake.Timeouts[0].Until)

	record := h.ledger.Get("u1")
	assert.Zero(t, record.Count)
	assert.Len(t, record.History, 3)
}

func TestHandleViolationSurvivesFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Fail["DeleteMessage"] = true
	h.fake.Fail["DirectMessage"] = true
	h.fake.Fail["TimeoutMember"] = true

	v := Violation{GuildID: guildID, ChannelID: "c1", MessageID: "m1", UserID: "u1", Rule: "profanity", IssuedBy: "bot"}
	h.exec.HandleViolation(ctx, v)
	h.exec.HandleViolation(ctx, v)
	out := h.exec.HandleViolation(ctx, v)

	assert.True(t, out.AutoMuted, "a failed timeout still completes the strike flow")
	record := h.ledger.Get("u1")
	assert.Zero(t, record.Count)
	require.Len(t, record.History, 3)
	assert.Equal(t, "AutoMod: profanity", record.History[0].Reason)
	assert.Equal(t, "bot", record.History[0].IssuedBy)
}

func TestWarningsAndClear(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	plain := &discordgo.Member{User: &discordgo.User{ID: "u1"}}

	_, err := h.exec.Warnings(plain, "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = h.exec.Warn(ctx, WarnRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", Reason: "spam"})
	require.NoError(t, err)

	record, err := h.exec.Warnings(plain, "")
	require.NoError(t, err)
	assert.Equal(t, 1, record.Count)

	_, err = h.exec.Warnings(plain, "u2")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(h.exec.ClearWarns(ctx, guildID, plain, "u1")))
	require.NoError(t, h.exec.ClearWarns(ctx, guildID, h.mod, "u1"))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(h.exec.ClearWarns(ctx, guildID, h.mod, "u1")))
	assert.Equal(t, strikes.Record{}, h.ledger.Get("u1"))
}

func TestRoles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.exec.AddRole(ctx, RoleRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", RoleID: "vip"}))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(h.exec.AddRole(ctx, RoleRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", RoleID: "vip"})))

	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(h.exec.AddRole(ctx, RoleRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", RoleID: "admin"})))
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(h.exec.AddRole(ctx, RoleRequest{GuildID: guildID, Actor: h.owner, TargetID: "u1", RoleID: "bots"})))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(h.exec.AddRole(ctx, RoleRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", RoleID: "nope"})))

	require.NoError(t, h.exec.RemoveRole(ctx, RoleRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", RoleID: "vip"}))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(h.exec.RemoveRole(ctx, RoleRequest{GuildID: guildID, Actor: h.mod, TargetID: "u1", RoleID: "vip"})))

	role, err := h.exec.RoleInfo(ctx, guildID, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Admin", role.Name)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30s": 30 * time.Second,
		"10m": 10 * time.Minute,
		"2h":  2 * time.Hour,
		"1d":  24 * time.Hour,
		"1H":  time.Hour,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDuration("xd")
	assert.Error(t, err)

	got, err := ParseDuration("106751d")
	require.NoError(t, err)
	assert.Positive(t, got)
	for _, in := range []string{"106752d", "213504d", "9999999999d", "-9999999999d"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, in)
	}

	_, err = muteDuration("213504d", 10*time.Minute)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}
