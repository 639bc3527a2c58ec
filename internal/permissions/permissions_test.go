package permissions

import (
	"testing"

	"warden/internal/apperr"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

var testRoles = []*discordgo.Role{
	{ID: "mod", Position: 5},
	{ID: "senior", Position: 8},
	{ID: "support", Position: 3},
	{ID: "member", Position: 1},
}

func member(id string, roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id}, Roles: roles}
}

func TestModeratorAndSupport(t *testing.T) {
	c := NewChecker([]string{"owner"}, "mod", "support")

	assert.True(t, c.IsModerator(member("owner")))
	assert.True(t, c.IsModerator(member("m", "mod")))
	assert.False(t, c.IsModerator(member("s", "support")))
	assert.True(t, c.IsSupport(member("s", "support")))
	assert.False(t, c.IsSupport(member("x", "member")))
	assert.False(t, c.IsModerator(nil))
}

func TestCanTargetMember(t *testing.T) {
	c := NewChecker([]string{"owner"}, "mod", "support")

	err := c.CanTargetMember(member("x", "member"), member("y"), testRoles)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	assert.NoError(t, c.CanTargetMember(member("m", "mod"), member("y", "member"), testRoles))

	err = c.CanTargetMember(member("m", "mod"), member("s", "senior"), testRoles)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), "target outranks actor")

	err = c.CanTargetMember(member("m", "mod"), member("m2", "mod"), testRoles)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err), "equal rank is not enough")

	err = c.CanTargetMember(member("m", "senior", "mod"), member("owner"), testRoles)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	assert.NoError(t, c.CanTargetMember(member("owner"), member("s", "senior"), testRoles), "owners bypass rank")
}

func TestCanManageRole(t *testing.T) {
	c := NewChecker([]string{"owner"}, "mod", "")

	assert.NoError(t, c.CanManageRole(member("m", "mod"), testRoles[2], testRoles))
	assert.Error(t, c.CanManageRole(member("m", "mod"), testRoles[1], testRoles))
	assert.Error(t, c.CanManageRole(member("m", "mod"), testRoles[0], testRoles))
	assert.NoError(t, c.CanManageRole(member("owner"), testRoles[1], testRoles))
}
