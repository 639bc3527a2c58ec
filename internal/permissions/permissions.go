// Package permissions answers who may act on whom.
package permissions

import (
	"warden/internal/apperr"

	"github.com/bwmarrin/discordgo"
)

type Checker struct {
	owners        map[string]struct{}
	moderatorRole string
	supportRole   string
}

func NewChecker(ownerIDs []string, moderatorRoleID, supportRoleID string) *Checker {
	owners := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}
	return &Checker{owners: owners, moderatorRole: moderatorRoleID, supportRole: supportRoleID}
}

func (c *Checker) IsOwner(userID string) bool {
	_, ok := c.owners[userID]
	return ok
}

func (c *Checker) IsModerator(member *discordgo.Member) bool {
	if member == nil || member.User == nil {
		return false
	}
	return c.IsOwner(member.User.ID) || hasRole(member, c.moderatorRole)
}

func (c *Checker) IsSupport(member *discordgo.Member) bool {
	if member == nil || member.User == nil {
		return false
	}
	return c.IsOwner(member.User.ID) || hasRole(member, c.supportRole)
}

// RequireModerator rejects actors that are neither owners nor moderators.
func (c *Checker) RequireModerator(member *discordgo.Member) error {
	if !c.IsModerator(member) {
		return apperr.Unauthorized("You need the moderator role to do that.")
	}
	return nil
}

// CanTargetMember requires the actor to outrank the target by highest role
// position. Owners bypass the check; nobody else may act on an owner.
func (c *Checker) CanTargetMember(actor, target *discordgo.Member, roles []*discordgo.Role) error {
	if err := c.RequireModerator(actor); err != nil {
		return err
	}
	if c.IsOwner(actor.User.ID) {
		return nil
	}
	if target == nil || target.User == nil {
		return apperr.NotFound("That member is not in this server.")
	}
	if target.User.ID == actor.User.ID {
		return apperr.Unauthorized("You cannot do that to yourself.")
	}
	if c.IsOwner(target.User.ID) {
		return apperr.Unauthorized("You cannot act on an owner.")
	}
	positions := rolePositions(roles)
	if HighestPosition(actor, positions) <= HighestPosition(target, positions) {
		return apperr.Unauthorized("Your highest role must be above the target's highest role.")
	}
	return nil
}

// CanManageRole requires the actor's highest role to sit above role.
func (c *Checker) CanManageRole(actor *discordgo.Member, role *discordgo.Role, roles []*discordgo.Role) error {
	if err := c.RequireModerator(actor); err != nil {
		return err
	}
	if c.IsOwner(actor.User.ID) {
		return nil
	}
	if role == nil {
		return apperr.NotFound("That role does not exist.")
	}
	if HighestPosition(actor, rolePositions(roles)) <= role.Position {
		return apperr.Unauthorized("Your highest role must be above that role.")
	}
	return nil
}

// HighestPosition is the position of the member's top role, or 0 when the
// member only has @everyone.
func HighestPosition(member *discordgo.Member, positions map[string]int) int {
	highest := 0
	if member == nil {
		return highest
	}
	for _, roleID := range member.Roles {
		if pos, ok := positions[roleID]; ok && pos > highest {
			highest = pos
		}
	}
	return highest
}

func rolePositions(roles []*discordgo.Role) map[string]int {
	positions := make(map[string]int, len(roles))
	for _, role := range roles {
		if role != nil {
			positions[role.ID] = role.Position
		}
	}
	return positions
}

func hasRole(member *discordgo.Member, roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}
