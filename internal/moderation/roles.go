package moderation

import (
	"context"
	"fmt"

	"warden/internal/apperr"
	"warden/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type RoleRequest struct {
	GuildID  string
	Actor    *discordgo.Member
	TargetID string
	RoleID   string
}

// AddRole grants a role. Actors must outrank the role itself.
func (e *Executor) AddRole(ctx context.Context, req RoleRequest) error {
	target, role, err := e.roleTarget(ctx, req)
	if err != nil {
		return err
	}
	if hasRole(target, role.ID) {
		return apperr.Conflict("That member already has the role.")
	}
	if err := e.client.AddMemberRole(ctx, req.GuildID, req.TargetID, role.ID); err != nil {
		e.logger.Warn("role add failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.String("role_id", role.ID), zap.Error(err))
		return apperr.Collaborator("add role", err)
	}
	e.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Actor.User.ID,
		TargetID: req.TargetID,
		Action:   audit.ActionRoleAdd,
		Detail:   fmt.Sprintf("role=%s", role.Name),
	})
	return nil
}

func (e *Executor) RemoveRole(ctx context.Context, req RoleRequest) error {
	target, role, err := e.roleTarget(ctx, req)
	if err != nil {
		return err
	}
	if !hasRole(target, role.ID) {
		return apperr.Conflict("That member does not have the role.")
	}
	if err := e.client.RemoveMemberRole(ctx, req.GuildID, req.TargetID, role.ID); err != nil {
		e.logger.Warn("role remove failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.String("role_id", role.ID), zap.Error(err))
		return apperr.Collaborator("remove role", err)
	}
	e.audit.Log(ctx, audit.Entry{
		GuildID:  req.GuildID,
		ActorID:  req.Actor.User.ID,
		TargetID: req.TargetID,
		Action:   audit.ActionRoleRemove,
		Detail:   fmt.Sprintf("role=%s", role.Name),
	})
	return nil
}

// RoleInfo looks a role up by id. It needs no authority.
func (e *Executor) RoleInfo(ctx context.Context, guildID, roleID string) (*discordgo.Role, error) {
	roles, err := e.client.Roles(ctx, guildID)
	if err != nil {
		e.logger.Warn("roles lookup failed", zap.String("guild_id", guildID), zap.Error(err))
		return nil, apperr.Collaborator("list roles", err)
	}
	role := findRole(roles, roleID)
	if role == nil {
		return nil, apperr.NotFound("That role does not exist.")
	}
	return role, nil
}

func (e *Executor) roleTarget(ctx context.Context, req RoleRequest) (*discordgo.Member, *discordgo.Role, error) {
	if err := e.perms.RequireModerator(req.Actor); err != nil {
		return nil, nil, err
	}
	if req.RoleID == req.GuildID {
		return nil, nil, apperr.Invalid("The @everyone role cannot be assigned.")
	}
	roles, err := e.client.Roles(ctx, req.GuildID)
	if err != nil {
		e.logger.Warn("roles lookup failed", zap.String("guild_id", req.GuildID), zap.Error(err))
		return nil, nil, apperr.Collaborator("list roles", err)
	}
	role := findRole(roles, req.RoleID)
	if role == nil {
		return nil, nil, apperr.NotFound("That role does not exist.")
	}
	if role.Managed {
		return nil, nil, apperr.Invalid("That role is managed by an integration.")
	}
	if err := e.perms.CanManageRole(req.Actor, role, roles); err != nil {
		return nil, nil, err
	}
	target, err := e.client.Member(ctx, req.GuildID, req.TargetID)
	if err != nil {
		e.logger.Debug("member lookup failed", zap.String("guild_id", req.GuildID), zap.String("user_id", req.TargetID), zap.Error(err))
		return nil, nil, apperr.NotFound("That member is not in this server.")
	}
	return target, role, nil
}

func findRole(roles []*discordgo.Role, roleID string) *discordgo.Role {
	for _, role := range roles {
		if role != nil && role.ID == roleID {
			return role
		}
	}
	return nil
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}
