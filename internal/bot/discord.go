package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"discord-persona-bot/internal/moderation"

	"github.com/bwmarrin/discordgo"
)

// managementKeywords flag a role as administrative for tagging and for the
// prompt's role inventory.
var managementKeywords = []string{"admin", "staff", "mod", "helper"}

const maxInventoryRoles = 15

// guildModerator adapts a discordgo session to the moderation.Moderator
// contract for one guild.
type guildModerator struct {
	s       *discordgo.Session
	guildID string
}

func newGuildModerator(s *discordgo.Session, guildID string) *guildModerator {
	return &guildModerator{s: s, guildID: guildID}
}

func (m *guildModerator) TimeoutUser(userID string, duration time.Duration, reason string) error {
	until := time.Now().Add(duration)
	err := m.s.GuildMemberTimeout(m.guildID, userID, &until, discordgo.WithAuditLogReason(reason))
	if isMissingPermissions(err) {
		return moderation.ErrNotModeratable
	}
	return err
}

func (m *guildModerator) EnsureRole(name string) (string, error) {
	roles, err := m.guildRoles()
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if role.Name == name {
			return role.ID, nil
		}
	}
	color := 0xFF0000
	role, err := m.s.GuildRoleCreate(m.guildID, &discordgo.RoleParams{
		Name:  name,
		Color: &color,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create role %q: %w", name, err)
	}
	return role.ID, nil
}

func (m *guildModerator) UserHasRole(userID, roleID string) (bool, error) {
	member, err := m.member(userID)
	if err != nil {
		return false, err
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (m *guildModerator) AddRoleToUser(userID, roleID, reason string) error {
	return m.s.GuildMemberRoleAdd(m.guildID, userID, roleID, discordgo.WithAuditLogReason(reason))
}

func (m *guildModerator) AdminRoleMentions() []string {
	roles, err := m.guildRoles()
	if err != nil {
		return nil
	}
	var mentions []string
	for _, role := range roles {
		if isManagementRole(role.Name) {
			mentions = append(mentions, role.Mention())
		}
	}
	return mentions
}

func (m *guildModerator) guildRoles() ([]*discordgo.Role, error) {
	if guild, err := m.s.State.Guild(m.guildID); err == nil && len(guild.Roles) > 0 {
		return guild.Roles, nil
	}
	return m.s.GuildRoles(m.guildID)
}

func (m *guildModerator) member(userID string) (*discordgo.Member, error) {
	if member, err := m.s.State.Member(m.guildID, userID); err == nil {
		return member, nil
	}
	return m.s.GuildMember(m.guildID, userID)
}

func isManagementRole(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range managementKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isMissingPermissions(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeMissingPermissions
	}
	return false
}

// messageConn is the per-message Conn over a discordgo session, replying in
// reference to the triggering message.
type messageConn struct {
	s *discordgo.Session
	m *discordgo.MessageCreate
}

func (c *messageConn) Reply(embed *discordgo.MessageEmbed) error {
	_, err := c.s.ChannelMessageSendEmbedReply(c.m.ChannelID, embed, c.m.Reference())
	return err
}

func (c *messageConn) Typing() {
	// Best effort; an error here never blocks the pipeline.
	_ = c.s.ChannelTyping(c.m.ChannelID)
}

// roleInventory lists management roles as "- Name: <@&id>" lines for the
// generation prompt.
func roleInventory(s *discordgo.Session, guildID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	var lines []string
	for _, role := range guild.Roles {
		if role.Name == "@everyone" || !isManagementRole(role.Name) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", role.Name, role.Mention()))
		if len(lines) >= maxInventoryRoles {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// channelInventory lists the guild's text channels as "- name: <#id>" lines.
func channelInventory(s *discordgo.Session, guildID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	var lines []string
	for _, ch := range guild.Channels {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: <#%s>", ch.Name, ch.ID))
	}
	return strings.Join(lines, "\n")
}

// normalizeRoleMentions rewrites <@&id> tokens to @RoleName so the model sees
// readable role names.
func normalizeRoleMentions(s *discordgo.Session, m *discordgo.MessageCreate) string {
	content := m.Content
	if m.GuildID == "" || len(m.MentionRoles) == 0 {
		return content
	}
	guild, err := s.State.Guild(m.GuildID)
	if err != nil {
		return content
	}
	for _, roleID := range m.MentionRoles {
		for _, role := range guild.Roles {
			if role.ID == roleID {
				content = strings.ReplaceAll(content, "<@&"+roleID+">", "@"+role.Name)
				break
			}
		}
	}
	return content
}
