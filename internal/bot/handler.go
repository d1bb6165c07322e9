// Package bot binds personas to live Discord sessions and runs the
// per-mention conversation pipeline.
package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Handler is the thin discordgo-facing layer for one persona: it normalizes
// gateway events into Inbound and hands them to the orchestrator.
type Handler struct {
	orch *Orchestrator
}

func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// OnMessageCreate is registered on the persona's session. discordgo invokes
// each handler in its own goroutine, so the pipeline never blocks the
// gateway; the memory store's mutex keeps appends consistent, with
// best-effort arrival ordering under concurrent bursts.
func (h *Handler) OnMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	self := ""
	if s.State != nil && s.State.User != nil {
		self = s.State.User.ID
	}

	ev := Inbound{
		AuthorID:        m.Author.ID,
		AuthorName:      m.Author.Username,
		AuthorIsBot:     m.Author.Bot || m.Author.ID == self,
		Content:         normalizeRoleMentions(s, m),
		MentionsPersona: mentionsUser(m, self),
		ChannelID:       m.ChannelID,
		GuildID:         m.GuildID,
	}
	if ev.MentionsPersona && m.GuildID != "" {
		ev.RoleInventory = roleInventory(s, m.GuildID)
		ev.ChannelInventory = channelInventory(s, m.GuildID)
	}

	h.orch.Process(context.Background(), ev,
		newGuildModerator(s, m.GuildID),
		&messageConn{s: s, m: m})
}

func mentionsUser(m *discordgo.MessageCreate, userID string) bool {
	if userID == "" {
		return false
	}
	for _, u := range m.Mentions {
		if u.ID == userID {
			return true
		}
	}
	return false
}
