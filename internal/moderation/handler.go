package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"discord-persona-bot/internal/ai"
	"discord-persona-bot/internal/embeds"
	"discord-persona-bot/internal/models"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ErrNotModeratable is reported by a Moderator when the target sits above the
// bot in the permission hierarchy and cannot be muted.
var ErrNotModeratable = errors.New("member is not moderatable")

// Tracker is the durable per-user violation counter.
type Tracker interface {
	Increment(ctx context.Context, userID string) (int, error)
}

// Moderator is the guild-scoped Discord collaborator applying punishments.
type Moderator interface {
	TimeoutUser(userID string, duration time.Duration, reason string) error
	EnsureRole(name string) (string, error)
	UserHasRole(userID, roleID string) (bool, error)
	AddRoleToUser(userID, roleID, reason string) error
	// AdminRoleMentions lists mention strings for administrator roles,
	// empty when none are discoverable.
	AdminRoleMentions() []string
}

// Target identifies the offending user.
type Target struct {
	UserID  string
	Mention string
}

// Handler turns a toxicity verdict into the moderation reply and its
// best-effort side effects.
type Handler struct {
	tracker Tracker
	logger  *zap.Logger
}

func NewHandler(tracker Tracker, logger *zap.Logger) *Handler {
	return &Handler{tracker: tracker, logger: logger}
}

// HandleViolation escalates one detected violation. It returns true when the
// violation was answered with a moderation reply, meaning the triggering
// message must not also receive an AI answer. It returns false when
// processing failed, so the caller can degrade to normal handling instead of
// dropping the user's message. Punishment side effects (timeout, role grant)
// are best effort: their failures are logged and never block the reply.
func (h *Handler) HandleViolation(ctx context.Context, mod Moderator, persona *models.Persona, target Target, verdict ai.ToxicityResult, reply func(*discordgo.MessageEmbed) error) bool {
	count, err := h.tracker.Increment(ctx, target.UserID)
	if err != nil {
		h.logger.Error("failed to increment violation count",
			zap.String("user", target.UserID), zap.Error(err))
		return false
	}

	decision := Decide(verdict.Level, count)
	h.logger.Info("content violation",
		zap.String("user", target.UserID),
		zap.String("level", verdict.Level),
		zap.Int("count", count),
		zap.Int("mute_minutes", decision.MuteMinutes))

	name := persona.Name
	if name == "" {
		name = "Bot"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hey %s, %s found your message inappropriate.\n- **Reason:** %s\n",
		target.Mention, name, verdict.Reason)

	var embed *discordgo.MessageEmbed
	if decision.WarnOnly {
		b.WriteString("\n**This is your first reminder.** Please watch your language to avoid a chat ban!")
		embed = embeds.Warning(b.String(), persona)
		embed.Title = fmt.Sprintf("%s - Reminder", name)
	} else {
		adminTag := strings.Join(mod.AdminRoleMentions(), " ")
		muted := h.applyTimeout(mod, target, verdict, decision)

		if muted {
			fmt.Fprintf(&b, "- **Penalty:** Muted for **%d minutes** (violation #%d).\n\n",
				decision.MuteMinutes, count)
			if decision.TagAdmins && adminTag != "" {
				fmt.Fprintf(&b, "**Report:** This player is a repeat offender. %s please review.\n\n", adminTag)
			}
			b.WriteString("*Please keep this community civil!*")
		} else {
			b.WriteString("\n*Notice: you are violating the community rules.*")
			if adminTag != "" {
				fmt.Fprintf(&b, "\n\n**Admin report:** %s there is an offender %s cannot act on. Manual intervention required.",
					adminTag, name)
			}
		}

		if decision.Serious && muted {
			embed = embeds.Error(b.String(), persona)
			embed.Title = fmt.Sprintf("%s - Heavy Penalty", name)
		} else {
			embed = embeds.Warning(b.String(), persona)
			embed.Title = fmt.Sprintf("%s - Warning", name)
		}
	}

	if err := reply(embed); err != nil {
		h.logger.Error("failed to send moderation reply",
			zap.String("user", target.UserID), zap.Error(err))
		return false
	}

	if decision.TagToxic {
		h.attachToxicRole(mod, target, count)
	}
	return true
}

// applyTimeout attempts the timed mute, reporting whether it stuck.
func (h *Handler) applyTimeout(mod Moderator, target Target, verdict ai.ToxicityResult, decision Decision) bool {
	reason := fmt.Sprintf("Auto-mod: %s (violation #%d)", verdict.Reason, decision.Count)
	err := mod.TimeoutUser(target.UserID, time.Duration(decision.MuteMinutes)*time.Minute, reason)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrNotModeratable) {
		h.logger.Warn("target is not moderatable, skipping mute",
			zap.String("user", target.UserID))
	} else {
		h.logger.Error("failed to time out user",
			zap.String("user", target.UserID), zap.Error(err))
	}
	return false
}

// attachToxicRole best-effort ensures the marker role exists and is attached
// exactly once. Failures are logged and swallowed.
func (h *Handler) attachToxicRole(mod Moderator, target Target, count int) {
	roleID, err := mod.EnsureRole(ToxicRoleName)
	if err != nil {
		h.logger.Error("failed to ensure toxic marker role", zap.Error(err))
		return
	}
	has, err := mod.UserHasRole(target.UserID, roleID)
	if err != nil {
		h.logger.Error("failed to check toxic marker role",
			zap.String("user", target.UserID), zap.Error(err))
		return
	}
	if has {
		return
	}
	reason := fmt.Sprintf("Repeated violations (%d times)", count)
	if err := mod.AddRoleToUser(target.UserID, roleID, reason); err != nil {
		h.logger.Error("failed to attach toxic marker role",
			zap.String("user", target.UserID), zap.Error(err))
		return
	}
	h.logger.Info("attached toxic marker role", zap.String("user", target.UserID))
}
