// Package embeds builds the success/warning/error reply embeds, honoring
// per-persona color and footer overrides.
package embeds

import (
	"strconv"
	"strings"
	"time"

	"discord-persona-bot/internal/models"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultSuccessColor = 0x00FFD1
	defaultWarningColor = 0xFBFF00
	defaultErrorColor   = 0xFF0000

	defaultFooter = "Persona AI"
)

func base(description string, color int, persona *models.Persona) *discordgo.MessageEmbed {
	title := "Bot Helper"
	footer := defaultFooter
	if persona != nil {
		if persona.Name != "" {
			title = persona.Name
		}
		if persona.FooterText != "" {
			footer = persona.FooterText
		}
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func Success(description string, persona *models.Persona) *discordgo.MessageEmbed {
	color := defaultSuccessColor
	if persona != nil {
		color = overrideColor(persona.Colors.Success, color)
	}
	return base(description, color, persona)
}

func Warning(description string, persona *models.Persona) *discordgo.MessageEmbed {
	color := defaultWarningColor
	if persona != nil {
		color = overrideColor(persona.Colors.Warning, color)
	}
	return base("⚠️ "+description, color, persona)
}

func Error(description string, persona *models.Persona) *discordgo.MessageEmbed {
	color := defaultErrorColor
	if persona != nil {
		color = overrideColor(persona.Colors.Error, color)
	}
	return base("❌ "+description, color, persona)
}

// overrideColor parses a "#RRGGBB" persona override, falling back on any
// malformed value.
func overrideColor(hex string, fallback int) int {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return fallback
	}
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return int(v)
}
