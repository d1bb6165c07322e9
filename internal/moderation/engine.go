// Package moderation implements the progressive escalation of repeated
// content violations: first offense is a warning, repeats earn timed mutes
// that grow with severity and repeat count, and chronic offenders are tagged
// with a permanent marker role.
package moderation

import "discord-persona-bot/internal/ai"

const (
	minMuteMinutes = 2
	maxMuteMinutes = 15

	// ToxicRoleName is the permanent marker role attached at the final tier.
	ToxicRoleName = "Toxic Player"

	// toxicRoleThreshold is the violation count that triggers the marker role.
	toxicRoleThreshold = 5
)

// Decision is the punishment computed for one violation. Applying it is the
// handler's job; Decide itself has no side effects.
type Decision struct {
	Count       int
	WarnOnly    bool // first offense: no mute, polite warning
	MuteMinutes int  // 0 when WarnOnly
	Serious     bool // error-styled embed instead of warning-styled
	TagAdmins   bool // mention administrator roles in the reply
	TagToxic    bool // attach the permanent marker role
}

// levelMultiplier scales mute duration by classifier severity.
func levelMultiplier(level string) int {
	switch level {
	case ai.LevelHigh:
		return 3
	case ai.LevelMedium:
		return 2
	default:
		return 1
	}
}

// Decide maps (severity, cumulative violation count) to a punishment.
// Mute duration is levelMultiplier*2 + (count-1)*2 minutes, clamped to
// [2, 15] so it is monotonically non-decreasing in both inputs without
// growing unbounded. The progression has no terminal tier.
func Decide(level string, count int) Decision {
	d := Decision{
		Count:     count,
		Serious:   level == ai.LevelHigh || count > 2,
		TagAdmins: count > 3,
		TagToxic:  count >= toxicRoleThreshold,
	}
	if count <= 1 {
		d.WarnOnly = true
		return d
	}

	minutes := levelMultiplier(level)*2 + (count-1)*2
	if minutes < minMuteMinutes {
		minutes = minMuteMinutes
	}
	if minutes > maxMuteMinutes {
		minutes = maxMuteMinutes
	}
	d.MuteMinutes = minutes
	return d
}
