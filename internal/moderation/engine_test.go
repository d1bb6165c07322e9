package moderation

import (
	"testing"

	"discord-persona-bot/internal/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideFirstOffenseWarnsOnly(t *testing.T) {
	for _, level := range []string{ai.LevelLow, ai.LevelMedium, ai.LevelHigh} {
		d := Decide(level, 1)
		assert.True(t, d.WarnOnly, "level %s", level)
		assert.Equal(t, 0, d.MuteMinutes, "level %s", level)
		assert.False(t, d.TagAdmins)
		assert.False(t, d.TagToxic)
	}
}

func TestDecideMediumEscalationSequence(t *testing.T) {
	// medium severity (multiplier 2) over five consecutive violations
	wantMinutes := map[int]int{1: 0, 2: 6, 3: 8, 4: 10, 5: 12}
	for count, want := range wantMinutes {
		d := Decide(ai.LevelMedium, count)
		assert.Equal(t, want, d.MuteMinutes, "violation #%d", count)
	}

	d := Decide(ai.LevelMedium, 5)
	assert.True(t, d.TagToxic, "marker role expected at the fifth violation")
}

func TestDecideMuteMinutesMonotonicAndClamped(t *testing.T) {
	for _, level := range []string{ai.LevelLow, ai.LevelMedium, ai.LevelHigh} {
		prev := 0
		for count := 2; count <= 50; count++ {
			d := Decide(level, count)
			require.GreaterOrEqual(t, d.MuteMinutes, prev,
				"mute must not shrink (level %s, count %d)", level, count)
			require.GreaterOrEqual(t, d.MuteMinutes, 2)
			require.LessOrEqual(t, d.MuteMinutes, 15)
			prev = d.MuteMinutes
		}
	}

	// severity monotonicity at fixed count
	assert.GreaterOrEqual(t,
		Decide(ai.LevelHigh, 2).MuteMinutes,
		Decide(ai.LevelLow, 2).MuteMinutes)
}

func TestDecideSeriousAndAdminFlags(t *testing.T) {
	tests := []struct {
		level     string
		count     int
		serious   bool
		tagAdmins bool
	}{
		{ai.LevelLow, 2, false, false},
		{ai.LevelHigh, 2, true, false},
		{ai.LevelLow, 3, true, false},
		{ai.LevelLow, 4, true, true},
		{ai.LevelHigh, 6, true, true},
	}
	for _, tt := range tests {
		d := Decide(tt.level, tt.count)
		assert.Equal(t, tt.serious, d.Serious, "serious (level %s, count %d)", tt.level, tt.count)
		assert.Equal(t, tt.tagAdmins, d.TagAdmins, "tagAdmins (level %s, count %d)", tt.level, tt.count)
	}
}

func TestDecideUnknownLevelTreatedAsLow(t *testing.T) {
	assert.Equal(t, Decide(ai.LevelLow, 3).MuteMinutes, Decide("weird", 3).MuteMinutes)
}
