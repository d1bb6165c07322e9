package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToxicityVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ToxicityResult
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"is_toxic": true, "level": "high", "reason": "slur"}`,
			want: ToxicityResult{IsToxic: true, Level: LevelHigh, Reason: "slur"},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"is_toxic\": true, \"level\": \"medium\", \"reason\": \"insult\"}\n```",
			want: ToxicityResult{IsToxic: true, Level: LevelMedium, Reason: "insult"},
		},
		{
			name: "clean message",
			raw:  `{"is_toxic": false, "level": "low", "reason": ""}`,
			want: ToxicityResult{IsToxic: false, Level: LevelLow},
		},
		{
			name: "missing level defaults to low",
			raw:  `{"is_toxic": false, "reason": ""}`,
			want: ToxicityResult{IsToxic: false, Level: LevelLow},
		},
		{
			name:    "unknown level",
			raw:     `{"is_toxic": true, "level": "apocalyptic", "reason": "x"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     "I think this message is fine.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToxicityVerdict(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
