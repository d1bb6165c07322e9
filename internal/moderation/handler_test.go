package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"discord-persona-bot/internal/ai"
	"discord-persona-bot/internal/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTracker struct {
	count int
	err   error
}

func (t *fakeTracker) Increment(context.Context, string) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	t.count++
	return t.count, nil
}

type fakeModerator struct {
	timeoutErr    error
	timeouts      []time.Duration
	adminMentions []string

	roleID    string
	userRoles map[string]bool
	roleAdds  int
	ensureErr error
}

func (m *fakeModerator) TimeoutUser(_ string, d time.Duration, _ string) error {
	if m.timeoutErr != nil {
		return m.timeoutErr
	}
	m.timeouts = append(m.timeouts, d)
	return nil
}

func (m *fakeModerator) EnsureRole(string) (string, error) {
	if m.ensureErr != nil {
		return "", m.ensureErr
	}
	if m.roleID == "" {
		m.roleID = "role-1"
	}
	return m.roleID, nil
}

func (m *fakeModerator) UserHasRole(userID, roleID string) (bool, error) {
	return m.userRoles[userID+"/"+roleID], nil
}

func (m *fakeModerator) AddRoleToUser(userID, roleID, _ string) error {
	if m.userRoles == nil {
		m.userRoles = make(map[string]bool)
	}
	m.userRoles[userID+"/"+roleID] = true
	m.roleAdds++
	return nil
}

func (m *fakeModerator) AdminRoleMentions() []string { return m.adminMentions }

type replyCapture struct {
	embeds []*discordgo.MessageEmbed
	err    error
}

func (r *replyCapture) reply(e *discordgo.MessageEmbed) error {
	if r.err != nil {
		return r.err
	}
	r.embeds = append(r.embeds, e)
	return nil
}

var testPersona = &models.Persona{ID: "p1", Name: "Alice"}

func newTestHandler(tracker Tracker) *Handler {
	return NewHandler(tracker, zap.NewNop())
}

func verdict(level string) ai.ToxicityResult {
	return ai.ToxicityResult{IsToxic: true, Level: level, Reason: "insult"}
}

func TestFirstViolationWarnsWithoutMute(t *testing.T) {
	mod := &fakeModerator{}
	capture := &replyCapture{}
	h := newTestHandler(&fakeTracker{})

	handled := h.HandleViolation(context.Background(), mod, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelMedium), capture.reply)

	require.True(t, handled)
	assert.Empty(t, mod.timeouts, "first offense must not mute")
	require.Len(t, capture.embeds, 1)
	assert.Equal(t, "Alice - Reminder", capture.embeds[0].Title)
	assert.Contains(t, capture.embeds[0].Description, "first reminder")
}

func TestRepeatViolationMutes(t *testing.T) {
	mod := &fakeModerator{}
	capture := &replyCapture{}
	h := newTestHandler(&fakeTracker{count: 1}) // next increment -> 2

	handled := h.HandleViolation(context.Background(), mod, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelMedium), capture.reply)

	require.True(t, handled)
	require.Len(t, mod.timeouts, 1)
	assert.Equal(t, 6*time.Minute, mod.timeouts[0])
	require.Len(t, capture.embeds, 1)
	assert.Equal(t, "Alice - Warning", capture.embeds[0].Title)
	assert.Contains(t, capture.embeds[0].Description, "6 minutes")
}

func TestSeriousViolationUsesErrorEmbedAndTagsAdmins(t *testing.T) {
	mod := &fakeModerator{adminMentions: []string{"<@&admin>"}}
	capture := &replyCapture{}
	h := newTestHandler(&fakeTracker{count: 3}) // next increment -> 4

	handled := h.HandleViolation(context.Background(), mod, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelHigh), capture.reply)

	require.True(t, handled)
	require.Len(t, capture.embeds, 1)
	assert.Equal(t, "Alice - Heavy Penalty", capture.embeds[0].Title)
	assert.Contains(t, capture.embeds[0].Description, "<@&admin>")
}

func TestNotModeratableStillRepliesAndReportsAdmins(t *testing.T) {
	mod := &fakeModerator{timeoutErr: ErrNotModeratable, adminMentions: []string{"<@&admin>"}}
	capture := &replyCapture{}
	h := newTestHandler(&fakeTracker{count: 2})

	handled := h.HandleViolation(context.Background(), mod, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelHigh), capture.reply)

	require.True(t, handled, "reply is mandatory even when the mute fails")
	assert.Empty(t, mod.timeouts)
	require.Len(t, capture.embeds, 1)
	assert.Contains(t, capture.embeds[0].Description, "Manual intervention required")
}

func TestFifthViolationAttachesToxicRoleOnce(t *testing.T) {
	mod := &fakeModerator{}
	h := newTestHandler(&fakeTracker{count: 4}) // next increment -> 5

	handled := h.HandleViolation(context.Background(), mod, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelMedium), (&replyCapture{}).reply)
	require.True(t, handled)
	assert.Equal(t, 1, mod.roleAdds)

	// sixth violation: role already attached, no duplicate grant
	handled = h.HandleViolation(context.Background(), mod, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelMedium), (&replyCapture{}).reply)
	require.True(t, handled)
	assert.Equal(t, 1, mod.roleAdds)
}

func TestRoleFailureNeverBlocksReply(t *testing.T) {
	mod := &fakeModerator{ensureErr: errors.New("missing permission")}
	capture := &replyCapture{}
	h := newTestHandler(&fakeTracker{count: 4})

	handled := h.HandleViolation(context.Background(), mod, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelMedium), capture.reply)

	require.True(t, handled)
	assert.Len(t, capture.embeds, 1)
}

func TestTrackerFailureFallsThrough(t *testing.T) {
	capture := &replyCapture{}
	h := newTestHandler(&fakeTracker{err: errors.New("db down")})

	handled := h.HandleViolation(context.Background(), &fakeModerator{}, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelMedium), capture.reply)

	assert.False(t, handled, "caller should degrade to normal handling")
	assert.Empty(t, capture.embeds)
}

func TestReplyFailureFallsThrough(t *testing.T) {
	capture := &replyCapture{err: errors.New("channel gone")}
	h := newTestHandler(&fakeTracker{})

	handled := h.HandleViolation(context.Background(), &fakeModerator{}, testPersona,
		Target{UserID: "u1", Mention: "<@u1>"}, verdict(ai.LevelMedium), capture.reply)

	assert.False(t, handled)
}
