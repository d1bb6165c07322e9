// Package memory keeps the rolling per-channel conversation context used to
// ground generation. State is ephemeral: idle channels are evicted after a
// TTL by a lazy check on access plus a periodic sweep.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long an idle channel's context survives.
	DefaultTTL = 30 * time.Minute
	// maxMessages caps the rolling window per channel.
	maxMessages = 20
)

type entry struct {
	speaker string
	content string
	at      time.Time
}

type channelMemory struct {
	messages     []entry
	lastActivity time.Time
}

// Store holds the rolling context for every active channel. A single mutex
// serializes appends and reads, so messages land in arrival order.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	channels map[string]*channelMemory
	logger   *zap.Logger
	now      func() time.Time
}

func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:      ttl,
		channels: make(map[string]*channelMemory),
		logger:   logger,
		now:      time.Now,
	}
}

// Append records one message in a channel's rolling window.
func (s *Store) Append(channelID, speaker, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	mem, ok := s.channels[channelID]
	if !ok || now.Sub(mem.lastActivity) > s.ttl {
		mem = &channelMemory{}
		s.channels[channelID] = mem
	}
	mem.lastActivity = now
	mem.messages = append(mem.messages, entry{speaker: speaker, content: content, at: now})
	if len(mem.messages) > maxMessages {
		mem.messages = mem.messages[len(mem.messages)-maxMessages:]
	}
}

// Context returns the channel's recent conversation as "speaker: content"
// lines, oldest first. Expired or unknown channels yield "".
func (s *Store) Context(channelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.channels[channelID]
	if !ok {
		return ""
	}
	now := s.now()
	if now.Sub(mem.lastActivity) > s.ttl {
		delete(s.channels, channelID)
		return ""
	}

	var lines []string
	for _, m := range mem.messages {
		if now.Sub(m.at) > s.ttl {
			continue
		}
		lines = append(lines, m.speaker+": "+m.content)
	}
	return strings.Join(lines, "\n")
}

// Clear drops a channel's context.
func (s *Store) Clear(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
}

// StartSweeper evicts idle channels periodically until ctx is cancelled.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, mem := range s.channels {
		if now.Sub(mem.lastActivity) > s.ttl {
			delete(s.channels, id)
			s.logger.Debug("channel memory expired", zap.String("channel", id))
		}
	}
}
