package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// RAG scoping modes for a persona.
const (
	RagModeGlobal   = "global"
	RagModeIsolated = "isolated"
	RagModeHybrid   = "hybrid"
)

// EmbedColors carries per-persona embed color overrides (hex strings).
type EmbedColors struct {
	Success string `gorm:"column:color_success"`
	Warning string `gorm:"column:color_warning"`
	Error   string `gorm:"column:color_error"`
}

// Persona is one independently configured bot identity bound to a Discord
// application token.
type Persona struct {
	ID                string `gorm:"primaryKey"`
	Name              string `gorm:"not null"`
	Token             string `gorm:"not null"`
	ModelName         string `gorm:"default:gemini-2.5-flash"`
	APIKey            string // per-persona Gemini key; empty falls back to the default key
	SystemInstruction string `gorm:"type:text"`
	RagMode           string `gorm:"default:global"`
	IsActive          bool   `gorm:"default:true"`
	FooterText        string
	Colors            EmbedColors `gorm:"embedded"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ChannelAssignment binds a Discord channel to the persona allowed to answer
// in it. A persona ignores mentions in channels not assigned to it.
type ChannelAssignment struct {
	ID        uint   `gorm:"primaryKey"`
	ChannelID string `gorm:"uniqueIndex;not null"`
	GuildID   string `gorm:"not null"`
	Name      string
	PersonaID string `gorm:"index"`
	IsActive  bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KnowledgeEntry is one embedded, searchable text chunk with ownership and
// visibility metadata. Vector and metadata live in a single row so a write is
// all-or-nothing. Entries are never mutated in place: edits delete+recreate.
type KnowledgeEntry struct {
	ID         string `gorm:"primaryKey"`
	Title      string
	Content    string          `gorm:"type:text;not null"`
	OwnerBotID string          `gorm:"index"` // empty means no exclusive owner
	IsGlobal   bool            `gorm:"index;default:false"`
	Embedding  pgvector.Vector `gorm:"type:vector(3072)"` // gemini-embedding-001 size
	CreatedAt  time.Time
}

// ViolationRecord is the per-user moderation counter. Count only moves
// through Database.IncrementViolation; it is never decremented, though an
// optional decay window may reset it after a quiet period.
type ViolationRecord struct {
	UserID          string `gorm:"primaryKey"`
	Count           int    `gorm:"not null;default:0"`
	LastViolationAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ConversationLog is the append-only audit trail of answered mentions.
// Written by the orchestrator, never read by core logic.
type ConversationLog struct {
	ID        uint   `gorm:"primaryKey"`
	PersonaID string `gorm:"index"`
	Username  string
	UserID    string `gorm:"index"`
	ChannelID string
	Message   string    `gorm:"type:text"`
	Response  string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"not null"`
	CreatedAt time.Time
}
