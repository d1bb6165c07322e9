package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"discord-persona-bot/internal/ai"
	"discord-persona-bot/internal/database"
	"discord-persona-bot/internal/memory"
	"discord-persona-bot/internal/models"
	"discord-persona-bot/internal/moderation"
	"discord-persona-bot/internal/rag"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Registry tracks the live Discord session of every active persona and
// starts/stops them as configuration changes.
type Registry struct {
	db         *database.DB
	aiService  *ai.AIService
	retriever  *rag.Retriever
	violations *moderation.Handler
	memory     *memory.Store
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*discordgo.Session // persona id -> connected session
}

func NewRegistry(db *database.DB, aiService *ai.AIService, retriever *rag.Retriever, violations *moderation.Handler, mem *memory.Store, logger *zap.Logger) *Registry {
	return &Registry{
		db:         db,
		aiService:  aiService,
		retriever:  retriever,
		violations: violations,
		memory:     mem,
		logger:     logger,
		sessions:   make(map[string]*discordgo.Session),
	}
}

// StartAll connects every active persona. A persona that fails to connect is
// logged and skipped; the rest still come up.
func (r *Registry) StartAll() error {
	personas, err := r.db.ActivePersonas()
	if err != nil {
		return fmt.Errorf("failed to load active personas: %w", err)
	}
	r.logger.Info("starting personas", zap.Int("count", len(personas)))

	for i := range personas {
		if err := r.StartPersona(&personas[i]); err != nil {
			r.logger.Error("failed to start persona",
				zap.String("persona", personas[i].Name), zap.Error(err))
		}
	}
	return nil
}

// StartPersona opens a Discord session for one persona. Starting an already
// running persona is a no-op.
func (r *Registry) StartPersona(persona *models.Persona) error {
	r.mu.Lock()
	if _, running := r.sessions[persona.ID]; running {
		r.mu.Unlock()
		r.logger.Warn("persona already running", zap.String("persona", persona.Name))
		return nil
	}
	r.mu.Unlock()

	session, err := discordgo.New("Bot " + persona.Token)
	if err != nil {
		return fmt.Errorf("failed to create session for %s: %w", persona.Name, err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	orch := NewOrchestrator(persona, r.aiService, r.retriever, r.aiService,
		r.violations, r.db, r.memory, r.db, r.logger.With(zap.String("persona", persona.Name)))
	handler := NewHandler(orch)

	session.AddHandler(handler.OnMessageCreate)
	session.AddHandlerOnce(func(s *discordgo.Session, ready *discordgo.Ready) {
		orch.SetSelfID(ready.User.ID)
		r.logger.Info("persona connected",
			zap.String("persona", persona.Name),
			zap.String("user", ready.User.Username))
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to connect %s: %w", persona.Name, err)
	}

	r.mu.Lock()
	r.sessions[persona.ID] = session
	r.mu.Unlock()
	return nil
}

// StopPersona disconnects one persona's session. Unknown ids are ignored.
func (r *Registry) StopPersona(personaID string) {
	r.mu.Lock()
	session, ok := r.sessions[personaID]
	if ok {
		delete(r.sessions, personaID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := session.Close(); err != nil {
		r.logger.Error("failed to close session",
			zap.String("persona", personaID), zap.Error(err))
	}
	r.logger.Info("persona stopped", zap.String("persona", personaID))
}

// StopAll disconnects every running persona.
func (r *Registry) StopAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.StopPersona(id)
	}
}

// Running reports whether a persona currently holds a session.
func (r *Registry) Running(personaID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[personaID]
	return ok
}

// ViolationTracker adapts the database counter to the moderation.Tracker
// contract, carrying the configured decay window.
type ViolationTracker struct {
	DB    *database.DB
	Decay time.Duration
}

func (t *ViolationTracker) Increment(ctx context.Context, userID string) (int, error) {
	return t.DB.IncrementViolation(ctx, userID, t.Decay)
}
