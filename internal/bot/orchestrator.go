package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"discord-persona-bot/internal/ai"
	"discord-persona-bot/internal/embeds"
	"discord-persona-bot/internal/memory"
	"discord-persona-bot/internal/models"
	"discord-persona-bot/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Fixed user-visible strings. Failures never leak internals to the channel.
const (
	emptyMentionReply = "Hi! Did you need something?"
	genericErrorReply = "Sorry, I ran into a problem while answering. Please try again in a moment."
)

// defaultCallTimeout bounds every external call so a stalled AI or store
// call cannot hang a channel's processing.
const defaultCallTimeout = 30 * time.Second

// Classifier is the toxicity classification collaborator.
type Classifier interface {
	ClassifyToxicity(ctx context.Context, text, modelName, apiKeyOverride string) (ai.ToxicityResult, error)
}

// Generator is the text generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction, modelName, apiKeyOverride string) (string, error)
}

// ContextRetriever produces the scoped knowledge context for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, persona *models.Persona) (string, error)
}

// ViolationHandler escalates a detected violation; true means the message was
// answered by moderation and must not get an AI reply.
type ViolationHandler interface {
	HandleViolation(ctx context.Context, mod moderation.Moderator, persona *models.Persona, target moderation.Target, verdict ai.ToxicityResult, reply func(*discordgo.MessageEmbed) error) bool
}

// ChannelGate resolves which persona a channel is assigned to.
type ChannelGate interface {
	AssignedPersonaID(channelID string) (string, error)
}

// Recorder appends to the conversation audit trail.
type Recorder interface {
	LogConversation(entry *models.ConversationLog) error
}

// Conn is the per-message outbound surface toward Discord.
type Conn interface {
	Reply(embed *discordgo.MessageEmbed) error
	Typing()
}

// Inbound is one gateway message event, normalized by the transport layer.
type Inbound struct {
	AuthorID        string
	AuthorName      string
	AuthorIsBot     bool
	Content         string // role mentions already normalized to @Name
	MentionsPersona bool
	ChannelID       string
	GuildID         string

	// Prompt inventories resolved by the transport layer, may be empty.
	RoleInventory    string
	ChannelInventory string
}

// Orchestrator runs the per-mention pipeline for one persona: memory append,
// channel gate, toxicity check, moderation escalation, scoped retrieval,
// generation, reply and audit logging.
type Orchestrator struct {
	persona     *models.Persona
	selfID      string
	classifier  Classifier
	retriever   ContextRetriever
	generator   Generator
	violations  ViolationHandler
	gate        ChannelGate
	memory      *memory.Store
	recorder    Recorder
	logger      *zap.Logger
	callTimeout time.Duration
}

func NewOrchestrator(persona *models.Persona, classifier Classifier, retriever ContextRetriever, generator Generator, violations ViolationHandler, gate ChannelGate, mem *memory.Store, recorder Recorder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		persona:     persona,
		classifier:  classifier,
		retriever:   retriever,
		generator:   generator,
		violations:  violations,
		gate:        gate,
		memory:      mem,
		recorder:    recorder,
		logger:      logger,
		callTimeout: defaultCallTimeout,
	}
}

// SetSelfID records the connected bot user id, needed to strip mention
// tokens from message content.
func (o *Orchestrator) SetSelfID(id string) { o.selfID = id }

// Process handles one inbound message end to end. It never panics through to
// the gateway; any external failure ends in the fixed friendly error reply.
func (o *Orchestrator) Process(ctx context.Context, ev Inbound, mod moderation.Moderator, conn Conn) {
	if ev.AuthorIsBot {
		return
	}

	// Context memory grows on every human message, mentioned or not, so
	// later mentions see the surrounding conversation.
	o.memory.Append(ev.ChannelID, ev.AuthorName, ev.Content)

	assigned, err := o.gate.AssignedPersonaID(ev.ChannelID)
	if err != nil {
		o.logger.Error("channel assignment lookup failed",
			zap.String("channel", ev.ChannelID), zap.Error(err))
		return
	}
	if assigned != o.persona.ID {
		return
	}

	if !ev.MentionsPersona {
		return
	}

	question := o.stripMentions(ev.Content)
	if question == "" {
		if err := conn.Reply(embeds.Success(emptyMentionReply, o.persona)); err != nil {
			o.logger.Error("failed to send empty-mention reply", zap.Error(err))
		}
		return
	}

	verdict, err := o.classify(ctx, question)
	if err != nil {
		o.logger.Error("toxicity classification failed", zap.Error(err))
		o.replyError(conn)
		return
	}
	if verdict.IsToxic {
		target := moderation.Target{UserID: ev.AuthorID, Mention: "<@" + ev.AuthorID + ">"}
		if o.violations.HandleViolation(ctx, mod, o.persona, target, verdict, conn.Reply) {
			return
		}
		// Moderation could not complete; degrade to a normal answer
		// rather than dropping the user's message.
	}

	conn.Typing()

	knowledgeCtx, err := o.retrieve(ctx, question)
	if err != nil {
		o.logger.Error("knowledge retrieval failed", zap.Error(err))
		o.replyError(conn)
		return
	}

	prompt := o.buildPrompt(ev, question, knowledgeCtx)
	answer, err := o.generate(ctx, prompt)
	if err != nil {
		o.logger.Error("generation failed", zap.Error(err))
		o.replyError(conn)
		return
	}

	if err := conn.Reply(embeds.Success(answer, o.persona)); err != nil {
		o.logger.Error("failed to send reply", zap.Error(err))
		return
	}

	o.memory.Append(ev.ChannelID, o.persona.Name, answer)
	if err := o.recorder.LogConversation(&models.ConversationLog{
		PersonaID: o.persona.ID,
		Username:  ev.AuthorName,
		UserID:    ev.AuthorID,
		ChannelID: ev.ChannelID,
		Message:   question,
		Response:  answer,
		Timestamp: time.Now(),
	}); err != nil {
		o.logger.Error("failed to log conversation", zap.Error(err))
	}
}

func (o *Orchestrator) classify(ctx context.Context, text string) (ai.ToxicityResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.classifier.ClassifyToxicity(ctx, text, o.persona.ModelName, o.persona.APIKey)
}

func (o *Orchestrator) retrieve(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.retriever.Retrieve(ctx, query, o.persona)
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.generator.Generate(ctx, prompt, o.persona.SystemInstruction, o.persona.ModelName, o.persona.APIKey)
}

func (o *Orchestrator) replyError(conn Conn) {
	if err := conn.Reply(embeds.Error(genericErrorReply, o.persona)); err != nil {
		o.logger.Error("failed to send error reply", zap.Error(err))
	}
}

func (o *Orchestrator) stripMentions(content string) string {
	content = strings.ReplaceAll(content, "<@"+o.selfID+">", "")
	content = strings.ReplaceAll(content, "<@!"+o.selfID+">", "")
	return strings.TrimSpace(content)
}

func (o *Orchestrator) buildPrompt(ev Inbound, question, knowledgeCtx string) string {
	var b strings.Builder

	b.WriteString("Supporting material from the server knowledge base:\n")
	b.WriteString(knowledgeCtx)
	b.WriteString("\n\n")

	if conversation := o.memory.Context(ev.ChannelID); conversation != "" {
		b.WriteString("Recent channel conversation:\n")
		b.WriteString(conversation)
		b.WriteString("\n\n")
	}
	if ev.RoleInventory != "" {
		b.WriteString("Management roles you may reference by mention:\n")
		b.WriteString(ev.RoleInventory)
		b.WriteString("\n\n")
	}
	if ev.ChannelInventory != "" {
		b.WriteString("Server channels you may reference:\n")
		b.WriteString(ev.ChannelInventory)
		b.WriteString("\n\n")
	}

	b.WriteString("Answer the player's question using the material above. ")
	b.WriteString("Format lists and headings cleanly with Discord Markdown; the answer is shown inside an embed.\n\n")
	fmt.Fprintf(&b, "Question from %s:\n%s", ev.AuthorName, question)
	return b.String()
}
