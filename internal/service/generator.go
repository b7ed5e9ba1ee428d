package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lgscvb/Brain-sub000/internal/errs"
	"github.com/lgscvb/Brain-sub000/internal/knowledge"
	"github.com/lgscvb/Brain-sub000/internal/llm"
	"github.com/lgscvb/Brain-sub000/internal/models"
	"github.com/lgscvb/Brain-sub000/internal/repository"
	"github.com/lgscvb/Brain-sub000/internal/router"
)

// InvokerSource resolves a model tier to an invoker. Satisfied by
// llm.Registry.
type InvokerSource interface {
	Invoker(tier string) (llm.Invoker, error)
}

// KnowledgeSearcher is the opaque knowledge lookup the generator consumes.
// Satisfied by knowledge.Client.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.Chunk, error)
}

// Generator produces reply drafts. A message has at most one live draft;
// generating again replaces it, and is rejected once refinement history
// exists.
type Generator struct {
	messages    repository.MessageRepository
	drafts      repository.DraftRepository
	invokers    InvokerSource
	kb          KnowledgeSearcher
	routing     router.Config
	searchLimit int
	timeout     time.Duration
	logger      *zap.Logger
}

func NewGenerator(
	messages repository.MessageRepository,
	drafts repository.DraftRepository,
	invokers InvokerSource,
	kb KnowledgeSearcher,
	routing router.Config,
	searchLimit int,
	timeout time.Duration,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		messages:    messages,
		drafts:      drafts,
		invokers:    invokers,
		kb:          kb,
		routing:     routing,
		searchLimit: searchLimit,
		timeout:     timeout,
		logger:      logger,
	}
}

// Route exposes the routing decision for a message without side effects.
// The sender's message count stands in for conversation length; a failed
// count just loses that signal.
func (g *Generator) Route(msg *models.Message) router.Decision {
	history, err := g.messages.CountBySender(msg.Sender)
	if err != nil {
		g.logger.Warn("History count failed", zap.String("sender", msg.Sender), zap.Error(err))
		history = 0
	}
	return router.Route(g.routing, router.Input{Content: msg.Content, HistoryLength: history})
}

// Generate creates (or regenerates) the draft for a message.
func (g *Generator) Generate(ctx context.Context, messageID int64) (*models.Draft, error) {
	msg, err := g.messages.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if msg.Status == models.MessageStatusArchived {
		return nil, errs.New(errs.KindConflict, "message is archived")
	}

	decision := g.Route(msg)

	// Knowledge lookup is best effort: a failed retrieval degrades the
	// draft, it must not block it.
	var chunks []knowledge.Chunk
	if g.kb != nil {
		chunks, err = g.kb.Search(ctx, msg.Content, g.searchLimit)
		if err != nil {
			g.logger.Warn("Knowledge lookup failed, generating without context",
				zap.Int64("message_id", messageID),
				zap.Error(err))
			chunks = nil
		}
	}

	invoker, err := g.invokers.Invoker(decision.Tier)
	if err != nil {
		return nil, errs.Wrap(errs.KindGenerationFailed, "no model available", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := invoker.Complete(callCtx, DraftSystemInstruction, BuildDraftPrompt(msg.Content, chunks))
	if err != nil {
		g.logger.Error("Draft generation failed",
			zap.Int64("message_id", messageID),
			zap.String("tier", decision.Tier),
			zap.Error(err))
		return nil, errs.Wrap(errs.KindGenerationFailed, "model invocation failed", err)
	}

	content := parseSection(raw, "Reply:", "Strategy:")
	strategy := parseSection(raw, "Strategy:", "Reply:")
	if content == "" {
		// Model ignored the format; use the whole answer rather than
		// failing, but an empty answer is still a failure.
		content = normalizeContent(raw)
	}
	if content == "" {
		return nil, errs.New(errs.KindGenerationFailed, "model returned an empty draft")
	}

	draft := &models.Draft{
		MessageID: messageID,
		Content:   content,
		Strategy:  strategy,
		ModelTier: decision.Tier,
		Provider:  decision.Provider,
		ModelID:   decision.ModelID,
	}

	if err := g.drafts.ReplaceCurrent(draft); err != nil {
		return nil, err
	}

	g.logger.Info("Draft generated",
		zap.Int64("message_id", messageID),
		zap.Int64("draft_id", draft.ID),
		zap.String("tier", decision.Tier),
		zap.String("model", decision.ModelID))

	return draft, nil
}
