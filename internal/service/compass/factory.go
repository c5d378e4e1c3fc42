package compass

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog/log"

	"github.com/unycompass/chatbot-gateway/internal/config"
	"github.com/unycompass/chatbot-gateway/internal/service/chatbot"
)

// ErrNoKnowledge reports a knowledge database without chunks.
var ErrNoKnowledge = errors.New("database not found or empty, run the web crawler first")

// NewFactory returns the startup factory that opens the knowledge database
// and binds an advisor bot backed by the configured chat model to it.
func NewFactory(cfg *config.Config) chatbot.Factory {
	return func(ctx context.Context) (chatbot.Bot, error) {
		var embedder embedding.Embedder
		if cfg.AI.EmbeddingEnabled() {
			e, err := cfg.AI.NewEmbedder(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to create embedder: %w", err)
			}
			embedder = e
		} else {
			log.Warn().Msg("ARK_EMBEDDING_MODEL not configured, knowledge search uses keywords only")
		}

		db, err := OpenDatabase(ctx, DatabaseConfig{
			DocsDir:        cfg.Compass.DocsDir,
			Path:           cfg.Compass.DBPath,
			MinScore:       cfg.Compass.MinScore,
			Reindex:        cfg.Compass.Reindex,
			Embedder:       embedder,
			EmbeddingModel: cfg.AI.EmbeddingModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open knowledge database: %w", err)
		}

		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}

		bot, err := NewBot(ctx, db, chatModel, BotConfig{
			TopK:         cfg.Compass.TopK,
			HistoryLimit: cfg.Compass.HistoryLimit,
			MaxSessions:  cfg.Compass.MaxSessions,
			SessionTTL:   cfg.Compass.SessionTTL,
		})
		if err != nil {
			db.Close()
			return nil, err
		}
		return bot, nil
	}
}

// RequireKnowledge wraps factory so that a bot with an empty knowledge
// database counts as a failed initialization.
func RequireKnowledge(factory chatbot.Factory) chatbot.Factory {
	return func(ctx context.Context) (chatbot.Bot, error) {
		bot, err := factory(ctx)
		if err != nil {
			return nil, err
		}

		sized, ok := bot.(interface{ KnowledgeSize() int })
		if !ok || sized.KnowledgeSize() != 0 {
			return bot, nil
		}

		if c, ok := bot.(interface{ Close() error }); ok {
			c.Close()
		}
		return nil, ErrNoKnowledge
	}
}
