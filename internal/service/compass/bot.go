package compass

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	chatbotModel "github.com/unycompass/chatbot-gateway/internal/model/chatbot"
)

// Searcher retrieves knowledge snippets for a question.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) []string
}

// BotConfig tunes retrieval and memory.
type BotConfig struct {
	TopK         int
	HistoryLimit int
	// MaxSessions and SessionTTL bound the remembered conversations.
	MaxSessions int
	SessionTTL  time.Duration
}

// Bot is the Hunter College advisor: it retrieves knowledge, picks a prompt
// for the kind of question asked and keeps per-session conversation memory.
type Bot struct {
	searcher Searcher
	chain    compose.Runnable[map[string]any, *schema.Message]
	memories *Memories
	topK     int
	now      func() time.Time
}

// NewBot compiles the prompt chain around chatModel.
func NewBot(ctx context.Context, searcher Searcher, chatModel model.ChatModel, cfg BotConfig) (*Bot, error) {
	if searcher == nil {
		return nil, errors.New("knowledge searcher is required")
	}
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if cfg.TopK < 1 {
		cfg.TopK = 8
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile advisor chain: %w", err)
	}

	return &Bot{
		searcher: searcher,
		chain:    runnable,
		memories: NewMemories(cfg.HistoryLimit, cfg.MaxSessions, cfg.SessionTTL),
		topK:     cfg.TopK,
		now:      time.Now,
	}, nil
}

// AnswerQuestion answers question within the memory of session. Questions in
// the same session are answered one at a time.
func (b *Bot) AnswerQuestion(ctx context.Context, question string, session chatbotModel.SessionID) (string, error) {
	chunks := b.searcher.Search(ctx, question, b.topK)
	knowledge := "Limited information available."
	if len(chunks) > 0 {
		knowledge = strings.Join(chunks, "\n\n")
	}

	qtype := DetectQuestionType(question)

	var (
		answer   string
		exchange Exchange
		err      error
	)
	b.memories.With(session.Key(), func(mem *Memory) {
		system := buildSystemPrompt(qtype, knowledge, mem.Context())

		var msg *schema.Message
		msg, err = b.chain.Invoke(ctx, map[string]any{
			"system": system,
			"query":  question,
		})
		if err != nil {
			err = fmt.Errorf("failed to run advisor chain: %w", err)
			return
		}
		if msg == nil {
			err = errors.New("advisor chain returned no message")
			return
		}

		answer = msg.Content
		exchange = mem.Add(question, answer, b.now())
	})
	if err != nil {
		return "", err
	}

	requestLogger(ctx).Info().
		Str("exchange_id", exchange.ID).
		Str("session", session.String()).
		Str("question_type", string(qtype)).
		Int("chunks", len(chunks)).
		Int("answer_len", len(answer)).
		Msg("answered question")
	return answer, nil
}

// ClearSessionMemory forgets the conversation of session.
func (b *Bot) ClearSessionMemory(_ context.Context, session chatbotModel.SessionID) error {
	b.memories.Clear(session.Key())
	log.Info().Str("session", session.String()).Msg("session memory cleared")
	return nil
}

// KnowledgeSize returns the number of searchable chunks, or -1 when the
// searcher cannot tell.
func (b *Bot) KnowledgeSize() int {
	if s, ok := b.searcher.(interface{ Len() int }); ok {
		return s.Len()
	}
	return -1
}

// requestLogger returns the logger attached to ctx by the HTTP middleware,
// falling back to the global logger.
func requestLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Close releases the knowledge store when it holds resources.
func (b *Bot) Close() error {
	if c, ok := b.searcher.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
