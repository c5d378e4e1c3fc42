package chatbot

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	model "github.com/unycompass/chatbot-gateway/internal/model/chatbot"
)

var (
	// ErrUnavailable means the bot failed to initialize at startup.
	ErrUnavailable = errors.New("chatbot not available")
	// ErrAnswer wraps any failure raised while answering a question.
	ErrAnswer = errors.New("error processing question")
	// ErrReset wraps any failure raised while clearing session memory.
	ErrReset = errors.New("failed to reset conversation")
)

// Bot is the question-answering collaborator the gateway delegates to.
// Implementations must be safe for concurrent use.
type Bot interface {
	AnswerQuestion(ctx context.Context, question string, session model.SessionID) (string, error)
	ClearSessionMemory(ctx context.Context, session model.SessionID) error
}

// Factory constructs the bot, including any database it is bound to.
type Factory func(ctx context.Context) (Bot, error)

// State records the outcome of bot initialization. It is built once and is
// read-only afterwards.
type State struct {
	bot Bot
	err error
}

// Initialize runs the factory once and captures its outcome. Panics raised by
// the factory are converted to an initialization error.
func Initialize(ctx context.Context, factory Factory) (state *State) {
	log.Info().Msg("initializing chatbot")

	defer func() {
		if r := recover(); r != nil {
			state = &State{err: fmt.Errorf("panic during initialization: %v", r)}
			log.Error().Err(state.err).Msg("failed to initialize chatbot")
		}
	}()

	bot, err := factory(ctx)
	if err == nil && bot == nil {
		err = errors.New("factory returned no bot")
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize chatbot")
		return &State{err: err}
	}

	log.Info().Msg("chatbot initialized successfully")
	return &State{bot: bot}
}

// Ready reports whether the bot is available.
func (s *State) Ready() bool {
	return s.err == nil && s.bot != nil
}

// Err returns the captured initialization error, if any.
func (s *State) Err() error {
	return s.err
}

// ErrText is the captured initialization error as text, or "" when ready.
func (s *State) ErrText() string {
	if s.err == nil {
		return ""
	}
	return s.err.Error()
}

// Result is the outcome of a single ask: either an answer or an error whose
// kind is one of ErrUnavailable or ErrAnswer.
type Result struct {
	Answer string
	Err    error
}

// OK reports whether the result carries an answer.
func (r Result) OK() bool {
	return r.Err == nil
}

// Ask forwards a validated question to the bot. Panics from the bot are
// reported as ErrAnswer.
func (s *State) Ask(ctx context.Context, question string, session model.SessionID) (result Result) {
	if err := s.Check(); err != nil {
		return Result{Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			result = Result{Err: fmt.Errorf("%w: %v", ErrAnswer, r)}
		}
	}()

	answer, err := s.bot.AnswerQuestion(ctx, question, session)
	if err != nil {
		log.Error().Err(err).Str("session", session.String()).Msg("bot failed to answer")
		return Result{Err: fmt.Errorf("%w: %w", ErrAnswer, err)}
	}
	return Result{Answer: answer}
}

// Reset clears the memory bound to session.
func (s *State) Reset(ctx context.Context, session model.SessionID) (err error) {
	if err := s.Check(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrReset, r)
		}
	}()

	if err := s.bot.ClearSessionMemory(ctx, session); err != nil {
		log.Error().Err(err).Str("session", session.String()).Msg("bot failed to reset memory")
		return fmt.Errorf("%w: %w", ErrReset, err)
	}
	return nil
}

// Check returns nil when the bot is ready, otherwise an ErrUnavailable
// carrying the captured initialization error.
func (s *State) Check() error {
	if s.Ready() {
		return nil
	}
	if s.err == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, s.err)
}

// Close releases the bot's resources when it holds any.
func (s *State) Close() error {
	if c, ok := s.bot.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
