package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unycompass/chatbot-gateway/internal/config"
	model "github.com/unycompass/chatbot-gateway/internal/model/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/service/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/service/compass"
)

const testAnswer = "Chatbot is working correctly!"

type output struct {
	Success  bool   `json:"success"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
}

func main() {
	log.Logger = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env, using system environment variables")
	}

	session := flag.String("session", "", "session id whose memory the question uses")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	question := strings.Join(flag.Args(), " ")
	if code := run(ctx, os.Stdout, question, *session, compass.NewFactory(cfg)); code != 0 {
		os.Exit(code)
	}
}

// run answers one question and writes the JSON outcome to out. The bot is
// only built when the question needs it, and a bot without knowledge is
// treated as unavailable.
func run(ctx context.Context, out io.Writer, question, session string, factory chatbot.Factory) int {
	if question == "" {
		writeOutput(out, output{Error: "No question provided"})
		return 1
	}

	if strings.EqualFold(question, "test") {
		writeOutput(out, output{Success: true, Question: "test", Answer: testAnswer})
		return 0
	}

	if strings.TrimSpace(question) == "" {
		writeOutput(out, output{Error: "Question cannot be empty"})
		return 1
	}

	state := chatbot.Initialize(ctx, compass.RequireKnowledge(factory))
	defer state.Close()

	if err := state.Check(); err != nil {
		writeOutput(out, output{Error: err.Error()})
		return 1
	}

	result := state.Ask(ctx, strings.TrimSpace(question), model.NewSessionID(session))
	if result.Err != nil {
		writeOutput(out, output{Error: result.Err.Error()})
		if errors.Is(result.Err, context.DeadlineExceeded) {
			return 2
		}
		return 1
	}

	writeOutput(out, output{Success: true, Question: question, Answer: result.Answer})
	return 0
}

func writeOutput(out io.Writer, o output) {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(o); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
	}
}
