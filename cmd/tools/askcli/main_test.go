package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/unycompass/chatbot-gateway/internal/model/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/service/chatbot"
	"github.com/unycompass/chatbot-gateway/internal/service/compass"
)

type echoBot struct {
	question string
	session  string
}

func (b *echoBot) AnswerQuestion(_ context.Context, question string, session model.SessionID) (string, error) {
	b.question = question
	b.session = session.String()
	return "answer to " + question, nil
}

func (b *echoBot) ClearSessionMemory(context.Context, model.SessionID) error {
	return nil
}

func decode(t *testing.T, buf *bytes.Buffer) output {
	t.Helper()
	var o output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &o))
	return o
}

func TestRunTestShortcutSkipsBot(t *testing.T) {
	var buf bytes.Buffer
	factory := func(context.Context) (chatbot.Bot, error) {
		t.Fatal("factory must not be called")
		return nil, nil
	}

	code := run(context.Background(), &buf, "TEST", "", factory)
	assert.Equal(t, 0, code)
	assert.Equal(t, output{Success: true, Question: "test", Answer: testAnswer}, decode(t, &buf))
}

func TestRunAnswersQuestion(t *testing.T) {
	var buf bytes.Buffer
	bot := &echoBot{}

	code := run(context.Background(), &buf, "  What is nursing?  ", "12", func(context.Context) (chatbot.Bot, error) {
		return bot, nil
	})

	assert.Equal(t, 0, code)
	assert.Equal(t, "What is nursing?", bot.question)
	assert.Equal(t, "12", bot.session)

	o := decode(t, &buf)
	assert.True(t, o.Success)
	assert.Equal(t, "  What is nursing?  ", o.Question)
	assert.Equal(t, "answer to What is nursing?", o.Answer)
}

func TestRunReportsFailures(t *testing.T) {
	cases := []struct {
		name     string
		question string
		wantErr  string
	}{
		{"missing", "", "No question provided"},
		{"blank", "   ", "Question cannot be empty"},
		{"unavailable", "hello", "chatbot not available: empty database"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			code := run(context.Background(), &buf, tc.question, "", func(context.Context) (chatbot.Bot, error) {
				return nil, errors.New("empty database")
			})

			assert.Equal(t, 1, code)
			o := decode(t, &buf)
			assert.False(t, o.Success)
			assert.Equal(t, tc.wantErr, o.Error)
		})
	}
}

type emptyBot struct {
	echoBot
	closed bool
}

func (b *emptyBot) KnowledgeSize() int { return 0 }

func (b *emptyBot) Close() error {
	b.closed = true
	return nil
}

func TestRunRefusesEmptyKnowledge(t *testing.T) {
	var buf bytes.Buffer
	bot := &emptyBot{}

	code := run(context.Background(), &buf, "What is nursing?", "", func(context.Context) (chatbot.Bot, error) {
		return bot, nil
	})

	assert.Equal(t, 1, code)
	assert.Empty(t, bot.question)
	assert.True(t, bot.closed)

	o := decode(t, &buf)
	assert.False(t, o.Success)
	assert.Contains(t, o.Error, compass.ErrNoKnowledge.Error())
}
