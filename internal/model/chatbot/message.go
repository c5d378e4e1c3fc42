package chatbot

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingMessage = errors.New("please provide a 'message' field in your request")
	ErrEmptyMessage   = errors.New("question cannot be empty")
	ErrInvalidSession = errors.New("session_id must be a number or a string")
)

// AskRequest is the body accepted by the ask endpoints.
type AskRequest struct {
	Message   *json.RawMessage `json:"message"`
	SessionID SessionID        `json:"session_id"`
}

// Question returns the validated message text, trimmed.
func (r AskRequest) Question() (string, error) {
	if r.Message == nil {
		return "", ErrMissingMessage
	}
	var text string
	if err := json.Unmarshal(*r.Message, &text); err != nil {
		// null or a non-string value
		return "", ErrMissingMessage
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	return text, nil
}

// Text returns the message exactly as sent, or "" when it is not a string.
func (r AskRequest) Text() string {
	if r.Message == nil {
		return ""
	}
	var text string
	_ = json.Unmarshal(*r.Message, &text)
	return text
}

// Validate checks the whole request and returns the question to ask.
func (r AskRequest) Validate() (string, error) {
	question, err := r.Question()
	if err != nil {
		return "", err
	}
	if !r.SessionID.Validate() {
		return "", ErrInvalidSession
	}
	return question, nil
}

// Answer is the envelope returned for a successful ask.
type Answer struct {
	Question  string `json:"question"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// SessionAnswer adds the echoed session identifier.
type SessionAnswer struct {
	Answer
	SessionID SessionID `json:"session_id"`
}

// NewAnswer stamps an answer with the current local time.
func NewAnswer(question, response string, now time.Time) Answer {
	return Answer{
		Question:  question,
		Response:  response,
		Timestamp: now.Format("2006-01-02 15:04:05.000000"),
	}
}
