package chatbot

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// SessionID is the caller-supplied conversation identifier. It is kept in its
// raw JSON form so numbers and strings round-trip untouched.
type SessionID struct {
	raw json.RawMessage
}

// NewSessionID wraps a plain string identifier, as taken from a URL path.
func NewSessionID(id string) SessionID {
	if id == "" {
		return SessionID{}
	}
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return SessionID{raw: json.RawMessage(id)}
	}
	raw, _ := json.Marshal(id)
	return SessionID{raw: raw}
}

// Present reports whether the caller supplied an identifier.
func (s SessionID) Present() bool {
	return len(s.raw) > 0 && !bytes.Equal(s.raw, []byte("null"))
}

// Key is the memory key for the session; "" selects the shared default memory.
// Keys carry the JSON type, so 42 and "42" are different sessions and "" is
// not the default one.
func (s SessionID) Key() string {
	if !s.Present() {
		return ""
	}
	if str, ok := s.text(); ok {
		return "s:" + str
	}
	return "n:" + string(s.raw)
}

// String returns the identifier as a caller would write it, without quotes.
func (s SessionID) String() string {
	if !s.Present() {
		return ""
	}
	if str, ok := s.text(); ok {
		return str
	}
	return string(s.raw)
}

func (s SessionID) text() (string, bool) {
	var str string
	if err := json.Unmarshal(s.raw, &str); err != nil {
		return "", false
	}
	return str, true
}

// UnmarshalJSON keeps the raw token.
func (s *SessionID) UnmarshalJSON(data []byte) error {
	s.raw = append(s.raw[:0], bytes.TrimSpace(data)...)
	return nil
}

// MarshalJSON echoes the identifier exactly as received, or null.
func (s SessionID) MarshalJSON() ([]byte, error) {
	if !s.Present() {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// Validate rejects identifiers that are neither numbers nor strings.
func (s SessionID) Validate() bool {
	if !s.Present() {
		return true
	}
	c := s.raw[0]
	return c == '"' || c == '-' || (c >= '0' && c <= '9')
}
