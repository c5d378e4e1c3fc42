package compass

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Exchange is one question/answer turn.
type Exchange struct {
	ID        string
	Question  string
	Response  string
	Timestamp time.Time
}

// Interaction patterns tracked per session.
const (
	PatternInitial    = "initial"
	PatternExploring  = "exploring"
	PatternFocused    = "focused"
	PatternFrustrated = "frustrated"
)

// UserContext holds what the conversation has revealed about the student.
type UserContext struct {
	School      string
	Department  string
	Level       string
	Interaction string
}

// Memory is the conversation state of one session. It is not safe for
// concurrent use; Bot serializes access per session.
type Memory struct {
	limit   int
	history []Exchange
	user    UserContext
}

// NewMemory returns an empty memory keeping the last limit exchanges.
func NewMemory(limit int) *Memory {
	if limit < 1 {
		limit = 1
	}
	return &Memory{limit: limit, user: UserContext{Interaction: PatternInitial}}
}

// Add records an exchange and updates the user context from the question.
// The returned exchange carries a fresh ID.
func (m *Memory) Add(question, response string, at time.Time) Exchange {
	ex := Exchange{
		ID:        uuid.NewString(),
		Question:  question,
		Response:  response,
		Timestamp: at,
	}
	m.history = append(m.history, ex)
	m.extractContext(question)

	if len(m.history) > m.limit {
		m.history = append([]Exchange(nil), m.history[len(m.history)-m.limit:]...)
	}
	return ex
}

// History returns a copy of the retained exchanges, oldest first.
func (m *Memory) History() []Exchange {
	return append([]Exchange(nil), m.history...)
}

// User returns the extracted user context.
func (m *Memory) User() UserContext {
	return m.user
}

var schoolPatterns = []struct {
	name     string
	patterns []string
}{
	{"Arts and Sciences", []string{"artsci", "liberal arts", "sciences", "arts and sciences"}},
	{"Education", []string{"teaching", "education", "educator", "school of education"}},
	{"Health Professions", []string{"health", "therapy", "nutrition", "health professions"}},
	{"Nursing", []string{"nurse", "nursing", "healthcare", "bellevue"}},
	{"Social Work", []string{"social work", "social worker", "silberman"}},
}

var departmentPatterns = []struct {
	name     string
	patterns []string
}{
	{"Biology", []string{"biology", "bio", "life sciences", "biological"}},
	{"Chemistry", []string{"chemistry", "chem", "chemical"}},
	{"Psychology", []string{"psychology", "psych", "behavioral"}},
	{"Computer Science", []string{"computer science", "cs", "programming", "coding", "computing"}},
	{"English", []string{"english", "literature", "writing"}},
	{"Economics", []string{"economics", "econ", "business"}},
	{"Mathematics", []string{"math", "mathematics", "statistics", "calculus"}},
	{"Physics", []string{"physics", "physical"}},
	{"History", []string{"history", "historical"}},
	{"Sociology", []string{"sociology", "social"}},
	{"Anthropology", []string{"anthropology", "cultural"}},
	{"Philosophy", []string{"philosophy", "philosophical"}},
}

var (
	undergraduateTerms = []string{"undergraduate", "bachelor", "ba", "bs"}
	graduateTerms      = []string{"graduate", "master", "ma", "ms", "phd", "doctoral"}
	frustratedTerms    = []string{"didn't ask", "you assumed", "why did you", "without asking"}
	exploringTerms     = []string{"help picking", "not sure", "undecided"}
)

// extractContext updates the user context. Later matches win, so the last
// listed school or department mentioned in a question is kept.
func (m *Memory) extractContext(question string) {
	lower := strings.ToLower(question)
	words := wordSet(lower)

	for _, s := range schoolPatterns {
		if containsAny(lower, words, s.patterns) {
			m.user.School = s.name
		}
	}
	for _, d := range departmentPatterns {
		if containsAny(lower, words, d.patterns) {
			m.user.Department = d.name
		}
	}

	// "graduate" is a substring of "undergraduate"; check the narrower level first.
	switch {
	case containsAny(lower, words, undergraduateTerms):
		m.user.Level = "undergraduate"
	case containsAny(lower, words, graduateTerms):
		m.user.Level = "graduate"
	}

	switch {
	case containsAny(lower, words, frustratedTerms):
		m.user.Interaction = PatternFrustrated
	case containsAny(lower, words, exploringTerms):
		m.user.Interaction = PatternExploring
	case m.user.Department != "":
		m.user.Interaction = PatternFocused
	}
}

// Context renders the recent conversation for inclusion in a prompt.
func (m *Memory) Context() string {
	if len(m.history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	recent := m.history
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	for _, ex := range recent {
		fmt.Fprintf(&b, "Student: %s...\n", truncate(ex.Question, 80))
		fmt.Fprintf(&b, "You: %s...\n\n", truncate(ex.Response, 100))
	}

	if m.user.Department != "" {
		fmt.Fprintf(&b, "Student is interested in: %s\n", m.user.Department)
	}
	if m.user.Level != "" {
		fmt.Fprintf(&b, "Student is looking at: %s programs\n", m.user.Level)
	}
	if m.user.Interaction == PatternFrustrated {
		b.WriteString("Student seemed frustrated in recent exchange\n")
	}
	return b.String()
}

// Memories maps session keys to their conversation memory. The store holds
// at most maxSessions sessions, dropping the least recently used one when
// full, and forgets sessions idle for longer than the TTL.
type Memories struct {
	mu       sync.Mutex
	limit    int
	sessions *expirable.LRU[string, *sessionMemory]
}

type sessionMemory struct {
	mu  sync.Mutex
	mem *Memory
}

// NewMemories creates an empty session store. maxSessions <= 0 means no cap
// and ttl <= 0 means sessions never expire.
func NewMemories(limit, maxSessions int, ttl time.Duration) *Memories {
	if maxSessions < 0 {
		maxSessions = 0
	}
	return &Memories{
		limit:    limit,
		sessions: expirable.NewLRU[string, *sessionMemory](maxSessions, nil, ttl),
	}
}

// With runs fn while holding the lock of the session's memory, creating the
// memory on first use. Calls for the same key are serialized. Every call
// counts as use for eviction and expiry.
func (s *Memories) With(key string, fn func(*Memory)) {
	s.mu.Lock()
	sm, ok := s.sessions.Get(key)
	if !ok {
		sm = &sessionMemory{mem: NewMemory(s.limit)}
	}
	// re-adding refreshes the idle timer
	s.sessions.Add(key, sm)
	s.mu.Unlock()

	sm.mu.Lock()
	defer sm.mu.Unlock()
	fn(sm.mem)
}

// Clear forgets the memory of one session. Unknown keys are ignored.
func (s *Memories) Clear(key string) {
	s.mu.Lock()
	s.sessions.Remove(key)
	s.mu.Unlock()
}

// Len returns the number of sessions with memory.
func (s *Memories) Len() int {
	return s.sessions.Len()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func wordSet(lower string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range tokenize(lower) {
		set[w] = struct{}{}
	}
	return set
}

// containsAny matches multi-word or long patterns as substrings and short
// single-word patterns (such as "ba" or "cs") as whole words only.
func containsAny(lower string, words map[string]struct{}, patterns []string) bool {
	for _, p := range patterns {
		if len(p) <= 3 && !strings.ContainsAny(p, " '") {
			if _, ok := words[p]; ok {
				return true
			}
			continue
		}
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
