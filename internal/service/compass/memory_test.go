package compass

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeepsLastExchanges(t *testing.T) {
	mem := NewMemory(5)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		mem.Add(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), start.Add(time.Duration(i)*time.Minute))
	}

	history := mem.History()
	require.Len(t, history, 5)
	assert.Equal(t, "q2", history[0].Question)
	assert.Equal(t, "q6", history[4].Question)
	assert.NotEmpty(t, history[0].ID)
	assert.NotEqual(t, history[0].ID, history[1].ID)

	ex := mem.Add("q7", "a7", start)
	assert.Equal(t, ex.ID, mem.History()[4].ID)
}

func TestMemoryExtractsUserContext(t *testing.T) {
	mem := NewMemory(5)
	assert.Equal(t, PatternInitial, mem.User().Interaction)

	mem.Add("I'm interested in undergraduate psychology", "ok", time.Now())
	user := mem.User()
	assert.Equal(t, "Psychology", user.Department)
	assert.Equal(t, "undergraduate", user.Level)
	assert.Equal(t, PatternFocused, user.Interaction)

	mem.Add("Why did you pick that without asking me?", "sorry", time.Now())
	assert.Equal(t, PatternFrustrated, mem.User().Interaction)

	mem.Add("What about a PhD in nursing?", "ok", time.Now())
	user = mem.User()
	assert.Equal(t, "graduate", user.Level)
	assert.Equal(t, "Nursing", user.School)
}

func TestMemoryShortPatternsMatchWholeWords(t *testing.T) {
	mem := NewMemory(5)
	mem.Add("Tell me about the basketball team", "ok", time.Now())

	user := mem.User()
	assert.Empty(t, user.Level, "ba inside basketball must not count")
	assert.Empty(t, user.Department)
}

func TestMemoryContext(t *testing.T) {
	mem := NewMemory(5)
	assert.Empty(t, mem.Context())

	long := strings.Repeat("x", 150)
	mem.Add("first question", "first answer", time.Now())
	mem.Add("Tell me about computer science", long, time.Now())
	mem.Add("and the graduate options?", "second answer", time.Now())

	ctx := mem.Context()
	assert.True(t, strings.HasPrefix(ctx, "Previous conversation:\n"))
	assert.NotContains(t, ctx, "first question")
	assert.Contains(t, ctx, "You: "+strings.Repeat("x", 100)+"...\n")
	assert.NotContains(t, ctx, strings.Repeat("x", 101))
	assert.Contains(t, ctx, "Student is interested in: Computer Science")
	assert.Contains(t, ctx, "Student is looking at: graduate programs")
}

func TestMemoriesIsolatesSessions(t *testing.T) {
	store := NewMemories(5, 0, 0)

	store.With("a", func(m *Memory) { m.Add("qa", "ra", time.Now()) })
	store.With("b", func(m *Memory) { m.Add("qb", "rb", time.Now()) })

	store.With("a", func(m *Memory) {
		require.Len(t, m.History(), 1)
		assert.Equal(t, "qa", m.History()[0].Question)
	})
	assert.Equal(t, 2, store.Len())

	store.Clear("a")
	store.Clear("missing")
	assert.Equal(t, 1, store.Len())
	store.With("a", func(m *Memory) { assert.Empty(t, m.History()) })
}

func TestMemoriesSerializesSameSession(t *testing.T) {
	store := NewMemories(100, 0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.With("shared", func(m *Memory) {
				m.Add(fmt.Sprintf("q%d", i), "r", time.Now())
			})
		}(i)
	}
	wg.Wait()

	store.With("shared", func(m *Memory) {
		assert.Len(t, m.History(), 50)
	})
}

func TestMemoriesEvictsLeastRecentlyUsed(t *testing.T) {
	store := NewMemories(5, 2, 0)

	store.With("a", func(m *Memory) { m.Add("qa", "ra", time.Now()) })
	store.With("b", func(m *Memory) { m.Add("qb", "rb", time.Now()) })
	// touching a makes b the oldest
	store.With("a", func(m *Memory) {})
	store.With("c", func(m *Memory) { m.Add("qc", "rc", time.Now()) })

	assert.Equal(t, 2, store.Len())
	store.With("a", func(m *Memory) { assert.Len(t, m.History(), 1) })
	store.With("b", func(m *Memory) { assert.Empty(t, m.History()) })
}

func TestMemoriesStaysBoundedUnderManySessions(t *testing.T) {
	store := NewMemories(5, 100, 0)
	for i := 0; i < 5000; i++ {
		store.With(fmt.Sprintf("n:%d", i), func(m *Memory) { m.Add("q", "r", time.Now()) })
	}
	assert.Equal(t, 100, store.Len())
}

func TestMemoriesExpireIdleSessions(t *testing.T) {
	store := NewMemories(5, 0, 50*time.Millisecond)

	store.With("a", func(m *Memory) { m.Add("qa", "ra", time.Now()) })
	time.Sleep(120 * time.Millisecond)

	store.With("a", func(m *Memory) { assert.Empty(t, m.History()) })
}
