package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSessionKeyDeterministic(t *testing.T) {
	a := DeriveSessionKey("credential-one")
	b := DeriveSessionKey("credential-one")
	c := DeriveSessionKey("credential-two")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "session_"))
}

func TestMemorySessionStoreGetUnknownKey(t *testing.T) {
	store := NewMemorySessionStore(0)
	turns := store.Get("session_nope")
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
}

func TestMemorySessionStoreAppendOrder(t *testing.T) {
	store := NewMemorySessionStore(0)
	t1 := NewTurn(RoleUser, "first")
	t2 := NewTurn(RoleAssistant, "second")

	store.Append("session_k", t1)
	store.Append("session_k", t2)

	turns := store.Get("session_k")
	assert.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "second", turns[1].Content)
}

func TestMemorySessionStoreGetReturnsCopy(t *testing.T) {
	store := NewMemorySessionStore(0)
	store.Append("session_k", NewTurn(RoleUser, "original"))

	turns := store.Get("session_k")
	turns[0].Content = "mutated"

	assert.Equal(t, "original", store.Get("session_k")[0].Content)
}

func TestMemorySessionStoreCapPreservesSystemTurn(t *testing.T) {
	store := NewMemorySessionStore(5)
	store.Append("session_k", NewTurn(RoleSystem, "instructions"))
	for i := 0; i < 10; i++ {
		store.Append("session_k",
			NewTurn(RoleUser, "question"),
			NewTurn(RoleAssistant, "answer"))
	}

	turns := store.Get("session_k")
	assert.Len(t, turns, 5)
	assert.Equal(t, RoleSystem, turns[0].Role)
	assert.Equal(t, "instructions", turns[0].Content)
	assert.Equal(t, RoleAssistant, turns[len(turns)-1].Role)
}

func TestMemorySessionStoreCapWithoutSystemTurn(t *testing.T) {
	store := NewMemorySessionStore(3)
	store.Append("session_k",
		NewTurn(RoleUser, "a"),
		NewTurn(RoleAssistant, "b"),
		NewTurn(RoleUser, "c"),
		NewTurn(RoleAssistant, "d"))

	turns := store.Get("session_k")
	assert.Len(t, turns, 3)
	assert.Equal(t, "b", turns[0].Content)
	assert.Equal(t, "d", turns[2].Content)
}
