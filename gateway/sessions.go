package gateway

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const sessionKeyPrefix = "session_"

// DefaultMaxSessionTurns bounds per-session history; the oldest non-system
// turns are dropped past this point.
const DefaultMaxSessionTurns = 200

// Turn is one message in a conversation transcript. Immutable once created.
type Turn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

func NewTurn(role, content string) Turn {
	return Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// SessionStore holds ordered per-session transcripts. Implementations must
// make Append atomic so concurrent callers cannot corrupt a turn list, but
// cross-request ordering for one key stays the caller's responsibility.
type SessionStore interface {
	Append(sessionKey string, turns ...Turn)
	Get(sessionKey string) []Turn
}

// DeriveSessionKey maps a caller credential to a stable session key. Pure:
// the same credential always lands in the same session. The namespaced
// uuid5 keeps keys from colliding with unrelated identifiers.
func DeriveSessionKey(credential string) string {
	return sessionKeyPrefix + uuid.NewSHA1(uuid.NameSpaceDNS, []byte(credential)).String()
}

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string][]Turn
	maxTurns int
}

func NewMemorySessionStore(maxTurns int) *MemorySessionStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxSessionTurns
	}
	return &MemorySessionStore{
		sessions: make(map[string][]Turn),
		maxTurns: maxTurns,
	}
}

// Append creates the session if absent and pushes turns in order. The whole
// batch lands under one lock so a failed request can never leave a partial
// write behind.
func (s *MemorySessionStore) Append(sessionKey string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(s.sessions[sessionKey], turns...)
	if len(next) > s.maxTurns {
		next = capTurns(next, s.maxTurns)
	}
	s.sessions[sessionKey] = next
}

// Get returns a copy of the session transcript, empty for unknown keys.
func (s *MemorySessionStore) Get(sessionKey string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[sessionKey]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// capTurns drops the oldest turns past max, keeping a leading system turn
// so the conversation never loses its instruction context.
func capTurns(turns []Turn, max int) []Turn {
	if len(turns) <= max {
		return turns
	}

	if turns[0].Role == RoleSystem {
		keep := max - 1
		out := make([]Turn, 0, max)
		out = append(out, turns[0])
		out = append(out, turns[len(turns)-keep:]...)
		return out
	}
	return append([]Turn(nil), turns[len(turns)-max:]...)
}

func normalizeCredential(credential string) string {
	return strings.TrimSpace(credential)
}
