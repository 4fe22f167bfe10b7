package conversation

import "sync"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Messages are never mutated after
// they are stored.
type Message struct {
	Role string `json:"role"`
	Text string `json:"value"`
}

// Conversation is the ordered list of turns for one session.
type Conversation []Message

// Seed returns the opening exchange every new session starts with.
func Seed() Conversation {
	return Conversation{
		{Role: RoleUser, Text: "What is the core assumption of the Science of the Positive?"},
		{Role: RoleAssistant, Text: "The Positive exists."},
	}
}

// Last returns the last message with the given role.
func (c Conversation) Last(role string) (Message, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == role {
			return c[i], true
		}
	}
	return Message{}, false
}

func (c Conversation) clone() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Store keeps one conversation per session. Reads return copies, so callers
// can never observe a conversation that is being replaced.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Conversation
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]Conversation)}
}

// Get returns the conversation of the session, or an empty one when the
// session has none yet.
func (s *Store) Get(sessionID string) Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.sessions[sessionID]
	if !ok {
		return Conversation{}
	}
	return conv.clone()
}

// Replace swaps the whole conversation in one step.
func (s *Store) Replace(sessionID string, conv Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = conv.clone()
}

func (s *Store) Append(sessionID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
}

// Reset re-seeds the session and returns the seeded conversation.
func (s *Store) Reset(sessionID string) Conversation {
	seed := Seed()
	s.Replace(sessionID, seed)
	return seed
}

func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
