package chat

import "sync"

// Bounds on accumulated session state. History keeps the most recent
// exchanges, recommendations the most recent extracted lines, topics a
// sorted set.
const (
	historyCap        = 20
	historyWindow     = 4
	assistantTruncate = 200
	recommendationCap = 10
	topicCap          = 30
)

// Exchange is one completed (user, assistant) turn.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Session holds the bounded conversational state for one document.
// Turns against the same session are serialized by its mutex so two
// rapid requests cannot lose each other's history updates.
type Session struct {
	mu              sync.Mutex
	History         []Exchange
	Topics          []string
	Recommendations []string
}

func NewSession() *Session {
	return &Session{}
}

// Snapshot returns copies of the state slices for read-only use.
func (s *Session) Snapshot() (history []Exchange, topics, recommendations []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history = append([]Exchange(nil), s.History...)
	topics = append([]string(nil), s.Topics...)
	recommendations = append([]string(nil), s.Recommendations...)
	return
}
