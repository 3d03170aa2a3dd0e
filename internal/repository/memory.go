package repository

import (
	"context"
	"sort"
	"sync"

	"assistant-workers/internal/models"

	"github.com/google/uuid"
)

// MemoryConversationStore keeps business profiles, lead state and history in process.
type MemoryConversationStore struct {
	mu         sync.RWMutex
	businesses map[string]models.BusinessProfile
	states     map[string]models.ConversationState
	messages   map[string][]models.ConversationMessage
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{
		businesses: make(map[string]models.BusinessProfile),
		states:     make(map[string]models.ConversationState),
		messages:   make(map[string][]models.ConversationMessage),
	}
}

func (s *MemoryConversationStore) PutBusiness(b models.BusinessProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.ID] = b
}

func (s *MemoryConversationStore) GetBusiness(_ context.Context, businessID string) (*models.BusinessProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[businessID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// GetState returns nil without error for a conversation that has no state yet.
func (s *MemoryConversationStore) GetState(_ context.Context, conversationID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[conversationID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *MemoryConversationStore) SaveState(_ context.Context, state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ConversationID] = state
	return nil
}

// RecentMessages returns up to limit messages in chronological order.
func (s *MemoryConversationStore) RecentMessages(_ context.Context, conversationID string, limit int) ([]models.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryConversationStore) AppendMessage(_ context.Context, conversationID string, msg models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return nil
}

// MemoryContentStore serves content sections from process memory.
type MemoryContentStore struct {
	mu       sync.RWMutex
	sections []models.ContentCandidate
}

func NewMemoryContentStore(sections ...models.ContentCandidate) *MemoryContentStore {
	return &MemoryContentStore{sections: sections}
}

func (s *MemoryContentStore) Add(sections ...models.ContentCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = append(s.sections, sections...)
}

// ListCandidates returns every section of the business; an empty language matches all languages.
func (s *MemoryContentStore) ListCandidates(_ context.Context, businessID, language, _ string) ([]models.ContentCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ContentCandidate
	for _, c := range s.sections {
		if c.BusinessID != businessID {
			continue
		}
		if language != "" && c.Language != "" && c.Language != language {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// MemoryQuestionStore aggregates unanswered questions under a single lock.
type MemoryQuestionStore struct {
	mu        sync.Mutex
	questions map[string]*models.UnansweredQuestion
}

func NewMemoryQuestionStore() *MemoryQuestionStore {
	return &MemoryQuestionStore{questions: make(map[string]*models.UnansweredQuestion)}
}

func questionKey(businessID, hash string) string {
	return businessID + "|" + hash
}

func (s *MemoryQuestionStore) Upsert(_ context.Context, obs models.QuestionObservation) (*models.UnansweredQuestion, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := questionKey(obs.BusinessID, obs.QuestionHash)
	q, ok := s.questions[key]
	if !ok {
		q = models.NewUnansweredQuestion(uuid.NewString(), obs)
		s.questions[key] = q
		return cloneQuestion(q), true, nil
	}
	q.Observe(obs)
	return cloneQuestion(q), false, nil
}

// Top lists a business's questions by frequency, most recent first on ties.
func (s *MemoryQuestionStore) Top(_ context.Context, businessID string, limit int) ([]models.UnansweredQuestion, error) {
	s.mu.Lock()
	var out []models.UnansweredQuestion
	for _, q := range s.questions {
		if q.BusinessID == businessID {
			out = append(out, *cloneQuestion(q))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneQuestion(q *models.UnansweredQuestion) *models.UnansweredQuestion {
	c := *q
	c.ConfidenceScores = append([]float64(nil), q.ConfidenceScores...)
	c.SourceSessions = append([]string(nil), q.SourceSessions...)
	return &c
}

// MemorySessionStore keeps per-session counters in process.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.SessionStats
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*models.SessionStats)}
}

func (s *MemorySessionStore) Record(_ context.Context, sessionID string, outcome models.MessageOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		st = &models.SessionStats{SessionID: sessionID}
		s.sessions[sessionID] = st
	}
	st.Apply(outcome)
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*models.SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *st
	return &c, nil
}
