package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherspace/realtime-service/internal/models"
)

var ErrNotFound = errors.New("not found")

// MemoryStore implements both durable store interfaces in process memory.
// It backs tests and local development; production wiring uses mongo.
type MemoryStore struct {
	mu       sync.Mutex
	convs    map[string]*models.Conversation
	members  map[string][]models.ConversationMember
	messages map[string]*models.Message
	receipts map[string]map[string]*models.MessageReceipt // messageID -> userID
	users    map[string]*models.Sender
	lastTime time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs:    make(map[string]*models.Conversation),
		members:  make(map[string][]models.ConversationMember),
		messages: make(map[string]*models.Message),
		receipts: make(map[string]map[string]*models.MessageReceipt),
		users:    make(map[string]*models.Sender),
	}
}

func (s *MemoryStore) AddUser(_ context.Context, u *models.Sender) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) Profile(_ context.Context, userID string) (*models.Sender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) IsMember(_ context.Context, conversationID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[conversationID] {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) MemberIDs(_ context.Context, conversationID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.members[conversationID] {
		out = append(out, m.UserID)
	}
	return out, nil
}

func (s *MemoryStore) AddMember(_ context.Context, m *models.ConversationMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.members[m.ConversationID] {
		if existing.UserID == m.UserID {
			return nil
		}
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	if m.Role == "" {
		m.Role = models.RoleMember
	}
	s.members[m.ConversationID] = append(s.members[m.ConversationID], *m)
	return nil
}

func (s *MemoryStore) CreateConversation(_ context.Context, c *models.Conversation) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	s.convs[c.ID] = c
	return c, nil
}

func (s *MemoryStore) CreateWithReceipts(_ context.Context, m *models.Message, memberIDs []string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	// strictly increasing timestamps keep per-conversation ordering stable
	now := time.Now().UTC()
	if !now.After(s.lastTime) {
		now = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = now
	m.CreatedAt = now
	s.messages[m.ID] = m

	byUser := make(map[string]*models.MessageReceipt, len(memberIDs))
	for _, rc := range BuildReceipts(m, memberIDs) {
		rc := rc
		byUser[rc.UserID] = &rc
	}
	s.receipts[m.ID] = byUser
	return m, nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, messageID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.receipts[messageID][userID]
	if !ok || rc.Status == models.StatusRead {
		return false, nil
	}
	rc.Status = models.StatusRead
	rc.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func (s *MemoryStore) Receipts(_ context.Context, messageID string) ([]models.MessageReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MessageReceipt
	for _, rc := range s.receipts[messageID] {
		out = append(out, *rc)
	}
	return out, nil
}
