package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"pasar/internal/models"

	"github.com/google/uuid"
)

// MockConversationRepository is an in-memory implementation of
// ConversationRepository.
type MockConversationRepository struct {
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	mu            sync.RWMutex
}

// NewMockConversationRepository creates a new instance of MockConversationRepository.
func NewMockConversationRepository() *MockConversationRepository {
	return &MockConversationRepository{
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

// GetByID returns a conversation by its ID.
func (r *MockConversationRepository) GetByID(id string) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation with ID %s: %w", id, models.ErrNotFound)
	}
	return &conv, nil
}

// CreateIfAbsent inserts the conversation unless the ID already exists.
func (r *MockConversationRepository) CreateIfAbsent(conv *models.Conversation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[conv.ID]; ok {
		return false, nil
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	r.conversations[conv.ID] = *conv
	return true, nil
}

// GetByParticipant returns all conversations the user takes part in, most
// recently active first.
func (r *MockConversationRepository) GetByParticipant(userID string) ([]models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	convList := make([]models.Conversation, 0)
	for _, conv := range r.conversations {
		if conv.HasParticipant(userID) {
			convList = append(convList, conv)
		}
	}
	sort.Slice(convList, func(i, j int) bool {
		return convList[i].UpdatedAt.After(convList[j].UpdatedAt)
	})
	return convList, nil
}

// AppendMessage stores the message and updates the parent's denormalized
// last-message fields under one lock.
func (r *MockConversationRepository) AppendMessage(msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[msg.ConversationID]
	if !ok {
		return fmt.Errorf("conversation with ID %s: %w", msg.ConversationID, models.ErrNotFound)
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], *msg)

	conv.LastMessageText = msg.Text
	conv.LastMessageSenderID = msg.SenderID
	conv.LastMessageRead = msg.Read
	conv.LastMessageAt = msg.CreatedAt
	conv.UpdatedAt = msg.CreatedAt
	r.conversations[msg.ConversationID] = conv
	return nil
}

// GetMessages returns the thread in chronological order.
func (r *MockConversationRepository) GetMessages(conversationID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := make([]models.Message, len(r.messages[conversationID]))
	copy(msgs, r.messages[conversationID])
	return msgs, nil
}
