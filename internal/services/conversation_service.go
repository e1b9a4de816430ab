package services

import (
	"fmt"
	"log"
	"time"

	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/internal/watch"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// conversationStartedText is the synthetic last-message stamp written when a
// conversation is first created, before any real message exists.
const conversationStartedText = "Conversation started"

// ConversationService handles 1:1 threads between customers and shopkeepers.
type ConversationService struct {
	repo     repositories.ConversationRepository
	hub      *watch.Hub[[]models.Conversation]
	validate *validator.Validate
}

// NewConversationService creates a new ConversationService.
func NewConversationService(repo repositories.ConversationRepository) *ConversationService {
	return &ConversationService{
		repo:     repo,
		hub:      watch.NewHub[[]models.Conversation](),
		validate: validator.New(),
	}
}

// FindOrCreateConversation returns the conversation between the two users,
// creating it on first contact. The id is derived from the sorted participant
// pair, so repeated, argument-swapped and concurrent calls all land on the
// same conversation. The initiator is stamped as sender of the synthetic
// opening message.
func (s *ConversationService) FindOrCreateConversation(initiatorID, peerID string) (*models.Conversation, error) {
	if initiatorID == "" || peerID == "" {
		return nil, fmt.Errorf("both participant ids are required")
	}
	if initiatorID == peerID {
		return nil, fmt.Errorf("cannot start a conversation with yourself")
	}

	id := models.ConversationID(initiatorID, peerID)
	a, b := models.SortParticipants(initiatorID, peerID)

	conv := &models.Conversation{
		ID:                  id,
		ParticipantA:        a,
		ParticipantB:        b,
		LastMessageText:     conversationStartedText,
		LastMessageSenderID: initiatorID,
		LastMessageRead:     false,
		LastMessageAt:       time.Now(),
	}
	created, err := s.repo.CreateIfAbsent(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create conversation: %w", err)
	}
	if !created {
		// Someone (possibly a concurrent call) got there first; read the
		// winning row.
		existing, err := s.repo.GetByID(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing conversation %s: %w", id, err)
		}
		return existing, nil
	}

	s.notifyConversationChanged(conv)
	return conv, nil
}

// SendMessage appends a message to the thread and mirrors it into the parent
// conversation's last-message fields. The sender must be a participant.
func (s *ConversationService) SendMessage(conversationID, senderID, text string) (*models.Message, error) {
	if text == "" {
		return nil, fmt.Errorf("message text is required")
	}

	conv, err := s.repo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, fmt.Errorf("user %s is not part of conversation %s: %w", senderID, conversationID, models.ErrForbidden)
	}

	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Read:           false,
		CreatedAt:      time.Now(),
	}
	if err := s.repo.AppendMessage(msg); err != nil {
		return nil, err
	}

	conv.LastMessageText = msg.Text
	conv.LastMessageSenderID = msg.SenderID
	conv.LastMessageAt = msg.CreatedAt
	conv.UpdatedAt = msg.CreatedAt
	s.notifyConversationChanged(conv)

	return msg, nil
}

// SendInitialMessage sends the first contact message. With a product context
// the text names the product and its price; without one it is a plain
// greeting.
func (s *ConversationService) SendInitialMessage(conversationID, senderID string, product *models.Product) (*models.Message, error) {
	text := "Hi, I'd like to know more about your shop."
	if product != nil {
		text = fmt.Sprintf("Hi, I'm interested in %s (₹%.2f)", product.Name, product.Price)
	}
	return s.SendMessage(conversationID, senderID, text)
}

// GetMessages returns the thread in chronological order. The caller must be a
// participant.
func (s *ConversationService) GetMessages(conversationID, callerID string) ([]models.Message, error) {
	conv, err := s.repo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, fmt.Errorf("user %s is not part of conversation %s: %w", callerID, conversationID, models.ErrForbidden)
	}
	return s.repo.GetMessages(conversationID)
}

// GetConversations returns the user's conversation list, most recently active
// first.
func (s *ConversationService) GetConversations(userID string) ([]models.Conversation, error) {
	return s.repo.GetByParticipant(userID)
}

// SubscribeToConversations registers a live callback for the user's
// conversation list: one immediate snapshot, then one per change. The
// returned function cancels the subscription.
func (s *ConversationService) SubscribeToConversations(userID string, fn func([]models.Conversation)) (func(), error) {
	return s.hub.Subscribe(userTopic(userID), func() ([]models.Conversation, error) {
		return s.repo.GetByParticipant(userID)
	}, fn)
}

func (s *ConversationService) notifyConversationChanged(conv *models.Conversation) {
	for _, participant := range conv.Participants() {
		userID := participant
		if err := s.hub.Publish(userTopic(userID), func() ([]models.Conversation, error) {
			return s.repo.GetByParticipant(userID)
		}); err != nil {
			log.Printf("Warning: failed to refresh conversation subscription for %s: %v", userID, err)
		}
	}
}

func userTopic(userID string) string {
	return "user:" + userID
}
