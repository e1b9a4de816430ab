package repositories

import (
	"pasar/internal/models"
)

// ConversationRepository defines the interface for conversation and message
// data access.
type ConversationRepository interface {
	GetByID(id string) (*models.Conversation, error)
	// CreateIfAbsent inserts the conversation unless one with the same ID
	// already exists. It reports whether a row was actually created, so
	// concurrent find-or-create calls converge on a single conversation.
	CreateIfAbsent(conv *models.Conversation) (bool, error)
	// GetByParticipant returns every conversation the user takes part in,
	// most recently active first.
	GetByParticipant(userID string) ([]models.Conversation, error)
	// AppendMessage stores the message and mirrors it into the parent
	// conversation's denormalized last-message fields. Both writes happen
	// in a single transaction where the store supports one.
	AppendMessage(msg *models.Message) error
	// GetMessages returns the thread in chronological order.
	GetMessages(conversationID string) ([]models.Message, error)
}
