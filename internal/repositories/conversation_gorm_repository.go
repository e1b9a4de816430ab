package repositories

import (
	"errors"
	"fmt"
	"time"

	"pasar/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMConversationRepository is a GORM implementation of ConversationRepository.
type GORMConversationRepository struct {
	db *gorm.DB
}

// NewGORMConversationRepository creates a new instance of GORMConversationRepository.
func NewGORMConversationRepository(db *gorm.DB) *GORMConversationRepository {
	return &GORMConversationRepository{
		db: db,
	}
}

// GetByID retrieves a single conversation by its ID from the database.
func (r *GORMConversationRepository) GetByID(id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.First(&conv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation with ID %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get conversation by ID %s: %w", id, err)
	}
	return &conv, nil
}

// CreateIfAbsent inserts the conversation, doing nothing if the primary key
// already exists. ON CONFLICT makes the insert race-safe: of two concurrent
// creators, exactly one wins and the other sees created=false.
func (r *GORMConversationRepository) CreateIfAbsent(conv *models.Conversation) (bool, error) {
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create conversation %s: %w", conv.ID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetByParticipant retrieves all conversations the user takes part in, most
// recently active first.
func (r *GORMConversationRepository) GetByParticipant(userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := r.db.
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("updated_at DESC").
		Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("failed to get conversations for user %s: %w", userID, err)
	}
	return convs, nil
}

// AppendMessage stores the message and updates the parent conversation's
// denormalized last-message fields in one transaction.
func (r *GORMConversationRepository) AppendMessage(msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).Updates(map[string]interface{}{
			"last_message_text":      msg.Text,
			"last_message_sender_id": msg.SenderID,
			"last_message_read":      msg.Read,
			"last_message_at":        msg.CreatedAt,
			"updated_at":             msg.CreatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("conversation with ID %s: %w", msg.ConversationID, models.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append message to conversation %s: %w", msg.ConversationID, err)
	}
	return nil
}

// GetMessages retrieves the thread in chronological order.
func (r *GORMConversationRepository) GetMessages(conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to get messages for conversation %s: %w", conversationID, err)
	}
	return msgs, nil
}
