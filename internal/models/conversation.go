package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// conversationNamespace seeds the deterministic conversation id. Never change
// this value: existing conversation ids are derived from it.
var conversationNamespace = uuid.MustParse("9f2c1a47-6b3e-4d15-8c90-2f4a7e51d6b8")

// ConversationID returns the deterministic id for the conversation between two
// users. The pair is sorted first, so ConversationID(a, b) == ConversationID(b, a)
// and two concurrent find-or-create calls converge on the same document.
func ConversationID(userA, userB string) string {
	a, b := SortParticipants(userA, userB)
	return uuid.NewSHA1(conversationNamespace, []byte(a+"|"+b)).String()
}

// SortParticipants returns the two user ids in canonical (lexicographic) order.
func SortParticipants(userA, userB string) (string, string) {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return pair[0], pair[1]
}

// Conversation is a 1:1 thread between a customer and a shopkeeper. The newest
// message is denormalized onto the parent so conversation lists render without
// reading the message table.
type Conversation struct {
	ID                  string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ParticipantA        string    `json:"participant_a" gorm:"index;type:varchar(36)"`
	ParticipantB        string    `json:"participant_b" gorm:"index;type:varchar(36)"`
	LastMessageText     string    `json:"last_message_text"`
	LastMessageSenderID string    `json:"last_message_sender_id"`
	LastMessageRead     bool      `json:"last_message_read"`
	LastMessageAt       time.Time `json:"last_message_at"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Participants returns the two participant ids.
func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID == c.ParticipantA || userID == c.ParticipantB
}

// Peer returns the other participant for userID, or an empty string if userID
// is not a participant.
func (c *Conversation) Peer(userID string) string {
	switch userID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return ""
}

// Message is one entry in a conversation thread. Messages are append-only.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ConversationID string    `json:"conversation_id" gorm:"index;type:varchar(36)"`
	SenderID       string    `json:"sender_id" gorm:"type:varchar(36)"`
	Text           string    `json:"text" validate:"required"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}
