package services_test

import (
	"sync"
	"testing"

	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/internal/services"

	"github.com/stretchr/testify/assert"
)

func newConversationService() *services.ConversationService {
	return services.NewConversationService(repositories.NewMockConversationRepository())
}

func TestConversationService_FindOrCreate(t *testing.T) {
	service := newConversationService()

	conv, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.ElementsMatch(t, []string{"cust-1", "keeper-1"}, conv.Participants())
	assert.Equal(t, "Conversation started", conv.LastMessageText)
	assert.Equal(t, "cust-1", conv.LastMessageSenderID, "the initiator stamps the opening message")
}

func TestConversationService_FindOrCreate_Idempotent(t *testing.T) {
	service := newConversationService()

	first, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)
	second, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Argument order does not matter.
	swapped, err := service.FindOrCreateConversation("keeper-1", "cust-1")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, swapped.ID)
}

func TestConversationService_FindOrCreate_Concurrent(t *testing.T) {
	service := newConversationService()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := service.FindOrCreateConversation("cust-1", "keeper-1")
			assert.NoError(t, err)
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	// Exactly one conversation exists no matter how the calls interleave.
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	convs, err := service.GetConversations("cust-1")
	assert.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestConversationService_FindOrCreate_Rejections(t *testing.T) {
	service := newConversationService()

	_, err := service.FindOrCreateConversation("cust-1", "cust-1")
	assert.Error(t, err)

	_, err = service.FindOrCreateConversation("", "keeper-1")
	assert.Error(t, err)
}

func TestConversationService_SendMessage(t *testing.T) {
	service := newConversationService()

	conv, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)

	msg, err := service.SendMessage(conv.ID, "cust-1", "Is the milk fresh?")
	assert.NoError(t, err)
	assert.Equal(t, "cust-1", msg.SenderID)
	assert.False(t, msg.Read)

	// The denormalized preview mirrors the newest message.
	updated, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)
	assert.Equal(t, "Is the milk fresh?", updated.LastMessageText)
	assert.Equal(t, "cust-1", updated.LastMessageSenderID)

	messages, err := service.GetMessages(conv.ID, "keeper-1")
	assert.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, "Is the milk fresh?", messages[0].Text)
}

func TestConversationService_SendMessage_Rejections(t *testing.T) {
	service := newConversationService()

	conv, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)

	_, err = service.SendMessage(conv.ID, "cust-1", "")
	assert.Error(t, err)

	_, err = service.SendMessage(conv.ID, "mallory", "hello")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = service.SendMessage("no-such-conversation", "cust-1", "hello")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConversationService_SendInitialMessage_WithProduct(t *testing.T) {
	service := newConversationService()

	conv, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)

	product := &models.Product{ID: "p1", Name: "Milk", Price: 40}
	msg, err := service.SendInitialMessage(conv.ID, "cust-1", product)
	assert.NoError(t, err)
	assert.Contains(t, msg.Text, "Milk")
	assert.Contains(t, msg.Text, "40.00")

	updated, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)
	assert.Contains(t, updated.LastMessageText, "Milk")
	assert.Contains(t, updated.LastMessageText, "40.00")

	messages, err := service.GetMessages(conv.ID, "cust-1")
	assert.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, "cust-1", messages[0].SenderID)
}

func TestConversationService_SendInitialMessage_WithoutProduct(t *testing.T) {
	service := newConversationService()

	conv, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)

	msg, err := service.SendInitialMessage(conv.ID, "cust-1", nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, msg.Text)
}

func TestConversationService_GetMessages_ParticipantsOnly(t *testing.T) {
	service := newConversationService()

	conv, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)

	_, err = service.GetMessages(conv.ID, "mallory")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestConversationService_Subscriptions(t *testing.T) {
	service := newConversationService()

	var snapshots [][]models.Conversation
	unsubscribe, err := service.SubscribeToConversations("keeper-1", func(convs []models.Conversation) {
		snapshots = append(snapshots, convs)
	})
	assert.NoError(t, err)

	assert.Len(t, snapshots, 1)
	assert.Empty(t, snapshots[0])

	conv, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)
	assert.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1], 1)

	_, err = service.SendMessage(conv.ID, "cust-1", "hello")
	assert.NoError(t, err)
	assert.Len(t, snapshots, 3)
	assert.Equal(t, "hello", snapshots[2][0].LastMessageText)

	unsubscribe()
	_, err = service.SendMessage(conv.ID, "keeper-1", "hi there")
	assert.NoError(t, err)
	assert.Len(t, snapshots, 3, "no delivery after unsubscribe")
}

func TestConversationService_ConversationListOrdering(t *testing.T) {
	service := newConversationService()

	first, err := service.FindOrCreateConversation("cust-1", "keeper-1")
	assert.NoError(t, err)
	second, err := service.FindOrCreateConversation("cust-1", "keeper-2")
	assert.NoError(t, err)

	// Messaging the older thread bumps it back to the top.
	_, err = service.SendMessage(first.ID, "cust-1", "are you open?")
	assert.NoError(t, err)

	convs, err := service.GetConversations("cust-1")
	assert.NoError(t, err)
	assert.Len(t, convs, 2)
	assert.Equal(t, first.ID, convs[0].ID)
	assert.Equal(t, second.ID, convs[1].ID)
}
