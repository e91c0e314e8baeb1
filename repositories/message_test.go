package repositories

import (
	"bizlink/domain"
	"bizlink/errors"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_Create_Assigns_Id_And_Time(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()
	conversationID := domain.ConversationID(customerID, businessID)

	// When a message is created with surrounding whitespace
	message, err := f.messages.Create(ctx, domain.NewMessage{
		ConversationID: conversationID,
		SenderID:       customerID,
		ReceiverID:     ownerID,
		BusinessID:     businessID,
		Content:        "  hello  ",
	})
	req.NoError(err)

	// Then the store assigned the identity fields
	req.NotEmpty(message.ID)
	req.False(message.CreatedAt.IsZero())
	req.Equal("hello", message.Content)
	req.Equal(domain.MessageTypeText, message.MessageType)
	req.False(message.IsRead)
	req.Nil(message.ReadAt)

	fetched, err := f.messages.Get(ctx, message.ID)
	req.NoError(err)
	req.Equal(message, fetched)
}

func TestMessageRepository_Create_Rejects_Invalid_Input(t *testing.T) {
	f := setup(t, nil)
	conversationID := domain.ConversationID(customerID, businessID)

	tests := []struct {
		name    string
		message domain.NewMessage
		want    error
	}{
		{
			name:    "blank text",
			message: domain.NewMessage{ConversationID: conversationID, SenderID: customerID, ReceiverID: ownerID, Content: "   "},
			want:    errors.ErrEmptyContent,
		},
		{
			name:    "image without attachment",
			message: domain.NewMessage{ConversationID: conversationID, SenderID: customerID, ReceiverID: ownerID, MessageType: domain.MessageTypeImage},
			want:    errors.ErrEmptyContent,
		},
		{
			name:    "unknown type",
			message: domain.NewMessage{ConversationID: conversationID, SenderID: customerID, ReceiverID: ownerID, Content: "hi", MessageType: "video"},
			want:    errors.ErrInvalidMessageType,
		},
		{
			name:    "unknown receiver",
			message: domain.NewMessage{ConversationID: conversationID, SenderID: customerID, ReceiverID: "ghost", Content: "hi"},
			want:    errors.ErrReceiverNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := f.messages.Create(context.Background(), tt.message)
			req.ErrorIs(err, tt.want)
		})
	}

	// And nothing was written
	messages, _, err := f.messages.ListForConversation(context.Background(), conversationID, customerID, nil)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestMessageRepository_Image_With_Attachment_Needs_No_Text(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)

	message, err := f.messages.Create(context.Background(), domain.NewMessage{
		ConversationID: domain.ConversationID(customerID, businessID),
		SenderID:       customerID,
		ReceiverID:     ownerID,
		BusinessID:     businessID,
		MessageType:    domain.MessageTypeImage,
		Attachments:    []domain.Attachment{{URL: "https://cdn.example/cake.png", MimeType: "image/png", Size: 2048}},
	})

	req.NoError(err)
	req.Len(message.Attachments, 1)
	req.Equal("image/png", message.Attachments[0].MimeType)
}

func TestMessageRepository_MarkAsRead_Is_Monotonic(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()
	message := f.send(t, domain.ConversationID(customerID, businessID), customerID, ownerID, "hi")
	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

	// When the message is read for the first time
	read, changed, err := f.messages.MarkAsRead(ctx, message.ID, at)
	req.NoError(err)
	req.True(changed)
	req.True(read.IsRead)
	req.Equal(at, *read.ReadAt)

	// Then reading it again changes nothing
	again, changed, err := f.messages.MarkAsRead(ctx, message.ID, at.Add(time.Hour))
	req.NoError(err)
	req.False(changed)
	req.Equal(at, *again.ReadAt)

	// And unknown messages are reported as such
	_, _, err = f.messages.MarkAsRead(ctx, "missing", at)
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func TestMessageRepository_List_Is_Ordered_And_Paginated(t *testing.T) {
	req := require.New(t)
	f := setup(t, lo.ToPtr(2))
	ctx := context.Background()
	conversationID := domain.ConversationID(customerID, businessID)

	// Given five messages
	var sent []string
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		sent = append(sent, f.send(t, conversationID, customerID, ownerID, content).Content)
	}

	// When paging through the conversation
	var received []string
	var cursor *string
	pages := 0
	for {
		messages, next, err := f.messages.ListForConversation(ctx, conversationID, ownerID, cursor)
		req.NoError(err)
		req.LessOrEqual(len(messages), 2)
		for _, m := range messages {
			received = append(received, m.Content)
		}
		pages++
		if next == nil {
			break
		}
		cursor = next
	}

	// Then every message comes back once in creation order
	req.Equal(sent, received)
	req.Equal(3, pages)
}

func TestMessageRepository_SoftDelete_Is_Per_User(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()
	conversationID := domain.ConversationID(customerID, businessID)
	first := f.send(t, conversationID, customerID, ownerID, "one")
	f.send(t, conversationID, ownerID, customerID, "two")

	// When the customer deletes one message
	req.NoError(f.messages.SoftDeleteForUser(ctx, first.ID, customerID))

	// Then the customer no longer sees it but the owner still does
	forCustomer, _, err := f.messages.ListForConversation(ctx, conversationID, customerID, nil)
	req.NoError(err)
	req.Len(forCustomer, 1)
	req.Equal("two", forCustomer[0].Content)
	forOwner, _, err := f.messages.ListForConversation(ctx, conversationID, ownerID, nil)
	req.NoError(err)
	req.Len(forOwner, 2)

	// And outsiders cannot delete anything
	req.ErrorIs(f.messages.SoftDeleteForUser(ctx, first.ID, "stranger"), errors.ErrNotParticipant)

	// When the owner clears the whole conversation
	count, err := f.messages.SoftDeleteConversationForUser(ctx, conversationID, ownerID)
	req.NoError(err)
	req.Equal(2, count)

	// Then the owner's view is empty and the records remain
	forOwner, _, err = f.messages.ListForConversation(ctx, conversationID, ownerID, nil)
	req.NoError(err)
	req.Empty(forOwner)
	stored, err := f.messages.Get(ctx, first.ID)
	req.NoError(err)
	req.Equal("one", stored.Content)
	req.True(stored.DeletedForUser(customerID))
	req.True(stored.DeletedForUser(ownerID))
}

func TestMessageRepository_SoftDeleteConversationForUser_Spans_Batches(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	f.messages.deleteBatchSize = 2
	ctx := context.Background()
	conversationID := domain.ConversationID(customerID, businessID)

	// Given more messages than one batch holds, one already hidden
	var sent []domain.Message
	for i := range 7 {
		sent = append(sent, f.send(t, conversationID, customerID, ownerID, fmt.Sprintf("message %d", i)))
	}
	req.NoError(f.messages.SoftDeleteForUser(ctx, sent[3].ID, ownerID))

	// When the owner clears the conversation
	count, err := f.messages.SoftDeleteConversationForUser(ctx, conversationID, ownerID)

	// Then every remaining message is hidden across batches
	req.NoError(err)
	req.Equal(6, count)
	forOwner, _, err := f.messages.ListForConversation(ctx, conversationID, ownerID, nil)
	req.NoError(err)
	req.Empty(forOwner)
	forCustomer, _, err := f.messages.ListForConversation(ctx, conversationID, customerID, nil)
	req.NoError(err)
	req.Len(forCustomer, 7)

	// And a second pass finds nothing left
	count, err = f.messages.SoftDeleteConversationForUser(ctx, conversationID, ownerID)
	req.NoError(err)
	req.Zero(count)
}

func TestReconcile_Single_Message_Flow_Has_No_Drift(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()

	// Given the customer sends one message to the owner
	conversation, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)
	message := f.send(t, conversation.ConversationID, customerID, ownerID, "hi")
	req.NoError(f.conversations.UpdateLastMessage(ctx, conversation.ConversationID, message.ID, message.Content, message.CreatedAt))
	req.NoError(f.conversations.IncrementUnread(ctx, conversation.ConversationID, ownerID))

	drifts, err := Reconcile(ctx, f.conversations, f.messages, conversation.ConversationID)
	req.NoError(err)
	req.Empty(drifts)

	// When the owner reads it
	_, changed, err := f.messages.MarkAsRead(ctx, message.ID, f.clock.Now())
	req.NoError(err)
	req.True(changed)
	req.NoError(f.conversations.ResetUnread(ctx, conversation.ConversationID, ownerID))

	// Then counters and log still agree
	drifts, err = Reconcile(ctx, f.conversations, f.messages, conversation.ConversationID)
	req.NoError(err)
	req.Empty(drifts)
}

func TestReconcile_Partial_Reads_Have_No_Drift(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()
	conversation, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)
	id := conversation.ConversationID

	// Given three messages to the owner and one back to the customer
	var toOwner []domain.Message
	for _, content := range []string{"one", "two", "three"} {
		message := f.send(t, id, customerID, ownerID, content)
		req.NoError(f.conversations.IncrementUnread(ctx, id, ownerID))
		toOwner = append(toOwner, message)
	}
	f.send(t, id, ownerID, customerID, "reply")
	req.NoError(f.conversations.IncrementUnread(ctx, id, customerID))

	// When the owner reads the first and the last, the last one twice
	for _, message := range []domain.Message{toOwner[0], toOwner[2], toOwner[2]} {
		_, changed, err := f.messages.MarkAsRead(ctx, message.ID, f.clock.Now())
		req.NoError(err)
		if changed {
			req.NoError(f.conversations.ResetUnread(ctx, id, ownerID))
		}
	}

	// Then one message stays unread for each side and nothing drifted
	conversation, err = f.conversations.Get(ctx, id)
	req.NoError(err)
	req.Equal(domain.UnreadCount{Customer: 1, BusinessOwner: 1}, conversation.UnreadCount)
	drifts, err := Reconcile(ctx, f.conversations, f.messages, id)
	req.NoError(err)
	req.Empty(drifts)
}

func TestReconcile_Reports_Drift(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()
	conversation, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)

	// Given a message whose counter update never happened
	f.send(t, conversation.ConversationID, customerID, ownerID, "hi")

	drifts, err := Reconcile(ctx, f.conversations, f.messages, conversation.ConversationID)
	req.NoError(err)
	req.Equal([]Drift{{ConversationID: conversation.ConversationID, UserID: ownerID, Counter: 0, Actual: 1}}, drifts)
}
