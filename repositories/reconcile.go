package repositories

import (
	"context"
)

// Drift is a participant whose unread counter disagrees with the log.
type Drift struct {
	ConversationID string
	UserID         string
	Counter        int
	Actual         int
}

// Reconcile compares both unread counters of a conversation with the number
// of unread messages actually addressed to each participant.
func Reconcile(ctx context.Context, conversations IConversationRepository, messages IMessageRepository, conversationID string) ([]Drift, error) {
	conversation, err := conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	var drifts []Drift
	for _, userID := range conversation.Participants {
		actual, err := messages.CountUnread(ctx, conversationID, userID)
		if err != nil {
			return nil, err
		}
		if counter := conversation.UnreadFor(userID); counter != actual {
			drifts = append(drifts, Drift{
				ConversationID: conversationID,
				UserID:         userID,
				Counter:        counter,
				Actual:         actual,
			})
		}
	}
	return drifts, nil
}
