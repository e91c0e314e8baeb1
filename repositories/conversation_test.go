package repositories

import (
	"bizlink/domain"
	"bizlink/errors"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestConversationRepository_FindOrCreate_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()

	// Given a conversation created once
	first, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)

	// When the same pair resolves again
	second, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)

	// Then the same record comes back
	req.Equal("conv_10_customer-1_business-1", first.ConversationID)
	req.Equal(first, second)
	req.True(first.IsActive)
	req.Equal([2]string{customerID, ownerID}, first.Participants)
	req.Equal(domain.UnreadCount{}, first.UnreadCount)
}

func TestConversationRepository_Concurrent_FindOrCreate_Converges(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()

	// Given many writers racing on a conversation that does not exist yet
	const writers = 16
	results := make([]domain.Conversation, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
		}()
	}

	// When they all run at once
	close(start)
	wg.Wait()

	// Then every writer gets the very same record
	for i := range writers {
		req.NoError(errs[i])
		req.Equal(results[0], results[i])
	}

	// And exactly one record exists in the store
	count := 0
	err := f.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		prefix := []byte("conv:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	req.NoError(err)
	req.Equal(1, count)
}

func TestConversationRepository_Pairs_Sharing_A_Joined_Id_Stay_Apart(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()

	// Given two pairs whose ids read the same once joined with '_'
	first, err := f.conversations.FindOrCreate(ctx, "alice_shop", "x", "owner-x")
	req.NoError(err)

	// When the second pair resolves its conversation
	second, err := f.conversations.FindOrCreate(ctx, "alice", "shop_x", "owner-shopx")
	req.NoError(err)

	// Then each pair owns its own record
	req.NotEqual(first.ConversationID, second.ConversationID)
	req.Equal("alice_shop", first.CustomerID)
	req.Equal("owner-x", first.BusinessOwnerID)
	req.Equal("alice", second.CustomerID)
	req.Equal("owner-shopx", second.BusinessOwnerID)
	req.False(second.HasParticipant("alice_shop"))
}

func TestDirectoryRepository_Rejects_Ids_With_Key_Separator(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()

	err := f.directory.PutUser(ctx, domain.User{ID: "eve:1", Role: domain.RoleCustomer})
	req.Equal(errors.KindValidation, errors.KindOf(err))

	err = f.directory.PutBusiness(ctx, domain.Business{ID: "shop:1", OwnerID: ownerID})
	req.Equal(errors.KindValidation, errors.KindOf(err))

	_, err = f.directory.GetUser(ctx, "eve:1")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestConversationRepository_Get_Unknown_Is_NotFound(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)

	_, err := f.conversations.Get(context.Background(), "conv_nobody_nothing")

	req.ErrorIs(err, errors.ErrConversationNotFound)
	req.Equal(errors.KindNotFound, errors.KindOf(err))
}

func TestConversationRepository_Unread_Counters(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()
	conversation, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)
	id := conversation.ConversationID

	// When the owner receives two messages
	req.NoError(f.conversations.IncrementUnread(ctx, id, ownerID))
	req.NoError(f.conversations.IncrementUnread(ctx, id, ownerID))

	// Then only the owner's slot moves
	conversation, err = f.conversations.Get(ctx, id)
	req.NoError(err)
	req.Equal(domain.UnreadCount{Customer: 0, BusinessOwner: 2}, conversation.UnreadCount)

	// When the owner reads one of them
	req.NoError(f.conversations.ResetUnread(ctx, id, ownerID))

	// Then one stays unread
	conversation, err = f.conversations.Get(ctx, id)
	req.NoError(err)
	req.Equal(1, conversation.UnreadCount.BusinessOwner)

	// When resets outnumber increments
	req.NoError(f.conversations.ResetUnread(ctx, id, ownerID))
	req.NoError(f.conversations.ResetUnread(ctx, id, ownerID))

	// Then the counter stays at zero
	conversation, err = f.conversations.Get(ctx, id)
	req.NoError(err)
	req.Equal(0, conversation.UnreadCount.BusinessOwner)

	// And strangers cannot touch counters
	err = f.conversations.IncrementUnread(ctx, id, "stranger")
	req.ErrorIs(err, errors.ErrNotParticipant)
}

func TestConversationRepository_Concurrent_Increments_Are_Not_Lost(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()
	conversation, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)

	const increments = 8
	errs := make(chan error, increments)
	var wg sync.WaitGroup
	for range increments {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.conversations.IncrementUnread(ctx, conversation.ConversationID, customerID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	conversation, err = f.conversations.Get(ctx, conversation.ConversationID)
	req.NoError(err)
	req.Equal(increments, conversation.UnreadCount.Customer)
}

func TestConversationRepository_ListForUser_Orders_And_Hides(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()

	// Given two businesses of the same owner talking to the customer
	req.NoError(f.directory.PutBusiness(ctx, domain.Business{ID: "business-2", OwnerID: ownerID}))
	older, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)
	newer, err := f.conversations.FindOrCreate(ctx, customerID, "business-2", ownerID)
	req.NoError(err)

	// When the older one receives the latest message
	req.NoError(f.conversations.UpdateLastMessage(ctx, older.ConversationID, "m1", "hello", f.clock.Now()))

	// Then it is listed first for both participants
	for _, userID := range []string{customerID, ownerID} {
		listed, err := f.conversations.ListForUser(ctx, userID)
		req.NoError(err)
		req.Len(listed, 2)
		req.Equal(older.ConversationID, listed[0].ConversationID)
		req.Equal("hello", listed[0].LastMessageContent)
		req.Equal(newer.ConversationID, listed[1].ConversationID)
	}

	// When the customer deactivates the older one
	req.NoError(f.conversations.DeactivateForUser(ctx, older.ConversationID, customerID))

	// Then only the customer stops seeing it
	listed, err := f.conversations.ListForUser(ctx, customerID)
	req.NoError(err)
	req.Len(listed, 1)
	req.Equal(newer.ConversationID, listed[0].ConversationID)
	listed, err = f.conversations.ListForUser(ctx, ownerID)
	req.NoError(err)
	req.Len(listed, 2)

	// When a new message arrives it is visible again
	req.NoError(f.conversations.UpdateLastMessage(ctx, older.ConversationID, "m2", "are you there?", f.clock.Now()))
	listed, err = f.conversations.ListForUser(ctx, customerID)
	req.NoError(err)
	req.Len(listed, 2)
}

func TestConversationRepository_UpdateLastMessage_Overwrites(t *testing.T) {
	req := require.New(t)
	f := setup(t, nil)
	ctx := context.Background()
	conversation, err := f.conversations.FindOrCreate(ctx, customerID, businessID, ownerID)
	req.NoError(err)
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	req.NoError(f.conversations.UpdateLastMessage(ctx, conversation.ConversationID, "m1", "first", at))
	req.NoError(f.conversations.UpdateLastMessage(ctx, conversation.ConversationID, "m2", "second", at.Add(-time.Hour)))

	conversation, err = f.conversations.Get(ctx, conversation.ConversationID)
	req.NoError(err)
	req.Equal("m2", conversation.LastMessageID)
	req.Equal("second", conversation.LastMessageContent)
	req.Equal(at.Add(-time.Hour), conversation.LastMessageTime)
}
