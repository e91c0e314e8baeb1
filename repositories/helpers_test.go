package repositories

import (
	"bizlink/domain"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const (
	customerID = "customer-1"
	ownerID    = "owner-1"
	businessID = "business-1"
)

// stepClock returns strictly increasing instants so log order is deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	db            *badger.DB
	log           *slog.Logger
	clock         *stepClock
	directory     DirectoryRepository
	conversations ConversationRepository
	messages      MessageRepository
}

func setup(t *testing.T, limitMessages *int) fixture {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	clock := newStepClock()
	directory := NewDirectoryRepository(db)
	ctx := context.Background()
	req.NoError(directory.PutUser(ctx, domain.User{ID: customerID, FirstName: "Alice", Role: domain.RoleCustomer}))
	req.NoError(directory.PutUser(ctx, domain.User{ID: ownerID, FirstName: "Bob", Role: domain.RoleBusiness}))
	req.NoError(directory.PutBusiness(ctx, domain.Business{ID: businessID, OwnerID: ownerID, Name: "Bob's Bakery"}))

	return fixture{
		db:            db,
		log:           log,
		clock:         clock,
		directory:     directory,
		conversations: NewConversationRepository(db, log, clock.Now),
		messages:      NewMessageRepository(db, directory, log, limitMessages, clock.Now),
	}
}

func (f fixture) send(t *testing.T, conversationID, from, to, content string) domain.Message {
	t.Helper()
	message, err := f.messages.Create(context.Background(), domain.NewMessage{
		ConversationID: conversationID,
		SenderID:       from,
		ReceiverID:     to,
		BusinessID:     businessID,
		Content:        content,
		MessageType:    domain.MessageTypeText,
	})
	require.NoError(t, err)
	return message
}
