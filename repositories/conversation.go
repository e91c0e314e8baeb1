package repositories

import (
	"bizlink/domain"
	"bizlink/errors"
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IConversationRepository interface {
	FindOrCreate(ctx context.Context, customerID, businessID, businessOwnerID string) (domain.Conversation, error)
	Get(ctx context.Context, conversationID string) (domain.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID, messageID, content string, at time.Time) error
	IncrementUnread(ctx context.Context, conversationID, forUserID string) error
	ResetUnread(ctx context.Context, conversationID, forUserID string) error
	ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	DeactivateForUser(ctx context.Context, conversationID, userID string) error
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewConversationRepository(db *badger.DB, log *slog.Logger, now func() time.Time) ConversationRepository {
	return ConversationRepository{db: db, log: log, now: now}
}

type diskConversation struct {
	ID                 string   `cbor:"1,keyasint"`
	CustomerID         string   `cbor:"2,keyasint"`
	BusinessOwnerID    string   `cbor:"3,keyasint"`
	BusinessID         string   `cbor:"4,keyasint"`
	LastMessageID      string   `cbor:"5,keyasint,omitempty"`
	LastMessageContent string   `cbor:"6,keyasint,omitempty"`
	LastMessageTime    int64    `cbor:"7,keyasint"`
	UnreadCustomer     int      `cbor:"8,keyasint"`
	UnreadOwner        int      `cbor:"9,keyasint"`
	IsActive           bool     `cbor:"10,keyasint"`
	DeactivatedFor     []string `cbor:"11,keyasint,omitempty"`
	CreatedAt          int64    `cbor:"12,keyasint"`
}

func conversationKey(conversationID string) []byte {
	return []byte("conv:" + conversationID)
}

// participantKey indexes a conversation under one of its participants.
// The value is empty, the conversation id is the key suffix.
func participantKey(userID, conversationID string) []byte {
	return []byte("convuser:" + userID + ":" + conversationID)
}

// FindOrCreate returns the conversation of the (customer, business) pair and
// creates it on first use. Creation runs in a transaction that reads the key
// first: when two writers race, badger rejects the loser with ErrConflict
// and the loser returns the winner's record.
func (r ConversationRepository) FindOrCreate(ctx context.Context, customerID, businessID, businessOwnerID string) (domain.Conversation, error) {
	conversationID := domain.ConversationID(customerID, businessID)
	existing, err := r.Get(ctx, conversationID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errors.ErrConversationNotFound) {
		return domain.Conversation{}, err
	}

	record := fromConversation(domain.NewConversation(customerID, businessID, businessOwnerID, r.now()))
	key := conversationKey(conversationID)
	created := false
	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err = writeValue(txn, key, record); err != nil {
			return err
		}
		for _, userID := range []string{customerID, businessOwnerID} {
			if err = txn.Set(participantKey(userID, conversationID), nil); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	switch {
	case err == nil && created:
		r.log.Debug("Conversation created", "conversation_id", conversationID)
		return toConversation(record), nil
	case err == nil, errors.Is(err, badger.ErrConflict):
		r.log.Debug("Conversation created concurrently, reading winner", "conversation_id", conversationID)
		return r.Get(ctx, conversationID)
	default:
		return domain.Conversation{}, errors.Persistence("create conversation", err)
	}
}

func (r ConversationRepository) Get(ctx context.Context, conversationID string) (domain.Conversation, error) {
	var record diskConversation
	err := r.db.View(func(txn *badger.Txn) error {
		return readValue(txn, conversationKey(conversationID), &record, errors.ErrConversationNotFound)
	})
	if err != nil {
		return domain.Conversation{}, classify("read conversation", err)
	}
	return toConversation(record), nil
}

// UpdateLastMessage overwrites the preview unconditionally. A new message
// makes the conversation visible again to anyone who had deactivated it.
func (r ConversationRepository) UpdateLastMessage(ctx context.Context, conversationID, messageID, content string, at time.Time) error {
	return r.update(ctx, conversationID, func(c *domain.Conversation) error {
		c.LastMessageID = messageID
		c.LastMessageContent = content
		c.LastMessageTime = at
		c.IsActive = true
		c.DeactivatedFor = nil
		return nil
	})
}

func (r ConversationRepository) IncrementUnread(ctx context.Context, conversationID, forUserID string) error {
	return r.update(ctx, conversationID, func(c *domain.Conversation) error {
		return adjustUnread(c, forUserID, func(n int) int { return n + 1 })
	})
}

// ResetUnread takes one message off the counter of forUserID. Callers run it
// once per message that actually turned read, so the counter stays equal to
// increments minus resets.
func (r ConversationRepository) ResetUnread(ctx context.Context, conversationID, forUserID string) error {
	return r.update(ctx, conversationID, func(c *domain.Conversation) error {
		return adjustUnread(c, forUserID, func(n int) int { return n - 1 })
	})
}

// ListForUser returns the conversations userID still sees, most recent
// activity first.
func (r ConversationRepository) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("convuser:" + userID + ":")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record diskConversation
			if err := readValue(txn, conversationKey(id), &record, errors.ErrConversationNotFound); err != nil {
				return err
			}
			conversations = append(conversations, toConversation(record))
		}
		return nil
	})
	if err != nil {
		return nil, classify("list conversations", err)
	}

	visible := lo.Filter(conversations, func(c domain.Conversation, _ int) bool {
		return c.VisibleTo(userID)
	})
	slices.SortStableFunc(visible, func(a, b domain.Conversation) int {
		return b.LastMessageTime.Compare(a.LastMessageTime)
	})
	return visible, nil
}

// DeactivateForUser hides the conversation from userID only.
func (r ConversationRepository) DeactivateForUser(ctx context.Context, conversationID, userID string) error {
	return r.update(ctx, conversationID, func(c *domain.Conversation) error {
		if !c.HasParticipant(userID) {
			return errors.ErrNotParticipant
		}
		if c.DeactivatedFor == nil {
			c.DeactivatedFor = make(map[string]struct{}, 1)
		}
		c.DeactivatedFor[userID] = struct{}{}
		return nil
	})
}

func (r ConversationRepository) update(ctx context.Context, conversationID string, mutate func(c *domain.Conversation) error) error {
	key := conversationKey(conversationID)
	err := updateWithRetry(ctx, r.db, func(txn *badger.Txn) error {
		var record diskConversation
		if err := readValue(txn, key, &record, errors.ErrConversationNotFound); err != nil {
			return err
		}
		conversation := toConversation(record)
		if err := mutate(&conversation); err != nil {
			return err
		}
		return writeValue(txn, key, fromConversation(conversation))
	})
	return classify("update conversation", err)
}

// adjustUnread applies fn to the counter of the slot forUserID occupies.
// Counters never go below zero.
func adjustUnread(c *domain.Conversation, forUserID string, fn func(int) int) error {
	role, ok := c.RoleOf(forUserID)
	if !ok {
		return errors.ErrNotParticipant
	}
	switch role {
	case domain.RoleCustomer:
		c.UnreadCount.Customer = max(0, fn(c.UnreadCount.Customer))
	default:
		c.UnreadCount.BusinessOwner = max(0, fn(c.UnreadCount.BusinessOwner))
	}
	return nil
}

func fromConversation(c domain.Conversation) diskConversation {
	return diskConversation{
		ID:                 c.ConversationID,
		CustomerID:         c.CustomerID,
		BusinessOwnerID:    c.BusinessOwnerID,
		BusinessID:         c.BusinessID,
		LastMessageID:      c.LastMessageID,
		LastMessageContent: c.LastMessageContent,
		LastMessageTime:    c.LastMessageTime.UnixNano(),
		UnreadCustomer:     c.UnreadCount.Customer,
		UnreadOwner:        c.UnreadCount.BusinessOwner,
		IsActive:           c.IsActive,
		DeactivatedFor:     fromSet(c.DeactivatedFor),
		CreatedAt:          c.CreatedAt.UnixNano(),
	}
}

func toConversation(d diskConversation) domain.Conversation {
	return domain.Conversation{
		ConversationID:     d.ID,
		CustomerID:         d.CustomerID,
		BusinessOwnerID:    d.BusinessOwnerID,
		BusinessID:         d.BusinessID,
		Participants:       [2]string{d.CustomerID, d.BusinessOwnerID},
		LastMessageID:      d.LastMessageID,
		LastMessageContent: d.LastMessageContent,
		LastMessageTime:    time.Unix(0, d.LastMessageTime).UTC(),
		UnreadCount:        domain.UnreadCount{Customer: d.UnreadCustomer, BusinessOwner: d.UnreadOwner},
		IsActive:           d.IsActive,
		DeactivatedFor:     toSet(d.DeactivatedFor),
		CreatedAt:          time.Unix(0, d.CreatedAt).UTC(),
	}
}
