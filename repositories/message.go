package repositories

import (
	"bizlink/contract"
	"bizlink/domain"
	"bizlink/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Create(ctx context.Context, message domain.NewMessage) (domain.Message, error)
	Get(ctx context.Context, messageID string) (domain.Message, error)
	MarkAsRead(ctx context.Context, messageID string, at time.Time) (domain.Message, bool, error)
	SoftDeleteForUser(ctx context.Context, messageID, userID string) error
	SoftDeleteConversationForUser(ctx context.Context, conversationID, userID string) (int, error)
	ListForConversation(ctx context.Context, conversationID, forUserID string, cursor *string) ([]domain.Message, *string, error)
	CountUnread(ctx context.Context, conversationID, forUserID string) (int, error)
}

type MessageRepository struct {
	db            *badger.DB
	directory     contract.IUserDirectory
	log           *slog.Logger
	limitMessages *int
	now           func() time.Time
	// deleteBatchSize bounds the messages rewritten per transaction.
	deleteBatchSize int
}

const defaultDeleteBatchSize = 500

func NewMessageRepository(db *badger.DB, directory contract.IUserDirectory, log *slog.Logger, limitMessages *int, now func() time.Time) MessageRepository {
	return MessageRepository{db: db, directory: directory, log: log, limitMessages: limitMessages, now: now}
}

type diskAttachment struct {
	URL      string `cbor:"1,keyasint"`
	Name     string `cbor:"2,keyasint,omitempty"`
	MimeType string `cbor:"3,keyasint,omitempty"`
	Size     int64  `cbor:"4,keyasint,omitempty"`
}

type diskMessage struct {
	ID             string           `cbor:"1,keyasint"`
	ConversationID string           `cbor:"2,keyasint"`
	SenderID       string           `cbor:"3,keyasint"`
	ReceiverID     string           `cbor:"4,keyasint"`
	BusinessID     string           `cbor:"5,keyasint"`
	Content        string           `cbor:"6,keyasint"`
	MessageType    string           `cbor:"7,keyasint"`
	Attachments    []diskAttachment `cbor:"8,keyasint,omitempty"`
	IsRead         bool             `cbor:"9,keyasint"`
	ReadAt         int64            `cbor:"10,keyasint,omitempty"`
	DeletedFor     []string         `cbor:"11,keyasint,omitempty"`
	CreatedAt      int64            `cbor:"12,keyasint"`
}

// messageKey is formatted as "msg:{conversation_id}:{timestamp_padded}:{uuid}":
//  1. The 19-digit zero padding keeps lexicographical order chronological.
//  2. The UUID separates two messages created in the same nanosecond.
func messageKey(conversationID string, at time.Time, id string) []byte {
	return fmt.Appendf(nil, "msg:%s:%019d:%s", conversationID, at.UnixNano(), id)
}

func messagePrefix(conversationID string) []byte {
	return []byte("msg:" + conversationID + ":")
}

// messageIDKey points from a message id to its position in the log.
func messageIDKey(messageID string) []byte {
	return []byte("msgid:" + messageID)
}

// Create validates and appends a message to its conversation log.
func (m MessageRepository) Create(ctx context.Context, message domain.NewMessage) (domain.Message, error) {
	message, err := message.Normalize()
	if err != nil {
		return domain.Message{}, err
	}
	if _, err := m.directory.GetUser(ctx, message.ReceiverID); err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return domain.Message{}, errors.ErrReceiverNotFound
		}
		return domain.Message{}, err
	}

	created := domain.Message{
		ID:             uuid.New().String(),
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		BusinessID:     message.BusinessID,
		Content:        message.Content,
		MessageType:    message.MessageType,
		Attachments:    message.Attachments,
		CreatedAt:      m.now().UTC(),
	}
	record := fromMessage(created)
	key := messageKey(created.ConversationID, created.CreatedAt, created.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := writeValue(txn, key, record); err != nil {
			return err
		}
		return txn.Set(messageIDKey(created.ID), key)
	})
	if err != nil {
		return domain.Message{}, errors.Persistence("store message", err)
	}
	return toMessage(record), nil
}

func (m MessageRepository) Get(ctx context.Context, messageID string) (domain.Message, error) {
	var record diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		_, err := readMessage(txn, messageID, &record)
		return err
	})
	if err != nil {
		return domain.Message{}, classify("read message", err)
	}
	return toMessage(record), nil
}

// MarkAsRead flips IsRead to true and stamps ReadAt. changed is false when
// the message was already read, in which case nothing is written.
func (m MessageRepository) MarkAsRead(ctx context.Context, messageID string, at time.Time) (domain.Message, bool, error) {
	var record diskMessage
	var changed bool
	err := updateWithRetry(ctx, m.db, func(txn *badger.Txn) error {
		changed = false
		key, err := readMessage(txn, messageID, &record)
		if err != nil {
			return err
		}
		if record.IsRead {
			return nil
		}
		record.IsRead = true
		record.ReadAt = at.UTC().UnixNano()
		changed = true
		return writeValue(txn, key, record)
	})
	if err != nil {
		return domain.Message{}, false, classify("mark message as read", err)
	}
	return toMessage(record), changed, nil
}

// SoftDeleteForUser hides one message from userID. The other participant
// still sees it.
func (m MessageRepository) SoftDeleteForUser(ctx context.Context, messageID, userID string) error {
	err := updateWithRetry(ctx, m.db, func(txn *badger.Txn) error {
		var record diskMessage
		key, err := readMessage(txn, messageID, &record)
		if err != nil {
			return err
		}
		if record.SenderID != userID && record.ReceiverID != userID {
			return errors.ErrNotParticipant
		}
		if lo.Contains(record.DeletedFor, userID) {
			return nil
		}
		record.DeletedFor = append(record.DeletedFor, userID)
		return writeValue(txn, key, record)
	})
	return classify("delete message", err)
}

// SoftDeleteConversationForUser hides every message of the conversation
// from userID and returns how many were newly hidden. Messages are rewritten
// in batches of deleteBatchSize, one transaction each, so long conversations
// stay under badger's transaction size limit.
func (m MessageRepository) SoftDeleteConversationForUser(ctx context.Context, conversationID, userID string) (int, error) {
	prefix := messagePrefix(conversationID)
	seekKey := prefix
	total := 0
	for seekKey != nil {
		count, next, err := m.softDeleteBatch(ctx, prefix, seekKey, userID)
		if err != nil {
			return total, classify("delete conversation messages", err)
		}
		total += count
		seekKey = next
	}
	return total, nil
}

// softDeleteBatch hides at most deleteBatchSize messages starting at seekKey
// and returns the key to resume from, nil once the log is exhausted.
func (m MessageRepository) softDeleteBatch(ctx context.Context, prefix, seekKey []byte, userID string) (int, []byte, error) {
	var count int
	var next []byte
	err := updateWithRetry(ctx, m.db, func(txn *badger.Txn) error {
		count, next = 0, nil
		type pending struct {
			key    []byte
			record diskMessage
		}
		var updates []pending
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if len(updates) == m.batchSize() {
				next = item.KeyCopy(nil)
				break
			}
			var record diskMessage
			if err := item.Value(func(val []byte) error { return decode(val, &record) }); err != nil {
				it.Close()
				return err
			}
			if record.SenderID != userID && record.ReceiverID != userID {
				continue
			}
			if lo.Contains(record.DeletedFor, userID) {
				continue
			}
			record.DeletedFor = append(record.DeletedFor, userID)
			updates = append(updates, pending{key: item.KeyCopy(nil), record: record})
		}
		it.Close()
		for _, u := range updates {
			if err := writeValue(txn, u.key, u.record); err != nil {
				return err
			}
		}
		count = len(updates)
		return nil
	})
	return count, next, err
}

func (m MessageRepository) batchSize() int {
	if m.deleteBatchSize > 0 {
		return m.deleteBatchSize
	}
	return defaultDeleteBatchSize
}

// ListForConversation returns the messages of a conversation in creation
// order, skipping those forUserID deleted. It stops once limitMessages
// messages are collected and returns the cursor to resume from; the cursor
// is nil when the log is exhausted.
func (m MessageRepository) ListForConversation(ctx context.Context, conversationID, forUserID string, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var next *string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := prefix
		if cursor != nil {
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && *m.limitMessages > 0 && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				last := messageCursor(messages[len(messages)-1])
				next = &last
				break
			}
			var record diskMessage
			if err := it.Item().Value(func(val []byte) error { return decode(val, &record) }); err != nil {
				return err
			}
			if lo.Contains(record.DeletedFor, forUserID) {
				continue
			}
			messages = append(messages, toMessage(record))
		}
		return nil
	})
	if err != nil {
		return nil, nil, classify("list messages", err)
	}
	return messages, next, nil
}

// CountUnread counts the unread messages addressed to forUserID.
func (m MessageRepository) CountUnread(ctx context.Context, conversationID, forUserID string) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record diskMessage
			if err := it.Item().Value(func(val []byte) error { return decode(val, &record) }); err != nil {
				return err
			}
			if record.ReceiverID == forUserID && !record.IsRead {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, classify("count unread messages", err)
	}
	return count, nil
}

// messageCursor is the part of the key after the conversation prefix.
func messageCursor(message domain.Message) string {
	return fmt.Sprintf("%019d:%s", message.CreatedAt.UnixNano(), message.ID)
}

func readMessage(txn *badger.Txn, messageID string, record *diskMessage) ([]byte, error) {
	item, err := txn.Get(messageIDKey(messageID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return key, readValue(txn, key, record, errors.ErrMessageNotFound)
}

func fromMessage(message domain.Message) diskMessage {
	record := diskMessage{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		BusinessID:     message.BusinessID,
		Content:        message.Content,
		MessageType:    string(message.MessageType),
		Attachments: lo.Map(message.Attachments, func(a domain.Attachment, _ int) diskAttachment {
			return diskAttachment(a)
		}),
		IsRead:     message.IsRead,
		DeletedFor: fromSet(message.DeletedFor),
		CreatedAt:  message.CreatedAt.UnixNano(),
	}
	if message.ReadAt != nil {
		record.ReadAt = message.ReadAt.UnixNano()
	}
	return record
}

func toMessage(record diskMessage) domain.Message {
	message := domain.Message{
		ID:             record.ID,
		ConversationID: record.ConversationID,
		SenderID:       record.SenderID,
		ReceiverID:     record.ReceiverID,
		BusinessID:     record.BusinessID,
		Content:        record.Content,
		MessageType:    domain.MessageType(record.MessageType),
		Attachments: lo.Map(record.Attachments, func(a diskAttachment, _ int) domain.Attachment {
			return domain.Attachment(a)
		}),
		IsRead:     record.IsRead,
		DeletedFor: toSet(record.DeletedFor),
		CreatedAt:  time.Unix(0, record.CreatedAt).UTC(),
	}
	if record.IsRead && record.ReadAt != 0 {
		readAt := time.Unix(0, record.ReadAt).UTC()
		message.ReadAt = &readAt
	}
	return message
}
