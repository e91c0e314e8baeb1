package repositories

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Record is a stored key decoded for inspection tools.
type Record struct {
	Key    string
	Kind   string
	ID     string
	At     time.Time
	Detail string
}

// Describe decodes one key/value pair. Unknown or undecodable values are
// reported, not rejected.
func Describe(key string, value []byte) Record {
	record := Record{Key: key, Kind: "UNKNOWN"}
	prefix, _, _ := strings.Cut(key, ":")
	switch prefix {
	case "conv":
		var d diskConversation
		if record.decode(value, &d) {
			record.Kind, record.ID = "CONVERSATION", d.ID
			record.At = time.Unix(0, d.LastMessageTime).UTC()
			record.Detail = fmt.Sprintf("customer=%s owner=%s unread=%d/%d active=%t last=%q",
				d.CustomerID, d.BusinessOwnerID, d.UnreadCustomer, d.UnreadOwner, d.IsActive, d.LastMessageContent)
		}
	case "convuser":
		record.Kind = "INDEX"
		record.Detail = "participant index"
	case "msg":
		var d diskMessage
		if record.decode(value, &d) {
			record.Kind, record.ID = "MESSAGE", d.ID
			record.At = time.Unix(0, d.CreatedAt).UTC()
			record.Detail = fmt.Sprintf("%s->%s [%s] read=%t %q", d.SenderID, d.ReceiverID, d.MessageType, d.IsRead, d.Content)
		}
	case "msgid":
		record.Kind = "INDEX"
		record.Detail = string(value)
	case "user":
		var d diskUser
		if record.decode(value, &d) {
			record.Kind, record.ID = "USER", d.ID
			record.At = time.Unix(0, d.CreatedAt).UTC()
			record.Detail = fmt.Sprintf("%s %s <%s> %s", d.FirstName, d.LastName, d.Email, d.Role)
		}
	case "business":
		var d diskBusiness
		if record.decode(value, &d) {
			record.Kind, record.ID = "BUSINESS", d.ID
			record.Detail = fmt.Sprintf("%s (%s) owner=%s", d.Name, d.Type, d.OwnerID)
		}
	}
	return record
}

func (r *Record) decode(value []byte, v any) bool {
	if err := decode(value, v); err != nil {
		r.Kind = "CORRUPT"
		r.Detail = err.Error()
		return false
	}
	return true
}

// Scan describes every key under prefix, up to limit records when limit is
// positive.
func Scan(ctx context.Context, db *badger.DB, prefix string, limit int) ([]Record, error) {
	var records []Record
	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(prefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(options.Prefix); it.ValidForPrefix(options.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(records) >= limit {
				return nil
			}
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(v []byte) error {
				records = append(records, Describe(key, bytes.Clone(v)))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, classify("scan store", err)
}
