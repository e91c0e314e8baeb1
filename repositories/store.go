package repositories

import (
	"bizlink/errors"
	"context"
	"reflect"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"
)

// maxConflictRetries bounds read-modify-write loops on hot records such as
// the unread counters of a busy conversation.
const maxConflictRetries = 10

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("repositories: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("repositories: CBOR decoder initialization failed: " + err.Error())
	}
}

func encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// readValue decodes the value stored at key into v.
// A missing key is reported as notFound.
func readValue(txn *badger.Txn, key []byte, v any, notFound error) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return decode(val, v)
	})
}

func writeValue(txn *badger.Txn, key []byte, v any) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// updateWithRetry runs fn in a read-write transaction and replays it when
// badger detects a concurrent write on one of the keys it read.
func updateWithRetry(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// classify keeps typed errors as they are and turns anything else coming
// out of badger into a persistence error.
func classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var typed *errors.Error
	if errors.As(err, &typed) {
		return err
	}
	return errors.Persistence(msg, err)
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func fromSet(set map[string]struct{}) []string {
	ids := lo.Keys(set)
	slices.Sort(ids)
	return ids
}
