package repositories

import (
	"bizlink/domain"
	"bizlink/errors"
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DirectoryRepository stores the users and businesses the messaging core
// reads. Records are written by the seeding tool only.
type DirectoryRepository struct {
	db *badger.DB
}

func NewDirectoryRepository(db *badger.DB) DirectoryRepository {
	return DirectoryRepository{db: db}
}

type diskUser struct {
	ID        string `cbor:"1,keyasint"`
	Email     string `cbor:"2,keyasint"`
	FirstName string `cbor:"3,keyasint"`
	LastName  string `cbor:"4,keyasint"`
	Role      string `cbor:"5,keyasint"`
	CreatedAt int64  `cbor:"6,keyasint"`
}

type diskBusiness struct {
	ID      string `cbor:"1,keyasint"`
	OwnerID string `cbor:"2,keyasint"`
	Name    string `cbor:"3,keyasint"`
	Type    string `cbor:"4,keyasint"`
}

func userKey(userID string) []byte {
	return []byte("user:" + userID)
}

func businessKey(businessID string) []byte {
	return []byte("business:" + businessID)
}

// PutUser creates or replaces a user record.
func (d DirectoryRepository) PutUser(ctx context.Context, user domain.User) error {
	if !domain.ValidID(user.ID) || !user.Role.Valid() {
		return errors.Validation("user needs a valid id and role")
	}
	err := d.db.Update(func(txn *badger.Txn) error {
		return writeValue(txn, userKey(user.ID), fromUser(user))
	})
	return classify("store user", err)
}

// PutBusiness creates or replaces a business record. The owner must exist
// and hold the business role.
func (d DirectoryRepository) PutBusiness(ctx context.Context, business domain.Business) error {
	if !domain.ValidID(business.ID) {
		return errors.Validation("business needs a valid id")
	}
	err := d.db.Update(func(txn *badger.Txn) error {
		var owner diskUser
		if err := readValue(txn, userKey(business.OwnerID), &owner, errors.ErrUserNotFound); err != nil {
			return err
		}
		if domain.Role(owner.Role) != domain.RoleBusiness {
			return errors.Validation("business owner must have the business role")
		}
		return writeValue(txn, businessKey(business.ID), diskBusiness(business))
	})
	return classify("store business", err)
}

func (d DirectoryRepository) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var du diskUser
	err := d.db.View(func(txn *badger.Txn) error {
		return readValue(txn, userKey(userID), &du, errors.ErrUserNotFound)
	})
	if err != nil {
		return domain.User{}, classify("read user", err)
	}
	return toUser(du), nil
}

func (d DirectoryRepository) GetBusiness(ctx context.Context, businessID string) (domain.Business, error) {
	var db diskBusiness
	err := d.db.View(func(txn *badger.Txn) error {
		return readValue(txn, businessKey(businessID), &db, errors.ErrBusinessNotFound)
	})
	if err != nil {
		return domain.Business{}, classify("read business", err)
	}
	return domain.Business(db), nil
}

func fromUser(user domain.User) diskUser {
	return diskUser{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.UnixNano(),
	}
}

func toUser(du diskUser) domain.User {
	return domain.User{
		ID:        du.ID,
		Email:     du.Email,
		FirstName: du.FirstName,
		LastName:  du.LastName,
		Role:      domain.Role(du.Role),
		CreatedAt: time.Unix(0, du.CreatedAt).UTC(),
	}
}
