//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks
package contract

import (
	"bizlink/domain"
	"context"
)

// IUserDirectory resolves users and businesses. The messaging core never
// writes to it.
type IUserDirectory interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetBusiness(ctx context.Context, businessID string) (domain.Business, error)
}
