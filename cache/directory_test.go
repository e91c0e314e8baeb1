package cache

import (
	"bizlink/domain"
	"bizlink/errors"
	"bizlink/mocks"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mapCache is an in-process Cache for tests.
type mapCache struct {
	mu      sync.Mutex
	values  map[string]string
	failing bool
}

func newMapCache() *mapCache { return &mapCache{values: make(map[string]string)} }

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return "", stderrors.New("connection refused")
	}
	v, ok := c.values[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return stderrors.New("connection refused")
	}
	c.values[key] = value
	return nil
}

func (c *mapCache) Del(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := c.values[k]; ok {
			delete(c.values, k)
			n++
		}
	}
	return n, nil
}

func (c *mapCache) Ping(context.Context) error { return nil }
func (c *mapCache) Close() error               { return nil }

func TestCachedDirectory_Reads_Through_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockIUserDirectory(ctrl)
	directory := NewCachedDirectory(next, newMapCache(), time.Minute, logs.GetLoggerFromLevel(slog.LevelDebug))
	user := domain.User{ID: "u1", FirstName: "Alice", Role: domain.RoleCustomer, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	// Given the backing directory is hit only once
	next.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil).Times(1)

	// When the user is read twice
	first, err := directory.GetUser(context.Background(), "u1")
	req.NoError(err)
	second, err := directory.GetUser(context.Background(), "u1")
	req.NoError(err)

	// Then both reads agree
	req.Equal(user, first)
	req.Equal(user, second)
}

func TestCachedDirectory_Does_Not_Cache_Misses(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockIUserDirectory(ctrl)
	directory := NewCachedDirectory(next, newMapCache(), time.Minute, logs.GetLoggerFromLevel(slog.LevelDebug))

	next.EXPECT().GetBusiness(gomock.Any(), "b1").Return(domain.Business{}, errors.ErrBusinessNotFound)
	next.EXPECT().GetBusiness(gomock.Any(), "b1").Return(domain.Business{ID: "b1", OwnerID: "o1"}, nil)

	_, err := directory.GetBusiness(context.Background(), "b1")
	req.ErrorIs(err, errors.ErrBusinessNotFound)

	business, err := directory.GetBusiness(context.Background(), "b1")
	req.NoError(err)
	req.Equal("o1", business.OwnerID)
}

func TestCachedDirectory_Falls_Back_When_Cache_Is_Down(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockIUserDirectory(ctrl)
	cache := newMapCache()
	cache.failing = true
	directory := NewCachedDirectory(next, cache, time.Minute, logs.GetLoggerFromLevel(slog.LevelDebug))

	next.EXPECT().GetUser(gomock.Any(), "u1").Return(domain.User{ID: "u1"}, nil).Times(2)

	for range 2 {
		user, err := directory.GetUser(context.Background(), "u1")
		req.NoError(err)
		req.Equal("u1", user.ID)
	}
}

func TestCachedDirectory_Invalidate(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	next := mocks.NewMockIUserDirectory(ctrl)
	directory := NewCachedDirectory(next, newMapCache(), time.Minute, logs.GetLoggerFromLevel(slog.LevelDebug))

	next.EXPECT().GetUser(gomock.Any(), "u1").Return(domain.User{ID: "u1", Role: domain.RoleCustomer}, nil)
	next.EXPECT().GetUser(gomock.Any(), "u1").Return(domain.User{ID: "u1", Role: domain.RoleBusiness}, nil)

	_, err := directory.GetUser(context.Background(), "u1")
	req.NoError(err)
	req.NoError(directory.Invalidate(context.Background(), []string{"u1"}, nil))
	user, err := directory.GetUser(context.Background(), "u1")
	req.NoError(err)
	req.Equal(domain.RoleBusiness, user.Role)
}
