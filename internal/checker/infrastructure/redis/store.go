package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	stockKey   = "stock:levels"
	blockedKey = "customers:blocked"
)

// Store keeps stock levels in a hash and blocked customers in a set.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Available(ctx context.Context, productID int64) (int, error) {
	n, err := s.rdb.HGet(ctx, stockKey, strconv.FormatInt(productID, 10)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Blocked(ctx context.Context, customerID int64) (bool, error) {
	return s.rdb.SIsMember(ctx, blockedKey, strconv.FormatInt(customerID, 10)).Result()
}

// SetLevel seeds a stock level; used by ops tooling and tests.
func (s *Store) SetLevel(ctx context.Context, productID int64, quantity int) error {
	return s.rdb.HSet(ctx, stockKey, strconv.FormatInt(productID, 10), quantity).Err()
}

// Block adds a customer to the blocklist.
func (s *Store) Block(ctx context.Context, customerID int64) error {
	return s.rdb.SAdd(ctx, blockedKey, strconv.FormatInt(customerID, 10)).Err()
}
