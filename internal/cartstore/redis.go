// Package cartstore keeps each customer's cart ledger in Redis: one
// hash per customer, one JSON entry per product. The ledger is
// ephemeral scratch state. Authoritative stock always lives in
// Postgres and is re-checked at read and at order creation.
package cartstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"clearance-connect/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/cart_add.lua
var cartAddScript string

type Client struct {
	rdb       *redis.Client
	addScript *redis.Script
	ttl       time.Duration
}

// NewClient creates a new Redis-backed cart store
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:       rdb,
		addScript: redis.NewScript(cartAddScript),
		ttl:       ttl,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(customerID int64) string {
	return fmt.Sprintf("cart:%d", customerID)
}

// AddResult reports the outcome of a capped increment.
type AddResult struct {
	NewQuantity  int
	PrevQuantity int
	CapExceeded  bool
}

// AddQuantity atomically increments the customer's quantity for a
// product, refusing to cross limit. The Lua script makes the
// read-modify-write safe against concurrent adds from the same
// customer's other tabs.
func (c *Client) AddQuantity(ctx context.Context, customerID, productID int64, quantity, limit int) (AddResult, error) {
	result, err := c.addScript.Run(ctx, c.rdb,
		[]string{cartKey(customerID)},
		strconv.FormatInt(productID, 10),
		quantity,
		limit,
		time.Now().UTC().Format(time.RFC3339),
		int(c.ttl.Seconds()),
	).Result()
	if err != nil {
		return AddResult{}, fmt.Errorf("cart add script failed: %w", err)
	}

	vals, ok := result.([]interface{})
	if !ok || len(vals) != 2 {
		return AddResult{}, fmt.Errorf("unexpected script result type")
	}
	newQty, _ := vals[0].(int64)
	prevQty, _ := vals[1].(int64)

	return AddResult{
		NewQuantity:  int(newQty),
		PrevQuantity: int(prevQty),
		CapExceeded:  newQty == -1,
	}, nil
}

// GetEntry returns the customer's cart entry for a product, or nil if
// the product is not in the cart.
func (c *Client) GetEntry(ctx context.Context, customerID, productID int64) (*models.CartEntry, error) {
	raw, err := c.rdb.HGet(ctx, cartKey(customerID), strconv.FormatInt(productID, 10)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry models.CartEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("corrupt cart entry for customer %d: %w", customerID, err)
	}
	return &entry, nil
}

// SetEntry overwrites the customer's cart entry for a product.
func (c *Client) SetEntry(ctx context.Context, customerID int64, entry models.CartEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := cartKey(customerID)
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, strconv.FormatInt(entry.ProductID, 10), raw)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RemoveEntry deletes a product from the cart. Returns false if the
// product was not in the cart.
func (c *Client) RemoveEntry(ctx context.Context, customerID, productID int64) (bool, error) {
	n, err := c.rdb.HDel(ctx, cartKey(customerID), strconv.FormatInt(productID, 10)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear empties the customer's cart.
func (c *Client) Clear(ctx context.Context, customerID int64) error {
	return c.rdb.Del(ctx, cartKey(customerID)).Err()
}

// Entries returns every cart entry for a customer, oldest first.
func (c *Client) Entries(ctx context.Context, customerID int64) ([]models.CartEntry, error) {
	raw, err := c.rdb.HGetAll(ctx, cartKey(customerID)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.CartEntry, 0, len(raw))
	for _, v := range raw {
		var entry models.CartEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("corrupt cart entry for customer %d: %w", customerID, err)
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].ProductID < entries[j].ProductID
		}
		return entries[i].AddedAt.Before(entries[j].AddedAt)
	})

	return entries, nil
}
