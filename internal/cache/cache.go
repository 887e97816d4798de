// Package cache mirrors the latest decoded group state into redis so
// other processes (and the monitor) can read it without hitting RPC.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mango-go/internal/mango/state"
)

const keyTTL = 24 * time.Hour

type Cache struct {
	client *redis.Client
	logger *zap.Logger
	group  string
}

// BankEntry is the redis-facing projection of a bank account.
type BankEntry struct {
	PublicKey    string  `json:"public_key"`
	Name         string  `json:"name"`
	TokenIndex   uint16  `json:"token_index"`
	DepositIndex float64 `json:"deposit_index"`
	BorrowIndex  float64 `json:"borrow_index"`
	MintDecimals uint8   `json:"mint_decimals"`
	UpdatedSlot  uint64  `json:"updated_slot"`
}

// MarketEntry is the redis-facing projection of a serum3 market.
type MarketEntry struct {
	PublicKey           string `json:"public_key"`
	Name                string `json:"name"`
	MarketIndex         uint16 `json:"market_index"`
	SerumProgram        string `json:"serum_program"`
	SerumMarketExternal string `json:"serum_market_external"`
	BaseTokenIndex      uint16 `json:"base_token_index"`
	QuoteTokenIndex     uint16 `json:"quote_token_index"`
	UpdatedSlot         uint64 `json:"updated_slot"`
}

// New connects to redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password, group string, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{
		client: client,
		logger: logger.Named("cache"),
		group:  group,
	}, nil
}

func (c *Cache) banksKey() string   { return "mango:" + c.group + ":banks" }
func (c *Cache) marketsKey() string { return "mango:" + c.group + ":serum3_markets" }

// PutBank stores one bank under its token index.
func (c *Cache) PutBank(ctx context.Context, bank *state.Bank, slot uint64) error {
	entry := BankEntry{
		PublicKey:    bank.PublicKey.String(),
		Name:         bank.NameString(),
		TokenIndex:   bank.TokenIndex,
		DepositIndex: bank.DepositIndex.Float64(),
		BorrowIndex:  bank.BorrowIndex.Float64(),
		MintDecimals: bank.MintDecimals,
		UpdatedSlot:  slot,
	}
	return c.putHash(ctx, c.banksKey(), fmt.Sprintf("%d", bank.TokenIndex), entry)
}

// PutMarket stores one serum3 market under its market index.
func (c *Cache) PutMarket(ctx context.Context, market *state.Serum3Market, slot uint64) error {
	entry := MarketEntry{
		PublicKey:           market.PublicKey.String(),
		Name:                market.NameString(),
		MarketIndex:         market.MarketIndex,
		SerumProgram:        market.SerumProgram.String(),
		SerumMarketExternal: market.SerumMarketExternal.String(),
		BaseTokenIndex:      market.BaseTokenIndex,
		QuoteTokenIndex:     market.QuoteTokenIndex,
		UpdatedSlot:         slot,
	}
	return c.putHash(ctx, c.marketsKey(), fmt.Sprintf("%d", market.MarketIndex), entry)
}

func (c *Cache) putHash(ctx context.Context, key, field string, entry any) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, field, payload)
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Redis write failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Markets reads all cached serum3 markets for the group.
func (c *Cache) Markets(ctx context.Context) ([]MarketEntry, error) {
	raw, err := c.client.HGetAll(ctx, c.marketsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]MarketEntry, 0, len(raw))
	for _, v := range raw {
		var entry MarketEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			c.logger.Warn("Skipping corrupt cache entry", zap.Error(err))
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// Banks reads all cached banks for the group.
func (c *Cache) Banks(ctx context.Context) ([]BankEntry, error) {
	raw, err := c.client.HGetAll(ctx, c.banksKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]BankEntry, 0, len(raw))
	for _, v := range raw {
		var entry BankEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			c.logger.Warn("Skipping corrupt cache entry", zap.Error(err))
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
