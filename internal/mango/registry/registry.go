// Package registry discovers and caches the accounts of one mango group:
// every bank, serum3 market and mint info, indexed for fast lookup.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/mango-go/internal/mango/state"
)

// groupFieldOffset is where the owning group's pubkey sits in every
// group-scoped account: right after the 8-byte discriminator.
const groupFieldOffset = 8

// AccountFetcher is the slice of the RPC client the registry needs.
type AccountFetcher interface {
	ProgramAccounts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
	AccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error)
}

// Options tune the registry's fetch behavior.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// Registry holds the decoded group state behind a read-write lock.
type Registry struct {
	fetcher   AccountFetcher
	logger    *zap.Logger
	programID solana.PublicKey
	groupKey  solana.PublicKey
	opts      Options

	mu        sync.RWMutex
	group     *state.Group
	banks     map[state.TokenIndex]*state.Bank
	markets   map[state.Serum3MarketIndex]*state.Serum3Market
	mintInfos map[state.TokenIndex]*state.MintInfo
	loadedAt  time.Time
}

func New(fetcher AccountFetcher, logger *zap.Logger, programID, groupKey solana.PublicKey, opts ...Options) *Registry {
	options := DefaultOptions()
	if len(opts) > 0 {
		options = opts[0]
	}
	return &Registry{
		fetcher:   fetcher,
		logger:    logger.Named("registry"),
		programID: programID,
		groupKey:  groupKey,
		opts:      options,
		banks:     make(map[state.TokenIndex]*state.Bank),
		markets:   make(map[state.Serum3MarketIndex]*state.Serum3Market),
		mintInfos: make(map[state.TokenIndex]*state.MintInfo),
	}
}

// Load fetches the group account and all of its banks, serum3 markets and
// mint infos, replacing any previously cached state. The three scans run
// in parallel; each retries with exponential backoff.
func (r *Registry) Load(ctx context.Context) error {
	groupData, err := r.fetchWithRetry(ctx, func() ([]byte, error) {
		return r.fetcher.AccountData(ctx, r.groupKey)
	})
	if err != nil {
		return fmt.Errorf("fetch group %s: %w", r.groupKey, err)
	}
	group, err := state.GroupFromAccount(r.groupKey, groupData)
	if err != nil {
		return err
	}

	var (
		banks     map[state.TokenIndex]*state.Bank
		markets   map[state.Serum3MarketIndex]*state.Serum3Market
		mintInfos map[state.TokenIndex]*state.MintInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		banks, err = r.loadBanks(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		markets, err = r.loadMarkets(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		mintInfos, err = r.loadMintInfos(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	r.group = group
	r.banks = banks
	r.markets = markets
	r.mintInfos = mintInfos
	r.loadedAt = time.Now()
	r.mu.Unlock()

	r.logger.Info("Group registry loaded",
		zap.String("group", r.groupKey.String()),
		zap.Int("banks", len(banks)),
		zap.Int("serum3_markets", len(markets)),
		zap.Int("mint_infos", len(mintInfos)))
	return nil
}

// Refresh is Load under its operational name.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.Load(ctx)
}

func (r *Registry) loadBanks(ctx context.Context) (map[state.TokenIndex]*state.Bank, error) {
	accounts, err := r.groupAccounts(ctx, state.BankDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("scan banks: %w", err)
	}
	out := make(map[state.TokenIndex]*state.Bank, len(accounts))
	for _, acc := range accounts {
		bank, err := state.BankFromAccount(acc.Pubkey, acc.Account.Data.GetBinary())
		if err != nil {
			r.logger.Warn("Skipping undecodable bank",
				zap.String("pubkey", acc.Pubkey.String()), zap.Error(err))
			continue
		}
		out[bank.TokenIndex] = bank
	}
	return out, nil
}

func (r *Registry) loadMarkets(ctx context.Context) (map[state.Serum3MarketIndex]*state.Serum3Market, error) {
	accounts, err := r.groupAccounts(ctx, state.Serum3MarketDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("scan serum3 markets: %w", err)
	}
	out := make(map[state.Serum3MarketIndex]*state.Serum3Market, len(accounts))
	for _, acc := range accounts {
		market, err := state.Serum3MarketFromAccount(acc.Pubkey, acc.Account.Data.GetBinary())
		if err != nil {
			r.logger.Warn("Skipping undecodable serum3 market",
				zap.String("pubkey", acc.Pubkey.String()), zap.Error(err))
			continue
		}
		out[market.MarketIndex] = market
	}
	return out, nil
}

func (r *Registry) loadMintInfos(ctx context.Context) (map[state.TokenIndex]*state.MintInfo, error) {
	accounts, err := r.groupAccounts(ctx, state.MintInfoDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("scan mint infos: %w", err)
	}
	out := make(map[state.TokenIndex]*state.MintInfo, len(accounts))
	for _, acc := range accounts {
		mi, err := state.MintInfoFromAccount(acc.Pubkey, acc.Account.Data.GetBinary())
		if err != nil {
			r.logger.Warn("Skipping undecodable mint info",
				zap.String("pubkey", acc.Pubkey.String()), zap.Error(err))
			continue
		}
		out[mi.TokenIndex] = mi
	}
	return out, nil
}

// groupAccounts scans the program for accounts of one type belonging to
// the registry's group.
func (r *Registry) groupAccounts(ctx context.Context, discriminator []byte) (rpc.GetProgramAccountsResult, error) {
	opts := &rpc.GetProgramAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(discriminator)}},
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: groupFieldOffset, Bytes: solana.Base58(r.groupKey.Bytes())}},
		},
	}

	return r.fetchAccountsWithRetry(ctx, opts)
}

func (r *Registry) fetchWithRetry(ctx context.Context, op func() ([]byte, error)) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.opts.RetryDelay
	policy.MaxInterval = r.opts.RetryDelay * 10

	notify := func(err error, duration time.Duration) {
		r.logger.Info("Retrying account fetch", zap.Error(err), zap.Duration("backoff", duration))
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(r.opts.MaxRetries)),
		backoff.WithNotify(notify))
}

func (r *Registry) fetchAccountsWithRetry(ctx context.Context, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.opts.RetryDelay
	policy.MaxInterval = r.opts.RetryDelay * 10

	notify := func(err error, duration time.Duration) {
		r.logger.Info("Retrying program scan", zap.Error(err), zap.Duration("backoff", duration))
	}

	op := func() (rpc.GetProgramAccountsResult, error) {
		return r.fetcher.ProgramAccounts(ctx, r.programID, opts)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(r.opts.MaxRetries)),
		backoff.WithNotify(notify))
}

// Apply re-decodes one updated account into the cache. The watcher feeds
// this on every websocket notification. Unknown discriminators are
// ignored so the subscription can stay broad.
func (r *Registry) Apply(pubkey solana.PublicKey, data []byte) error {
	if len(data) < 8 {
		return state.ErrShortAccountData
	}

	switch {
	case bytes.Equal(data[:8], state.BankDiscriminator):
		bank, err := state.BankFromAccount(pubkey, data)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.banks[bank.TokenIndex] = bank
		r.mu.Unlock()
	case bytes.Equal(data[:8], state.Serum3MarketDiscriminator):
		market, err := state.Serum3MarketFromAccount(pubkey, data)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.markets[market.MarketIndex] = market
		r.mu.Unlock()
	case bytes.Equal(data[:8], state.MintInfoDiscriminator):
		mi, err := state.MintInfoFromAccount(pubkey, data)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.mintInfos[mi.TokenIndex] = mi
		r.mu.Unlock()
	}
	return nil
}

// Group returns the cached group account, or nil before Load.
func (r *Registry) Group() *state.Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.group
}

// BankByTokenIndex looks up a bank by its token index.
func (r *Registry) BankByTokenIndex(idx state.TokenIndex) (*state.Bank, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.banks[idx]
	return b, ok
}

// MarketByIndex looks up a serum3 market by its market index.
func (r *Registry) MarketByIndex(idx state.Serum3MarketIndex) (*state.Serum3Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[idx]
	return m, ok
}

// MarketByName looks up a serum3 market by its listing name.
func (r *Registry) MarketByName(name string) (*state.Serum3Market, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.markets {
		if m.NameString() == name {
			return m, true
		}
	}
	return nil, false
}

// MintInfoByTokenIndex looks up a mint info by its token index.
func (r *Registry) MintInfoByTokenIndex(idx state.TokenIndex) (*state.MintInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mi, ok := r.mintInfos[idx]
	return mi, ok
}

// Banks returns a snapshot of all cached banks.
func (r *Registry) Banks() map[state.TokenIndex]*state.Bank {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[state.TokenIndex]*state.Bank, len(r.banks))
	for k, v := range r.banks {
		out[k] = v
	}
	return out
}

// Markets returns a snapshot of all cached serum3 markets.
func (r *Registry) Markets() map[state.Serum3MarketIndex]*state.Serum3Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[state.Serum3MarketIndex]*state.Serum3Market, len(r.markets))
	for k, v := range r.markets {
		out[k] = v
	}
	return out
}

// LoadedAt reports when the last full load completed.
func (r *Registry) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}
