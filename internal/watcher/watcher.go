// Package watcher keeps the registry current by subscribing to program
// account changes over websocket and re-decoding every notification for
// the configured group.
package watcher

import (
	"bytes"
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mango-go/internal/events"
	"github.com/rovshanmuradov/mango-go/internal/mango/registry"
	"github.com/rovshanmuradov/mango-go/internal/mango/state"
)

// groupFieldOffset mirrors the account layouts: the owning group pubkey
// sits right after the 8-byte discriminator in every account we track.
const groupFieldOffset = 8

type Watcher struct {
	wsURL     string
	programID solana.PublicKey
	groupKey  solana.PublicKey
	registry  *registry.Registry
	bus       *events.Bus
	logger    *zap.Logger
}

func New(wsURL string, programID, groupKey solana.PublicKey, reg *registry.Registry, bus *events.Bus, logger *zap.Logger) *Watcher {
	return &Watcher{
		wsURL:     wsURL,
		programID: programID,
		groupKey:  groupKey,
		registry:  reg,
		bus:       bus,
		logger:    logger.Named("watcher"),
	}
}

// Run subscribes and processes notifications until the context ends,
// reconnecting with exponential backoff on any connection failure.
func (w *Watcher) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second

	for {
		err := w.subscribeAndProcess(ctx)
		if ctx.Err() != nil {
			_ = w.bus.Publish(events.NewWatcherStopped(ctx.Err().Error()))
			return ctx.Err()
		}

		wait := policy.NextBackOff()
		w.logger.Warn("Websocket subscription lost, reconnecting",
			zap.Error(err), zap.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			_ = w.bus.Publish(events.NewWatcherStopped(ctx.Err().Error()))
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (w *Watcher) subscribeAndProcess(ctx context.Context) error {
	client, err := ws.Connect(ctx, w.wsURL)
	if err != nil {
		return err
	}
	defer client.Close()

	// One broad subscription covers banks, serum3 markets and mint
	// infos: they all store the group pubkey at the same offset.
	sub, err := client.ProgramSubscribeWithOpts(
		w.programID,
		rpc.CommitmentConfirmed,
		solana.EncodingBase64,
		[]rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{
				Offset: groupFieldOffset,
				Bytes:  solana.Base58(w.groupKey.Bytes()),
			}},
		},
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	w.logger.Info("Subscribed to program account changes",
		zap.String("program_id", w.programID.String()),
		zap.String("group", w.groupKey.String()))

	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		w.handleAccountUpdate(msg.Context.Slot, msg.Value.Pubkey, msg.Value.Account.Data.GetBinary())
	}
}

// handleAccountUpdate re-decodes one notification into the registry and
// fans it out on the bus. Accounts we do not track are skipped silently;
// the subscription filter is coarser than the set of types we decode.
func (w *Watcher) handleAccountUpdate(slot uint64, pubkey solana.PublicKey, data []byte) {
	if len(data) < 8 {
		return
	}

	if err := w.registry.Apply(pubkey, data); err != nil {
		w.logger.Warn("Dropping undecodable account update",
			zap.Uint64("slot", slot),
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return
	}

	switch {
	case bytes.Equal(data[:8], state.BankDiscriminator):
		bank, err := state.BankFromAccount(pubkey, data)
		if err != nil {
			return
		}
		w.logger.Debug("Bank updated",
			zap.Uint64("slot", slot), zap.String("bank", pubkey.String()))
		_ = w.bus.Publish(events.NewBankUpdated(slot, bank))
	case bytes.Equal(data[:8], state.Serum3MarketDiscriminator):
		market, err := state.Serum3MarketFromAccount(pubkey, data)
		if err != nil {
			return
		}
		w.logger.Debug("Serum3 market updated",
			zap.Uint64("slot", slot), zap.String("market", market.NameString()))
		_ = w.bus.Publish(events.NewMarketUpdated(slot, market))
	case bytes.Equal(data[:8], state.MintInfoDiscriminator):
		mi, err := state.MintInfoFromAccount(pubkey, data)
		if err != nil {
			return
		}
		_ = w.bus.Publish(events.NewMintInfoUpdated(slot, mi))
	}
}
