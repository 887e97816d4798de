// Package events carries account-update notifications from the chain
// watcher to whoever wants them: caches, storage mirrors, the monitor UI.
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/mango-go/internal/mango/state"
)

// EventType represents the type of event.
type EventType string

const (
	BankUpdated     EventType = "bank.updated"
	MarketUpdated   EventType = "serum3_market.updated"
	MintInfoUpdated EventType = "mint_info.updated"
	GroupRefreshed  EventType = "group.refreshed"
	WatcherStopped  EventType = "watcher.stopped"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

func newBase(typ EventType) BaseEvent {
	return BaseEvent{EventType: typ, EventTime: time.Now()}
}

// BankUpdatedEvent is emitted when a bank account changes on-chain.
type BankUpdatedEvent struct {
	BaseEvent
	Slot uint64
	Bank *state.Bank
}

func NewBankUpdated(slot uint64, bank *state.Bank) BankUpdatedEvent {
	return BankUpdatedEvent{BaseEvent: newBase(BankUpdated), Slot: slot, Bank: bank}
}

// MarketUpdatedEvent is emitted when a serum3 market account changes.
type MarketUpdatedEvent struct {
	BaseEvent
	Slot   uint64
	Market *state.Serum3Market
}

func NewMarketUpdated(slot uint64, market *state.Serum3Market) MarketUpdatedEvent {
	return MarketUpdatedEvent{BaseEvent: newBase(MarketUpdated), Slot: slot, Market: market}
}

// MintInfoUpdatedEvent is emitted when a mint info account changes.
type MintInfoUpdatedEvent struct {
	BaseEvent
	Slot     uint64
	MintInfo *state.MintInfo
}

func NewMintInfoUpdated(slot uint64, mi *state.MintInfo) MintInfoUpdatedEvent {
	return MintInfoUpdatedEvent{BaseEvent: newBase(MintInfoUpdated), Slot: slot, MintInfo: mi}
}

// GroupRefreshedEvent is emitted after a full registry reload.
type GroupRefreshedEvent struct {
	BaseEvent
	Group   solana.PublicKey
	Banks   int
	Markets int
}

func NewGroupRefreshed(group solana.PublicKey, banks, markets int) GroupRefreshedEvent {
	return GroupRefreshedEvent{
		BaseEvent: newBase(GroupRefreshed),
		Group:     group,
		Banks:     banks,
		Markets:   markets,
	}
}

// WatcherStoppedEvent is emitted when the websocket watcher exits.
type WatcherStoppedEvent struct {
	BaseEvent
	Reason string
}

func NewWatcherStopped(reason string) WatcherStoppedEvent {
	return WatcherStoppedEvent{BaseEvent: newBase(WatcherStopped), Reason: reason}
}
