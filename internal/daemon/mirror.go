package daemon

import (
	"github.com/rovshanmuradov/mango-go/internal/events"
	"github.com/rovshanmuradov/mango-go/internal/storage/models"
)

func bankSnapshot(e events.BankUpdatedEvent) *models.BankSnapshot {
	return &models.BankSnapshot{
		PublicKey:    e.Bank.PublicKey.String(),
		GroupKey:     e.Bank.Group.String(),
		Name:         e.Bank.NameString(),
		TokenIndex:   e.Bank.TokenIndex,
		DepositIndex: e.Bank.DepositIndex.Float64(),
		BorrowIndex:  e.Bank.BorrowIndex.Float64(),
		MintDecimals: e.Bank.MintDecimals,
		Slot:         e.Slot,
	}
}

func marketRecord(e events.MarketUpdatedEvent) *models.MarketRecord {
	return &models.MarketRecord{
		PublicKey:           e.Market.PublicKey.String(),
		GroupKey:            e.Market.Group.String(),
		Name:                e.Market.NameString(),
		MarketIndex:         e.Market.MarketIndex,
		SerumProgram:        e.Market.SerumProgram.String(),
		SerumMarketExternal: e.Market.SerumMarketExternal.String(),
		BaseTokenIndex:      e.Market.BaseTokenIndex,
		QuoteTokenIndex:     e.Market.QuoteTokenIndex,
		UpdatedSlot:         e.Slot,
	}
}
