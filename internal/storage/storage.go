// Package storage persists decoded group state to postgres: the current
// market listing and a history of bank snapshots.
package storage

import (
	"context"

	"github.com/rovshanmuradov/mango-go/internal/storage/models"
)

type Storage interface {
	// Markets
	UpsertMarket(ctx context.Context, market *models.MarketRecord) error
	GetMarket(ctx context.Context, publicKey string) (*models.MarketRecord, error)
	ListMarkets(ctx context.Context, group string) ([]*models.MarketRecord, error)

	// Bank snapshots
	SaveBankSnapshot(ctx context.Context, snapshot *models.BankSnapshot) error
	LatestBankSnapshot(ctx context.Context, group string, tokenIndex uint16) (*models.BankSnapshot, error)

	RunMigrations() error
	Close() error
}
