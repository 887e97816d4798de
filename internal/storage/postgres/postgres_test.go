package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rovshanmuradov/mango-go/internal/storage/models"
)

// newMockStorage opens the storage over a sqlmock connection so tests
// can assert the SQL the queries produce.
func newMockStorage(t *testing.T) (*postgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := gorm.Open(pgdriver.New(pgdriver.Config{Conn: db}), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &postgresStorage{db: gdb, logger: zap.NewNop()}, mock
}

func TestUpsertMarket(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(`INSERT INTO "market_records" .* ON CONFLICT \("public_key"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := store.UpsertMarket(context.Background(), &models.MarketRecord{
		PublicKey:   "PK",
		GroupKey:    "G",
		Name:        "SOL/USDC",
		MarketIndex: 3,
		UpdatedSlot: 42,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBankSnapshot(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(`INSERT INTO "bank_snapshots"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := store.SaveBankSnapshot(context.Background(), &models.BankSnapshot{
		PublicKey:    "BK",
		GroupKey:     "G",
		Name:         "USDC",
		TokenIndex:   0,
		DepositIndex: 1.5,
		BorrowIndex:  2.0,
		Slot:         42,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMarket(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{
		"id", "public_key", "group_key", "name", "market_index",
		"serum_program", "serum_market_external",
		"base_token_index", "quote_token_index", "updated_slot",
	}).AddRow(1, "PK", "G", "SOL/USDC", 3, "SP", "EXT", 1, 0, 42)
	mock.ExpectQuery(`SELECT \* FROM "market_records" WHERE public_key = \$1`).
		WillReturnRows(rows)

	market, err := store.GetMarket(context.Background(), "PK")
	require.NoError(t, err)
	assert.Equal(t, "SOL/USDC", market.Name)
	assert.Equal(t, uint16(3), market.MarketIndex)
	assert.Equal(t, uint64(42), market.UpdatedSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMarketNotFound(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT \* FROM "market_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetMarket(context.Background(), "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListMarkets(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"id", "public_key", "group_key", "name", "market_index"}).
		AddRow(1, "PK1", "G", "SOL/USDC", 0).
		AddRow(2, "PK2", "G", "ETH/USDC", 1)
	mock.ExpectQuery(`SELECT \* FROM "market_records" WHERE group_key = \$1 ORDER BY market_index asc`).
		WillReturnRows(rows)

	markets, err := store.ListMarkets(context.Background(), "G")
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "SOL/USDC", markets[0].Name)
	assert.Equal(t, "ETH/USDC", markets[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestBankSnapshot(t *testing.T) {
	store, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{
		"id", "public_key", "group_key", "name", "token_index",
		"deposit_index", "borrow_index", "slot",
	}).AddRow(1, "BK", "G", "USDC", 0, 1.5, 2.0, 42)
	mock.ExpectQuery(`SELECT \* FROM "bank_snapshots" WHERE group_key = \$1 AND token_index = \$2 ORDER BY slot desc`).
		WillReturnRows(rows)

	snap, err := store.LatestBankSnapshot(context.Background(), "G", 0)
	require.NoError(t, err)
	assert.Equal(t, "USDC", snap.Name)
	assert.InDelta(t, 1.5, snap.DepositIndex, 1e-12)
	assert.Equal(t, uint64(42), snap.Slot)
	assert.NoError(t, mock.ExpectationsWereMet())
}
