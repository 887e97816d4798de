package models

import "time"

// BaseModel replaces gorm.Model for tighter control over timestamps.
type BaseModel struct {
	ID        uint       `gorm:"primarykey"`
	CreatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time  `gorm:"default:CURRENT_TIMESTAMP"`
	DeletedAt *time.Time `gorm:"index"`
}

// MarketRecord is the persisted form of a serum3 market account. One row
// per market, updated in place as the account changes.
type MarketRecord struct {
	BaseModel
	PublicKey           string `gorm:"unique;not null;type:varchar(44)"`
	GroupKey            string `gorm:"index;not null;type:varchar(44)"`
	Name                string `gorm:"not null;type:varchar(16)"`
	MarketIndex         uint16 `gorm:"not null"`
	SerumProgram        string `gorm:"not null;type:varchar(44)"`
	SerumMarketExternal string `gorm:"not null;type:varchar(44)"`
	BaseTokenIndex      uint16 `gorm:"not null"`
	QuoteTokenIndex     uint16 `gorm:"not null"`
	UpdatedSlot         uint64 `gorm:"not null;default:0"`
}

// BankSnapshot is an append-only observation of a bank's indices. The
// deposit and borrow indices grow monotonically, so the series doubles
// as an interest-rate history.
type BankSnapshot struct {
	BaseModel
	PublicKey    string  `gorm:"index;not null;type:varchar(44)"`
	GroupKey     string  `gorm:"index;not null;type:varchar(44)"`
	Name         string  `gorm:"not null;type:varchar(16)"`
	TokenIndex   uint16  `gorm:"index;not null"`
	DepositIndex float64 `gorm:"type:decimal(30,15);not null"`
	BorrowIndex  float64 `gorm:"type:decimal(30,15);not null"`
	MintDecimals uint8   `gorm:"not null"`
	Slot         uint64  `gorm:"index;not null"`
}
