package state

import (
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	// MaxTokenPositions is the fixed token position capacity of an account.
	MaxTokenPositions = 16
	// MaxSerum3Orders is the fixed serum3 open-orders capacity of an account.
	MaxSerum3Orders = 8
)

// TokenPosition is one slot of an account's token balances, stored in
// index form: the native balance is the indexed position scaled by the
// bank's deposit or borrow index.
type TokenPosition struct {
	IndexedPosition I80F48
	TokenIndex      TokenIndex
	InUseCount      uint8
	Reserved        [5]byte
}

// IsActive reports whether the slot holds a live position.
func (p *TokenPosition) IsActive() bool {
	return p.TokenIndex != TokenIndexUnset
}

// Native scales the indexed position by the matching bank index:
// deposits grow with DepositIndex, borrows with BorrowIndex.
func (p *TokenPosition) Native(bank *Bank) I80F48 {
	if p.IndexedPosition.IsNegative() {
		return p.IndexedPosition.Mul(bank.BorrowIndex)
	}
	return p.IndexedPosition.Mul(bank.DepositIndex)
}

// Serum3Orders is one slot of an account's serum3 open-orders bindings.
type Serum3Orders struct {
	OpenOrders      solana.PublicKey
	MarketIndex     Serum3MarketIndex
	BaseTokenIndex  TokenIndex
	QuoteTokenIndex TokenIndex
	Reserved        [2]byte
}

// IsActive reports whether the slot is bound to a market.
func (o *Serum3Orders) IsActive() bool {
	return o.MarketIndex != Serum3MarketIndexUnset
}

// Serum3MarketIndexUnset marks an unused serum3 slot.
const Serum3MarketIndexUnset Serum3MarketIndex = math.MaxUint16

// MangoAccount is a user's margin account within a group.
type MangoAccount struct {
	PublicKey solana.PublicKey `bin:"-"`

	Group    solana.PublicKey
	Owner    solana.PublicKey
	Name     [32]byte
	Delegate solana.PublicKey

	Tokens [MaxTokenPositions]TokenPosition
	Serum3 [MaxSerum3Orders]Serum3Orders

	BeingLiquidated uint8
	IsBankrupt      uint8
	AccountNum      uint8
	Bump            uint8
	Reserved        [4]byte
}

// MangoAccountSize is the serialized account size including discriminator.
const MangoAccountSize = 8 + 3*32 + 32 + MaxTokenPositions*24 + MaxSerum3Orders*40 + 4 + 4

// MangoAccountFromAccount decodes a MangoAccount fetched from the chain.
func MangoAccountFromAccount(pubkey solana.PublicKey, data []byte) (*MangoAccount, error) {
	payload, err := checkDiscriminator(data, MangoAccountDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("mango account %s: %w", pubkey, err)
	}

	a := &MangoAccount{PublicKey: pubkey}
	dec := bin.NewBinDecoder(payload)
	if err := dec.Decode(a); err != nil {
		return nil, fmt.Errorf("decode mango account %s: %w", pubkey, err)
	}
	return a, nil
}

// NameString trims the fixed-size name field to its string value.
func (a *MangoAccount) NameString() string {
	return fixedName(a.Name[:])
}

// TokenPositionByIndex returns the active position for a token index, or
// nil when the account has none.
func (a *MangoAccount) TokenPositionByIndex(idx TokenIndex) *TokenPosition {
	for i := range a.Tokens {
		p := &a.Tokens[i]
		if p.IsActive() && p.TokenIndex == idx {
			return p
		}
	}
	return nil
}

// ActiveTokenPositions returns the live token positions in slot order.
func (a *MangoAccount) ActiveTokenPositions() []*TokenPosition {
	var out []*TokenPosition
	for i := range a.Tokens {
		if a.Tokens[i].IsActive() {
			out = append(out, &a.Tokens[i])
		}
	}
	return out
}

// Serum3OrdersByMarketIndex returns the open-orders binding for a market,
// or nil when the account is not registered on it.
func (a *MangoAccount) Serum3OrdersByMarketIndex(idx Serum3MarketIndex) *Serum3Orders {
	for i := range a.Serum3 {
		o := &a.Serum3[i]
		if o.IsActive() && o.MarketIndex == idx {
			return o
		}
	}
	return nil
}
