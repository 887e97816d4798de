package state

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Serum3MarketIndex identifies a serum3 market within its group.
type Serum3MarketIndex = uint16

// Serum3Market registers an external serum/openbook market with a mango
// group and binds it to the group's base and quote banks.
type Serum3Market struct {
	// PublicKey is the address the record was loaded from. Not part of
	// the serialized layout.
	PublicKey solana.PublicKey `bin:"-"`

	Group               solana.PublicKey
	Name                [16]byte
	SerumProgram        solana.PublicKey
	SerumMarketExternal solana.PublicKey
	MarketIndex         Serum3MarketIndex
	BaseTokenIndex      TokenIndex
	QuoteTokenIndex     TokenIndex
	Bump                uint8
	Reserved            [5]byte
}

// Serum3MarketSize is the serialized account size including discriminator.
const Serum3MarketSize = 8 + 32 + 16 + 32 + 32 + 2 + 2 + 2 + 1 + 5

// Serum3MarketFromAccount decodes a Serum3Market account fetched from the
// chain, attaching the address it lives at.
func Serum3MarketFromAccount(pubkey solana.PublicKey, data []byte) (*Serum3Market, error) {
	payload, err := checkDiscriminator(data, Serum3MarketDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("serum3 market %s: %w", pubkey, err)
	}

	m := &Serum3Market{PublicKey: pubkey}
	dec := bin.NewBinDecoder(payload)
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode serum3 market %s: %w", pubkey, err)
	}
	return m, nil
}

// NameString trims the fixed-size name field to its string value.
func (m *Serum3Market) NameString() string {
	return fixedName(m.Name[:])
}

func fixedName(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}
