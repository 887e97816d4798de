package state

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MintInfo maps a token mint to the group's bank, vault and oracle for
// that token, so clients can assemble instruction account lists without
// scanning every bank.
type MintInfo struct {
	PublicKey solana.PublicKey `bin:"-"`

	Group              solana.PublicKey
	Mint               solana.PublicKey
	Bank               solana.PublicKey
	Vault              solana.PublicKey
	Oracle             solana.PublicKey
	AddressLookupTable solana.PublicKey
	TokenIndex         TokenIndex
	Bump               uint8
	Reserved           [5]byte
}

// MintInfoSize is the serialized account size including discriminator.
const MintInfoSize = 8 + 6*32 + 2 + 1 + 5

// MintInfoFromAccount decodes a MintInfo account fetched from the chain.
func MintInfoFromAccount(pubkey solana.PublicKey, data []byte) (*MintInfo, error) {
	payload, err := checkDiscriminator(data, MintInfoDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("mint info %s: %w", pubkey, err)
	}

	mi := &MintInfo{PublicKey: pubkey}
	dec := bin.NewBinDecoder(payload)
	if err := dec.Decode(mi); err != nil {
		return nil, fmt.Errorf("decode mint info %s: %w", pubkey, err)
	}
	return mi, nil
}
