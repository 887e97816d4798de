package state

import (
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// TokenIndex identifies a token listing within a group.
type TokenIndex = uint16

// TokenIndexUnset marks an unused token position slot.
const TokenIndexUnset TokenIndex = math.MaxUint16

// FlashLoanVaultUnset is the sentinel the program stores in
// FlashLoanVaultInitial outside an active flash loan.
const FlashLoanVaultUnset uint64 = math.MaxUint64

// Bank is the per-token lending state of a group: vault, oracle, interest
// indexes, risk weights and the transient flash-loan bookkeeping.
type Bank struct {
	PublicKey solana.PublicKey `bin:"-"`

	Group solana.PublicKey
	Name  [16]byte

	Mint   solana.PublicKey
	Vault  solana.PublicKey
	Oracle solana.PublicKey

	DepositIndex I80F48
	BorrowIndex  I80F48

	IndexedTotalDeposits I80F48
	IndexedTotalBorrows  I80F48

	LastUpdated int64

	// Interest rate curve: two utilization kinks and a cap.
	Util0   I80F48
	Rate0   I80F48
	Util1   I80F48
	Rate1   I80F48
	MaxRate I80F48

	CollectedFeesNative    I80F48
	LoanOriginationFeeRate I80F48
	LoanFeeRate            I80F48

	MaintAssetWeight I80F48
	InitAssetWeight  I80F48
	MaintLiabWeight  I80F48
	InitLiabWeight   I80F48

	LiquidationFee I80F48
	Dust           I80F48

	// FlashLoanVaultInitial is FlashLoanVaultUnset except between the
	// begin and end instructions of an active flash loan.
	FlashLoanVaultInitial   uint64
	FlashLoanApprovedAmount uint64

	TokenIndex   TokenIndex
	Bump         uint8
	MintDecimals uint8
	Reserved     [4]byte
}

// BankSize is the serialized account size including discriminator.
const BankSize = 8 + 32 + 16 + 3*32 + 4*16 + 8 + 5*16 + 3*16 + 4*16 + 2*16 + 8 + 8 + 2 + 1 + 1 + 4

// BankFromAccount decodes a Bank account fetched from the chain.
func BankFromAccount(pubkey solana.PublicKey, data []byte) (*Bank, error) {
	payload, err := checkDiscriminator(data, BankDiscriminator)
	if err != nil {
		return nil, fmt.Errorf("bank %s: %w", pubkey, err)
	}

	b := &Bank{PublicKey: pubkey}
	dec := bin.NewBinDecoder(payload)
	if err := dec.Decode(b); err != nil {
		return nil, fmt.Errorf("decode bank %s: %w", pubkey, err)
	}
	return b, nil
}

// NameString trims the fixed-size name field to its string value.
func (b *Bank) NameString() string {
	return fixedName(b.Name[:])
}

// AssetWeight returns the asset-side weight for the given health type.
func (b *Bank) AssetWeight(t HealthType) I80F48 {
	if t == HealthInit {
		return b.InitAssetWeight
	}
	return b.MaintAssetWeight
}

// LiabWeight returns the liability-side weight for the given health type.
func (b *Bank) LiabWeight(t HealthType) I80F48 {
	if t == HealthInit {
		return b.InitLiabWeight
	}
	return b.MaintLiabWeight
}

// InFlashLoan reports whether a flash loan is currently in flight on this
// bank, i.e. the begin instruction ran but end has not settled yet.
func (b *Bank) InFlashLoan() bool {
	return b.FlashLoanVaultInitial != FlashLoanVaultUnset
}

// HealthType selects which weight set a health computation uses.
type HealthType uint8

const (
	// HealthInit gates position-opening operations, flash loans included.
	HealthInit HealthType = iota
	// HealthMaint gates liquidation.
	HealthMaint
)

func (t HealthType) String() string {
	switch t {
	case HealthInit:
		return "init"
	case HealthMaint:
		return "maint"
	default:
		return fmt.Sprintf("health(%d)", uint8(t))
	}
}
