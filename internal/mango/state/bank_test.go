package state

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBankData(group, mint, vault, oracle solana.PublicKey, depositIndex, borrowIndex I80F48) []byte {
	return newAccountBuilder(BankDiscriminator).
		pubkey(group).
		name("USDC", 16).
		pubkey(mint).
		pubkey(vault).
		pubkey(oracle).
		fix(depositIndex).
		fix(borrowIndex).
		fix(I80F48FromUint64(500000)). // indexed total deposits
		fix(I80F48FromUint64(120000)). // indexed total borrows
		i64(1_660_000_000).            // last updated
		fix(MustI80F48FromFloat64(0.7)).
		fix(MustI80F48FromFloat64(0.05)).
		fix(MustI80F48FromFloat64(0.85)).
		fix(MustI80F48FromFloat64(0.2)).
		fix(MustI80F48FromFloat64(1.5)).
		fix(ZeroI80F48()).                  // collected fees
		fix(MustI80F48FromFloat64(0.0005)). // loan origination fee rate
		fix(MustI80F48FromFloat64(0.005)).  // loan fee rate
		fix(MustI80F48FromFloat64(0.9)).    // maint asset weight
		fix(MustI80F48FromFloat64(0.8)).    // init asset weight
		fix(MustI80F48FromFloat64(1.1)).    // maint liab weight
		fix(MustI80F48FromFloat64(1.2)).    // init liab weight
		fix(MustI80F48FromFloat64(0.02)).   // liquidation fee
		fix(ZeroI80F48()).                  // dust
		u64(FlashLoanVaultUnset).
		u64(0).  // flash loan approved amount
		u16(0).  // token index
		u8(254). // bump
		u8(6).   // mint decimals
		pad(4).
		buf
}

func TestBankFromAccount(t *testing.T) {
	group := testKey(0x11)
	mint := testKey(0x55)
	vault := testKey(0x66)
	oracle := testKey(0x77)
	address := testKey(0x88)

	deposit := MustI80F48FromFloat64(1.000037)
	borrow := MustI80F48FromFloat64(1.000129)

	data := buildBankData(group, mint, vault, oracle, deposit, borrow)
	require.Len(t, data, BankSize)

	b, err := BankFromAccount(address, data)
	require.NoError(t, err)

	assert.Equal(t, address, b.PublicKey)
	assert.Equal(t, group, b.Group)
	assert.Equal(t, mint, b.Mint)
	assert.Equal(t, vault, b.Vault)
	assert.Equal(t, oracle, b.Oracle)
	assert.Equal(t, "USDC", b.NameString())
	assert.InDelta(t, 1.000037, b.DepositIndex.Float64(), 1e-9)
	assert.InDelta(t, 1.000129, b.BorrowIndex.Float64(), 1e-9)
	assert.Equal(t, int64(1_660_000_000), b.LastUpdated)
	assert.InDelta(t, 0.0005, b.LoanOriginationFeeRate.Float64(), 1e-12)
	assert.Equal(t, TokenIndex(0), b.TokenIndex)
	assert.Equal(t, uint8(6), b.MintDecimals)
	assert.False(t, b.InFlashLoan())
}

func TestBankWeightSelection(t *testing.T) {
	data := buildBankData(testKey(1), testKey(2), testKey(3), testKey(4), OneI80F48(), OneI80F48())
	b, err := BankFromAccount(testKey(5), data)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, b.AssetWeight(HealthInit).Float64(), 1e-12)
	assert.InDelta(t, 0.9, b.AssetWeight(HealthMaint).Float64(), 1e-12)
	assert.InDelta(t, 1.2, b.LiabWeight(HealthInit).Float64(), 1e-12)
	assert.InDelta(t, 1.1, b.LiabWeight(HealthMaint).Float64(), 1e-12)
}

func TestBankFlashLoanSentinel(t *testing.T) {
	data := buildBankData(testKey(1), testKey(2), testKey(3), testKey(4), OneI80F48(), OneI80F48())
	b, err := BankFromAccount(testKey(5), data)
	require.NoError(t, err)
	require.False(t, b.InFlashLoan())

	// An in-flight flash loan replaces the sentinel with the vault's
	// pre-loan balance.
	b.FlashLoanVaultInitial = 1_000_000
	assert.True(t, b.InFlashLoan())
}

func TestBankFromAccountRejectsWrongDiscriminator(t *testing.T) {
	data := buildBankData(testKey(1), testKey(2), testKey(3), testKey(4), OneI80F48(), OneI80F48())
	copy(data[:8], GroupDiscriminator)

	_, err := BankFromAccount(testKey(5), data)
	assert.ErrorIs(t, err, ErrBadDiscriminator)
}
