package registry

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/mango-go/internal/mango/state"
)

// fakeFetcher serves canned accounts, routing program scans by the
// discriminator in the first memcmp filter.
type fakeFetcher struct {
	accounts  map[solana.PublicKey][]byte
	byDisc    map[string][]*rpc.KeyedAccount
	scanErr   error
	failAccts int
}

func (f *fakeFetcher) AccountData(_ context.Context, pubkey solana.PublicKey) ([]byte, error) {
	if f.failAccts > 0 {
		f.failAccts--
		return nil, errors.New("transient rpc error")
	}
	data, ok := f.accounts[pubkey]
	if !ok {
		return nil, errors.New("account not found")
	}
	return data, nil
}

func (f *fakeFetcher) ProgramAccounts(_ context.Context, _ solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	disc := string(opts.Filters[0].Memcmp.Bytes)
	return f.byDisc[disc], nil
}

func keyed(pubkey solana.PublicKey, data []byte) *rpc.KeyedAccount {
	return &rpc.KeyedAccount{
		Pubkey: pubkey,
		Account: &rpc.Account{
			Data: rpc.DataBytesOrJSONFromBytes(data),
		},
	}
}

func testKey(seed byte) solana.PublicKey {
	var b [32]byte
	for i := range b {
		b[i] = seed
	}
	return solana.PublicKeyFromBytes(b[:])
}

func buildGroupData(admin solana.PublicKey, groupNum uint32) []byte {
	buf := new(bytes.Buffer)
	buf.Write(state.GroupDiscriminator)
	buf.Write(admin.Bytes())
	buf.WriteByte(byte(groupNum))
	buf.WriteByte(byte(groupNum >> 8))
	buf.WriteByte(byte(groupNum >> 16))
	buf.WriteByte(byte(groupNum >> 24))
	buf.WriteByte(254)
	buf.Write(make([]byte, 7))
	return buf.Bytes()
}

func buildMarketData(t *testing.T, group solana.PublicKey, name string, idx state.Serum3MarketIndex) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.Write(state.Serum3MarketDiscriminator)
	buf.Write(group.Bytes())
	var nameBytes [16]byte
	copy(nameBytes[:], name)
	buf.Write(nameBytes[:])
	buf.Write(testKey(0xA0).Bytes())
	buf.Write(testKey(0xA1).Bytes())
	buf.WriteByte(byte(idx))
	buf.WriteByte(byte(idx >> 8))
	buf.Write([]byte{1, 0}) // base token index
	buf.Write([]byte{0, 0}) // quote token index
	buf.WriteByte(255)
	buf.Write(make([]byte, 5))
	data := buf.Bytes()
	require.Len(t, data, state.Serum3MarketSize)
	return data
}

func buildBankData(t *testing.T, group solana.PublicKey, tokenIndex state.TokenIndex) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.Write(state.BankDiscriminator)
	buf.Write(group.Bytes())
	var name [16]byte
	copy(name[:], "TOKEN")
	buf.Write(name[:])
	buf.Write(testKey(0xB0).Bytes()) // mint
	buf.Write(testKey(0xB1).Bytes()) // vault
	buf.Write(testKey(0xB2).Bytes()) // oracle
	writeFix := func(v float64) {
		b := state.MustI80F48FromFloat64(v).LEBytes()
		buf.Write(b[:])
	}
	writeFix(1.0) // deposit index
	writeFix(1.0) // borrow index
	writeFix(0)   // indexed total deposits
	writeFix(0)   // indexed total borrows
	buf.Write(make([]byte, 8)) // last updated
	writeFix(0.7)              // util0
	writeFix(0.02)             // rate0
	writeFix(0.85)             // util1
	writeFix(0.2)              // rate1
	writeFix(1.5)              // max rate
	writeFix(0)                // collected fees
	writeFix(0.0005)           // loan origination fee rate
	writeFix(0.005)            // loan fee rate
	writeFix(0.9)              // maint asset weight
	writeFix(0.8)              // init asset weight
	writeFix(1.1)              // maint liab weight
	writeFix(1.2)              // init liab weight
	writeFix(0.05)             // liquidation fee
	writeFix(0)                // dust
	buf.Write(bytes.Repeat([]byte{0xff}, 8)) // flash loan vault initial sentinel
	buf.Write(make([]byte, 8))               // flash loan approved amount
	buf.WriteByte(byte(tokenIndex))
	buf.WriteByte(byte(tokenIndex >> 8))
	buf.WriteByte(255) // bump
	buf.WriteByte(6)   // mint decimals
	buf.Write(make([]byte, 4))
	data := buf.Bytes()
	require.Len(t, data, state.BankSize)
	return data
}

func buildMintInfoData(t *testing.T, group solana.PublicKey, tokenIndex state.TokenIndex) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.Write(state.MintInfoDiscriminator)
	buf.Write(group.Bytes())
	buf.Write(testKey(0xC0).Bytes()) // mint
	buf.Write(testKey(0xC1).Bytes()) // bank
	buf.Write(testKey(0xC2).Bytes()) // vault
	buf.Write(testKey(0xC3).Bytes()) // oracle
	buf.Write(testKey(0xC4).Bytes()) // address lookup table
	buf.WriteByte(byte(tokenIndex))
	buf.WriteByte(byte(tokenIndex >> 8))
	buf.WriteByte(255)
	buf.Write(make([]byte, 5))
	data := buf.Bytes()
	require.Len(t, data, state.MintInfoSize)
	return data
}

func testRegistry(t *testing.T, fetcher *fakeFetcher, groupKey solana.PublicKey) *Registry {
	t.Helper()
	return New(fetcher, zap.NewNop(), testKey(0x01), groupKey, Options{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	})
}

func TestRegistryLoad(t *testing.T) {
	groupKey := testKey(0x11)
	admin := testKey(0x12)

	bankKey := testKey(0x21)
	marketKey := testKey(0x22)
	mintInfoKey := testKey(0x23)

	fetcher := &fakeFetcher{
		accounts: map[solana.PublicKey][]byte{
			groupKey: buildGroupData(admin, 0),
		},
		byDisc: map[string][]*rpc.KeyedAccount{
			string(state.BankDiscriminator):         {keyed(bankKey, buildBankData(t, groupKey, 1))},
			string(state.Serum3MarketDiscriminator): {keyed(marketKey, buildMarketData(t, groupKey, "SOL/USDC", 3))},
			string(state.MintInfoDiscriminator):     {keyed(mintInfoKey, buildMintInfoData(t, groupKey, 1))},
		},
	}

	reg := testRegistry(t, fetcher, groupKey)
	require.NoError(t, reg.Load(context.Background()))

	group := reg.Group()
	require.NotNil(t, group)
	assert.Equal(t, admin, group.Admin)

	bank, ok := reg.BankByTokenIndex(1)
	require.True(t, ok)
	assert.Equal(t, bankKey, bank.PublicKey)
	assert.Equal(t, groupKey, bank.Group)

	market, ok := reg.MarketByIndex(3)
	require.True(t, ok)
	assert.Equal(t, marketKey, market.PublicKey)
	assert.Equal(t, "SOL/USDC", market.NameString())

	byName, ok := reg.MarketByName("SOL/USDC")
	require.True(t, ok)
	assert.Equal(t, market.PublicKey, byName.PublicKey)

	mi, ok := reg.MintInfoByTokenIndex(1)
	require.True(t, ok)
	assert.Equal(t, mintInfoKey, mi.PublicKey)

	assert.Len(t, reg.Banks(), 1)
	assert.Len(t, reg.Markets(), 1)
	assert.False(t, reg.LoadedAt().IsZero())
}

func TestRegistryLoadRetriesTransientErrors(t *testing.T) {
	groupKey := testKey(0x11)
	fetcher := &fakeFetcher{
		accounts: map[solana.PublicKey][]byte{
			groupKey: buildGroupData(testKey(0x12), 0),
		},
		byDisc:    map[string][]*rpc.KeyedAccount{},
		failAccts: 2,
	}

	reg := testRegistry(t, fetcher, groupKey)
	require.NoError(t, reg.Load(context.Background()))
	require.NotNil(t, reg.Group())
}

func TestRegistryLoadScanError(t *testing.T) {
	groupKey := testKey(0x11)
	fetcher := &fakeFetcher{
		accounts: map[solana.PublicKey][]byte{
			groupKey: buildGroupData(testKey(0x12), 0),
		},
		scanErr: errors.New("node behind"),
	}

	reg := testRegistry(t, fetcher, groupKey)
	assert.Error(t, reg.Load(context.Background()))
}

func TestRegistryApply(t *testing.T) {
	groupKey := testKey(0x11)
	fetcher := &fakeFetcher{
		accounts: map[solana.PublicKey][]byte{
			groupKey: buildGroupData(testKey(0x12), 0),
		},
		byDisc: map[string][]*rpc.KeyedAccount{},
	}
	reg := testRegistry(t, fetcher, groupKey)
	require.NoError(t, reg.Load(context.Background()))

	_, ok := reg.MarketByIndex(5)
	require.False(t, ok)

	marketKey := testKey(0x31)
	require.NoError(t, reg.Apply(marketKey, buildMarketData(t, groupKey, "ETH/USDC", 5)))

	market, ok := reg.MarketByIndex(5)
	require.True(t, ok)
	assert.Equal(t, "ETH/USDC", market.NameString())

	bankKey := testKey(0x32)
	require.NoError(t, reg.Apply(bankKey, buildBankData(t, groupKey, 7)))
	bank, ok := reg.BankByTokenIndex(7)
	require.True(t, ok)
	assert.Equal(t, bankKey, bank.PublicKey)

	// Unknown discriminators are ignored.
	unknown := append([]byte{9, 9, 9, 9, 9, 9, 9, 9}, make([]byte, 32)...)
	assert.NoError(t, reg.Apply(testKey(0x33), unknown))

	assert.ErrorIs(t, reg.Apply(testKey(0x34), []byte{1, 2}), state.ErrShortAccountData)
}
