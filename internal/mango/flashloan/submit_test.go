package flashloan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	blockhash    solana.Hash
	blockhashErr error
	signature    solana.Signature
	sendErr      error
	confirmErr   error

	sentTx    *solana.Transaction
	confirmed []solana.Signature
}

func (f *fakeSender) LatestBlockhash(context.Context) (solana.Hash, error) {
	return f.blockhash, f.blockhashErr
}

func (f *fakeSender) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.sentTx = tx
	return f.signature, f.sendErr
}

func (f *fakeSender) WaitForConfirmation(_ context.Context, sig solana.Signature, _ time.Duration) error {
	f.confirmed = append(f.confirmed, sig)
	return f.confirmErr
}

func testSubmission(owner solana.PublicKey) Submission {
	return Submission{
		Begin: &BeginParams{
			ProgramID:     key(0x01),
			Group:         key(0x02),
			Banks:         []solana.PublicKey{key(0x10)},
			Vaults:        []solana.PublicKey{key(0x11)},
			TokenAccounts: []solana.PublicKey{key(0x12)},
			LoanAmounts:   []uint64{1_000_000},
		},
		End: &EndParams{
			ProgramID:      key(0x01),
			Account:        key(0x03),
			Owner:          owner,
			HealthAccounts: []solana.PublicKey{key(0x10)},
			Vaults:         []solana.PublicKey{key(0x11)},
			TokenAccounts:  []solana.PublicKey{key(0x12)},
		},
	}
}

func TestSubmit(t *testing.T) {
	owner, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	var sig solana.Signature
	sig[0] = 7
	sender := &fakeSender{
		blockhash: solana.Hash(key(0xAA)),
		signature: sig,
	}

	got, err := Submit(context.Background(), sender, owner, testSubmission(owner.PublicKey()))
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	require.NotNil(t, sender.sentTx)
	tx := sender.sentTx
	assert.Equal(t, solana.Hash(key(0xAA)), tx.Message.RecentBlockhash)
	// Begin and end around the (empty) inner section.
	require.Len(t, tx.Message.Instructions, 2)
	assert.Equal(t, owner.PublicKey(), tx.Message.AccountKeys[0])

	require.Len(t, tx.Signatures, 1)
	require.NoError(t, tx.VerifySignatures())

	assert.Equal(t, []solana.Signature{sig}, sender.confirmed)
}

func TestSubmitPropagatesFailures(t *testing.T) {
	owner, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	sub := testSubmission(owner.PublicKey())

	_, err = Submit(context.Background(), &fakeSender{blockhashErr: errors.New("node down")}, owner, sub)
	assert.ErrorContains(t, err, "fetch blockhash")

	_, err = Submit(context.Background(), &fakeSender{sendErr: errors.New("blockhash expired")}, owner, sub)
	assert.ErrorContains(t, err, "send transaction")

	_, err = Submit(context.Background(), &fakeSender{confirmErr: errors.New("timeout")}, owner, sub)
	assert.ErrorContains(t, err, "confirm")

	// Invalid params fail before any RPC call.
	sender := &fakeSender{}
	bad := testSubmission(owner.PublicKey())
	bad.Begin.LoanAmounts = nil
	_, err = Submit(context.Background(), sender, owner, bad)
	assert.ErrorContains(t, err, "build begin")
	assert.Nil(t, sender.sentTx)
}
