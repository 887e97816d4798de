package flashloan

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

const confirmTimeout = 30 * time.Second

// TransactionSender is the slice of the RPC client a flash loan submit
// needs: a blockhash, a send, a confirmation wait.
type TransactionSender interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, signature solana.Signature, timeout time.Duration) error
}

// Submission is one atomic flash loan: begin, the caller's inner
// instructions (the swap or arbitrage the loan funds), then end.
type Submission struct {
	Begin *BeginParams
	Inner []solana.Instruction
	End   *EndParams
}

// Submit assembles the begin/inner/end transaction, signs it with the
// owner key and sends it, waiting for confirmation. The program rejects
// the transaction unless end follows begin in the same transaction, so
// there is no partial-submit mode.
func Submit(ctx context.Context, sender TransactionSender, owner solana.PrivateKey, sub Submission) (solana.Signature, error) {
	begin, err := NewBeginInstruction(sub.Begin)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build begin: %w", err)
	}
	end, err := NewEndInstruction(sub.End)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build end: %w", err)
	}

	instructions := make([]solana.Instruction, 0, len(sub.Inner)+2)
	instructions = append(instructions, begin)
	instructions = append(instructions, sub.Inner...)
	instructions = append(instructions, end)

	blockhash, err := sender.LatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash,
		solana.TransactionPayer(owner.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner.PublicKey()) {
			return &owner
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := sender.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}

	if err := sender.WaitForConfirmation(ctx, sig, confirmTimeout); err != nil {
		return sig, fmt.Errorf("confirm %s: %w", sig, err)
	}
	return sig, nil
}
