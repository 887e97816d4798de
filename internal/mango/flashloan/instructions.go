// Package flashloan builds the client side of the mango-v4 flash loan:
// a begin instruction that moves funds out of the banks' vaults and an
// end instruction, later in the same transaction, that settles balances
// back and re-checks account health.
package flashloan

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/mango-go/internal/mango/state"
)

// Instruction discriminators. The program matches the end instruction by
// these exact bytes when it scans the transaction from begin.
var (
	BeginDiscriminator = state.Sighash("global", "flash_loan3_begin")
	EndDiscriminator   = state.Sighash("global", "flash_loan3_end")
)

// BeginParams assembles a flash_loan3_begin instruction. Banks, Vaults and
// TokenAccounts run in parallel: Vaults[i] must be Banks[i]'s vault, and
// LoanAmounts[i] is transferred from it into TokenAccounts[i].
type BeginParams struct {
	ProgramID solana.PublicKey
	Group     solana.PublicKey

	Banks         []solana.PublicKey
	Vaults        []solana.PublicKey
	TokenAccounts []solana.PublicKey
	LoanAmounts   []uint64
}

// EndParams assembles a flash_loan3_end instruction. HealthAccounts is the
// account's fixed health list (banks first, then oracles, then serum open
// orders); Vaults and TokenAccounts must repeat the begin instruction's
// trailing accounts in the same order.
type EndParams struct {
	ProgramID solana.PublicKey
	Account   solana.PublicKey
	Owner     solana.PublicKey

	HealthAccounts []solana.PublicKey
	Vaults         []solana.PublicKey
	TokenAccounts  []solana.PublicKey
}

func (p *BeginParams) validate() error {
	n := len(p.Banks)
	if n == 0 {
		return fmt.Errorf("flash loan needs at least one bank")
	}
	if len(p.Vaults) != n || len(p.TokenAccounts) != n || len(p.LoanAmounts) != n {
		return fmt.Errorf("banks/vaults/token accounts/amounts must match: %d/%d/%d/%d",
			n, len(p.Vaults), len(p.TokenAccounts), len(p.LoanAmounts))
	}
	return nil
}

// NewBeginInstruction builds the begin instruction. The program requires
// exactly 3*N remaining accounts: banks, then vaults, then token accounts.
func NewBeginInstruction(params *BeginParams) (solana.Instruction, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	// Discriminator plus a borsh Vec<u64>.
	data := make([]byte, 0, 8+4+8*len(params.LoanAmounts))
	data = append(data, BeginDiscriminator...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(params.LoanAmounts)))
	for _, amount := range params.LoanAmounts {
		data = binary.LittleEndian.AppendUint64(data, amount)
	}

	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(params.Group, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarInstructionsPubkey, false, false),
	}
	for _, bank := range params.Banks {
		metas = append(metas, solana.NewAccountMeta(bank, true, false))
	}
	for _, vault := range params.Vaults {
		metas = append(metas, solana.NewAccountMeta(vault, true, false))
	}
	for _, tokenAccount := range params.TokenAccounts {
		metas = append(metas, solana.NewAccountMeta(tokenAccount, true, false))
	}

	return solana.NewInstruction(params.ProgramID, metas, data), nil
}

// NewEndInstruction builds the end instruction. The program locates the
// vault section itself, so the account order here must mirror begin.
func NewEndInstruction(params *EndParams) (solana.Instruction, error) {
	if len(params.Vaults) == 0 {
		return nil, fmt.Errorf("flash loan end needs the begin instruction's vaults")
	}
	if len(params.Vaults) != len(params.TokenAccounts) {
		return nil, fmt.Errorf("vaults/token accounts must match: %d/%d",
			len(params.Vaults), len(params.TokenAccounts))
	}

	data := make([]byte, 8)
	copy(data, EndDiscriminator)

	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(params.Account, true, false),
		solana.NewAccountMeta(params.Owner, false, true),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	for _, acc := range params.HealthAccounts {
		metas = append(metas, solana.NewAccountMeta(acc, true, false))
	}
	for _, vault := range params.Vaults {
		metas = append(metas, solana.NewAccountMeta(vault, true, false))
	}
	for _, tokenAccount := range params.TokenAccounts {
		metas = append(metas, solana.NewAccountMeta(tokenAccount, true, false))
	}

	return solana.NewInstruction(params.ProgramID, metas, data), nil
}
