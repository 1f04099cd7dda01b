// Package runtime executes program instructions against the account store.
//
// Each instruction runs as an atomic, serializable transaction: the engine
// loads clones of every named account, invokes the owning program's handler,
// and commits all writable accounts on success or discards everything on
// failure. Access control is enforced by explicit signer, writable, and
// ownership checks rather than trusting caller-supplied flags.
package runtime

import (
	"errors"
	"fmt"

	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Context errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotWritable  = errors.New("account is not writable")
	ErrAccountNotSigner    = errors.New("account is not a signer")
	ErrInvalidAccountIndex = errors.New("invalid account index")
	ErrAccountInUse        = errors.New("account already in use")
	ErrInvalidOwner        = errors.New("invalid account owner")
	ErrInvokeOutsideEngine = errors.New("invoke requires an engine-backed context")
)

// MaxAccountDataSize bounds a single account's data buffer.
const MaxAccountDataSize = 10 * 1024 * 1024 // 10MB

// AccountInfo is the view of an account a program sees during execution.
type AccountInfo struct {
	Pubkey     types.Pubkey
	Lamports   uint64
	Data       []byte
	Owner      types.Pubkey
	Executable bool
	IsSigner   bool
	IsWritable bool
}

// Clone creates a deep copy of AccountInfo.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	clone := &AccountInfo{
		Pubkey:     a.Pubkey,
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		IsSigner:   a.IsSigner,
		IsWritable: a.IsWritable,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// ExecutionContext holds the per-instruction execution state.
type ExecutionContext struct {
	// ProgramID is the program currently executing.
	ProgramID types.Pubkey

	// Accounts are the instruction's accounts, in instruction order.
	Accounts []*AccountInfo

	// InstructionData is the raw instruction payload.
	InstructionData []byte

	// Ledger clock at execution time.
	Slot          types.Slot
	UnixTimestamp int64

	accountIndex map[types.Pubkey]int
	engine       *Engine
	depth        int
}

// NewExecutionContext creates an execution context for a program invocation.
func NewExecutionContext(programID types.Pubkey, accounts []*AccountInfo, data []byte) *ExecutionContext {
	ctx := &ExecutionContext{
		ProgramID:       programID,
		Accounts:        accounts,
		InstructionData: data,
		accountIndex:    make(map[types.Pubkey]int, len(accounts)),
	}
	for i, acc := range accounts {
		ctx.accountIndex[acc.Pubkey] = i
	}
	return ctx
}

// AccountCount returns the number of accounts.
func (ctx *ExecutionContext) AccountCount() int {
	return len(ctx.Accounts)
}

// AccountAt returns the account at the given instruction index.
func (ctx *ExecutionContext) AccountAt(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(ctx.Accounts) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAccountIndex, index)
	}
	return ctx.Accounts[index], nil
}

// SignerAt returns the account at index, requiring it to be a signer.
func (ctx *ExecutionContext) SignerAt(index int) (*AccountInfo, error) {
	acc, err := ctx.AccountAt(index)
	if err != nil {
		return nil, err
	}
	if !acc.IsSigner {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotSigner, acc.Pubkey.String())
	}
	return acc, nil
}

// WritableAt returns the account at index, requiring it to be writable.
func (ctx *ExecutionContext) WritableAt(index int) (*AccountInfo, error) {
	acc, err := ctx.AccountAt(index)
	if err != nil {
		return nil, err
	}
	if !acc.IsWritable {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotWritable, acc.Pubkey.String())
	}
	return acc, nil
}

// Account returns an account by pubkey.
func (ctx *ExecutionContext) Account(pubkey types.Pubkey) (*AccountInfo, error) {
	idx, ok := ctx.accountIndex[pubkey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey.String())
	}
	return ctx.Accounts[idx], nil
}

// CheckOwner verifies the account is owned by the expected program.
func (ctx *ExecutionContext) CheckOwner(acc *AccountInfo, expected types.Pubkey) error {
	if acc.Owner != expected {
		return fmt.Errorf("%w: account %s owned by %s, expected %s",
			ErrInvalidOwner, acc.Pubkey.String(), acc.Owner.String(), expected.String())
	}
	return nil
}

// Allocate claims an empty account for the executing program and sizes its
// data buffer. Fails if the account already holds data.
func (ctx *ExecutionContext) Allocate(acc *AccountInfo, size int) error {
	if !acc.IsWritable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, acc.Pubkey.String())
	}
	if len(acc.Data) != 0 {
		return fmt.Errorf("%w: %s", ErrAccountInUse, acc.Pubkey.String())
	}
	if !acc.Owner.IsSystemProgram() && acc.Owner != ctx.ProgramID {
		return fmt.Errorf("%w: account %s owned by %s",
			ErrInvalidOwner, acc.Pubkey.String(), acc.Owner.String())
	}
	if size > MaxAccountDataSize {
		return fmt.Errorf("data size %d exceeds maximum %d", size, MaxAccountDataSize)
	}
	acc.Data = make([]byte, size)
	acc.Owner = ctx.ProgramID
	return nil
}

// Invoke executes another program's instruction within this transaction.
// Accounts named by the instruction must already be present in this context;
// signer privileges carry over from the caller.
func (ctx *ExecutionContext) Invoke(instruction *types.Instruction) error {
	return ctx.InvokeSigned(instruction, nil)
}

// InvokeSigned executes another program's instruction, additionally granting
// signer privilege to any account whose address is a program-derived address
// of the calling program for one of the given seed sets. The derived address
// must match the named account exactly; no bump search happens here.
func (ctx *ExecutionContext) InvokeSigned(instruction *types.Instruction, signerSeeds [][][]byte) error {
	if ctx.engine == nil {
		return ErrInvokeOutsideEngine
	}

	derivedSigners := make(map[types.Pubkey]bool, len(signerSeeds))
	for _, seeds := range signerSeeds {
		derived, err := CreateProgramAddress(seeds, ctx.ProgramID)
		if err != nil {
			return fmt.Errorf("derive signer: %w", err)
		}
		derivedSigners[derived] = true
	}

	return ctx.engine.invoke(ctx, instruction, derivedSigners)
}
