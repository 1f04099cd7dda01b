package runtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fortiblox/x1-stakepool/pkg/accounts"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Engine errors
var (
	ErrNilInstruction    = errors.New("nil instruction")
	ErrProgramNotFound   = errors.New("program not found")
	ErrMaxInvokeDepth    = errors.New("maximum invoke depth exceeded")
	ErrPrivilegeEscalate = errors.New("signer privilege escalation")
)

// MaxInvokeDepth bounds nested program invocations.
const MaxInvokeDepth = 4

// Program is a native program executor.
type Program interface {
	// Execute runs one instruction within the given context.
	Execute(ctx *ExecutionContext, instruction *types.Instruction) error
}

// Engine processes instructions against the account store. Each Process call
// is atomic: either every writable account is committed or none is. Calls
// are serialized, which gives the serializable-transaction guarantee the
// handlers rely on.
type Engine struct {
	mu       sync.Mutex
	db       accounts.DB
	programs map[types.Pubkey]Program

	currentSlot types.Slot

	// now supplies the ledger clock; overridable in tests.
	now func() time.Time
}

// NewEngine creates an engine over the given account store.
func NewEngine(db accounts.DB) *Engine {
	return &Engine{
		db:       db,
		programs: make(map[types.Pubkey]Program),
		now:      time.Now,
	}
}

// RegisterProgram registers a native program under its program ID.
func (e *Engine) RegisterProgram(id types.Pubkey, program Program) {
	e.programs[id] = program
}

// CurrentSlot returns the slot reported to handlers.
func (e *Engine) CurrentSlot() types.Slot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentSlot
}

// SetCurrentSlot sets the slot reported to handlers.
func (e *Engine) SetCurrentSlot(slot types.Slot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentSlot = slot
}

// SetClock overrides the ledger clock source.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// DB exposes the underlying account store for read-only callers.
func (e *Engine) DB() accounts.DB {
	return e.db
}

// Process executes one instruction atomically. The returned result carries
// the handler error, if any; the error return is reserved for storage
// failures that prevented execution from starting or committing.
func (e *Engine) Process(instruction *types.Instruction) (*types.InstructionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &types.InstructionResult{
		Slot:          e.currentSlot,
		UnixTimestamp: e.now().Unix(),
	}

	if instruction == nil {
		result.Err = ErrNilInstruction
		return result, nil
	}

	program, ok := e.programs[instruction.ProgramID]
	if !ok {
		result.Err = fmt.Errorf("%w: %s", ErrProgramNotFound, instruction.ProgramID.String())
		return result, nil
	}

	infos, before, err := e.loadAccounts(instruction.Accounts)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	ctx := NewExecutionContext(instruction.ProgramID, infos, instruction.Data)
	ctx.Slot = result.Slot
	ctx.UnixTimestamp = result.UnixTimestamp
	ctx.engine = e

	if err := program.Execute(ctx, instruction); err != nil {
		// Discard all mutations: nothing was written to the store.
		result.Err = err
		return result, nil
	}

	deltas, err := e.commit(infos, before)
	if err != nil {
		return nil, fmt.Errorf("failed to commit accounts: %w", err)
	}
	result.Deltas = deltas

	return result, nil
}

// loadAccounts materializes the named accounts as isolated clones. Accounts
// absent from the store load as empty system-owned slots, which is how
// create-once handlers see their fresh account.
func (e *Engine) loadAccounts(metas []types.AccountMeta) ([]*AccountInfo, map[types.Pubkey]*types.Account, error) {
	infos := make([]*AccountInfo, len(metas))
	before := make(map[types.Pubkey]*types.Account, len(metas))
	seen := make(map[types.Pubkey]*AccountInfo, len(metas))

	for i, meta := range metas {
		// An account named twice shares one view; privileges accumulate.
		if info, ok := seen[meta.Pubkey]; ok {
			info.IsSigner = info.IsSigner || meta.IsSigner
			info.IsWritable = info.IsWritable || meta.IsWritable
			infos[i] = info
			continue
		}

		stored, err := e.db.GetAccount(meta.Pubkey)
		if err != nil {
			return nil, nil, err
		}
		before[meta.Pubkey] = stored

		info := &AccountInfo{
			Pubkey:     meta.Pubkey,
			Owner:      types.SystemProgramID,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
		if stored != nil {
			info.Lamports = uint64(stored.Lamports)
			info.Owner = stored.Owner
			info.Executable = stored.Executable
			if stored.Data != nil {
				info.Data = make([]byte, len(stored.Data))
				copy(info.Data, stored.Data)
			}
		}

		seen[meta.Pubkey] = info
		infos[i] = info
	}

	return infos, before, nil
}

// commit writes back every changed writable account and reports the deltas.
func (e *Engine) commit(infos []*AccountInfo, before map[types.Pubkey]*types.Account) ([]types.AccountDelta, error) {
	var deltas []types.AccountDelta
	committed := make(map[types.Pubkey]bool, len(infos))

	for _, info := range infos {
		if !info.IsWritable || committed[info.Pubkey] {
			continue
		}
		committed[info.Pubkey] = true

		updated := &types.Account{
			Lamports:   types.Lamports(info.Lamports),
			Owner:      info.Owner,
			Executable: info.Executable,
		}
		if info.Data != nil {
			updated.Data = make([]byte, len(info.Data))
			copy(updated.Data, info.Data)
		}

		old := before[info.Pubkey]
		if updated.Equal(old) {
			continue
		}
		if old == nil && updated.IsEmpty() {
			continue
		}

		if err := e.db.SetAccount(info.Pubkey, updated); err != nil {
			return nil, err
		}
		deltas = append(deltas, types.AccountDelta{
			Pubkey:     info.Pubkey,
			OldAccount: old,
			NewAccount: updated,
		})
	}

	return deltas, nil
}

// invoke runs a nested program call against the caller's account views.
// Mutations land on the shared AccountInfo values, so the outer commit (or
// discard) covers them; derived signers gain signer privilege only for the
// duration of the call.
func (e *Engine) invoke(caller *ExecutionContext, instruction *types.Instruction, derivedSigners map[types.Pubkey]bool) error {
	if instruction == nil {
		return ErrNilInstruction
	}
	if caller.depth+1 > MaxInvokeDepth {
		return ErrMaxInvokeDepth
	}

	program, ok := e.programs[instruction.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, instruction.ProgramID.String())
	}

	infos := make([]*AccountInfo, len(instruction.Accounts))
	var restore []func()

	for i, meta := range instruction.Accounts {
		info, err := caller.Account(meta.Pubkey)
		if err != nil {
			return err
		}

		if meta.IsSigner && !info.IsSigner {
			if !derivedSigners[meta.Pubkey] {
				return fmt.Errorf("%w: %s", ErrPrivilegeEscalate, meta.Pubkey.String())
			}
			info.IsSigner = true
			acc := info
			restore = append(restore, func() { acc.IsSigner = false })
		}
		if meta.IsWritable && !info.IsWritable {
			return fmt.Errorf("%w: %s", ErrPrivilegeEscalate, meta.Pubkey.String())
		}

		infos[i] = info
	}
	defer func() {
		for _, fn := range restore {
			fn()
		}
	}()

	child := NewExecutionContext(instruction.ProgramID, infos, instruction.Data)
	child.Slot = caller.Slot
	child.UnixTimestamp = caller.UnixTimestamp
	child.engine = e
	child.depth = caller.depth + 1

	return program.Execute(child, instruction)
}
