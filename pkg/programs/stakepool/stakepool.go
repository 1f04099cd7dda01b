package stakepool

import (
	"fmt"

	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Program implements the custodial staking program.
//
// Four instructions mutate the per-pool and per-user records:
//   - InitializePool binds the vaults to a derived authority
//   - CreateUserPosition allocates a zeroed (user, pool) record
//   - Stake locks tokens under the user's own signature
//   - Unstake reclaims tokens under the derived authority's signature
type Program struct {
	// ProgramID is the staking program's public key.
	ProgramID types.Pubkey
}

// New creates a new stake pool Program instance.
func New() *Program {
	return &Program{ProgramID: types.StakePoolProgramID}
}

// Execute executes a stake pool program instruction. The first byte of the
// instruction data is the discriminator; the rest is instruction-specific.
func (p *Program) Execute(ctx *runtime.ExecutionContext, instruction *types.Instruction) error {
	if len(instruction.Data) < 1 {
		return fmt.Errorf("%w: instruction data too short", ErrInvalidInstructionData)
	}

	discriminator := instruction.Data[0]
	var instructionData []byte
	if len(instruction.Data) > 1 {
		instructionData = instruction.Data[1:]
	}

	switch discriminator {
	case InstructionInitializePool:
		var inst InitializePoolInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleInitializePool(ctx)

	case InstructionCreateUserPosition:
		var inst CreateUserPositionInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleCreateUserPosition(ctx)

	case InstructionStake:
		var inst StakeInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleStake(ctx, &inst)

	case InstructionUnstake:
		var inst UnstakeInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleUnstake(ctx, &inst)

	default:
		return fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstruction, discriminator)
	}
}

var _ runtime.Program = (*Program)(nil)
