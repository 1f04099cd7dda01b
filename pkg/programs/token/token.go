package token

import (
	"fmt"

	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Program implements the fungible-token program.
type Program struct {
	// ProgramID is the token program's public key.
	ProgramID types.Pubkey
}

// New creates a new token Program instance.
func New() *Program {
	return &Program{ProgramID: types.TokenProgramID}
}

// Execute executes a token program instruction. The first byte of the
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
	case InstructionInitializeMint:
		var inst InitializeMintInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleInitializeMint(ctx, &inst)

	case InstructionInitializeAccount:
		var inst InitializeAccountInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleInitializeAccount(ctx)

	case InstructionTransfer:
		var inst TransferInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleTransfer(ctx, &inst)

	case InstructionMintTo:
		var inst MintToInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleMintTo(ctx, &inst)

	case InstructionSetOwner:
		var inst SetOwnerInstruction
		if err := inst.Decode(instructionData); err != nil {
			return err
		}
		return handleSetOwner(ctx, &inst)

	default:
		return fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstruction, discriminator)
	}
}

var _ runtime.Program = (*Program)(nil)
