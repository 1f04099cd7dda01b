package stakepool

import (
	"encoding/binary"
	"fmt"
)

// Stake pool program instruction discriminators (first byte of instruction data)
const (
	InstructionInitializePool     uint8 = 0
	InstructionCreateUserPosition uint8 = 1
	InstructionStake              uint8 = 2
	InstructionUnstake            uint8 = 3
)

// InitializePoolInstruction creates a stake pool bound to the admin's
// derived authority.
// Accounts:
//
//	[0] pool (writable) - the pool record slot; must be the derived address
//	[1] staking_mint
//	[2] staking_vault (writable)
//	[3] reward_mint
//	[4] reward_vault (writable)
//	[5] admin (signer)
type InitializePoolInstruction struct{}

// Decode decodes an InitializePool instruction from bytes.
func (inst *InitializePoolInstruction) Decode(_ []byte) error {
	return nil
}

// Encode encodes an InitializePool instruction to bytes.
func (inst *InitializePoolInstruction) Encode() []byte {
	return []byte{InstructionInitializePool}
}

// CreateUserPositionInstruction allocates a zeroed position record.
// Accounts:
//
//	[0] position (writable) - fresh record slot
//	[1] pool
//	[2] user (signer)
type CreateUserPositionInstruction struct{}

// Decode decodes a CreateUserPosition instruction from bytes.
func (inst *CreateUserPositionInstruction) Decode(_ []byte) error {
	return nil
}

// Encode encodes a CreateUserPosition instruction to bytes.
func (inst *CreateUserPositionInstruction) Encode() []byte {
	return []byte{InstructionCreateUserPosition}
}

// StakeInstruction locks tokens into the pool's staking vault.
// Accounts:
//
//	[0] user (signer)
//	[1] user_token_account (writable) - source of the staked tokens
//	[2] staking_vault (writable)
//	[3] position (writable)
type StakeInstruction struct {
	Amount uint64
}

// Decode decodes a Stake instruction from bytes.
func (inst *StakeInstruction) Decode(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: Stake requires 8 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	inst.Amount = binary.LittleEndian.Uint64(data[0:8])
	return nil
}

// Encode encodes a Stake instruction to bytes.
func (inst *StakeInstruction) Encode() []byte {
	data := make([]byte, 9)
	data[0] = InstructionStake
	binary.LittleEndian.PutUint64(data[1:9], inst.Amount)
	return data
}

// UnstakeInstruction reclaims staked tokens from the vault under the
// pool's derived authority.
// Accounts:
//
//	[0] user (signer)
//	[1] user_token_account (writable) - destination for the reclaimed tokens
//	[2] staking_vault (writable)
//	[3] position (writable)
//	[4] pool - for authority re-derivation
type UnstakeInstruction struct {
	Amount uint64
}

// Decode decodes an Unstake instruction from bytes.
func (inst *UnstakeInstruction) Decode(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("%w: Unstake requires 8 bytes, got %d",
			ErrInvalidInstructionData, len(data))
	}
	inst.Amount = binary.LittleEndian.Uint64(data[0:8])
	return nil
}

// Encode encodes an Unstake instruction to bytes.
func (inst *UnstakeInstruction) Encode() []byte {
	data := make([]byte, 9)
	data[0] = InstructionUnstake
	binary.LittleEndian.PutUint64(data[1:9], inst.Amount)
	return data
}
