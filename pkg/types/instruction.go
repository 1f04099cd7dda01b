package types

// Instruction names a program, the accounts it may touch, and opaque
// instruction data. The first data byte is the program's discriminator.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// NewInstruction builds an instruction for the given program.
func NewInstruction(programID Pubkey, data []byte, accounts ...AccountMeta) *Instruction {
	return &Instruction{
		ProgramID: programID,
		Accounts:  accounts,
		Data:      data,
	}
}

// InstructionResult is the outcome of processing one instruction.
type InstructionResult struct {
	// Err is nil on success. On failure every account is left untouched.
	Err error

	// Deltas lists the accounts changed by a successful instruction.
	Deltas []AccountDelta

	// Slot and UnixTimestamp record the clock the instruction ran under.
	Slot          Slot
	UnixTimestamp int64
}

// Success reports whether the instruction committed.
func (r *InstructionResult) Success() bool {
	return r.Err == nil
}
