// Package stakepool implements the custodial staking program for X1-StakePool.
package stakepool

import "errors"

// Stake pool program errors
var (
	// ErrAlreadyInitialized indicates a create-once account slot is already in use.
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrInvalidAccountOwnership indicates a vault or mint account is
	// inconsistent with the expected asset schema.
	ErrInvalidAccountOwnership = errors.New("invalid account ownership")

	// ErrInvalidAccountRelationship indicates mismatched vault/mint/pool references.
	ErrInvalidAccountRelationship = errors.New("invalid account relationship")

	// ErrInsufficientStake indicates a withdrawal exceeding the recorded position.
	ErrInsufficientStake = errors.New("insufficient staked amount")

	// ErrArithmeticOverflow indicates a checked addition would overflow.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrArithmeticUnderflow indicates a checked subtraction would underflow.
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")

	// ErrAuthorizationFailure indicates the caller is not the required signer.
	ErrAuthorizationFailure = errors.New("authorization failure")

	// ErrInvalidAmount indicates a zero amount where a positive one is required.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidInstruction indicates an unknown instruction discriminator.
	ErrInvalidInstruction = errors.New("invalid instruction")

	// ErrInvalidInstructionData indicates the instruction data is malformed.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrInvalidNumberOfAccounts indicates an incorrect number of accounts.
	ErrInvalidNumberOfAccounts = errors.New("invalid number of accounts")

	// ErrInvalidAccountData indicates a pool or position record is malformed.
	ErrInvalidAccountData = errors.New("invalid account data")
)
