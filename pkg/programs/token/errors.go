// Package token implements the fungible-token program for X1-StakePool.
package token

import "errors"

// Token program errors
var (
	// ErrInsufficientFunds indicates insufficient token balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidMint indicates the mint account is invalid.
	ErrInvalidMint = errors.New("invalid mint")

	// ErrMintMismatch indicates a token account's mint doesn't match the expected mint.
	ErrMintMismatch = errors.New("mint mismatch")

	// ErrOwnerMismatch indicates the signing authority is not the account owner.
	ErrOwnerMismatch = errors.New("owner mismatch")

	// ErrAlreadyInitialized indicates the account is already initialized.
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrNotInitialized indicates the account is not initialized.
	ErrNotInitialized = errors.New("not initialized")

	// ErrInvalidAccountData indicates the account data is malformed.
	ErrInvalidAccountData = errors.New("invalid account data")

	// ErrInvalidInstruction indicates an unknown instruction discriminator.
	ErrInvalidInstruction = errors.New("invalid instruction")

	// ErrInvalidInstructionData indicates the instruction data is malformed.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrInvalidNumberOfAccounts indicates an incorrect number of accounts.
	ErrInvalidNumberOfAccounts = errors.New("invalid number of accounts")

	// ErrFixedSupply indicates the mint has no mint authority.
	ErrFixedSupply = errors.New("fixed supply")

	// ErrAuthorityMismatch indicates the signer is not the required authority.
	ErrAuthorityMismatch = errors.New("authority mismatch")

	// ErrOverflow indicates an arithmetic overflow.
	ErrOverflow = errors.New("overflow")
)
