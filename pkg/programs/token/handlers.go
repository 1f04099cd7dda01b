package token

import (
	"fmt"

	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// handleInitializeMint initializes a new token mint.
// Account layout:
//
//	[0] mint (writable)
func handleInitializeMint(ctx *runtime.ExecutionContext, inst *InitializeMintInstruction) error {
	if ctx.AccountCount() < 1 {
		return fmt.Errorf("%w: InitializeMint requires 1 account, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}

	mintAcc, err := ctx.WritableAt(0)
	if err != nil {
		return err
	}

	if len(mintAcc.Data) >= MintSize {
		existing, err := DeserializeMint(mintAcc.Data)
		if err == nil && existing.IsInitialized {
			return ErrAlreadyInitialized
		}
	}
	if len(mintAcc.Data) == 0 {
		if err := ctx.Allocate(mintAcc, MintSize); err != nil {
			return err
		}
	}
	if len(mintAcc.Data) < MintSize {
		return fmt.Errorf("%w: mint account data too small, expected %d bytes",
			ErrInvalidAccountData, MintSize)
	}

	mint := NewMint(inst.Decimals, inst.MintAuthority)
	copy(mintAcc.Data, mint.Serialize())

	return nil
}

// handleInitializeAccount initializes a new token account.
// Account layout:
//
//	[0] account (writable)
//	[1] mint
//	[2] owner
func handleInitializeAccount(ctx *runtime.ExecutionContext) error {
	if ctx.AccountCount() < 3 {
		return fmt.Errorf("%w: InitializeAccount requires 3 accounts, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}

	tokenAcc, err := ctx.WritableAt(0)
	if err != nil {
		return err
	}
	mintAcc, err := ctx.AccountAt(1)
	if err != nil {
		return err
	}
	ownerAcc, err := ctx.AccountAt(2)
	if err != nil {
		return err
	}

	if len(tokenAcc.Data) >= TokenAccountSize {
		existing, err := DeserializeTokenAccount(tokenAcc.Data)
		if err == nil && existing.State != AccountStateUninitialized {
			return ErrAlreadyInitialized
		}
	}
	if len(tokenAcc.Data) == 0 {
		if err := ctx.Allocate(tokenAcc, TokenAccountSize); err != nil {
			return err
		}
	}
	if len(tokenAcc.Data) < TokenAccountSize {
		return fmt.Errorf("%w: token account data too small, expected %d bytes",
			ErrInvalidAccountData, TokenAccountSize)
	}

	if len(mintAcc.Data) < MintSize {
		return fmt.Errorf("%w: mint account data too small", ErrInvalidMint)
	}
	mint, err := DeserializeMint(mintAcc.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if !mint.IsInitialized {
		return fmt.Errorf("%w: mint not initialized", ErrInvalidMint)
	}

	account := NewTokenAccount(mintAcc.Pubkey, ownerAcc.Pubkey)
	copy(tokenAcc.Data, account.Serialize())

	return nil
}

// handleTransfer moves tokens between accounts.
// Account layout:
//
//	[0] source (writable)
//	[1] destination (writable)
//	[2] authority (signer) - the source account owner
func handleTransfer(ctx *runtime.ExecutionContext, inst *TransferInstruction) error {
	if ctx.AccountCount() < 3 {
		return fmt.Errorf("%w: Transfer requires 3 accounts, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}

	sourceAcc, err := ctx.WritableAt(0)
	if err != nil {
		return err
	}
	destAcc, err := ctx.WritableAt(1)
	if err != nil {
		return err
	}
	authorityAcc, err := ctx.SignerAt(2)
	if err != nil {
		return err
	}

	source, err := DeserializeTokenAccount(sourceAcc.Data)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dest, err := DeserializeTokenAccount(destAcc.Data)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if !source.IsInitialized() {
		return fmt.Errorf("source: %w", ErrNotInitialized)
	}
	if !dest.IsInitialized() {
		return fmt.Errorf("destination: %w", ErrNotInitialized)
	}

	if source.Mint != dest.Mint {
		return ErrMintMismatch
	}
	if source.Owner != authorityAcc.Pubkey {
		return ErrOwnerMismatch
	}

	if inst.Amount > source.Amount {
		return ErrInsufficientFunds
	}

	// Source and destination share one account record when they name the
	// same slot; writing both views back would double the balance. A
	// validated self-transfer moves nothing.
	if sourceAcc.Pubkey == destAcc.Pubkey {
		return nil
	}

	if dest.Amount > ^uint64(0)-inst.Amount {
		return ErrOverflow
	}

	source.Amount -= inst.Amount
	dest.Amount += inst.Amount

	copy(sourceAcc.Data, source.Serialize())
	copy(destAcc.Data, dest.Serialize())

	return nil
}

// handleMintTo mints new tokens to an account.
// Account layout:
//
//	[0] mint (writable)
//	[1] destination (writable)
//	[2] mint_authority (signer)
func handleMintTo(ctx *runtime.ExecutionContext, inst *MintToInstruction) error {
	if ctx.AccountCount() < 3 {
		return fmt.Errorf("%w: MintTo requires 3 accounts, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}

	mintAcc, err := ctx.WritableAt(0)
	if err != nil {
		return err
	}
	destAcc, err := ctx.WritableAt(1)
	if err != nil {
		return err
	}
	authorityAcc, err := ctx.SignerAt(2)
	if err != nil {
		return err
	}

	mint, err := DeserializeMint(mintAcc.Data)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	dest, err := DeserializeTokenAccount(destAcc.Data)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	if !mint.IsInitialized {
		return fmt.Errorf("mint: %w", ErrNotInitialized)
	}
	if !dest.IsInitialized() {
		return fmt.Errorf("destination: %w", ErrNotInitialized)
	}
	if dest.Mint != mintAcc.Pubkey {
		return ErrMintMismatch
	}

	if mint.MintAuthority == nil {
		return ErrFixedSupply
	}
	if *mint.MintAuthority != authorityAcc.Pubkey {
		return ErrAuthorityMismatch
	}

	if mint.Supply > ^uint64(0)-inst.Amount {
		return ErrOverflow
	}
	if dest.Amount > ^uint64(0)-inst.Amount {
		return ErrOverflow
	}

	mint.Supply += inst.Amount
	dest.Amount += inst.Amount

	copy(mintAcc.Data, mint.Serialize())
	copy(destAcc.Data, dest.Serialize())

	return nil
}

// handleSetOwner reassigns a token account's owner.
// Account layout:
//
//	[0] account (writable)
//	[1] owner (signer) - current owner
func handleSetOwner(ctx *runtime.ExecutionContext, inst *SetOwnerInstruction) error {
	if ctx.AccountCount() < 2 {
		return fmt.Errorf("%w: SetOwner requires 2 accounts, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}

	tokenAcc, err := ctx.WritableAt(0)
	if err != nil {
		return err
	}
	ownerAcc, err := ctx.SignerAt(1)
	if err != nil {
		return err
	}

	account, err := DeserializeTokenAccount(tokenAcc.Data)
	if err != nil {
		return err
	}
	if !account.IsInitialized() {
		return ErrNotInitialized
	}
	if account.Owner != ownerAcc.Pubkey {
		return ErrOwnerMismatch
	}

	account.Owner = inst.NewOwner
	copy(tokenAcc.Data, account.Serialize())

	return nil
}

// Balance reads the token balance of an account's data without a context.
// Used by the read surface.
func Balance(data []byte) (uint64, error) {
	account, err := DeserializeTokenAccount(data)
	if err != nil {
		return 0, err
	}
	if !account.IsInitialized() {
		return 0, ErrNotInitialized
	}
	return account.Amount, nil
}

// DeriveTokenAddress derives the canonical token account address for a
// wallet and mint.
func DeriveTokenAddress(owner, mint types.Pubkey) (types.Pubkey, uint8, error) {
	seeds := [][]byte{
		[]byte("token"),
		owner[:],
		mint[:],
	}
	return runtime.FindProgramAddress(seeds, types.TokenProgramID)
}
