package stakepool

import (
	"fmt"

	"github.com/fortiblox/x1-stakepool/pkg/programs/token"
	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// checkedAdd returns a+b, detecting overflow.
func checkedAdd(a, b uint64) (uint64, bool) {
	if a > ^uint64(0)-b {
		return 0, false
	}
	return a + b, true
}

// checkedSub returns a-b, detecting underflow.
func checkedSub(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// validateVault checks that a vault account is an initialized token account
// of the expected mint.
func validateVault(vaultAcc *runtime.AccountInfo, mint types.Pubkey) (*token.TokenAccount, error) {
	if vaultAcc.Owner != types.TokenProgramID {
		return nil, fmt.Errorf("%w: vault %s is not a token account",
			ErrInvalidAccountOwnership, vaultAcc.Pubkey.String())
	}
	vault, err := token.DeserializeTokenAccount(vaultAcc.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: vault %s: %v",
			ErrInvalidAccountOwnership, vaultAcc.Pubkey.String(), err)
	}
	if !vault.IsInitialized() {
		return nil, fmt.Errorf("%w: vault %s is not initialized",
			ErrInvalidAccountOwnership, vaultAcc.Pubkey.String())
	}
	if vault.Mint != mint {
		return nil, fmt.Errorf("%w: vault %s holds mint %s, expected %s",
			ErrInvalidAccountOwnership, vaultAcc.Pubkey.String(),
			vault.Mint.String(), mint.String())
	}
	return vault, nil
}

// validateMint checks that a mint account is an initialized token mint.
func validateMint(mintAcc *runtime.AccountInfo) error {
	if mintAcc.Owner != types.TokenProgramID {
		return fmt.Errorf("%w: %s is not a mint",
			ErrInvalidAccountOwnership, mintAcc.Pubkey.String())
	}
	mint, err := token.DeserializeMint(mintAcc.Data)
	if err != nil {
		return fmt.Errorf("%w: mint %s: %v",
			ErrInvalidAccountOwnership, mintAcc.Pubkey.String(), err)
	}
	if !mint.IsInitialized {
		return fmt.Errorf("%w: mint %s is not initialized",
			ErrInvalidAccountOwnership, mintAcc.Pubkey.String())
	}
	return nil
}

// loadPosition reads a position record and verifies the signing user owns it.
func loadPosition(positionAcc *runtime.AccountInfo, user types.Pubkey) (*UserPosition, error) {
	if positionAcc.Owner != types.StakePoolProgramID {
		return nil, fmt.Errorf("%w: position %s",
			ErrInvalidAccountOwnership, positionAcc.Pubkey.String())
	}
	position, err := DeserializeUserPosition(positionAcc.Data)
	if err != nil {
		return nil, err
	}
	if !position.IsInitialized {
		return nil, fmt.Errorf("%w: position %s is not initialized",
			ErrInvalidAccountOwnership, positionAcc.Pubkey.String())
	}
	if position.User != user {
		return nil, fmt.Errorf("%w: position belongs to %s, signed by %s",
			ErrAuthorizationFailure, position.User.String(), user.String())
	}
	return position, nil
}

// handleInitializePool creates the pool record and hands both vaults to the
// derived authority. Create-once: reusing the slot fails.
// Account layout:
//
//	[0] pool (writable) - must be the address derived from the admin
//	[1] staking_mint
//	[2] staking_vault (writable)
//	[3] reward_mint
//	[4] reward_vault (writable)
//	[5] admin (signer)
func handleInitializePool(ctx *runtime.ExecutionContext) error {
	if ctx.AccountCount() < 6 {
		return fmt.Errorf("%w: InitializePool requires 6 accounts, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}

	poolAcc, err := ctx.WritableAt(0)
	if err != nil {
		return err
	}
	stakingMintAcc, err := ctx.AccountAt(1)
	if err != nil {
		return err
	}
	stakingVaultAcc, err := ctx.WritableAt(2)
	if err != nil {
		return err
	}
	rewardMintAcc, err := ctx.AccountAt(3)
	if err != nil {
		return err
	}
	rewardVaultAcc, err := ctx.WritableAt(4)
	if err != nil {
		return err
	}
	adminAcc, err := ctx.SignerAt(5)
	if err != nil {
		return fmt.Errorf("%w: admin must sign: %v", ErrAuthorizationFailure, err)
	}

	// The pool slot must be the address derived from the admin; the bump
	// found here is recorded and reused for every later signed transfer.
	derived, bump, err := runtime.FindProgramAddress(
		[][]byte{[]byte(PoolSeed), adminAcc.Pubkey[:]}, types.StakePoolProgramID)
	if err != nil {
		return err
	}
	if derived != poolAcc.Pubkey {
		return fmt.Errorf("%w: pool slot %s is not the derived address %s",
			ErrInvalidAccountRelationship, poolAcc.Pubkey.String(), derived.String())
	}

	if len(poolAcc.Data) >= StakePoolSize {
		existing, err := DeserializeStakePool(poolAcc.Data)
		if err == nil && existing.IsInitialized {
			return ErrAlreadyInitialized
		}
	}
	if len(poolAcc.Data) == 0 {
		if err := ctx.Allocate(poolAcc, StakePoolSize); err != nil {
			return err
		}
	}
	if len(poolAcc.Data) < StakePoolSize {
		return fmt.Errorf("%w: pool account data too small, expected %d bytes",
			ErrInvalidAccountData, StakePoolSize)
	}

	if err := validateMint(stakingMintAcc); err != nil {
		return err
	}
	if err := validateMint(rewardMintAcc); err != nil {
		return err
	}
	stakingVault, err := validateVault(stakingVaultAcc, stakingMintAcc.Pubkey)
	if err != nil {
		return err
	}
	rewardVault, err := validateVault(rewardVaultAcc, rewardMintAcc.Pubkey)
	if err != nil {
		return err
	}

	// Hand each vault to the derived authority. The admin must be the
	// current vault owner; afterwards only the program can sign debits.
	for _, v := range []struct {
		acc   *runtime.AccountInfo
		state *token.TokenAccount
	}{
		{stakingVaultAcc, stakingVault},
		{rewardVaultAcc, rewardVault},
	} {
		if v.state.Owner == derived {
			continue
		}
		setOwner := &token.SetOwnerInstruction{NewOwner: derived}
		ix := types.NewInstruction(types.TokenProgramID, setOwner.Encode(),
			types.WritableMeta(v.acc.Pubkey, false),
			types.SignerMeta(adminAcc.Pubkey),
		)
		if err := ctx.Invoke(ix); err != nil {
			return fmt.Errorf("%w: vault %s: %v",
				ErrInvalidAccountOwnership, v.acc.Pubkey.String(), err)
		}
	}

	pool := &StakePool{
		StakingMint:   stakingMintAcc.Pubkey,
		StakingVault:  stakingVaultAcc.Pubkey,
		RewardMint:    rewardMintAcc.Pubkey,
		RewardVault:   rewardVaultAcc.Pubkey,
		Admin:         adminAcc.Pubkey,
		Bump:          bump,
		IsInitialized: true,
	}
	copy(poolAcc.Data, pool.Serialize())

	return nil
}

// handleCreateUserPosition allocates a zeroed position bound to (user, pool).
// Create-once: reusing the slot fails. The handler does not search for
// duplicate positions; callers supply a deterministically-derived slot.
// Account layout:
//
//	[0] position (writable)
//	[1] pool
//	[2] user (signer)
func handleCreateUserPosition(ctx *runtime.ExecutionContext) error {
	if ctx.AccountCount() < 3 {
		return fmt.Errorf("%w: CreateUserPosition requires 3 accounts, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}

	positionAcc, err := ctx.WritableAt(0)
	if err != nil {
		return err
	}
	poolAcc, err := ctx.AccountAt(1)
	if err != nil {
		return err
	}
	userAcc, err := ctx.SignerAt(2)
	if err != nil {
		return fmt.Errorf("%w: user must sign: %v", ErrAuthorizationFailure, err)
	}

	if poolAcc.Owner != types.StakePoolProgramID {
		return fmt.Errorf("%w: pool %s",
			ErrInvalidAccountOwnership, poolAcc.Pubkey.String())
	}
	pool, err := DeserializeStakePool(poolAcc.Data)
	if err != nil {
		return err
	}
	if !pool.IsInitialized {
		return fmt.Errorf("%w: pool %s is not initialized",
			ErrInvalidAccountOwnership, poolAcc.Pubkey.String())
	}

	if len(positionAcc.Data) >= UserPositionSize {
		existing, err := DeserializeUserPosition(positionAcc.Data)
		if err == nil && existing.IsInitialized {
			return ErrAlreadyInitialized
		}
	}
	if len(positionAcc.Data) == 0 {
		if err := ctx.Allocate(positionAcc, UserPositionSize); err != nil {
			return err
		}
	}
	if len(positionAcc.Data) < UserPositionSize {
		return fmt.Errorf("%w: position account data too small, expected %d bytes",
			ErrInvalidAccountData, UserPositionSize)
	}

	position := &UserPosition{
		User:          userAcc.Pubkey,
		Pool:          poolAcc.Pubkey,
		IsInitialized: true,
	}
	copy(positionAcc.Data, position.Serialize())

	return nil
}

// handleStake transfers tokens from the user's account into the staking
// vault under the user's own signing authority, then credits the position.
// Account layout:
//
//	[0] user (signer)
//	[1] user_token_account (writable)
//	[2] staking_vault (writable)
//	[3] position (writable)
func handleStake(ctx *runtime.ExecutionContext, inst *StakeInstruction) error {
	if ctx.AccountCount() < 4 {
		return fmt.Errorf("%w: Stake requires 4 accounts, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}
	if inst.Amount == 0 {
		return ErrInvalidAmount
	}

	userAcc, err := ctx.SignerAt(0)
	if err != nil {
		return fmt.Errorf("%w: user must sign: %v", ErrAuthorizationFailure, err)
	}
	sourceAcc, err := ctx.WritableAt(1)
	if err != nil {
		return err
	}
	vaultAcc, err := ctx.WritableAt(2)
	if err != nil {
		return err
	}
	positionAcc, err := ctx.WritableAt(3)
	if err != nil {
		return err
	}

	position, err := loadPosition(positionAcc, userAcc.Pubkey)
	if err != nil {
		return err
	}

	// The user owns the funds moving in, so the transfer runs under the
	// user's own signature; no derived authority is involved.
	transfer := &token.TransferInstruction{Amount: inst.Amount}
	ix := types.NewInstruction(types.TokenProgramID, transfer.Encode(),
		types.WritableMeta(sourceAcc.Pubkey, false),
		types.WritableMeta(vaultAcc.Pubkey, false),
		types.SignerMeta(userAcc.Pubkey),
	)
	if err := ctx.Invoke(ix); err != nil {
		return err
	}

	updated, ok := checkedAdd(position.StakedAmount, inst.Amount)
	if !ok {
		return ErrArithmeticOverflow
	}
	position.StakedAmount = updated
	position.LastStakeTimestamp = ctx.UnixTimestamp
	copy(positionAcc.Data, position.Serialize())

	return nil
}

// handleUnstake re-derives the pool authority and moves tokens from the
// vault back to the user, then debits the position. The recorded-stake
// precondition runs before any transfer is attempted.
// Account layout:
//
//	[0] user (signer)
//	[1] user_token_account (writable)
//	[2] staking_vault (writable)
//	[3] position (writable)
//	[4] pool
func handleUnstake(ctx *runtime.ExecutionContext, inst *UnstakeInstruction) error {
	if ctx.AccountCount() < 5 {
		return fmt.Errorf("%w: Unstake requires 5 accounts, got %d",
			ErrInvalidNumberOfAccounts, ctx.AccountCount())
	}
	if inst.Amount == 0 {
		return ErrInvalidAmount
	}

	userAcc, err := ctx.SignerAt(0)
	if err != nil {
		return fmt.Errorf("%w: user must sign: %v", ErrAuthorizationFailure, err)
	}
	destAcc, err := ctx.WritableAt(1)
	if err != nil {
		return err
	}
	vaultAcc, err := ctx.WritableAt(2)
	if err != nil {
		return err
	}
	positionAcc, err := ctx.WritableAt(3)
	if err != nil {
		return err
	}
	poolAcc, err := ctx.AccountAt(4)
	if err != nil {
		return err
	}

	if poolAcc.Owner != types.StakePoolProgramID {
		return fmt.Errorf("%w: pool %s",
			ErrInvalidAccountOwnership, poolAcc.Pubkey.String())
	}
	pool, err := DeserializeStakePool(poolAcc.Data)
	if err != nil {
		return err
	}
	if !pool.IsInitialized {
		return fmt.Errorf("%w: pool %s is not initialized",
			ErrInvalidAccountOwnership, poolAcc.Pubkey.String())
	}

	position, err := loadPosition(positionAcc, userAcc.Pubkey)
	if err != nil {
		return err
	}
	if position.Pool != poolAcc.Pubkey {
		return fmt.Errorf("%w: position belongs to pool %s, got %s",
			ErrInvalidAccountRelationship, position.Pool.String(), poolAcc.Pubkey.String())
	}
	if vaultAcc.Pubkey != pool.StakingVault {
		return fmt.Errorf("%w: vault %s is not the pool's staking vault %s",
			ErrInvalidAccountRelationship, vaultAcc.Pubkey.String(), pool.StakingVault.String())
	}

	// Explicit precondition, checked before the vault is touched.
	if position.StakedAmount < inst.Amount {
		return fmt.Errorf("%w: staked %d, requested %d",
			ErrInsufficientStake, position.StakedAmount, inst.Amount)
	}

	// Re-derive the authority from the stored seeds. The stored bump is
	// used as-is; a record that no longer derives to the pool address is
	// corrupt and must not sign.
	seeds := pool.AuthoritySeeds()
	authority, err := runtime.CreateProgramAddress(seeds, types.StakePoolProgramID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorizationFailure, err)
	}
	if authority != poolAcc.Pubkey {
		return fmt.Errorf("%w: derived authority %s does not match pool %s",
			ErrAuthorizationFailure, authority.String(), poolAcc.Pubkey.String())
	}

	transfer := &token.TransferInstruction{Amount: inst.Amount}
	ix := types.NewInstruction(types.TokenProgramID, transfer.Encode(),
		types.WritableMeta(vaultAcc.Pubkey, false),
		types.WritableMeta(destAcc.Pubkey, false),
		types.SignerMeta(authority),
	)
	if err := ctx.InvokeSigned(ix, [][][]byte{seeds}); err != nil {
		return err
	}

	// Redundant with the precondition above, kept as an independent guard.
	updated, ok := checkedSub(position.StakedAmount, inst.Amount)
	if !ok {
		return ErrArithmeticUnderflow
	}
	position.StakedAmount = updated
	copy(positionAcc.Data, position.Serialize())

	return nil
}
