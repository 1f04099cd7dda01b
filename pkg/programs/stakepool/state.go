package stakepool

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Account state sizes
const (
	// StakePoolSize is the size of a serialized StakePool record.
	StakePoolSize = 162

	// UserPositionSize is the size of a serialized UserPosition record.
	UserPositionSize = 81
)

// PDA seeds
const (
	// PoolSeed is the domain label for pool authority derivation.
	PoolSeed = "stake_pool"

	// PositionSeed is the domain label for position address derivation.
	PositionSeed = "user_stake"
)

// StakePool is the per-administrator pool record. The pool account's own
// address is the program-derived authority that owns both vaults.
// Layout (162 bytes, little-endian):
//   - staking_mint: pubkey (32 bytes)
//   - staking_vault: pubkey (32 bytes)
//   - reward_mint: pubkey (32 bytes)
//   - reward_vault: pubkey (32 bytes)
//   - admin: pubkey (32 bytes)
//   - bump: u8 (1 byte)
//   - is_initialized: bool (1 byte)
type StakePool struct {
	StakingMint  types.Pubkey
	StakingVault types.Pubkey
	RewardMint   types.Pubkey
	RewardVault  types.Pubkey
	Admin        types.Pubkey
	// Bump completes the authority derivation. It is chosen once at pool
	// creation and reused verbatim for every signed vault transfer.
	Bump          uint8
	IsInitialized bool
}

// Serialize serializes the StakePool to bytes.
func (p *StakePool) Serialize() []byte {
	data := make([]byte, StakePoolSize)
	copy(data[0:32], p.StakingMint[:])
	copy(data[32:64], p.StakingVault[:])
	copy(data[64:96], p.RewardMint[:])
	copy(data[96:128], p.RewardVault[:])
	copy(data[128:160], p.Admin[:])
	data[160] = p.Bump
	if p.IsInitialized {
		data[161] = 1
	}
	return data
}

// DeserializeStakePool deserializes a StakePool from bytes.
func DeserializeStakePool(data []byte) (*StakePool, error) {
	if len(data) < StakePoolSize {
		return nil, fmt.Errorf("%w: stake pool data too short, expected %d bytes, got %d",
			ErrInvalidAccountData, StakePoolSize, len(data))
	}

	pool := &StakePool{}
	copy(pool.StakingMint[:], data[0:32])
	copy(pool.StakingVault[:], data[32:64])
	copy(pool.RewardMint[:], data[64:96])
	copy(pool.RewardVault[:], data[96:128])
	copy(pool.Admin[:], data[128:160])
	pool.Bump = data[160]
	pool.IsInitialized = data[161] != 0
	return pool, nil
}

// AuthoritySeeds returns the full seed set (label, admin, bump) that
// reproduces the pool's derived signing authority.
func (p *StakePool) AuthoritySeeds() [][]byte {
	return [][]byte{
		[]byte(PoolSeed),
		p.Admin[:],
		{p.Bump},
	}
}

// UserPosition is the per-(user, pool) stake record.
// Layout (81 bytes, little-endian):
//   - user: pubkey (32 bytes)
//   - pool: pubkey (32 bytes)
//   - staked_amount: u64 (8 bytes)
//   - last_stake_timestamp: i64 (8 bytes) - written by stake only
//   - is_initialized: bool (1 byte)
type UserPosition struct {
	User         types.Pubkey
	Pool         types.Pubkey
	StakedAmount uint64
	// LastStakeTimestamp records the most recent stake. Unstake leaves it
	// untouched, matching the observed behavior of the original program.
	LastStakeTimestamp int64
	IsInitialized      bool
}

// Serialize serializes the UserPosition to bytes.
func (u *UserPosition) Serialize() []byte {
	data := make([]byte, UserPositionSize)
	copy(data[0:32], u.User[:])
	copy(data[32:64], u.Pool[:])
	binary.LittleEndian.PutUint64(data[64:72], u.StakedAmount)
	binary.LittleEndian.PutUint64(data[72:80], uint64(u.LastStakeTimestamp))
	if u.IsInitialized {
		data[80] = 1
	}
	return data
}

// DeserializeUserPosition deserializes a UserPosition from bytes.
func DeserializeUserPosition(data []byte) (*UserPosition, error) {
	if len(data) < UserPositionSize {
		return nil, fmt.Errorf("%w: user position data too short, expected %d bytes, got %d",
			ErrInvalidAccountData, UserPositionSize, len(data))
	}

	position := &UserPosition{}
	copy(position.User[:], data[0:32])
	copy(position.Pool[:], data[32:64])
	position.StakedAmount = binary.LittleEndian.Uint64(data[64:72])
	position.LastStakeTimestamp = int64(binary.LittleEndian.Uint64(data[72:80]))
	position.IsInitialized = data[80] != 0
	return position, nil
}

// DerivePoolAddress derives the pool account address (and its authority)
// for an administrator.
func DerivePoolAddress(admin types.Pubkey) (types.Pubkey, uint8, error) {
	seeds := [][]byte{
		[]byte(PoolSeed),
		admin[:],
	}
	return runtime.FindProgramAddress(seeds, types.StakePoolProgramID)
}

// DerivePositionAddress derives the canonical position address for a
// (pool, user) pair. The handler itself never checks this; deterministic
// addressing is what makes positions unique per pair.
func DerivePositionAddress(pool, user types.Pubkey) (types.Pubkey, uint8, error) {
	seeds := [][]byte{
		[]byte(PositionSeed),
		pool[:],
		user[:],
	}
	return runtime.FindProgramAddress(seeds, types.StakePoolProgramID)
}
