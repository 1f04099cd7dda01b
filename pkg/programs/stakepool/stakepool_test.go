package stakepool

import (
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/fortiblox/x1-stakepool/pkg/accounts"
	"github.com/fortiblox/x1-stakepool/pkg/programs/token"
	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	hash := sha256.Sum256([]byte(seed))
	var pk types.Pubkey
	copy(pk[:], hash[:])
	return pk
}

// poolEnv is a full staking environment: engine, token program, stake pool
// program, an initialized pool, and helpers to add funded users.
type poolEnv struct {
	t      *testing.T
	engine *runtime.Engine

	admin        types.Pubkey
	stakingMint  types.Pubkey
	stakingVault types.Pubkey
	rewardMint   types.Pubkey
	rewardVault  types.Pubkey
	pool         types.Pubkey
	bump         uint8
}

func newPoolEnv(t *testing.T) *poolEnv {
	return newPoolEnvForAdmin(t, testPubkey("admin"))
}

func newPoolEnvForAdmin(t *testing.T, admin types.Pubkey) *poolEnv {
	t.Helper()

	engine := runtime.NewEngine(accounts.NewMemoryDB())
	engine.RegisterProgram(types.TokenProgramID, token.New())
	engine.RegisterProgram(types.StakePoolProgramID, New())

	env := &poolEnv{
		t:            t,
		engine:       engine,
		admin:        admin,
		stakingMint:  testPubkey("staking_mint"),
		stakingVault: testPubkey("staking_vault"),
		rewardMint:   testPubkey("reward_mint"),
		rewardVault:  testPubkey("reward_vault"),
	}

	pool, bump, err := DerivePoolAddress(admin)
	if err != nil {
		t.Fatalf("DerivePoolAddress failed: %v", err)
	}
	env.pool = pool
	env.bump = bump

	for _, mint := range []types.Pubkey{env.stakingMint, env.rewardMint} {
		env.mustRun(types.NewInstruction(
			types.TokenProgramID,
			(&token.InitializeMintInstruction{Decimals: 9, MintAuthority: admin}).Encode(),
			types.WritableMeta(mint, false),
		))
	}
	env.initTokenAccount(env.stakingVault, env.stakingMint, admin)
	env.initTokenAccount(env.rewardVault, env.rewardMint, admin)

	return env
}

func (env *poolEnv) run(inst *types.Instruction) error {
	env.t.Helper()
	result, err := env.engine.Process(inst)
	if err != nil {
		env.t.Fatalf("Process failed: %v", err)
	}
	return result.Err
}

func (env *poolEnv) mustRun(inst *types.Instruction) {
	env.t.Helper()
	if err := env.run(inst); err != nil {
		env.t.Fatalf("instruction failed: %v", err)
	}
}

func (env *poolEnv) initTokenAccount(account, mint, owner types.Pubkey) {
	env.t.Helper()
	env.mustRun(types.NewInstruction(
		types.TokenProgramID,
		(&token.InitializeAccountInstruction{}).Encode(),
		types.WritableMeta(account, false),
		types.Meta(mint),
		types.Meta(owner),
	))
}

func (env *poolEnv) initializePoolInstruction() *types.Instruction {
	return types.NewInstruction(
		types.StakePoolProgramID,
		(&InitializePoolInstruction{}).Encode(),
		types.WritableMeta(env.pool, false),
		types.Meta(env.stakingMint),
		types.WritableMeta(env.stakingVault, false),
		types.Meta(env.rewardMint),
		types.WritableMeta(env.rewardVault, false),
		types.SignerMeta(env.admin),
	)
}

func (env *poolEnv) initializePool() {
	env.t.Helper()
	env.mustRun(env.initializePoolInstruction())
}

// addUser creates a funded user: a token account holding the given balance
// and an initialized position.
func (env *poolEnv) addUser(name string, funding uint64) (user, tokenAccount, position types.Pubkey) {
	env.t.Helper()

	user = testPubkey(name)
	tokenAccount, _, err := token.DeriveTokenAddress(user, env.stakingMint)
	if err != nil {
		env.t.Fatalf("DeriveTokenAddress failed: %v", err)
	}
	env.initTokenAccount(tokenAccount, env.stakingMint, user)

	if funding > 0 {
		env.mustRun(types.NewInstruction(
			types.TokenProgramID,
			(&token.MintToInstruction{Amount: funding}).Encode(),
			types.WritableMeta(env.stakingMint, false),
			types.WritableMeta(tokenAccount, false),
			types.SignerMeta(env.admin),
		))
	}

	position, _, err = DerivePositionAddress(env.pool, user)
	if err != nil {
		env.t.Fatalf("DerivePositionAddress failed: %v", err)
	}
	env.mustRun(types.NewInstruction(
		types.StakePoolProgramID,
		(&CreateUserPositionInstruction{}).Encode(),
		types.WritableMeta(position, false),
		types.Meta(env.pool),
		types.SignerMeta(user),
	))

	return user, tokenAccount, position
}

func (env *poolEnv) stake(user, tokenAccount, position types.Pubkey, amount uint64) error {
	env.t.Helper()
	return env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&StakeInstruction{Amount: amount}).Encode(),
		types.SignerMeta(user),
		types.WritableMeta(tokenAccount, false),
		types.WritableMeta(env.stakingVault, false),
		types.WritableMeta(position, false),
	))
}

func (env *poolEnv) unstake(user, tokenAccount, position types.Pubkey, amount uint64) error {
	env.t.Helper()
	return env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&UnstakeInstruction{Amount: amount}).Encode(),
		types.SignerMeta(user),
		types.WritableMeta(tokenAccount, false),
		types.WritableMeta(env.stakingVault, false),
		types.WritableMeta(position, false),
		types.Meta(env.pool),
	))
}

func (env *poolEnv) balance(account types.Pubkey) uint64 {
	env.t.Helper()
	acc, err := env.engine.DB().GetAccount(account)
	if err != nil || acc == nil {
		env.t.Fatalf("account %s not found: %v", account, err)
	}
	amount, err := token.Balance(acc.Data)
	if err != nil {
		env.t.Fatalf("Balance failed: %v", err)
	}
	return amount
}

func (env *poolEnv) position(position types.Pubkey) *UserPosition {
	env.t.Helper()
	acc, err := env.engine.DB().GetAccount(position)
	if err != nil || acc == nil {
		env.t.Fatalf("position %s not found: %v", position, err)
	}
	pos, err := DeserializeUserPosition(acc.Data)
	if err != nil {
		env.t.Fatalf("DeserializeUserPosition failed: %v", err)
	}
	return pos
}

func (env *poolEnv) poolState() *StakePool {
	env.t.Helper()
	acc, err := env.engine.DB().GetAccount(env.pool)
	if err != nil || acc == nil {
		env.t.Fatalf("pool %s not found: %v", env.pool, err)
	}
	pool, err := DeserializeStakePool(acc.Data)
	if err != nil {
		env.t.Fatalf("DeserializeStakePool failed: %v", err)
	}
	return pool
}

func TestInitializePool(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()

	pool := env.poolState()
	if !pool.IsInitialized {
		t.Fatal("pool not initialized")
	}
	if pool.StakingMint != env.stakingMint || pool.StakingVault != env.stakingVault {
		t.Error("staking mint/vault not recorded")
	}
	if pool.RewardMint != env.rewardMint || pool.RewardVault != env.rewardVault {
		t.Error("reward mint/vault not recorded")
	}
	if pool.Admin != env.admin {
		t.Error("admin not recorded")
	}
	if pool.Bump != env.bump {
		t.Errorf("recorded bump %d, derived %d", pool.Bump, env.bump)
	}

	// The pool account belongs to the program.
	acc, _ := env.engine.DB().GetAccount(env.pool)
	if acc.Owner != types.StakePoolProgramID {
		t.Errorf("pool owner %s, expected the stake pool program", acc.Owner)
	}

	// Both vaults are now owned by the derived authority, which is the
	// pool address itself.
	for _, vault := range []types.Pubkey{env.stakingVault, env.rewardVault} {
		vaultAcc, _ := env.engine.DB().GetAccount(vault)
		state, err := token.DeserializeTokenAccount(vaultAcc.Data)
		if err != nil {
			t.Fatalf("DeserializeTokenAccount failed: %v", err)
		}
		if state.Owner != env.pool {
			t.Errorf("vault %s owner %s, expected the derived authority %s", vault, state.Owner, env.pool)
		}
	}
}

func TestInitializePool_CreateOnce(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()

	if err := env.run(env.initializePoolInstruction()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitializePool_WrongPoolSlot(t *testing.T) {
	env := newPoolEnv(t)

	err := env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&InitializePoolInstruction{}).Encode(),
		types.WritableMeta(testPubkey("not_the_derived_address"), false),
		types.Meta(env.stakingMint),
		types.WritableMeta(env.stakingVault, false),
		types.Meta(env.rewardMint),
		types.WritableMeta(env.rewardVault, false),
		types.SignerMeta(env.admin),
	))
	if !errors.Is(err, ErrInvalidAccountRelationship) {
		t.Errorf("expected ErrInvalidAccountRelationship, got %v", err)
	}
}

func TestInitializePool_AdminMustSign(t *testing.T) {
	env := newPoolEnv(t)

	err := env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&InitializePoolInstruction{}).Encode(),
		types.WritableMeta(env.pool, false),
		types.Meta(env.stakingMint),
		types.WritableMeta(env.stakingVault, false),
		types.Meta(env.rewardMint),
		types.WritableMeta(env.rewardVault, false),
		types.Meta(env.admin), // not a signer
	))
	if !errors.Is(err, ErrAuthorizationFailure) {
		t.Errorf("expected ErrAuthorizationFailure, got %v", err)
	}
}

func TestInitializePool_RejectsWrongVaultMint(t *testing.T) {
	env := newPoolEnv(t)

	// Swap the vaults: the staking vault slot gets the reward-mint vault.
	err := env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&InitializePoolInstruction{}).Encode(),
		types.WritableMeta(env.pool, false),
		types.Meta(env.stakingMint),
		types.WritableMeta(env.rewardVault, false),
		types.Meta(env.rewardMint),
		types.WritableMeta(env.stakingVault, false),
		types.SignerMeta(env.admin),
	))
	if !errors.Is(err, ErrInvalidAccountOwnership) {
		t.Errorf("expected ErrInvalidAccountOwnership, got %v", err)
	}
}

func TestDistinctAdminsDeriveDistinctPools(t *testing.T) {
	poolA, _, err := DerivePoolAddress(testPubkey("admin_a"))
	if err != nil {
		t.Fatalf("DerivePoolAddress failed: %v", err)
	}
	poolB, _, err := DerivePoolAddress(testPubkey("admin_b"))
	if err != nil {
		t.Fatalf("DerivePoolAddress failed: %v", err)
	}
	if poolA == poolB {
		t.Error("different admins must derive different pool authorities")
	}

	// Both derive usable pools end to end.
	envA := newPoolEnvForAdmin(t, testPubkey("admin_a"))
	envA.initializePool()
	envB := newPoolEnvForAdmin(t, testPubkey("admin_b"))
	envB.initializePool()

	if envA.pool == envB.pool {
		t.Error("initialized pools share an address")
	}
}

func TestCreateUserPosition(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()

	user, _, position := env.addUser("alice", 0)

	pos := env.position(position)
	if pos.User != user || pos.Pool != env.pool {
		t.Error("position not bound to (user, pool)")
	}
	if pos.StakedAmount != 0 || pos.LastStakeTimestamp != 0 {
		t.Error("fresh position must start zeroed")
	}

	// Create-once.
	err := env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&CreateUserPositionInstruction{}).Encode(),
		types.WritableMeta(position, false),
		types.Meta(env.pool),
		types.SignerMeta(user),
	))
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestCreateUserPosition_RequiresInitializedPool(t *testing.T) {
	env := newPoolEnv(t)
	// Pool never initialized.

	user := testPubkey("early_bird")
	position, _, err := DerivePositionAddress(env.pool, user)
	if err != nil {
		t.Fatalf("DerivePositionAddress failed: %v", err)
	}

	err = env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&CreateUserPositionInstruction{}).Encode(),
		types.WritableMeta(position, false),
		types.Meta(env.pool),
		types.SignerMeta(user),
	))
	if !errors.Is(err, ErrInvalidAccountOwnership) {
		t.Errorf("expected ErrInvalidAccountOwnership, got %v", err)
	}
}

func TestStake(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()

	fixed := time.Unix(1_700_000_000, 0)
	env.engine.SetClock(func() time.Time { return fixed })

	user, tokenAccount, position := env.addUser("alice", 1_000)

	if err := env.stake(user, tokenAccount, position, 400); err != nil {
		t.Fatalf("stake failed: %v", err)
	}

	if env.balance(tokenAccount) != 600 {
		t.Errorf("user balance %d, expected 600", env.balance(tokenAccount))
	}
	if env.balance(env.stakingVault) != 400 {
		t.Errorf("vault balance %d, expected 400", env.balance(env.stakingVault))
	}

	pos := env.position(position)
	if pos.StakedAmount != 400 {
		t.Errorf("staked amount %d, expected 400", pos.StakedAmount)
	}
	if pos.LastStakeTimestamp != fixed.Unix() {
		t.Errorf("last stake timestamp %d, expected %d", pos.LastStakeTimestamp, fixed.Unix())
	}
}

func TestStake_SumsExactly(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 1_000)

	amounts := []uint64{100, 250, 1, 149}
	var total uint64
	for _, amount := range amounts {
		if err := env.stake(user, tokenAccount, position, amount); err != nil {
			t.Fatalf("stake %d failed: %v", amount, err)
		}
		total += amount
	}

	if got := env.position(position).StakedAmount; got != total {
		t.Errorf("staked amount %d, expected the exact sum %d", got, total)
	}
	if env.balance(env.stakingVault) != total {
		t.Errorf("vault balance %d, expected %d", env.balance(env.stakingVault), total)
	}
	if env.balance(tokenAccount) != 1_000-total {
		t.Errorf("user balance %d, expected %d", env.balance(tokenAccount), 1_000-total)
	}
}

func TestStake_ZeroAmount(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 100)

	if err := env.stake(user, tokenAccount, position, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestStake_InsufficientTokenBalance(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 100)

	err := env.stake(user, tokenAccount, position, 101)
	if !errors.Is(err, token.ErrInsufficientFunds) {
		t.Errorf("expected token.ErrInsufficientFunds, got %v", err)
	}

	// Nothing moved, nothing recorded.
	if env.balance(tokenAccount) != 100 || env.balance(env.stakingVault) != 0 {
		t.Error("failed stake moved tokens")
	}
	if env.position(position).StakedAmount != 0 {
		t.Error("failed stake changed the position")
	}
}

func TestStake_UserMustSign(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 100)

	err := env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&StakeInstruction{Amount: 10}).Encode(),
		types.Meta(user), // not a signer
		types.WritableMeta(tokenAccount, false),
		types.WritableMeta(env.stakingVault, false),
		types.WritableMeta(position, false),
	))
	if !errors.Is(err, ErrAuthorizationFailure) {
		t.Errorf("expected ErrAuthorizationFailure, got %v", err)
	}
}

func TestStake_WrongUserPosition(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	_, _, alicePosition := env.addUser("alice", 100)
	bob, bobTokens, _ := env.addUser("bob", 100)

	// Bob signs but names Alice's position.
	err := env.stake(bob, bobTokens, alicePosition, 10)
	if !errors.Is(err, ErrAuthorizationFailure) {
		t.Errorf("expected ErrAuthorizationFailure, got %v", err)
	}
}

func TestStake_Overflow(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("whale", 0)

	// Force a position one token short of the maximum, then stake enough
	// to overflow the counter while the transfer itself stays valid.
	posAcc, _ := env.engine.DB().GetAccount(position)
	pos, _ := DeserializeUserPosition(posAcc.Data)
	pos.StakedAmount = ^uint64(0) - 1
	posAcc.Data = pos.Serialize()
	if err := env.engine.DB().SetAccount(position, posAcc); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	env.mustRun(types.NewInstruction(
		types.TokenProgramID,
		(&token.MintToInstruction{Amount: 10}).Encode(),
		types.WritableMeta(env.stakingMint, false),
		types.WritableMeta(tokenAccount, false),
		types.SignerMeta(env.admin),
	))

	err := env.stake(user, tokenAccount, position, 5)
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}

	// The whole instruction rolled back: the CPI transfer that ran before
	// the overflow check must not persist.
	if env.balance(tokenAccount) != 10 {
		t.Errorf("user balance %d, expected 10 after rollback", env.balance(tokenAccount))
	}
	if env.balance(env.stakingVault) != 0 {
		t.Errorf("vault balance %d, expected 0 after rollback", env.balance(env.stakingVault))
	}
	if env.position(position).StakedAmount != ^uint64(0)-1 {
		t.Error("failed stake changed the recorded amount")
	}
}

func TestUnstake(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 1_000)

	if err := env.stake(user, tokenAccount, position, 500); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	if err := env.unstake(user, tokenAccount, position, 200); err != nil {
		t.Fatalf("unstake failed: %v", err)
	}

	if env.balance(tokenAccount) != 700 {
		t.Errorf("user balance %d, expected 700", env.balance(tokenAccount))
	}
	if env.balance(env.stakingVault) != 300 {
		t.Errorf("vault balance %d, expected 300", env.balance(env.stakingVault))
	}
	if got := env.position(position).StakedAmount; got != 300 {
		t.Errorf("staked amount %d, expected 300", got)
	}
}

func TestUnstake_LeavesTimestamp(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()

	stakeTime := time.Unix(1_700_000_000, 0)
	env.engine.SetClock(func() time.Time { return stakeTime })

	user, tokenAccount, position := env.addUser("alice", 1_000)
	if err := env.stake(user, tokenAccount, position, 500); err != nil {
		t.Fatalf("stake failed: %v", err)
	}

	// Time moves on; unstake must not touch the stake timestamp.
	env.engine.SetClock(func() time.Time { return stakeTime.Add(48 * time.Hour) })
	if err := env.unstake(user, tokenAccount, position, 100); err != nil {
		t.Fatalf("unstake failed: %v", err)
	}

	if got := env.position(position).LastStakeTimestamp; got != stakeTime.Unix() {
		t.Errorf("unstake changed the stake timestamp: %d, expected %d", got, stakeTime.Unix())
	}
}

func TestUnstake_InsufficientStake(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 1_000)

	if err := env.stake(user, tokenAccount, position, 100); err != nil {
		t.Fatalf("stake failed: %v", err)
	}

	err := env.unstake(user, tokenAccount, position, 200)
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}

	// No state change anywhere.
	if env.balance(tokenAccount) != 900 {
		t.Errorf("user balance %d, expected 900", env.balance(tokenAccount))
	}
	if env.balance(env.stakingVault) != 100 {
		t.Errorf("vault balance %d, expected 100", env.balance(env.stakingVault))
	}
	if got := env.position(position).StakedAmount; got != 100 {
		t.Errorf("staked amount %d, expected 100", got)
	}
}

// The canonical lifecycle: stake 100, stake 50, fail to unstake 200, then
// unstake 150 down to zero.
func TestStakeUnstakeLifecycle(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 1_000)

	if err := env.stake(user, tokenAccount, position, 100); err != nil {
		t.Fatalf("stake 100 failed: %v", err)
	}
	if err := env.stake(user, tokenAccount, position, 50); err != nil {
		t.Fatalf("stake 50 failed: %v", err)
	}
	if got := env.position(position).StakedAmount; got != 150 {
		t.Fatalf("staked amount %d, expected 150", got)
	}

	if err := env.unstake(user, tokenAccount, position, 200); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("unstake 200: expected ErrInsufficientStake, got %v", err)
	}

	if err := env.unstake(user, tokenAccount, position, 150); err != nil {
		t.Fatalf("unstake 150 failed: %v", err)
	}

	if got := env.position(position).StakedAmount; got != 0 {
		t.Errorf("staked amount %d, expected 0", got)
	}
	if env.balance(tokenAccount) != 1_000 {
		t.Errorf("user balance %d, expected all 1000 back", env.balance(tokenAccount))
	}
	if env.balance(env.stakingVault) != 0 {
		t.Errorf("vault balance %d, expected 0", env.balance(env.stakingVault))
	}
}

func TestUnstake_ZeroAmount(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 100)

	if err := env.unstake(user, tokenAccount, position, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestUnstake_WrongVault(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 1_000)
	if err := env.stake(user, tokenAccount, position, 100); err != nil {
		t.Fatalf("stake failed: %v", err)
	}

	// Name the reward vault where the staking vault belongs.
	err := env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&UnstakeInstruction{Amount: 50}).Encode(),
		types.SignerMeta(user),
		types.WritableMeta(tokenAccount, false),
		types.WritableMeta(env.rewardVault, false),
		types.WritableMeta(position, false),
		types.Meta(env.pool),
	))
	if !errors.Is(err, ErrInvalidAccountRelationship) {
		t.Errorf("expected ErrInvalidAccountRelationship, got %v", err)
	}
}

func TestUnstake_WrongPool(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 1_000)
	if err := env.stake(user, tokenAccount, position, 100); err != nil {
		t.Fatalf("stake failed: %v", err)
	}

	// A second pool run by another admin.
	other := newPoolEnvForAdmin(t, testPubkey("other_admin"))
	otherPoolAcc := (&StakePool{
		StakingMint:   env.stakingMint,
		StakingVault:  env.stakingVault,
		RewardMint:    env.rewardMint,
		RewardVault:   env.rewardVault,
		Admin:         testPubkey("other_admin"),
		Bump:          other.bump,
		IsInitialized: true,
	}).Serialize()
	if err := env.engine.DB().SetAccount(other.pool, types.NewAccountWithData(0, otherPoolAcc, types.StakePoolProgramID)); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	err := env.run(types.NewInstruction(
		types.StakePoolProgramID,
		(&UnstakeInstruction{Amount: 50}).Encode(),
		types.SignerMeta(user),
		types.WritableMeta(tokenAccount, false),
		types.WritableMeta(env.stakingVault, false),
		types.WritableMeta(position, false),
		types.Meta(other.pool),
	))
	if !errors.Is(err, ErrInvalidAccountRelationship) {
		t.Errorf("expected ErrInvalidAccountRelationship, got %v", err)
	}
}

func TestUnstake_CorruptBumpCannotSign(t *testing.T) {
	env := newPoolEnv(t)
	env.initializePool()
	user, tokenAccount, position := env.addUser("alice", 1_000)
	if err := env.stake(user, tokenAccount, position, 100); err != nil {
		t.Fatalf("stake failed: %v", err)
	}

	// Corrupt the stored bump; the recorded seeds no longer derive the
	// pool address and must not grant signing authority.
	poolAcc, _ := env.engine.DB().GetAccount(env.pool)
	pool, _ := DeserializeStakePool(poolAcc.Data)
	pool.Bump ^= 1
	poolAcc.Data = pool.Serialize()
	if err := env.engine.DB().SetAccount(env.pool, poolAcc); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	err := env.unstake(user, tokenAccount, position, 50)
	if !errors.Is(err, ErrAuthorizationFailure) {
		t.Errorf("expected ErrAuthorizationFailure, got %v", err)
	}
}

func TestStakePool_SerializeRoundTrip(t *testing.T) {
	pool := &StakePool{
		StakingMint:   testPubkey("sm"),
		StakingVault:  testPubkey("sv"),
		RewardMint:    testPubkey("rm"),
		RewardVault:   testPubkey("rv"),
		Admin:         testPubkey("admin"),
		Bump:          253,
		IsInitialized: true,
	}

	restored, err := DeserializeStakePool(pool.Serialize())
	if err != nil {
		t.Fatalf("DeserializeStakePool failed: %v", err)
	}
	if *restored != *pool {
		t.Error("stake pool round trip mismatch")
	}
}

func TestUserPosition_SerializeRoundTrip(t *testing.T) {
	position := &UserPosition{
		User:               testPubkey("user"),
		Pool:               testPubkey("pool"),
		StakedAmount:       123_456_789,
		LastStakeTimestamp: 1_700_000_000,
		IsInitialized:      true,
	}

	restored, err := DeserializeUserPosition(position.Serialize())
	if err != nil {
		t.Fatalf("DeserializeUserPosition failed: %v", err)
	}
	if *restored != *position {
		t.Error("user position round trip mismatch")
	}
}

func TestInstruction_AmountRoundTrip(t *testing.T) {
	stake := &StakeInstruction{Amount: 987_654_321}
	var decodedStake StakeInstruction
	if err := decodedStake.Decode(stake.Encode()[1:]); err != nil {
		t.Fatalf("StakeInstruction decode failed: %v", err)
	}
	if decodedStake.Amount != stake.Amount {
		t.Error("stake amount round trip mismatch")
	}

	unstake := &UnstakeInstruction{Amount: 1}
	var decodedUnstake UnstakeInstruction
	if err := decodedUnstake.Decode(unstake.Encode()[1:]); err != nil {
		t.Fatalf("UnstakeInstruction decode failed: %v", err)
	}
	if decodedUnstake.Amount != unstake.Amount {
		t.Error("unstake amount round trip mismatch")
	}
}
