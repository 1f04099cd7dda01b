// Package rpc provides the HTTP relay for the stake pool.
//
// The relay exposes a small REST surface over the instruction engine:
// clients submit stake and unstake requests as JSON and read pool,
// position, and token balance state back. Every mutating request is
// translated into a single on-ledger instruction and executed
// atomically, so the relay never holds intermediate state.
package rpc

// StakeRequest is the body of POST /stake.
type StakeRequest struct {
	UserPublicKey string `json:"user_public_key"`
	Amount        uint64 `json:"amount"`
}

// UnstakeRequest is the body of POST /unstake.
type UnstakeRequest struct {
	UserPublicKey string `json:"user_public_key"`
	Amount        uint64 `json:"amount"`
}

// TransactionResponse reports the outcome of a processed instruction.
type TransactionResponse struct {
	Slot          uint64 `json:"slot"`
	UnixTimestamp int64  `json:"unix_timestamp"`
	// StakedAmount is the position's staked amount after the instruction.
	StakedAmount uint64 `json:"staked_amount"`
}

// BalanceResponse is the body of GET /balance/{pubkey}.
type BalanceResponse struct {
	TokenAccount string `json:"token_account"`
	Amount       uint64 `json:"amount"`
}

// PositionResponse is the body of GET /position/{pubkey}.
type PositionResponse struct {
	Address            string `json:"address"`
	User               string `json:"user"`
	Pool               string `json:"pool"`
	StakedAmount       uint64 `json:"staked_amount"`
	LastStakeTimestamp int64  `json:"last_stake_timestamp"`
}

// PoolResponse is the body of GET /pool.
type PoolResponse struct {
	Address      string `json:"address"`
	StakingMint  string `json:"staking_mint"`
	StakingVault string `json:"staking_vault"`
	RewardMint   string `json:"reward_mint"`
	RewardVault  string `json:"reward_vault"`
	Admin        string `json:"admin"`
	Bump         uint8  `json:"bump"`
	VaultBalance uint64 `json:"vault_balance"`
}

// ErrorResponse carries a failed request's error message.
type ErrorResponse struct {
	Error string `json:"error"`
}
