package token

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Account state sizes
const (
	// MintSize is the size of a serialized Mint account.
	MintSize = 46

	// TokenAccountSize is the size of a serialized TokenAccount.
	TokenAccountSize = 73
)

// Account state enum values
const (
	AccountStateUninitialized uint8 = 0
	AccountStateInitialized   uint8 = 1
)

// Mint represents a token mint.
// Layout (46 bytes, little-endian):
//   - mint_authority: option tag u32 + pubkey (36 bytes)
//   - supply: u64 (8 bytes)
//   - decimals: u8 (1 byte)
//   - is_initialized: bool (1 byte)
type Mint struct {
	MintAuthority   *types.Pubkey // nil means fixed supply
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
}

// NewMint creates an initialized mint with zero supply.
func NewMint(decimals uint8, mintAuthority types.Pubkey) *Mint {
	return &Mint{
		MintAuthority: &mintAuthority,
		Decimals:      decimals,
		IsInitialized: true,
	}
}

// Serialize serializes the Mint to bytes.
func (m *Mint) Serialize() []byte {
	data := make([]byte, MintSize)
	if m.MintAuthority != nil {
		binary.LittleEndian.PutUint32(data[0:4], 1)
		copy(data[4:36], m.MintAuthority[:])
	}
	binary.LittleEndian.PutUint64(data[36:44], m.Supply)
	data[44] = m.Decimals
	if m.IsInitialized {
		data[45] = 1
	}
	return data
}

// DeserializeMint deserializes a Mint from bytes.
func DeserializeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("%w: mint data too short, expected %d bytes, got %d",
			ErrInvalidAccountData, MintSize, len(data))
	}

	mint := &Mint{
		Supply:        binary.LittleEndian.Uint64(data[36:44]),
		Decimals:      data[44],
		IsInitialized: data[45] != 0,
	}
	if binary.LittleEndian.Uint32(data[0:4]) == 1 {
		var authority types.Pubkey
		copy(authority[:], data[4:36])
		mint.MintAuthority = &authority
	}
	return mint, nil
}

// TokenAccount represents a token holding account (a vault when owned by a
// derived authority).
// Layout (73 bytes, little-endian):
//   - mint: pubkey (32 bytes)
//   - owner: pubkey (32 bytes)
//   - amount: u64 (8 bytes)
//   - state: u8 (1 byte)
type TokenAccount struct {
	Mint   types.Pubkey
	Owner  types.Pubkey
	Amount uint64
	State  uint8
}

// NewTokenAccount creates an initialized token account with zero balance.
func NewTokenAccount(mint, owner types.Pubkey) *TokenAccount {
	return &TokenAccount{
		Mint:  mint,
		Owner: owner,
		State: AccountStateInitialized,
	}
}

// IsInitialized reports whether the account has been initialized.
func (a *TokenAccount) IsInitialized() bool {
	return a.State == AccountStateInitialized
}

// Serialize serializes the TokenAccount to bytes.
func (a *TokenAccount) Serialize() []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	data[72] = a.State
	return data
}

// DeserializeTokenAccount deserializes a TokenAccount from bytes.
func DeserializeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("%w: token account data too short, expected %d bytes, got %d",
			ErrInvalidAccountData, TokenAccountSize, len(data))
	}

	account := &TokenAccount{}
	copy(account.Mint[:], data[0:32])
	copy(account.Owner[:], data[32:64])
	account.Amount = binary.LittleEndian.Uint64(data[64:72])
	account.State = data[72]
	return account, nil
}
