// Package accounts provides key-addressed account storage for X1-StakePool.
package accounts

import (
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// DB defines the interface for account storage.
type DB interface {
	// GetAccount retrieves an account by pubkey.
	// Returns nil, nil if the account does not exist.
	GetAccount(pubkey types.Pubkey) (*types.Account, error)

	// SetAccount stores an account.
	SetAccount(pubkey types.Pubkey, account *types.Account) error

	// DeleteAccount removes an account.
	DeleteAccount(pubkey types.Pubkey) error

	// HasAccount returns true if the account exists.
	HasAccount(pubkey types.Pubkey) bool

	// AccountCount returns the total number of stored accounts.
	AccountCount() uint64

	// ForEach visits every stored account. Iteration stops on the first
	// error returned by fn.
	ForEach(fn func(pubkey types.Pubkey, account *types.Account) error) error

	// Close closes the database.
	Close() error
}
