package types

// Account represents a ledger account.
type Account struct {
	Lamports   Lamports // Native balance
	Data       []byte   // Account data
	Owner      Pubkey   // Program that owns this account
	Executable bool     // Is this a program account?
}

// NewAccount creates a new account with no data.
func NewAccount(lamports Lamports, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Owner:    owner,
	}
}

// NewAccountWithData creates a new account with data.
func NewAccountWithData(lamports Lamports, data []byte, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Data:     data,
		Owner:    owner,
	}
}

// Clone creates a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
	}
	if a.Data != nil {
		clone.Data = make([]byte, len(a.Data))
		copy(clone.Data, a.Data)
	}
	return clone
}

// DataLen returns the length of account data.
func (a *Account) DataLen() uint64 {
	return uint64(len(a.Data))
}

// IsEmpty returns true if the account has zero lamports and no data.
func (a *Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// Equal reports whether two accounts have identical state.
func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Lamports != b.Lamports || a.Owner != b.Owner || a.Executable != b.Executable {
		return false
	}
	if len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}

// AccountMeta describes an account referenced by an instruction.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// Meta constructs a read-only account meta.
func Meta(pubkey Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pubkey}
}

// WritableMeta constructs a writable account meta.
func WritableMeta(pubkey Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: true}
}

// SignerMeta constructs a read-only signer meta.
func SignerMeta(pubkey Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: true}
}

// AccountDelta records a change to an account made by an instruction.
type AccountDelta struct {
	Pubkey     Pubkey
	OldAccount *Account // nil if the account was created
	NewAccount *Account
}

// IsCreation returns true if this delta created the account.
func (d *AccountDelta) IsCreation() bool {
	return d.OldAccount == nil && d.NewAccount != nil
}
