package accounts

import (
	"testing"

	"github.com/fortiblox/x1-stakepool/pkg/types"
)

func newTestBadgerDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadgerDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerDB_SetAndGetAccount(t *testing.T) {
	db := newTestBadgerDB(t)
	pubkey := testPubkey("badger_account")
	account := testAccount(5_000, []byte("persistent"), types.TokenProgramID)

	if err := db.SetAccount(pubkey, account); err != nil {
		t.Fatalf("SetAccount failed: %v", err)
	}

	retrieved, err := db.GetAccount(pubkey)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if retrieved == nil || !retrieved.Equal(account) {
		t.Error("retrieved account differs from stored account")
	}

	missing, err := db.GetAccount(testPubkey("nope"))
	if err != nil {
		t.Fatalf("GetAccount for missing key failed: %v", err)
	}
	if missing != nil {
		t.Error("missing account should return nil, nil")
	}
}

func TestBadgerDB_DeleteAndCount(t *testing.T) {
	db := newTestBadgerDB(t)

	keys := make([]types.Pubkey, 3)
	for i := range keys {
		keys[i] = testPubkey(string(rune('x' + i)))
		if err := db.SetAccount(keys[i], testAccount(types.Lamports(i+1), nil, types.SystemProgramID)); err != nil {
			t.Fatalf("SetAccount failed: %v", err)
		}
	}
	if db.AccountCount() != 3 {
		t.Fatalf("expected 3 accounts, got %d", db.AccountCount())
	}

	if err := db.DeleteAccount(keys[0]); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if db.HasAccount(keys[0]) {
		t.Error("deleted account still present")
	}
	if db.AccountCount() != 2 {
		t.Errorf("expected 2 accounts after delete, got %d", db.AccountCount())
	}
}

func TestBadgerDB_ForEach(t *testing.T) {
	db := newTestBadgerDB(t)

	expected := make(map[types.Pubkey]bool)
	for i := 0; i < 4; i++ {
		pk := testPubkey(string(rune('p' + i)))
		expected[pk] = true
		if err := db.SetAccount(pk, testAccount(types.Lamports(i), []byte{byte(i)}, types.SystemProgramID)); err != nil {
			t.Fatalf("SetAccount failed: %v", err)
		}
	}

	visited := make(map[types.Pubkey]bool)
	err := db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		visited[pubkey] = true
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if len(visited) != len(expected) {
		t.Errorf("visited %d accounts, expected %d", len(visited), len(expected))
	}
}
