package types

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

func testPubkey(seed string) Pubkey {
	hash := sha256.Sum256([]byte(seed))
	var pk Pubkey
	copy(pk[:], hash[:])
	return pk
}

func TestPubkey_Base58RoundTrip(t *testing.T) {
	pk := testPubkey("round_trip")

	encoded := pk.String()
	decoded, err := PubkeyFromBase58(encoded)
	if err != nil {
		t.Fatalf("PubkeyFromBase58 failed: %v", err)
	}
	if decoded != pk {
		t.Errorf("round trip mismatch: %s != %s", decoded, pk)
	}
}

func TestPubkey_FromBase58Invalid(t *testing.T) {
	cases := []string{
		"",
		"not-base58-0OIl",
		"abc", // too short after decoding
	}
	for _, c := range cases {
		if _, err := PubkeyFromBase58(c); err == nil {
			t.Errorf("PubkeyFromBase58(%q) should fail", c)
		}
	}
}

func TestPubkey_FromBytes(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}

	pk, err := PubkeyFromBytes(raw)
	if err != nil {
		t.Fatalf("PubkeyFromBytes failed: %v", err)
	}
	if !bytes.Equal(pk.Bytes(), raw) {
		t.Error("Bytes() does not match input")
	}

	if _, err := PubkeyFromBytes(raw[:31]); err == nil {
		t.Error("PubkeyFromBytes should reject short input")
	}
}

func TestPubkey_IsZero(t *testing.T) {
	var zero Pubkey
	if !zero.IsZero() {
		t.Error("zero pubkey should report IsZero")
	}
	if testPubkey("x").IsZero() {
		t.Error("nonzero pubkey should not report IsZero")
	}
}

func TestProgramIDs(t *testing.T) {
	// The system program is the all-zero key; the others must be distinct
	// nonzero keys.
	ids := map[string]Pubkey{
		"token":      TokenProgramID,
		"stake pool": StakePoolProgramID,
	}
	seen := map[Pubkey]string{SystemProgramID: "system"}
	for name, id := range ids {
		if id.IsZero() {
			t.Errorf("%s program ID is zero", name)
		}
		if prev, ok := seen[id]; ok {
			t.Errorf("%s and %s share a program ID", name, prev)
		}
		seen[id] = name
	}

	if !SystemProgramID.IsSystemProgram() {
		t.Error("SystemProgramID should report IsSystemProgram")
	}
	if TokenProgramID.IsSystemProgram() {
		t.Error("TokenProgramID should not report IsSystemProgram")
	}
}

func TestSHA256Multi(t *testing.T) {
	single := SHA256([]byte("abcdef"))
	multi := SHA256Multi([]byte("abc"), []byte("def"))
	if single != multi {
		t.Error("SHA256Multi should hash the concatenation of its parts")
	}
}

func TestAccount_Clone(t *testing.T) {
	owner := testPubkey("owner")
	acc := NewAccountWithData(500, []byte{1, 2, 3}, owner)

	clone := acc.Clone()
	if !clone.Equal(acc) {
		t.Fatal("clone should equal the original")
	}

	clone.Data[0] = 99
	if acc.Data[0] == 99 {
		t.Error("mutating the clone changed the original")
	}
}

func TestAccount_Equal(t *testing.T) {
	owner := testPubkey("owner")
	a := NewAccountWithData(500, []byte{1, 2, 3}, owner)
	b := NewAccountWithData(500, []byte{1, 2, 3}, owner)

	if !a.Equal(b) {
		t.Error("identical accounts should be equal")
	}

	b.Lamports = 501
	if a.Equal(b) {
		t.Error("accounts with different lamports should not be equal")
	}

	if a.Equal(nil) {
		t.Error("account should not equal nil")
	}
}

func TestAccount_IsEmpty(t *testing.T) {
	acc := NewAccount(0, SystemProgramID)
	if !acc.IsEmpty() {
		t.Error("fresh system account with no data should be empty")
	}

	acc.Data = []byte{1}
	if acc.IsEmpty() {
		t.Error("account with data should not be empty")
	}
}

func TestAccountMeta_Helpers(t *testing.T) {
	pk := testPubkey("meta")

	m := Meta(pk)
	if m.IsSigner || m.IsWritable {
		t.Error("Meta should be read-only non-signer")
	}

	w := WritableMeta(pk, false)
	if !w.IsWritable || w.IsSigner {
		t.Error("WritableMeta(pk, false) should be writable non-signer")
	}

	s := SignerMeta(pk)
	if !s.IsSigner || s.IsWritable {
		t.Error("SignerMeta should be read-only signer")
	}
}

func TestInstructionResult_Success(t *testing.T) {
	r := &InstructionResult{}
	if !r.Success() {
		t.Error("result without error should be success")
	}

	r.Err = errors.New("handler failed")
	if r.Success() {
		t.Error("result with error should not be success")
	}
}
