package runtime

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"

	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// PDA derivation constants
const (
	// MaxSeeds is the maximum number of seeds for PDA derivation.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32
	// PDAMarker is the domain separator appended during PDA derivation.
	PDAMarker = "ProgramDerivedAddress"
)

// PDA derivation errors
var (
	ErrTooManySeeds = errors.New("too many seeds")
	ErrSeedTooLong  = errors.New("seed too long")
	ErrInvalidPDA   = errors.New("derived address is on the ed25519 curve")
	ErrBumpNotFound = errors.New("no viable bump seed found")
)

// CreateProgramAddress derives a program address from seeds and a program ID.
//
// Formula: SHA256(seeds... || program_id || "ProgramDerivedAddress")
//
// The result must not be a valid ed25519 curve point, which guarantees no
// private key exists for it; only the deriving program can use it as a
// signing authority. Returns ErrInvalidPDA when the hash lands on the curve,
// in which case the caller retries with a different bump seed.
func CreateProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return types.ZeroPubkey, ErrTooManySeeds
	}

	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return types.ZeroPubkey, ErrSeedTooLong
		}
		hasher.Write(seed)
	}
	hasher.Write(programID[:])
	hasher.Write([]byte(PDAMarker))

	hash := hasher.Sum(nil)
	if isOnCurve(hash) {
		return types.ZeroPubkey, ErrInvalidPDA
	}

	var pda types.Pubkey
	copy(pda[:], hash)
	return pda, nil
}

// FindProgramAddress finds a valid program address by trying bump seeds from
// 255 down to 0. The bump that produced the address must be recorded and
// reused verbatim for every later CreateProgramAddress call; the search is
// never repeated at signing time.
func FindProgramAddress(seeds [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return types.ZeroPubkey, 0, ErrTooManySeeds
	}

	seedsWithBump := make([][]byte, len(seeds)+1)
	copy(seedsWithBump, seeds)
	bumpSeed := []byte{0}
	seedsWithBump[len(seeds)] = bumpSeed

	for bump := 255; bump >= 0; bump-- {
		bumpSeed[0] = uint8(bump)
		pda, err := CreateProgramAddress(seedsWithBump, programID)
		if err == nil {
			return pda, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidPDA) {
			return types.ZeroPubkey, 0, err
		}
	}

	return types.ZeroPubkey, 0, ErrBumpNotFound
}

// isOnCurve reports whether a 32-byte value decompresses to a valid ed25519
// curve point. Program-derived addresses must fail this check.
func isOnCurve(data []byte) bool {
	if len(data) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(data)
	return err == nil
}
