// Package snapshot provides export and restore of the accounts database.
// A snapshot is a zstd-compressed stream of account records with a
// fixed-size header and a trailing integrity hash, letting a daemon come
// back up with its state intact without replaying any history.
package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/x1-stakepool/pkg/accounts"
	"github.com/fortiblox/x1-stakepool/pkg/runtime"
	"github.com/fortiblox/x1-stakepool/pkg/types"
)

var (
	// ErrInvalidSnapshot is returned when the snapshot stream is malformed.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrHashMismatch is returned when the integrity hash does not match.
	ErrHashMismatch = errors.New("snapshot hash mismatch")
	// ErrUnsupportedVersion is returned for unknown snapshot versions.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// Snapshot format, inside the zstd stream:
//   magic:          4 bytes ("XSPS")
//   version:        4 bytes LE
//   slot:           8 bytes LE
//   account_count:  8 bytes LE
//   per account:
//     pubkey:       32 bytes
//     record_len:   4 bytes LE
//     record:       record_len bytes (accounts wire format)
//   integrity:      32 bytes, SHA256 of everything before it
const (
	snapshotMagic   = "XSPS"
	snapshotVersion = 1
	headerSize      = 4 + 4 + 8 + 8

	// maxRecordLen bounds a single account record: the largest data buffer
	// the runtime allows plus the accounts wire-format framing. Anything
	// larger is a corrupt length field, not a real account.
	maxRecordLen = runtime.MaxAccountDataSize + 45
)

// Manifest describes an exported or restored snapshot.
type Manifest struct {
	Slot         types.Slot
	AccountCount uint64
	Hash         types.Hash
}

// hashWriter tees writes into a running SHA256.
type hashWriter struct {
	w io.Writer
	h hash.Hash
}

func (hw *hashWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	return n, err
}

// Export writes every account in db to w as a compressed snapshot.
func Export(w io.Writer, db accounts.DB, slot types.Slot) (*Manifest, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}

	hw := &hashWriter{w: enc, h: sha256.New()}

	count := db.AccountCount()
	header := make([]byte, headerSize)
	copy(header[0:4], snapshotMagic)
	binary.LittleEndian.PutUint32(header[4:8], snapshotVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(slot))
	binary.LittleEndian.PutUint64(header[16:24], count)
	if _, err := hw.Write(header); err != nil {
		enc.Close()
		return nil, fmt.Errorf("write snapshot header: %w", err)
	}

	written := uint64(0)
	err = db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		record, err := accounts.SerializeAccount(account)
		if err != nil {
			return fmt.Errorf("serialize account %s: %w", pubkey, err)
		}

		if _, err := hw.Write(pubkey.Bytes()); err != nil {
			return err
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(record)))
		if _, err := hw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := hw.Write(record); err != nil {
			return err
		}
		written++
		return nil
	})
	if err != nil {
		enc.Close()
		return nil, err
	}
	if written != count {
		enc.Close()
		return nil, fmt.Errorf("%w: account count changed during export (%d != %d)", ErrInvalidSnapshot, written, count)
	}

	sum := hw.h.Sum(nil)
	if _, err := enc.Write(sum); err != nil {
		enc.Close()
		return nil, fmt.Errorf("write snapshot hash: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close zstd writer: %w", err)
	}

	manifest := &Manifest{Slot: slot, AccountCount: written}
	copy(manifest.Hash[:], sum)
	return manifest, nil
}

// ExportFile writes a snapshot of db to the given path.
func ExportFile(path string, db accounts.DB, slot types.Slot) (*Manifest, error) {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}

	manifest, err := Export(f, db, slot)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close snapshot file: %w", err)
	}

	// Rename last so a half-written file never shadows a good snapshot.
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("finalize snapshot file: %w", err)
	}
	return manifest, nil
}

// Restore reads a snapshot from r and loads every account into db.
// Existing accounts with the same pubkey are overwritten.
func Restore(r io.Reader, db accounts.DB) (*Manifest, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	h := sha256.New()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(dec, header); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrInvalidSnapshot, err)
	}
	h.Write(header)

	if string(header[0:4]) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidSnapshot)
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	}
	slot := types.Slot(binary.LittleEndian.Uint64(header[8:16]))
	count := binary.LittleEndian.Uint64(header[16:24])

	var recordHeader [36]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(dec, recordHeader[:]); err != nil {
			return nil, fmt.Errorf("%w: short record header at %d: %v", ErrInvalidSnapshot, i, err)
		}
		h.Write(recordHeader[:])

		pubkey, err := types.PubkeyFromBytes(recordHeader[0:32])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		recordLen := binary.LittleEndian.Uint32(recordHeader[32:36])
		if recordLen > maxRecordLen {
			return nil, fmt.Errorf("%w: record length %d for %s exceeds maximum %d",
				ErrInvalidSnapshot, recordLen, pubkey, maxRecordLen)
		}

		record := make([]byte, recordLen)
		if _, err := io.ReadFull(dec, record); err != nil {
			return nil, fmt.Errorf("%w: short record for %s: %v", ErrInvalidSnapshot, pubkey, err)
		}
		h.Write(record)

		account, err := accounts.DeserializeAccount(record)
		if err != nil {
			return nil, fmt.Errorf("%w: account %s: %v", ErrInvalidSnapshot, pubkey, err)
		}
		if err := db.SetAccount(pubkey, account); err != nil {
			return nil, fmt.Errorf("store account %s: %w", pubkey, err)
		}
	}

	var stored [32]byte
	if _, err := io.ReadFull(dec, stored[:]); err != nil {
		return nil, fmt.Errorf("%w: missing integrity hash: %v", ErrInvalidSnapshot, err)
	}

	sum := h.Sum(nil)
	manifest := &Manifest{Slot: slot, AccountCount: count}
	copy(manifest.Hash[:], sum)

	if manifest.Hash != types.Hash(stored) {
		return manifest, ErrHashMismatch
	}
	return manifest, nil
}

// RestoreFile loads a snapshot from the given path into db.
func RestoreFile(path string, db accounts.DB) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	return Restore(f, db)
}
