package accounts

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fortiblox/x1-stakepool/pkg/types"
)

// Serialization format:
// - lamports:   8 bytes (little-endian uint64)
// - data_len:   4 bytes (little-endian uint32)
// - data:       data_len bytes
// - owner:      32 bytes
// - executable: 1 byte (0 or 1)
//
// Total fixed size: 8 + 4 + 32 + 1 = 45 bytes + variable data

const (
	serializationHeaderSize = 8 + 4  // lamports + data_len
	serializationFooterSize = 32 + 1 // owner + executable
	serializationMinSize    = serializationHeaderSize + serializationFooterSize
)

// ErrInvalidAccountData is returned when stored account bytes are malformed.
var ErrInvalidAccountData = errors.New("invalid account data")

// SerializeAccount serializes an account to binary format.
func SerializeAccount(account *types.Account) ([]byte, error) {
	if account == nil {
		return nil, errors.New("cannot serialize nil account")
	}

	dataLen := len(account.Data)
	buf := make([]byte, serializationMinSize+dataLen)

	offset := 0
	binary.LittleEndian.PutUint64(buf[offset:], uint64(account.Lamports))
	offset += 8

	binary.LittleEndian.PutUint32(buf[offset:], uint32(dataLen))
	offset += 4

	if dataLen > 0 {
		copy(buf[offset:], account.Data)
		offset += dataLen
	}

	copy(buf[offset:], account.Owner[:])
	offset += 32

	if account.Executable {
		buf[offset] = 1
	}

	return buf, nil
}

// DeserializeAccount deserializes an account from binary format.
func DeserializeAccount(data []byte) (*types.Account, error) {
	if len(data) < serializationMinSize {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d",
			ErrInvalidAccountData, serializationMinSize, len(data))
	}

	offset := 0
	lamports := types.Lamports(binary.LittleEndian.Uint64(data[offset:]))
	offset += 8

	dataLen := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	if len(data) != serializationMinSize+int(dataLen) {
		return nil, fmt.Errorf("%w: length mismatch, expected %d bytes, got %d",
			ErrInvalidAccountData, serializationMinSize+int(dataLen), len(data))
	}

	account := &types.Account{Lamports: lamports}
	if dataLen > 0 {
		account.Data = make([]byte, dataLen)
		copy(account.Data, data[offset:offset+int(dataLen)])
		offset += int(dataLen)
	}

	copy(account.Owner[:], data[offset:offset+32])
	offset += 32

	account.Executable = data[offset] != 0

	return account, nil
}
