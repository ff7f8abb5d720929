package polkadot

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// DecodeHex decodes a hex string, handling 0x prefix
func DecodeHex(hexStr string) ([]byte, error) {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	return hex.DecodeString(hexStr)
}

// DecodeCompact decodes a SCALE compact integer, returning the value and
// the number of bytes consumed.
func DecodeCompact(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("empty data")
	}

	flag := data[0] & 0x03

	switch flag {
	case 0: // single byte
		return uint64(data[0] >> 2), 1, nil
	case 1: // two bytes
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("insufficient data")
		}
		return uint64(binary.LittleEndian.Uint16(data[:2]) >> 2), 2, nil
	case 2: // four bytes
		if len(data) < 4 {
			return 0, 0, fmt.Errorf("insufficient data")
		}
		return uint64(binary.LittleEndian.Uint32(data[:4]) >> 2), 4, nil
	case 3: // big integer
		n := int(data[0]>>2) + 4
		if len(data) < n+1 {
			return 0, 0, fmt.Errorf("insufficient data")
		}
		if n > 8 {
			return 0, 0, fmt.Errorf("compact integer too large")
		}
		var result uint64
		for i := 0; i < n && i < 8; i++ {
			result |= uint64(data[i+1]) << (8 * i)
		}
		return result, n + 1, nil
	}

	return 0, 0, fmt.Errorf("invalid compact encoding")
}

func readU32(data []byte, offset int) (uint32, int, error) {
	if offset+4 > len(data) {
		return 0, 0, fmt.Errorf("insufficient data for u32")
	}
	return binary.LittleEndian.Uint32(data[offset : offset+4]), offset + 4, nil
}

func readU128(data []byte, offset int) (*big.Int, int, error) {
	if offset+16 > len(data) {
		return nil, 0, fmt.Errorf("insufficient data for u128")
	}
	reversed := make([]byte, 16)
	for i := 0; i < 16; i++ {
		reversed[i] = data[offset+15-i]
	}
	return new(big.Int).SetBytes(reversed), offset + 16, nil
}
