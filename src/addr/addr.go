// Package addr centralizes address comparison. Accounts show up in three
// encodings (SS58 under different network prefixes, and raw 0x hex); every
// comparison goes through Normalize so the rest of the code never has to
// care which one it was handed.
package addr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

var ss58Prefix = []byte("SS58PRE")

// Normalize converts an SS58 or 0x-hex address to the canonical lowercase
// hex form of its 32-byte public key.
func Normalize(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("empty address")
	}

	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		raw, err := hex.DecodeString(address[2:])
		if err != nil {
			return "", fmt.Errorf("invalid hex address: %w", err)
		}
		if len(raw) != 32 {
			return "", fmt.Errorf("invalid public key length: %d", len(raw))
		}
		return "0x" + hex.EncodeToString(raw), nil
	}

	raw, err := base58.Decode(address)
	if err != nil {
		return "", fmt.Errorf("invalid ss58 address: %w", err)
	}

	var prefix []byte
	var pubKey []byte
	switch len(raw) {
	case 35: // 1-byte network prefix
		prefix, pubKey = raw[:1], raw[1:33]
	case 36: // 2-byte network prefix
		prefix, pubKey = raw[:2], raw[2:34]
	default:
		return "", fmt.Errorf("invalid ss58 length: %d", len(raw))
	}

	checksum := ss58Checksum(prefix, pubKey)
	if raw[len(raw)-2] != checksum[0] || raw[len(raw)-1] != checksum[1] {
		return "", fmt.Errorf("ss58 checksum mismatch")
	}

	return "0x" + hex.EncodeToString(pubKey), nil
}

// Encode renders a 32-byte public key as an SS58 address under the given
// network prefix.
func Encode(pubKey []byte, networkPrefix uint16) (string, error) {
	if len(pubKey) != 32 {
		return "", fmt.Errorf("invalid public key length: %d", len(pubKey))
	}

	var prefix []byte
	if networkPrefix < 64 {
		prefix = []byte{byte(networkPrefix)}
	} else {
		// Two-byte form: upper 6 bits of the low byte first, then the
		// high bits folded into the second byte.
		prefix = []byte{
			0x40 | byte((networkPrefix&0xfc)>>2),
			byte(networkPrefix>>8) | byte(networkPrefix&0x03)<<6,
		}
	}

	payload := append(prefix, pubKey...)
	payload = append(payload, ss58Checksum(prefix, pubKey)...)
	return base58.Encode(payload), nil
}

// Equal reports whether two addresses refer to the same account, across
// encodings. Addresses that do not normalize only match themselves,
// case-insensitively.
func Equal(a, b string) bool {
	na, errA := Normalize(a)
	nb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return na == nb
}

func ss58Checksum(prefix, pubKey []byte) []byte {
	h, _ := blake2b.New(64, nil)
	h.Write(ss58Prefix)
	h.Write(prefix)
	h.Write(pubKey)
	return h.Sum(nil)[:2]
}
