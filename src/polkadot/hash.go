package polkadot

import (
	"encoding/binary"
	"encoding/hex"
	"log"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/crypto/blake2b"
)

// Twox128 implements the Substrate TwoX-128 hasher (two seeded xxhash64 runs)
func Twox128(data []byte) []byte {
	hash1 := xxhash.NewS64(0)
	hash1.Write(data)
	hash2 := xxhash.NewS64(1)
	hash2.Write(data)
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[0:], hash1.Sum64())
	binary.LittleEndian.PutUint64(out[8:], hash2.Sum64())
	return out
}

func Twox64(data []byte) []byte {
	hash := xxhash.NewS64(0)
	hash.Write(data)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, hash.Sum64())
	return out
}

// Twox64Concat applies the Twox64Concat storage-map hasher
func Twox64Concat(data []byte) []byte {
	return append(Twox64(data), data...)
}

// Blake2_128 implements Blake2b 128-bit hash
func Blake2_128(data []byte) []byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		log.Printf("polkadot: blake2b.New(16) failed: %v", err)
		return make([]byte, 16)
	}
	h.Write(data)
	return h.Sum(nil)
}

// StorageKey builds the hex storage key for a pallet item, appending any
// already-hashed map keys.
func StorageKey(pallet, item string, hashedKeys ...[]byte) string {
	key := append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
	for _, k := range hashedKeys {
		key = append(key, k...)
	}
	return "0x" + hex.EncodeToString(key)
}
