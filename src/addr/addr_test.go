package addr

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPubKey(t *testing.T) []byte {
	t.Helper()
	key, err := hex.DecodeString("d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d")
	require.NoError(t, err)
	return key
}

// The same public key under Polkadot, Kusama and generic prefixes, plus raw
// hex, must all normalize to one canonical form.
func TestNormalizeEquivalenceClasses(t *testing.T) {
	pubKey := testPubKey(t)
	canonical := "0x" + hex.EncodeToString(pubKey)

	forms := []string{canonical, strings.ToUpper(canonical[:2]) + canonical[2:]}
	for _, prefix := range []uint16{0, 2, 42, 128} {
		encoded, err := Encode(pubKey, prefix)
		require.NoError(t, err)
		forms = append(forms, encoded)
	}

	for _, form := range forms {
		got, err := Normalize(form)
		require.NoError(t, err, "form %q", form)
		assert.Equal(t, canonical, got, "form %q", form)
	}

	for i := range forms {
		for j := range forms {
			assert.True(t, Equal(forms[i], forms[j]), "%q vs %q", forms[i], forms[j])
		}
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	bad := []string{
		"",
		"0x1234",          // wrong length
		"0xzznothex",      // not hex
		"not-an-address!", // not base58
	}
	for _, in := range bad {
		_, err := Normalize(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestNormalizeRejectsBadChecksum(t *testing.T) {
	encoded, err := Encode(testPubKey(t), 0)
	require.NoError(t, err)

	// Flip a middle character to corrupt the payload.
	corrupted := []byte(encoded)
	mid := len(corrupted) / 2
	if corrupted[mid] == '1' {
		corrupted[mid] = '2'
	} else {
		corrupted[mid] = '1'
	}

	_, err = Normalize(string(corrupted))
	assert.Error(t, err)
}

func TestEqualFallsBackForOpaqueIDs(t *testing.T) {
	assert.True(t, Equal("alice", "Alice"))
	assert.False(t, Equal("alice", "bob"))
}

func TestEncodeTwoBytePrefix(t *testing.T) {
	encoded, err := Encode(testPubKey(t), 4242)
	require.NoError(t, err)

	got, err := Normalize(encoded)
	require.NoError(t, err)
	assert.Equal(t, "0x"+hex.EncodeToString(testPubKey(t)), got)
}
