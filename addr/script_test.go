package addr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptPubKeyRoundTrip(t *testing.T) {
	hash := make([]byte, 20)
	for i := range hash {
		hash[i] = byte(i + 1)
	}
	address := Encode(hash, MainNetParams.PubKeyHashAddrID)
	require.True(t, IsValid(address, MainNetParams))

	script, err := ScriptPubKey(address, MainNetParams)
	require.NoError(t, err)
	require.Equal(t, OP_DUP, int(script[0]))
	require.Equal(t, OP_HASH160, int(script[1]))

	got, ok := FromScriptPubKey(script, MainNetParams)
	require.True(t, ok)
	require.Equal(t, address, got)
	require.True(t, IsPubKeyHashScript(script))
}

func TestFromScriptPubKeyRejectsGarbage(t *testing.T) {
	_, ok := FromScriptPubKey([]byte{0x6a, 0x00}, MainNetParams)
	require.False(t, ok)
}

func TestScriptHashAddress(t *testing.T) {
	hash := make([]byte, 20)
	address := Encode(hash, MainNetParams.ScriptHashAddrID)
	script, err := ScriptPubKey(address, MainNetParams)
	require.NoError(t, err)
	require.False(t, IsPubKeyHashScript(script))

	got, ok := FromScriptPubKey(script, MainNetParams)
	require.True(t, ok)
	require.Equal(t, address, got)
}
