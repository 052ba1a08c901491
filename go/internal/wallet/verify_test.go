package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signMessage(t *testing.T, priv *secp256k1.PrivateKey, message string) string {
	t.Helper()
	digest := sha256.Sum256([]byte(message))
	sig, err := schnorr.Sign(priv, digest[:])
	require.NoError(t, err)
	return hex.EncodeToString(sig.Serialize())
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	walletHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())

	msg := "highnoon:login:abc:1700000000000"
	sigHex := signMessage(t, priv, msg)

	assert.NoError(t, VerifySignature(walletHex, msg, sigHex))
}

func TestVerifySignatureRejectsWrongMessage(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	walletHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())

	sigHex := signMessage(t, priv, "message-a")

	assert.ErrorIs(t, VerifySignature(walletHex, "message-b", sigHex), ErrBadSignature)
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	msg := "highnoon:login:abc:1700000000000"
	sigHex := signMessage(t, priv, msg)
	otherWallet := hex.EncodeToString(other.PubKey().SerializeCompressed())

	assert.ErrorIs(t, VerifySignature(otherWallet, msg, sigHex), ErrBadSignature)
}

func TestVerifySignatureMalformedInputs(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	walletHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	sigHex := signMessage(t, priv, "msg")

	assert.Error(t, VerifySignature("not-hex", "msg", sigHex))
	assert.Error(t, VerifySignature(walletHex, "msg", "not-hex"))
	assert.Error(t, VerifySignature("deadbeef", "msg", sigHex))
	assert.Error(t, VerifySignature(walletHex, "msg", "dead"))
}
