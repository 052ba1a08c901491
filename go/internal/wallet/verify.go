package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

var ErrBadSignature = errors.New("signature verification failed")

// VerifySignature checks a schnorr signature over the challenge message.
// The wallet address is the hex-encoded compressed secp256k1 public key;
// the signature is 64 bytes hex. The message is hashed with SHA-256
// before verification.
func VerifySignature(walletHex, message, sigHex string) error {
	pubBytes, err := hex.DecodeString(walletHex)
	if err != nil {
		return fmt.Errorf("decode wallet address: %w", err)
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("parse wallet public key: %w", err)
	}

	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}

	digest := sha256.Sum256([]byte(message))
	if !sig.Verify(digest[:], pub) {
		return ErrBadSignature
	}
	return nil
}
