// Package signature verifies detached ed25519 signatures produced by wallets.
package signature

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"

	"github.com/Huaoe/ElurcFleet/internal/platform/base58"
)

var (
	// ErrInvalidSignatureFormat indicates the signature is empty, not standard base64, or not 64 bytes.
	ErrInvalidSignatureFormat = errors.New("invalid signature format")

	// ErrSignatureMismatch indicates the signature does not verify against the key and message.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrVerifierUnavailable indicates no verification backend is configured.
	// Callers must treat it as a failed verification.
	ErrVerifierUnavailable = errors.New("signature verifier unavailable")
)

// Backend performs the raw ed25519 check.
type Backend func(pub ed25519.PublicKey, message, sig []byte) bool

type Verifier struct {
	backend Backend
}

func New() *Verifier {
	return &Verifier{backend: ed25519.Verify}
}

// NewWithBackend builds a verifier around an explicit backend. A nil backend yields a
// verifier that rejects everything with ErrVerifierUnavailable.
func NewWithBackend(b Backend) *Verifier {
	return &Verifier{backend: b}
}

// DecodeSignature decodes a standard base64 signature and checks its length.
func DecodeSignature(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidSignatureFormat
	}
	sig, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, ErrInvalidSignatureFormat
	}
	return sig, nil
}

// Verify checks sig over the raw UTF-8 bytes of message.
func (v *Verifier) Verify(pub ed25519.PublicKey, message string, sig []byte) error {
	if v == nil || v.backend == nil {
		return ErrVerifierUnavailable
	}
	if len(pub) != ed25519.PublicKeySize {
		return base58.ErrInvalidPublicKey
	}
	if len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignatureFormat
	}
	if !v.backend(pub, []byte(message), sig) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyWallet decodes the wallet address and base64 signature, then verifies.
func (v *Verifier) VerifyWallet(wallet, message, signatureB64 string) error {
	sig, err := DecodeSignature(signatureB64)
	if err != nil {
		return err
	}
	pub, err := base58.DecodePublicKey(wallet)
	if err != nil {
		return err
	}
	return v.Verify(pub, message, sig)
}
