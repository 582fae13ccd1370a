// Package base58 decodes wallet addresses into raw public keys.
package base58

import (
	"crypto/ed25519"
	"errors"

	mrbase58 "github.com/mr-tron/base58"
)

var (
	// ErrInvalidEncoding indicates the input contains a character outside the bitcoin alphabet.
	ErrInvalidEncoding = errors.New("invalid base58 encoding")

	// ErrInvalidPublicKey indicates a well-formed address that does not decode to 32 bytes.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// Decode returns the bytes encoded by s. Each leading '1' becomes a leading zero byte.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	b, err := mrbase58.Decode(s)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	return b, nil
}

func Encode(b []byte) string {
	return mrbase58.Encode(b)
}

// DecodePublicKey decodes a wallet address into an ed25519 public key.
func DecodePublicKey(addr string) (ed25519.PublicKey, error) {
	b, err := Decode(addr)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	return ed25519.PublicKey(b), nil
}
