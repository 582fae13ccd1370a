package credential

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const keyBits = 2048

// Keypair is an RS256 signing key and the kid it is published under.
type Keypair struct {
	Kid     string
	Private *rsa.PrivateKey
}

func GenerateKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

// LoadOrGenerateKeypair reads a PEM private key from path. An empty path yields
// an ephemeral key; a missing file is generated and written with mode 0600.
func LoadOrGenerateKeypair(path, kid string) (Keypair, error) {
	if path == "" {
		return GenerateKeypair(kid)
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		kp, err := GenerateKeypair(kid)
		if err != nil {
			return Keypair{}, err
		}
		if err := writeKey(path, kp.Private); err != nil {
			return Keypair{}, err
		}
		return kp, nil
	}
	if err != nil {
		return Keypair{}, fmt.Errorf("read signing key: %w", err)
	}
	priv, err := parseKey(b)
	if err != nil {
		return Keypair{}, fmt.Errorf("parse signing key %s: %w", path, err)
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

func parseKey(b []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T", k)
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

func writeKey(path string, priv *rsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	return os.WriteFile(path, b, 0o600)
}
