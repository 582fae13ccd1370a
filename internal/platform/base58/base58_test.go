package base58

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"
)

func TestDecode_LeadingOnesBecomeZeroBytes(t *testing.T) {
	t.Parallel()

	got, err := Decode("1112")
	if err != nil {
		t.Fatalf("Decode() err=%v", err)
	}
	want := []byte{0, 0, 0, 1}
	if !bytes.Equal(got, want) {
		t.Fatalf("Decode()=%v, want %v", got, want)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		{0},
		{0, 0, 255},
		{1, 2, 3, 4, 5, 6, 7, 8, 9},
		bytes.Repeat([]byte{0xab}, 32),
		append([]byte{0, 0}, bytes.Repeat([]byte{0x7f}, 30)...),
	}
	for _, in := range inputs {
		got, err := Decode(Encode(in))
		if err != nil {
			t.Fatalf("Decode(Encode(%x)) err=%v", in, err)
		}
		if !bytes.Equal(got, in) {
			t.Fatalf("round trip mismatch: got %x, want %x", got, in)
		}
	}
}

func TestDecode_RejectsCharactersOutsideAlphabet(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"0abc", "abcO", "Il", "abc+", "wallet address"} {
		if _, err := Decode(s); !errors.Is(err, ErrInvalidEncoding) {
			t.Fatalf("Decode(%q) err=%v, want ErrInvalidEncoding", s, err)
		}
	}
}

func TestDecodePublicKey(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey() err=%v", err)
	}
	got, err := DecodePublicKey(Encode(pub))
	if err != nil {
		t.Fatalf("DecodePublicKey() err=%v", err)
	}
	if !bytes.Equal(got, pub) {
		t.Fatalf("DecodePublicKey() mismatch")
	}

	if _, err := DecodePublicKey(Encode([]byte{1, 2, 3})); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("short key err=%v, want ErrInvalidPublicKey", err)
	}
	if _, err := DecodePublicKey("not-base58!"); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("bad encoding err=%v, want ErrInvalidEncoding", err)
	}
}
