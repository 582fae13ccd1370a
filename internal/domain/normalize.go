package domain

import "strings"

// DefaultDisplayNameLength is the wallet prefix length used for generated display names.
const DefaultDisplayNameLength = 8

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for displayName normalization.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most max runes. A non-positive max leaves s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// DefaultDisplayName derives the display name given to a new profile.
func DefaultDisplayName(w WalletAddress) string {
	return WalletPrefix(w, DefaultDisplayNameLength)
}

// WalletPrefix returns the first n characters of the wallet address.
func WalletPrefix(w WalletAddress, n int) string {
	s := string(w)
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
