package domain

// MemberID is an internal identifier for a member identity record.
// Issued credentials carry it as their subject.
type MemberID string

// ProfileID is an internal identifier for a member profile record.
type ProfileID string

// WalletAddress is a base58-encoded 32-byte public key.
type WalletAddress string
