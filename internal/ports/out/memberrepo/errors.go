package memberrepo

import "errors"

var (
	// ErrNotFound indicates the requested identity does not exist (or is soft-deleted, for wallet lookups).
	ErrNotFound = errors.New("member identity not found")

	// ErrWalletAlreadyBound indicates a non-deleted identity already exists for the wallet.
	ErrWalletAlreadyBound = errors.New("wallet already bound to a member identity")

	// ErrAlreadyExists indicates an identity already exists with the provided ID.
	ErrAlreadyExists = errors.New("member identity already exists")

	// ErrWalletImmutable indicates an update attempted to change the wallet address.
	ErrWalletImmutable = errors.New("member wallet address is immutable")

	// ErrRevoked indicates the stored identity is revoked and can no longer change.
	ErrRevoked = errors.New("member identity is revoked")
)
