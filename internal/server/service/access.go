package service

import (
	"filevault/internal/server/database"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// accessPath selects which lookup key addressed the record and therefore
// which policy branch applies.
type accessPath int

const (
	// ownerPath reads address the record by internal id and require the
	// requester to own it.
	ownerPath accessPath = iota
	// publicPath reads address the record by share token alone. isPublic
	// does not gate this path; possession of the unguessable token does.
	publicPath
)

// readScope distinguishes metadata reads from content reads. Only content
// reads are gated by the record's secret; metadata reads expose protection
// as a presence boolean instead.
type readScope int

const (
	metadataRead readScope = iota
	contentRead
)

// authorize is the single policy check applied before any read of a file
// record. Checks run in order and short-circuit on the first failure:
// computed liveness (soft-deleted or expired records are Gone regardless of
// the stored active flag), then ownership for owner-path reads (a mismatch
// is indistinguishable from absence), then the secret for content reads.
// The gate applies uniformly: owners must also present the secret for
// their own protected files.
//
// authorize has no side effects; counter increments are the caller's
// responsibility after the byte stream actually begins.
func authorize(f *database.File, path accessPath, requester uuid.UUID, scope readScope, secret string) error {
	if !f.IsLive() {
		return ErrGone
	}
	if path == ownerPath && f.OwnerID != requester {
		return ErrNotFound
	}
	if scope == contentRead {
		return verifySecret(f, secret)
	}
	return nil
}

// verifySecret compares a candidate against the record's secret. It is the
// only code that touches the hash; projections never include it.
func verifySecret(f *database.File, candidate string) error {
	if f.PasswordHash == nil {
		return nil
	}
	if candidate == "" {
		return ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(*f.PasswordHash), []byte(candidate)) != nil {
		return ErrUnauthorized
	}
	return nil
}
