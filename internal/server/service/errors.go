package service

import "errors"

// Sentinel errors for the service layer. All of them are recovered at the
// request boundary and turned into structured responses; none crash the
// process.
var (
	// ErrNotFound covers both genuinely absent records and ownership
	// mismatches, which must be indistinguishable to the requester.
	ErrNotFound = errors.New("file not found")
	// ErrGone marks a record that exists but is soft-deleted or expired.
	ErrGone = errors.New("file is no longer available")
	// ErrUnauthorized is returned for a missing or incorrect password.
	// The message never distinguishes the two cases.
	ErrUnauthorized = errors.New("incorrect password")
	ErrForbidden    = errors.New("admin access required")

	ErrQuotaExceeded   = errors.New("upload would exceed storage limit")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidFileType = errors.New("file type not allowed")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrStorageWrite    = errors.New("failed to write file to storage")

	ErrUnsupportedPreview = errors.New("file type not supported for preview")

	// ErrStorageInconsistency marks a live record whose bytes are missing
	// from the backing store. It signals a data-integrity fault, not a
	// legitimate absence, and is always logged with the record id.
	ErrStorageInconsistency = errors.New("file missing from storage")

	ErrUserNotFound = errors.New("user not found")
)
