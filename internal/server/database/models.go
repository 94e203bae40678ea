package database

import (
	"time"

	"github.com/google/uuid"
)

// File is the authoritative record for one uploaded object.
type File struct {
	ID               uuid.UUID
	ShareID          uuid.UUID // public share token, never derived from ID
	OriginalName     string    // client-supplied display name, never used for storage
	Filename         string    // server-assigned storage key
	Mimetype         string
	Size             int64
	OwnerID          uuid.UUID
	FolderID         *uuid.UUID // nil = root
	IsPublic         bool
	PasswordHash     *string // bcrypt; nil when unprotected
	ExpiresAt        *time.Time
	DownloadCount    int
	ViewCount        int
	LastDownloadedAt *time.Time
	Description      string
	Tags             []string
	IsActive         bool // false = soft-deleted
	DeletedAt        *time.Time
	DeletedBy        *uuid.UUID // set on admin soft delete only
	QuotaReclaimed   bool       // ledger already credited for this record
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsExpired reports whether the record's expiry has passed.
// Expiration is a computed lifecycle state, never stored.
func (f *File) IsExpired() bool {
	return f.ExpiresAt != nil && time.Now().After(*f.ExpiresAt)
}

// IsLive reports whether the record is visible to non-admin reads.
func (f *File) IsLive() bool {
	return f.IsActive && !f.IsExpired()
}

// User carries the identity fields and the per-user storage ledger.
type User struct {
	ID          uuid.UUID
	Name        string
	Email       string
	Role        string // 'user' or 'admin'
	IsActive    bool
	StorageUsed int64
	MaxStorage  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Stats holds the aggregate numbers behind the admin dashboard.
type Stats struct {
	TotalUsers    int64 `json:"totalUsers"`
	ActiveUsers   int64 `json:"activeUsers"`
	TotalFiles    int64 `json:"totalFiles"`
	ActiveFiles   int64 `json:"activeFiles"`
	PublicFiles   int64 `json:"publicFiles"`
	RecentUploads int64 `json:"recentUploads"` // active files created in the last 7 days

	TotalStorageUsed   int64 `json:"totalStorageUsed"`
	AverageStorageUsed int64 `json:"averageStorageUsed"`
	MaxStorageUsed     int64 `json:"maxStorageUsed"`

	TopMimetypes []MimetypeCount `json:"topMimetypes"`
}

// MimetypeCount is one row of the file-type distribution.
type MimetypeCount struct {
	Mimetype  string `json:"mimetype"`
	Count     int64  `json:"count"`
	TotalSize int64  `json:"totalSize"`
}
