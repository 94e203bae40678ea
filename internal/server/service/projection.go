package service

import (
	"fmt"
	"strings"
	"time"

	"filevault/internal/server/database"

	"github.com/google/uuid"
)

// FileSummary is the public-safe projection of a file record. It never
// carries the storage path or the secret; password protection is exposed
// as a presence boolean only.
type FileSummary struct {
	ID            uuid.UUID  `json:"id"`
	OriginalName  string     `json:"originalName"`
	Size          int64      `json:"size"`
	SizeFormatted string     `json:"sizeFormatted"`
	Mimetype      string     `json:"mimetype"`
	Category      string     `json:"category"`
	ShareID       uuid.UUID  `json:"shareId"`
	IsPublic      bool       `json:"isPublic"`
	HasPassword   bool       `json:"password"`
	DownloadCount int        `json:"downloadCount"`
	ViewCount     int        `json:"viewCount"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// FileDetail extends FileSummary with the descriptive metadata returned by
// single-record reads.
type FileDetail struct {
	FileSummary
	Description      string     `json:"description"`
	Tags             []string   `json:"tags"`
	LastDownloadedAt *time.Time `json:"lastDownloadedAt"`
}

// SharedFileInfo is the anonymous share-page projection.
type SharedFileInfo struct {
	OriginalName  string     `json:"originalName"`
	Size          int64      `json:"size"`
	SizeFormatted string     `json:"sizeFormatted"`
	Mimetype      string     `json:"mimetype"`
	Category      string     `json:"category"`
	DownloadCount int        `json:"downloadCount"`
	ViewCount     int        `json:"viewCount"`
	HasPassword   bool       `json:"hasPassword"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	Description   string     `json:"description"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Pagination is the listing envelope shared by all paginated endpoints.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

func paginate(page, limit int, total int64) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

func summarize(f *database.File) *FileSummary {
	return &FileSummary{
		ID:            f.ID,
		OriginalName:  f.OriginalName,
		Size:          f.Size,
		SizeFormatted: humanizeBytes(f.Size),
		Mimetype:      f.Mimetype,
		Category:      categorize(f.Mimetype),
		ShareID:       f.ShareID,
		IsPublic:      f.IsPublic,
		HasPassword:   f.PasswordHash != nil,
		DownloadCount: f.DownloadCount,
		ViewCount:     f.ViewCount,
		ExpiresAt:     f.ExpiresAt,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func detail(f *database.File) *FileDetail {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return &FileDetail{
		FileSummary:      *summarize(f),
		Description:      f.Description,
		Tags:             tags,
		LastDownloadedAt: f.LastDownloadedAt,
	}
}

func sharedInfo(f *database.File) *SharedFileInfo {
	return &SharedFileInfo{
		OriginalName:  f.OriginalName,
		Size:          f.Size,
		SizeFormatted: humanizeBytes(f.Size),
		Mimetype:      f.Mimetype,
		Category:      categorize(f.Mimetype),
		DownloadCount: f.DownloadCount,
		ViewCount:     f.ViewCount,
		HasPassword:   f.PasswordHash != nil,
		ExpiresAt:     f.ExpiresAt,
		Description:   f.Description,
		CreatedAt:     f.CreatedAt,
	}
}

// categorize buckets a mimetype for listing filters and icons.
func categorize(mimetype string) string {
	m := strings.ToLower(mimetype)
	switch {
	case strings.HasPrefix(m, "image/"):
		return "image"
	case strings.HasPrefix(m, "video/"):
		return "video"
	case strings.HasPrefix(m, "audio/"):
		return "audio"
	case strings.Contains(m, "pdf"),
		strings.Contains(m, "text/"),
		strings.Contains(m, "application/msword"),
		strings.Contains(m, "application/vnd.openxmlformats"):
		return "document"
	case strings.Contains(m, "zip"), strings.Contains(m, "rar"), strings.Contains(m, "7z"):
		return "archive"
	default:
		return "other"
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
