package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"filevault/internal/server/config"
	"filevault/internal/server/database"
	"filevault/internal/server/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// maxOriginalNameLen caps the stored display name. The name is never used
// for storage addressing, only shown back to clients.
const maxOriginalNameLen = 255

const maxDescriptionLen = 500

// FileRepository is the persistence surface the file services consume.
type FileRepository interface {
	CreateBatch(ctx context.Context, files []*database.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*database.File, error)
	GetByShareID(ctx context.Context, shareID uuid.UUID) (*database.File, error)
	List(ctx context.Context, filter database.FileFilter) ([]*database.File, int64, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, upd database.FileSettingsUpdate) error
	IncrementDownload(ctx context.Context, id uuid.UUID) error
	IncrementView(ctx context.Context, id uuid.UUID) error
	SoftDeleteOwner(ctx context.Context, id uuid.UUID) (bool, error)
	SoftDeleteAdmin(ctx context.Context, id, adminID uuid.UUID) (bool, error)
	DeletePermanent(ctx context.Context, id uuid.UUID) error
	GetStats(ctx context.Context) (*database.Stats, error)
}

// UserRepository is the user/ledger surface the file services consume.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*database.User, error)
	List(ctx context.Context, filter database.UserFilter) ([]*database.User, int64, error)
	Update(ctx context.Context, id uuid.UUID, upd database.UserUpdate) (*database.User, error)
}

// DerivativeQueue accepts best-effort derivative jobs. Enqueue must never
// block the caller.
type DerivativeQueue interface {
	Enqueue(filename string)
}

// FileService contains the business logic for the file lifecycle: upload,
// listing, settings, delivery and owner deletion.
type FileService struct {
	files  FileRepository
	users  UserRepository
	store  storage.Store
	thumbs DerivativeQueue
	cfg    *config.Config
}

// NewFileService creates a new file service.
func NewFileService(files FileRepository, users UserRepository, store storage.Store, thumbs DerivativeQueue, cfg *config.Config) *FileService {
	return &FileService{
		files:  files,
		users:  users,
		store:  store,
		thumbs: thumbs,
		cfg:    cfg,
	}
}

// UploadPart is one incoming file of an upload batch.
type UploadPart struct {
	Name     string
	Mimetype string
	Size     int64
	Data     io.Reader
}

// Upload validates a batch against type, size and quota constraints, writes
// the bytes, and creates one record per part. The batch is all-or-nothing:
// a failure anywhere leaves no record, no ledger change, and no stored
// object behind. Thumbnail generation for images is queued best-effort and
// never delays or fails the upload.
func (s *FileService) Upload(ctx context.Context, who Identity, folderID *uuid.UUID, parts []UploadPart) ([]*FileSummary, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrInvalidInput)
	}
	if len(parts) > s.cfg.MaxFilesPerUpload {
		return nil, fmt.Errorf("%w: at most %d files per upload", ErrInvalidInput, s.cfg.MaxFilesPerUpload)
	}

	var totalSize int64
	for _, p := range parts {
		if ext := storageExt(p.Name); s.extBlocked(ext) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, ext)
		}
		if p.Size > s.cfg.MaxFileSize {
			return nil, ErrFileTooLarge
		}
		totalSize += p.Size
	}

	user, err := s.users.GetByID(ctx, who.UserID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.StorageUsed+totalSize > user.MaxStorage {
		return nil, ErrQuotaExceeded
	}

	// Write bytes first; records become visible only after every object
	// is durably on disk. Any failure removes what was already written.
	now := time.Now().UTC()
	records := make([]*database.File, 0, len(parts))
	written := make([]string, 0, len(parts))

	cleanup := func() {
		for _, name := range written {
			if err := s.store.Delete(name); err != nil {
				slog.Error("failed to remove object during upload rollback", "filename", name, "error", err)
			}
		}
	}

	for _, p := range parts {
		id := uuid.New()
		filename := id.String() + storageExt(p.Name)

		n, err := s.store.Save(filename, p.Data)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
		}
		written = append(written, filename)

		records = append(records, &database.File{
			ID:           id,
			ShareID:      uuid.New(),
			OriginalName: truncate(p.Name, maxOriginalNameLen),
			Filename:     filename,
			Mimetype:     normalizeMimetype(p.Mimetype, p.Name),
			Size:         n,
			OwnerID:      who.UserID,
			FolderID:     folderID,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := s.files.CreateBatch(ctx, records); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create upload records: %w", err)
	}

	summaries := make([]*FileSummary, 0, len(records))
	for _, f := range records {
		if isThumbnailable(f.Mimetype) {
			s.thumbs.Enqueue(f.Filename)
		}
		summaries = append(summaries, summarize(f))
	}

	slog.Info("upload processed",
		"owner", who.UserID,
		"files", len(records),
		"total_size", totalSize,
	)
	return summaries, nil
}

// ListOptions narrows and orders an owner's file listing.
type ListOptions struct {
	Page      int
	Limit     int
	Search    string
	Category  string
	SortBy    string
	SortOrder string
}

// FileList is a page of an owner's files.
type FileList struct {
	Files      []*FileSummary `json:"files"`
	Pagination Pagination     `json:"pagination"`
}

// ListFiles returns a page of the requester's live files.
func (s *FileService) ListFiles(ctx context.Context, who Identity, opts ListOptions) (*FileList, error) {
	files, total, err := s.files.List(ctx, database.FileFilter{
		OwnerID:   &who.UserID,
		Search:    opts.Search,
		Category:  opts.Category,
		SortBy:    opts.SortBy,
		SortOrder: opts.SortOrder,
		Page:      opts.Page,
		Limit:     opts.Limit,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]*FileSummary, 0, len(files))
	for _, f := range files {
		summaries = append(summaries, summarize(f))
	}
	return &FileList{
		Files:      summaries,
		Pagination: paginate(opts.Page, opts.Limit, total),
	}, nil
}

// GetFile returns a single record's metadata to its owner.
func (s *FileService) GetFile(ctx context.Context, who Identity, fileID uuid.UUID) (*FileDetail, error) {
	f, err := s.lookupByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := authorize(f, ownerPath, who.UserID, metadataRead, ""); err != nil {
		return nil, err
	}
	return detail(f), nil
}

// UpdateRequest carries a partial settings update. Nil pointers mean
// "leave unchanged"; an empty Password clears protection; ExpiresAt
// distinguishes absent from explicit null.
type UpdateRequest struct {
	IsPublic    *bool
	Password    *string
	ExpiresAt   OptionalTime
	Description *string
	Tags        []string
}

// FileSettings is the projection returned after an update.
type FileSettings struct {
	ID          uuid.UUID  `json:"id"`
	IsPublic    bool       `json:"isPublic"`
	HasPassword bool       `json:"hasPassword"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
}

// UpdateFile applies an owner's settings edit: visibility, password,
// expiry, description and tags.
func (s *FileService) UpdateFile(ctx context.Context, who Identity, fileID uuid.UUID, req UpdateRequest) (*FileSettings, error) {
	f, err := s.lookupByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive {
		return nil, ErrGone
	}
	if f.OwnerID != who.UserID {
		return nil, ErrNotFound
	}

	upd := database.FileSettingsUpdate{
		IsPublic: req.IsPublic,
	}

	if req.Password != nil {
		if *req.Password == "" {
			upd.ClearPassword = true
		} else {
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
			if err != nil {
				return nil, fmt.Errorf("failed to hash password: %w", err)
			}
			h := string(hash)
			upd.PasswordHash = &h
		}
	}

	if req.ExpiresAt.Set {
		if req.ExpiresAt.Value == nil {
			upd.ClearExpiry = true
		} else {
			upd.ExpiresAt = req.ExpiresAt.Value
		}
	}

	if req.Description != nil {
		if len(*req.Description) > maxDescriptionLen {
			return nil, fmt.Errorf("%w: description cannot exceed %d characters", ErrInvalidInput, maxDescriptionLen)
		}
		upd.Description = req.Description
	}

	if req.Tags != nil {
		upd.Tags = trimTags(req.Tags)
	}

	if err := s.files.UpdateSettings(ctx, fileID, upd); err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	f, err = s.lookupByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return &FileSettings{
		ID:          f.ID,
		IsPublic:    f.IsPublic,
		HasPassword: f.PasswordHash != nil,
		ExpiresAt:   f.ExpiresAt,
		Description: f.Description,
		Tags:        tags,
	}, nil
}

// DeleteFile soft-deletes an owner's file: the record goes inactive, the
// ledger is credited immediately, and the bytes stay on disk until an
// admin purge. Already-deleted records read as not found; the ledger is
// never double-credited.
func (s *FileService) DeleteFile(ctx context.Context, who Identity, fileID uuid.UUID) error {
	f, err := s.lookupByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f.OwnerID != who.UserID || !f.IsActive {
		return ErrNotFound
	}

	changed, err := s.files.SoftDeleteOwner(ctx, fileID)
	if err != nil {
		return err
	}
	if changed {
		slog.Info("file soft deleted by owner", "file", fileID, "owner", who.UserID, "size", f.Size)
	}
	return nil
}

func (s *FileService) lookupByID(ctx context.Context, id uuid.UUID) (*database.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FileService) lookupByShareID(ctx context.Context, shareID uuid.UUID) (*database.File, error) {
	f, err := s.files.GetByShareID(ctx, shareID)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FileService) extBlocked(ext string) bool {
	for _, blocked := range s.cfg.BlockedExtensions {
		if ext == blocked {
			return true
		}
	}
	return false
}

// storageExt extracts a lowercased extension from a client-supplied name
// for use in the server-assigned storage filename. The client name itself
// never reaches the filesystem.
func storageExt(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) > 16 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}

// normalizeMimetype falls back to extension sniffing when the client sent
// no content type.
func normalizeMimetype(mimetype, name string) string {
	if mimetype != "" {
		return mimetype
	}
	if byExt := mime.TypeByExtension(storageExt(name)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// trimTags drops blank entries and surrounding whitespace, preserving
// order and duplicates.
func trimTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
