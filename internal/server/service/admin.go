package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"filevault/internal/server/database"
	"filevault/internal/server/storage"

	"github.com/google/uuid"
)

// AdminService contains the moderation and reporting operations. Role
// enforcement happens at the HTTP boundary; callers pass the acting admin's
// identity for attribution only.
type AdminService struct {
	files FileRepository
	users UserRepository
	store storage.Store
}

// NewAdminService creates a new admin service.
func NewAdminService(files FileRepository, users UserRepository, store storage.Store) *AdminService {
	return &AdminService{files: files, users: users, store: store}
}

// Stats returns the dashboard aggregates.
func (s *AdminService) Stats(ctx context.Context) (*database.Stats, error) {
	return s.files.GetStats(ctx)
}

// AdminFileView is the moderation projection: unlike owner listings it
// includes soft-deleted records and their lifecycle fields.
type AdminFileView struct {
	FileSummary
	OwnerID   uuid.UUID  `json:"ownerId"`
	IsActive  bool       `json:"isActive"`
	DeletedAt *time.Time `json:"deletedAt"`
	DeletedBy *uuid.UUID `json:"deletedBy"`
}

// AdminFileList is a page of the moderation listing.
type AdminFileList struct {
	Files      []*AdminFileView `json:"files"`
	Pagination Pagination       `json:"pagination"`
}

// ListFiles returns a page over all files, including soft-deleted ones.
func (s *AdminService) ListFiles(ctx context.Context, opts ListOptions) (*AdminFileList, error) {
	files, total, err := s.files.List(ctx, database.FileFilter{
		Search:          opts.Search,
		Category:        opts.Category,
		SortBy:          opts.SortBy,
		SortOrder:       opts.SortOrder,
		Page:            opts.Page,
		Limit:           opts.Limit,
		IncludeInactive: true,
	})
	if err != nil {
		return nil, err
	}

	views := make([]*AdminFileView, 0, len(files))
	for _, f := range files {
		views = append(views, &AdminFileView{
			FileSummary: *summarize(f),
			OwnerID:     f.OwnerID,
			IsActive:    f.IsActive,
			DeletedAt:   f.DeletedAt,
			DeletedBy:   f.DeletedBy,
		})
	}
	return &AdminFileList{
		Files:      views,
		Pagination: paginate(opts.Page, opts.Limit, total),
	}, nil
}

// UserView is the admin projection of a user and their ledger.
type UserView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"isActive"`
	StorageUsed int64     `json:"storageUsed"`
	MaxStorage  int64     `json:"maxStorage"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserList is a page of users.
type UserList struct {
	Users      []*UserView `json:"users"`
	Pagination Pagination  `json:"pagination"`
}

// UserListOptions narrows the user listing.
type UserListOptions struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
}

// ListUsers returns a page of users.
func (s *AdminService) ListUsers(ctx context.Context, opts UserListOptions) (*UserList, error) {
	users, total, err := s.users.List(ctx, database.UserFilter{
		Search:    opts.Search,
		SortBy:    opts.SortBy,
		SortOrder: opts.SortOrder,
		Page:      opts.Page,
		Limit:     opts.Limit,
	})
	if err != nil {
		return nil, err
	}

	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		views = append(views, userView(u))
	}
	return &UserList{
		Users:      views,
		Pagination: paginate(opts.Page, opts.Limit, total),
	}, nil
}

// UserUpdateRequest carries a partial role/status/quota change.
type UserUpdateRequest struct {
	Role       *string
	IsActive   *bool
	MaxStorage *int64
}

// UpdateUser applies a role, status, or quota change to a user.
func (s *AdminService) UpdateUser(ctx context.Context, userID uuid.UUID, req UserUpdateRequest) (*UserView, error) {
	if req.Role != nil && *req.Role != RoleUser && *req.Role != RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *req.Role)
	}
	if req.MaxStorage != nil && *req.MaxStorage <= 0 {
		return nil, fmt.Errorf("%w: maxStorage must be positive", ErrInvalidInput)
	}

	u, err := s.users.Update(ctx, userID, database.UserUpdate{
		Role:       req.Role,
		IsActive:   req.IsActive,
		MaxStorage: req.MaxStorage,
	})
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return userView(u), nil
}

// SoftDeleteFile marks a record inactive attributed to the acting admin.
// The owner's ledger is untouched; quota reclamation for admin-deleted
// files happens on permanent delete. Re-invoking on an already-inactive
// record is a no-op.
func (s *AdminService) SoftDeleteFile(ctx context.Context, admin Identity, fileID uuid.UUID) error {
	changed, err := s.files.SoftDeleteAdmin(ctx, fileID, admin.UserID)
	if err != nil {
		return err
	}
	if !changed {
		// Either the record is gone or it was already inactive.
		if _, err := s.files.GetByID(ctx, fileID); err != nil {
			if errors.Is(err, database.ErrFileNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	}
	slog.Info("file soft deleted by admin", "file", fileID, "admin", admin.UserID)
	return nil
}

// PermanentDeleteFile removes the backing object and its derivative,
// credits the owner's ledger unless an owner soft delete already did, and
// irreversibly drops the record. Missing physical files are logged and
// skipped; the record removal proceeds regardless.
func (s *AdminService) PermanentDeleteFile(ctx context.Context, admin Identity, fileID uuid.UUID) error {
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.store.Delete(f.Filename); err != nil {
		slog.Warn("failed to remove object during purge", "file", fileID, "filename", f.Filename, "error", err)
	}
	if err := s.store.DeleteThumb(f.Filename); err != nil {
		slog.Warn("failed to remove derivative during purge", "file", fileID, "filename", f.Filename, "error", err)
	}

	if err := s.files.DeletePermanent(ctx, fileID); err != nil {
		if errors.Is(err, database.ErrFileNotFound) {
			return ErrNotFound
		}
		return err
	}

	slog.Info("file permanently deleted",
		"file", fileID, "admin", admin.UserID, "owner", f.OwnerID, "size", f.Size)
	return nil
}

func userView(u *database.User) *UserView {
	return &UserView{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.IsActive,
		StorageUsed: u.StorageUsed,
		MaxStorage:  u.MaxStorage,
		CreatedAt:   u.CreatedAt,
	}
}
