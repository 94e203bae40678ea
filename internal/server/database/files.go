package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrFileNotFound = errors.New("file not found")
)

const fileColumns = `id, share_id, original_name, filename, mimetype, size,
	owner_id, folder_id, is_public, password_hash, expires_at,
	download_count, view_count, last_downloaded_at, description, tags,
	is_active, deleted_at, deleted_by, quota_reclaimed, created_at, updated_at`

// FileRepository provides persistence for file records and the ledger
// mutations that must commit atomically with them.
type FileRepository struct {
	db *DB
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db *DB) *FileRepository {
	return &FileRepository{db: db}
}

func scanFile(row pgx.Row) (*File, error) {
	f := &File{}
	err := row.Scan(
		&f.ID, &f.ShareID, &f.OriginalName, &f.Filename, &f.Mimetype, &f.Size,
		&f.OwnerID, &f.FolderID, &f.IsPublic, &f.PasswordHash, &f.ExpiresAt,
		&f.DownloadCount, &f.ViewCount, &f.LastDownloadedAt, &f.Description, &f.Tags,
		&f.IsActive, &f.DeletedAt, &f.DeletedBy, &f.QuotaReclaimed, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}
	return f, nil
}

// CreateBatch inserts a batch of file records and debits the owner's storage
// ledger in a single transaction. All records must share one owner. The
// caller has already written the bytes; on error it owns their removal.
func (r *FileRepository) CreateBatch(ctx context.Context, files []*File) error {
	if len(files) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var totalSize int64
	for _, f := range files {
		totalSize += f.Size
		_, err := tx.Exec(ctx, `
			INSERT INTO files (
				id, share_id, original_name, filename, mimetype, size,
				owner_id, folder_id, is_public, password_hash, expires_at,
				description, tags, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		`,
			f.ID, f.ShareID, f.OriginalName, f.Filename, f.Mimetype, f.Size,
			f.OwnerID, f.FolderID, f.IsPublic, f.PasswordHash, f.ExpiresAt,
			f.Description, f.Tags, f.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert file record: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET storage_used = storage_used + $1, updated_at = NOW()
		WHERE id = $2
	`, totalSize, files[0].OwnerID)
	if err != nil {
		return fmt.Errorf("failed to update storage ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit upload batch: %w", err)
	}
	return nil
}

// GetByID retrieves a file record by its internal id.
func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*File, error) {
	row := r.db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM files WHERE id = $1", fileColumns), id)
	return scanFile(row)
}

// GetByShareID retrieves a file record by its public share token.
func (r *FileRepository) GetByShareID(ctx context.Context, shareID uuid.UUID) (*File, error) {
	row := r.db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM files WHERE share_id = $1", fileColumns), shareID)
	return scanFile(row)
}

// FileFilter narrows and orders file listings.
type FileFilter struct {
	OwnerID         *uuid.UUID
	Search          string // matched against original_name and description
	Category        string // substring match against mimetype
	SortBy          string
	SortOrder       string // "asc" or "desc"
	Page            int
	Limit           int
	IncludeInactive bool // admin moderation listing only
}

// sortColumns is the allow-list for ORDER BY; anything else falls back to
// created_at.
var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"originalName":  "original_name",
	"size":          "size",
	"downloadCount": "download_count",
	"viewCount":     "view_count",
	"updatedAt":     "updated_at",
}

// List returns a page of file records plus the total match count.
func (r *FileRepository) List(ctx context.Context, filter FileFilter) ([]*File, int64, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OwnerID != nil {
		conds = append(conds, "owner_id = "+arg(*filter.OwnerID))
	}
	if !filter.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(original_name ILIKE %s OR description ILIKE %s)", p, p))
	}
	if filter.Category != "" {
		conds = append(conds, "mimetype ILIKE "+arg("%"+filter.Category+"%"))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM files "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count files: %w", err)
	}

	col, ok := sortColumns[filter.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		dir = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s FROM files %s ORDER BY %s %s LIMIT %s OFFSET %s",
		fileColumns, where, col, dir, arg(limit), arg(offset))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, f)
	}
	return files, total, rows.Err()
}

// FileSettingsUpdate carries a partial update of the owner-editable fields.
// Nil pointers mean "leave unchanged"; the Clear flags reset a field to its
// unset state.
type FileSettingsUpdate struct {
	IsPublic      *bool
	PasswordHash  *string
	ClearPassword bool
	ExpiresAt     *time.Time
	ClearExpiry   bool
	Description   *string
	Tags          []string
}

// UpdateSettings applies a partial settings update to a file record.
func (r *FileRepository) UpdateSettings(ctx context.Context, id uuid.UUID, upd FileSettingsUpdate) error {
	var sets []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.IsPublic != nil {
		sets = append(sets, "is_public = "+arg(*upd.IsPublic))
	}
	if upd.ClearPassword {
		sets = append(sets, "password_hash = NULL")
	} else if upd.PasswordHash != nil {
		sets = append(sets, "password_hash = "+arg(*upd.PasswordHash))
	}
	if upd.ClearExpiry {
		sets = append(sets, "expires_at = NULL")
	} else if upd.ExpiresAt != nil {
		sets = append(sets, "expires_at = "+arg(*upd.ExpiresAt))
	}
	if upd.Description != nil {
		sets = append(sets, "description = "+arg(*upd.Description))
	}
	if upd.Tags != nil {
		sets = append(sets, "tags = "+arg(upd.Tags))
	}

	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE files SET %s WHERE id = %s",
		strings.Join(sets, ", "), arg(id))

	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update file settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// IncrementDownload atomically bumps the download counter and stamps the
// last download time. Applied at the store level so concurrent downloads
// never lose an increment.
func (r *FileRepository) IncrementDownload(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE files
		SET download_count = download_count + 1, last_downloaded_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to increment download count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// IncrementView atomically bumps the view counter.
func (r *FileRepository) IncrementView(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx,
		"UPDATE files SET view_count = view_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

// SoftDeleteOwner marks a live record inactive and credits the owner's
// ledger in the same transaction, recording that the quota was reclaimed.
// Returns false when the record was already inactive; the ledger is then
// left untouched, so re-invocation never double-subtracts.
func (r *FileRepository) SoftDeleteOwner(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID uuid.UUID
	var size int64
	err = tx.QueryRow(ctx, `
		UPDATE files
		SET is_active = FALSE, deleted_at = NOW(), quota_reclaimed = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE
		RETURNING owner_id, size
	`, id).Scan(&ownerID, &size)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to soft delete file: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET storage_used = GREATEST(0, storage_used - $1), updated_at = NOW()
		WHERE id = $2
	`, size, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to credit storage ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit soft delete: %w", err)
	}
	return true, nil
}

// SoftDeleteAdmin marks a record inactive attributed to an admin. The
// ledger is not touched; reclamation happens on permanent delete.
func (r *FileRepository) SoftDeleteAdmin(ctx context.Context, id, adminID uuid.UUID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE files
		SET is_active = FALSE, deleted_at = NOW(), deleted_by = $2, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE
	`, id, adminID)
	if err != nil {
		return false, fmt.Errorf("failed to soft delete file: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeletePermanent removes a file record and credits the owner's ledger
// unless the quota was already reclaimed by an owner soft delete. Returns
// ErrFileNotFound when no record exists (including repeat invocations).
func (r *FileRepository) DeletePermanent(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID uuid.UUID
	var size int64
	var reclaimed bool
	err = tx.QueryRow(ctx, `
		DELETE FROM files WHERE id = $1
		RETURNING owner_id, size, quota_reclaimed
	`, id).Scan(&ownerID, &size, &reclaimed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	if !reclaimed {
		_, err = tx.Exec(ctx, `
			UPDATE users SET storage_used = GREATEST(0, storage_used - $1), updated_at = NOW()
			WHERE id = $2
		`, size, ownerID)
		if err != nil {
			return fmt.Errorf("failed to credit storage ledger: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit permanent delete: %w", err)
	}
	return nil
}

// GetStats returns the aggregate numbers behind the admin dashboard.
func (r *FileRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_public AND is_active),
			COUNT(*) FILTER (WHERE is_active AND created_at > NOW() - INTERVAL '7 days')
		FROM files
	`).Scan(&stats.TotalFiles, &stats.ActiveFiles, &stats.PublicFiles, &stats.RecentUploads)
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COALESCE(SUM(storage_used), 0),
			COALESCE(AVG(storage_used), 0)::BIGINT,
			COALESCE(MAX(storage_used), 0)
		FROM users
	`).Scan(&stats.TotalUsers, &stats.ActiveUsers,
		&stats.TotalStorageUsed, &stats.AverageStorageUsed, &stats.MaxStorageUsed)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT mimetype, COUNT(*), COALESCE(SUM(size), 0)
		FROM files WHERE is_active
		GROUP BY mimetype ORDER BY COUNT(*) DESC LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get mimetype stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mc MimetypeCount
		if err := rows.Scan(&mc.Mimetype, &mc.Count, &mc.TotalSize); err != nil {
			return nil, fmt.Errorf("failed to scan mimetype stats: %w", err)
		}
		stats.TopMimetypes = append(stats.TopMimetypes, mc)
	}
	return stats, rows.Err()
}
