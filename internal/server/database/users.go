package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `id, name, email, role, is_active, storage_used, max_storage,
	created_at, updated_at`

// UserRepository provides user lookups and the admin-side mutations.
// Ledger mutations that must commit atomically with file records live on
// FileRepository.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive,
		&u.StorageUsed, &u.MaxStorage, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns), id)
	return scanUser(row)
}

// UserFilter narrows user listings.
type UserFilter struct {
	Search    string // matched against name and email
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

var userSortColumns = map[string]string{
	"createdAt":   "created_at",
	"name":        "name",
	"email":       "email",
	"storageUsed": "storage_used",
}

// List returns a page of users plus the total match count.
func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]*User, int64, error) {
	var args []any
	where := ""
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = "WHERE (name ILIKE $1 OR email ILIKE $1)"
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	col, ok := userSortColumns[filter.SortBy]
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

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf("SELECT %s FROM users %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		userColumns, where, col, dir, len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// UserUpdate carries a partial admin update. Nil pointers mean "leave
// unchanged".
type UserUpdate struct {
	Role       *string
	IsActive   *bool
	MaxStorage *int64
}

// Update applies a partial admin update and returns the updated user.
func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, upd UserUpdate) (*User, error) {
	var sets []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Role != nil {
		sets = append(sets, "role = "+arg(*upd.Role))
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = "+arg(*upd.IsActive))
	}
	if upd.MaxStorage != nil {
		sets = append(sets, "max_storage = "+arg(*upd.MaxStorage))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = %s RETURNING %s",
		strings.Join(sets, ", "), arg(id), userColumns)
	return scanUser(r.db.Pool.QueryRow(ctx, query, args...))
}
