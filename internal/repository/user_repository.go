package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/novabrands/storefront-api/internal/model"
	"github.com/novabrands/storefront-api/internal/utils"
)

const userColumns = `id, user_id, first_name, last_name, email, phone,
	password_hash, is_admin, is_verified, newsletter, created_at, updated_at`

// UserRepo encapsulates all database queries against the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password and inserts the user. The external
// u.UserID must already be set; u.ID is populated from the insert.
// A duplicate email maps to ErrEmailExists via the unique index, which
// is what makes concurrent registrations with the same email safe
// without wrapping the existence check in a transaction.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (user_id, first_name, last_name, email, phone, password_hash, is_admin, newsletter)
		 VALUES (?,?,?,?,?,?,?,?)`,
		u.UserID, u.FirstName, u.LastName, nullable(u.Email), nullable(u.Phone),
		hash, u.IsAdmin, u.Newsletter)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.PasswordHash = hash
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by its external user_id.
func (r *UserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return r.getOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE user_id=? LIMIT 1", userID)
}

// List returns all users except the one identified by excludeUserID
// (the caller), newest first. Password hashes are scanned but stripped
// before the rows leave the repository.
func (r *UserRepo) List(ctx context.Context, excludeUserID string) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE user_id != ? ORDER BY created_at DESC",
		excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = ""
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a user row by external id. Returns ErrUserNotFound
// when no row was affected.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE user_id = ?", userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	var email, phone sql.NullString
	if err := row.Scan(&u.ID, &u.UserID, &u.FirstName, &u.LastName, &email, &phone,
		&u.PasswordHash, &u.IsAdmin, &u.IsVerified, &u.Newsletter,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Phone = phone.String
	return &u, nil
}

// nullable maps empty strings to SQL NULL so the unique indexes on
// email/phone ignore absent values.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
