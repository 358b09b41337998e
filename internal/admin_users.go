package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
	"golang.org/x/crypto/bcrypt"
)

// AdminUser is a stored administrator credential.
type AdminUser struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type PostgresAdminUserRepository struct {
	pool  dbPool
	table string
}

func NewPostgresAdminUserRepository(pool dbPool, tables tabula.TableNames) *PostgresAdminUserRepository {
	return &PostgresAdminUserRepository{pool: pool, table: sanitizeIdentifier(tables.AdminUsers)}
}

func (r *PostgresAdminUserRepository) GetAdminUser(ctx context.Context, username string) (*AdminUser, error) {
	query := fmt.Sprintf(`SELECT id, username, password_hash, created_at FROM %s WHERE username = $1`, r.table)

	var u AdminUser
	if err := r.pool.QueryRow(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, tabula.NewNotFoundError(tabula.ErrCodeInvalidCredentials, "admin user", username)
		}
		return nil, fmt.Errorf("query admin user: %w", err)
	}
	return &u, nil
}

// InsertAdminUser creates the user or replaces the password of an existing one.
func (r *PostgresAdminUserRepository) InsertAdminUser(ctx context.Context, user *AdminUser) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (id, username, password_hash) VALUES ($1, $2, $3)
			ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash
			RETURNING id, created_at`,
		r.table,
	)
	if err := r.pool.QueryRow(ctx, query, user.ID, user.Username, user.PasswordHash).Scan(&user.ID, &user.CreatedAt); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}

// HashPassword returns the bcrypt hash stored for an administrator.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// NewAdminUser builds a user record with a fresh id and hashed password.
func NewAdminUser(username, password string) (*AdminUser, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}
	return &AdminUser{ID: id, Username: username, PasswordHash: hash}, nil
}

var _ AdminUserRepository = (*PostgresAdminUserRepository)(nil)
