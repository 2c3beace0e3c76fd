package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"gulfsolar/backend/services/calculator-service/internal/models"
)

const uniqueViolation = "23505"

var (
	// ErrAdminNotFound represents missing admin rows.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrAdminExists is returned when the email is already registered.
	ErrAdminExists = errors.New("admin already exists")
)

// AdminRepository handles CRUD for the admin_users table.
type AdminRepository struct {
	db *sql.DB
}

// NewAdminRepository returns repository instance.
func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// Create inserts a new admin.
func (r *AdminRepository) Create(ctx context.Context, admin *models.AdminUser) error {
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	const query = `
		INSERT INTO admin_users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, admin.Email, admin.PasswordHash, admin.Role).
		Scan(&admin.ID, &admin.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAdminExists
	}
	return err
}

// GetByEmail fetches an admin by email.
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	const query = `
		SELECT id, email, password_hash, role, created_at
		FROM admin_users
		WHERE email = $1
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email)))
	var admin models.AdminUser
	if err := row.Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.Role, &admin.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &admin, nil
}
