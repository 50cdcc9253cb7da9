package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// SQLRepository implements Repository on top of dbx.DBTX. Queries use "?"
// placeholders and are rebound for the driver in use (Postgres or SQLite).
type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := r.db.Rebind(
		`INSERT INTO users (email, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`)

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowxContext(ctx, query,
		user.Email, user.PasswordHash, user.Role, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, storeError(err)
	}

	return user, nil
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := r.db.Rebind(
		`SELECT id, email, password_hash, role, created_at FROM users
		 WHERE email = ?`)

	return r.getOne(ctx, query, email)
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := r.db.Rebind(
		`SELECT id, email, password_hash, role, created_at FROM users
		 WHERE id = ?`)

	return r.getOne(ctx, query, id)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	if err := r.db.GetContext(ctx, user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, storeError(err)
	}
	return user, nil
}

func storeError(err error) error {
	return fmt.Errorf("db error: %w: %w", common.ErrStoreUnavailable, err)
}
