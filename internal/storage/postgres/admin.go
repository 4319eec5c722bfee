package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"newsdesk/internal/domain"
)

// AdminStore resolves admin accounts for display. Account management lives elsewhere.
type AdminStore struct {
	db *sqlx.DB
}

func NewAdminStore(db *sqlx.DB) *AdminStore {
	return &AdminStore{db: db}
}

func (s *AdminStore) GetByID(ctx context.Context, id string) (*domain.Admin, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	var admin domain.Admin
	query := `SELECT id, email, name, role, is_active FROM admins WHERE id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &admin, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
