package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"newsdesk/internal/domain"
)

const syncLogColumns = `
	l.id, l.synced_count, l.updated_count, l.skipped_count, l.status, l.error_message,
	l.started_at, l.completed_at, l.duration_ms, l.triggered_by,
	a.name AS triggerer_name, a.email AS triggerer_email`

// SyncLogStore is the append-only history of sync runs.
type SyncLogStore struct {
	db *sqlx.DB
}

func NewSyncLogStore(db *sqlx.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

func (s *SyncLogStore) Append(ctx context.Context, entry *domain.SyncLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO sync_logs (
			id, synced_count, updated_count, skipped_count, status, error_message,
			started_at, completed_at, duration_ms, triggered_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		entry.ID,
		entry.CreatedCount,
		entry.UpdatedCount,
		entry.SkippedCount,
		entry.Status,
		entry.ErrorMessage,
		entry.StartedAt,
		entry.CompletedAt,
		entry.DurationMs,
		entry.TriggeredBy,
	)
	return err
}

// Latest returns the most recently started run, or nil when there is none.
func (s *SyncLogStore) Latest(ctx context.Context) (*domain.SyncLog, error) {
	query := `
		SELECT ` + syncLogColumns + `
		FROM sync_logs l
		LEFT JOIN admins a ON a.id = l.triggered_by
		ORDER BY l.started_at DESC
		LIMIT 1`

	var entry domain.SyncLog
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &entry, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns one page of runs, newest first, plus the unpaged total.
func (s *SyncLogStore) List(ctx context.Context, filter domain.SyncLogFilter) ([]domain.SyncLog, int, error) {
	exec := GetExecutor(ctx, s.db)

	var status *string
	if filter.Status != "" {
		v := string(filter.Status)
		status = &v
	}

	var total int
	err := sqlx.GetContext(ctx, exec, &total,
		`SELECT COUNT(*) FROM sync_logs WHERE ($1::text IS NULL OR status = $1)`, status)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + syncLogColumns + `
		FROM sync_logs l
		LEFT JOIN admins a ON a.id = l.triggered_by
		WHERE ($1::text IS NULL OR l.status = $1)
		ORDER BY l.started_at DESC
		LIMIT $2 OFFSET $3`

	logs := []domain.SyncLog{}
	if err := sqlx.SelectContext(ctx, exec, &logs, query, status, filter.Limit, filter.Offset); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
