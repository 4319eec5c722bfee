package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"newsdesk/internal/domain"
)

const articleColumns = `
	id, api_id, title, description, content, url, image_url, source, author,
	category, published_at, last_synced_at, created_at, updated_at, created_by, updated_by`

type ArticleStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db, now: time.Now}
}

// FindByIdentity returns nil without an error when no article holds the key.
func (s *ArticleStore) FindByIdentity(ctx context.Context, apiID string) (*domain.Article, error) {
	var article domain.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE api_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, query, apiID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *ArticleStore) GetByID(ctx context.Context, id string) (*domain.Article, error) {
	var article domain.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// Create inserts the article. A concurrent insert of the same identity key
// surfaces as domain.ErrDuplicateIdentity.
func (s *ArticleStore) Create(ctx context.Context, article *domain.Article) (*domain.Article, error) {
	if err := article.Validate(); err != nil {
		return nil, err
	}

	id := article.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO articles (
			id, api_id, title, description, content, url, image_url, source, author,
			category, published_at, last_synced_at, created_by, updated_by
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		RETURNING ` + articleColumns

	var created domain.Article
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &created, query,
		id,
		article.APIID,
		article.Title,
		article.Description,
		article.Content,
		article.URL,
		article.ImageURL,
		article.Source,
		article.Author,
		article.Category,
		article.PublishedAt,
		article.LastSyncedAt,
		article.CreatedBy,
		article.UpdatedBy,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateIdentity, article.APIID)
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateFields applies only the non-nil fields and bumps updated_at.
func (s *ArticleStore) UpdateFields(ctx context.Context, id string, fields domain.ArticleFields) (*domain.Article, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	args := make([]interface{}, 0, 12)

	set := func(column string, value interface{}) {
		args = append(args, value)
		sb.WriteString(column)
		sb.WriteString(" = $")
		sb.WriteString(strconv.Itoa(len(args)))
		sb.WriteString(", ")
	}

	sb.WriteString("UPDATE articles SET ")
	if fields.Title != nil {
		set("title", *fields.Title)
	}
	if fields.Description != nil {
		set("description", *fields.Description)
	}
	if fields.Content != nil {
		set("content", *fields.Content)
	}
	if fields.URL != nil {
		set("url", *fields.URL)
	}
	if fields.ImageURL != nil {
		set("image_url", *fields.ImageURL)
	}
	if fields.Source != nil {
		set("source", *fields.Source)
	}
	if fields.Author != nil {
		set("author", *fields.Author)
	}
	if fields.Category != nil {
		set("category", *fields.Category)
	}
	if fields.PublishedAt != nil {
		set("published_at", *fields.PublishedAt)
	}
	if fields.LastSyncedAt != nil {
		set("last_synced_at", *fields.LastSyncedAt)
	}
	if fields.UpdatedBy != nil {
		set("updated_by", *fields.UpdatedBy)
	}
	set("updated_at", s.now().UTC())

	args = append(args, id)
	query := strings.TrimSuffix(sb.String(), ", ") +
		" WHERE id = $" + strconv.Itoa(len(args)) +
		" RETURNING " + articleColumns

	var updated domain.Article
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &updated, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// UpsertByIdentity updates the article holding the same identity key or
// creates it. The find-then-write pair is not atomic against a concurrent
// insert; callers see domain.ErrDuplicateIdentity in that case.
func (s *ArticleStore) UpsertByIdentity(ctx context.Context, article *domain.Article) (*domain.Article, bool, error) {
	syncedAt := s.now().UTC()

	existing, err := s.FindByIdentity(ctx, article.APIID)
	if err != nil {
		return nil, false, fmt.Errorf("find by identity: %w", err)
	}

	if existing != nil {
		updated, err := s.UpdateFields(ctx, existing.ID, domain.ArticleFields{
			Title:        &article.Title,
			Description:  article.Description,
			Content:      article.Content,
			URL:          &article.URL,
			ImageURL:     article.ImageURL,
			Source:       article.Source,
			Author:       article.Author,
			Category:     &article.Category,
			PublishedAt:  &article.PublishedAt,
			LastSyncedAt: &syncedAt,
		})
		if err != nil {
			return nil, false, fmt.Errorf("update article: %w", err)
		}
		return updated, false, nil
	}

	toCreate := *article
	toCreate.LastSyncedAt = &syncedAt

	created, err := s.Create(ctx, &toCreate)
	if err != nil {
		return nil, false, fmt.Errorf("create article: %w", err)
	}
	return created, true, nil
}

// List returns one page of articles matching the filter plus the unpaged total.
func (s *ArticleStore) List(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, int, error) {
	exec := GetExecutor(ctx, s.db)

	var where strings.Builder
	args := make([]interface{}, 0, 9)

	cond := func(clause string, value interface{}) {
		args = append(args, value)
		if where.Len() == 0 {
			where.WriteString(" WHERE ")
		} else {
			where.WriteString(" AND ")
		}
		where.WriteString(strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}

	if filter.Search != "" {
		cond("(title ILIKE ? OR description ILIKE ?)", "%"+filter.Search+"%")
	}
	if filter.Category != "" {
		cond("category = ?", filter.Category)
	}
	if filter.Source != "" {
		cond("source = ?", filter.Source)
	}
	if filter.Author != "" {
		cond("author ILIKE ?", "%"+filter.Author+"%")
	}
	if filter.PublishedFrom != nil {
		cond("published_at >= ?", *filter.PublishedFrom)
	}
	if filter.PublishedBefore != nil {
		cond("published_at < ?", *filter.PublishedBefore)
	}

	var total int
	if err := sqlx.GetContext(ctx, exec, &total, `SELECT COUNT(*) FROM articles`+where.String(), args...); err != nil {
		return nil, 0, err
	}

	sortBy := filter.SortBy
	if !sortBy.Valid() {
		sortBy = domain.SortByUpdatedAt
	}
	direction := "DESC"
	if filter.SortAscending {
		direction = "ASC"
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + articleColumns + ` FROM articles` + where.String() +
		` ORDER BY ` + string(sortBy) + ` ` + direction + `, id ` + direction +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	articles := []domain.Article{}
	if err := sqlx.SelectContext(ctx, exec, &articles, query, args...); err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (s *ArticleStore) Delete(ctx context.Context, id string) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ArticleStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count, `SELECT COUNT(*) FROM articles`)
	return count, err
}
