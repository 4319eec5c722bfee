package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/identity"
)

const (
	defaultArticlesPage  = 1
	defaultArticlesLimit = 10
	maxArticlesLimit     = 100

	dateLayout = "2006-01-02"
)

// ArticleInput is the payload of a manually created article.
type ArticleInput struct {
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Content     *string         `json:"content,omitempty"`
	URL         string          `json:"url"`
	ImageURL    *string         `json:"imageUrl,omitempty"`
	Source      *string         `json:"source,omitempty"`
	Author      *string         `json:"author,omitempty"`
	Category    domain.Category `json:"category"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// ArticleQuery is a listing request as received from a client. Dates are
// YYYY-MM-DD and both ends are inclusive.
type ArticleQuery struct {
	Page      int
	Limit     int
	Search    string
	Category  string
	Source    string
	Author    string
	SortBy    string
	SortOrder string
	DateFrom  string
	DateTo    string
}

var sortAliases = map[string]domain.ArticleSort{
	"updated_at":   domain.SortByUpdatedAt,
	"updatedAt":    domain.SortByUpdatedAt,
	"created_at":   domain.SortByCreatedAt,
	"createdAt":    domain.SortByCreatedAt,
	"published_at": domain.SortByPublishedAt,
	"publishedAt":  domain.SortByPublishedAt,
	"title":        domain.SortByTitle,
}

// ArticleService handles articles written by admins rather than by sync.
type ArticleService struct {
	articles  ArticleStore
	admins    AdminStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewArticleService(articles ArticleStore, admins AdminStore, publisher Publisher, logger *slog.Logger) *ArticleService {
	return &ArticleService{
		articles:  articles,
		admins:    admins,
		publisher: publisher,
		logger:    logger.With("component", "articles"),
		now:       time.Now,
	}
}

func (s *ArticleService) Get(ctx context.Context, id string) (*domain.Article, error) {
	return s.articles.GetByID(ctx, id)
}

func (s *ArticleService) List(ctx context.Context, query ArticleQuery) (*domain.ArticlePage, error) {
	filter, page, err := buildArticleFilter(query)
	if err != nil {
		return nil, err
	}

	articles, total, err := s.articles.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	return &domain.ArticlePage{
		Data: articles,
		Meta: domain.PageMeta{
			Total:      total,
			Page:       page,
			Limit:      filter.Limit,
			TotalPages: (total + filter.Limit - 1) / filter.Limit,
		},
	}, nil
}

func (s *ArticleService) Create(ctx context.Context, input ArticleInput, actorID string) (*domain.Article, error) {
	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	apiID, err := identity.Manual(s.now())
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}

	article := &domain.Article{
		APIID:       apiID,
		Title:       input.Title,
		Description: input.Description,
		Content:     input.Content,
		URL:         input.URL,
		ImageURL:    input.ImageURL,
		Source:      input.Source,
		Author:      input.Author,
		Category:    input.Category,
		PublishedAt: input.PublishedAt,
		CreatedBy:   actor,
	}
	if article.PublishedAt.IsZero() {
		article.PublishedAt = s.now().UTC()
	}

	created, err := s.articles.Create(ctx, article)
	if err != nil {
		return nil, fmt.Errorf("create article: %w", err)
	}

	s.logger.Info("article created", "id", created.ID, "api_id", created.APIID, "actor", actorID)
	s.publish(ctx, created, true)

	return created, nil
}

func (s *ArticleService) Update(ctx context.Context, id string, fields domain.ArticleFields, actorID string) (*domain.Article, error) {
	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	fields.UpdatedBy = actor

	updated, err := s.articles.UpdateFields(ctx, id, fields)
	if err != nil {
		return nil, fmt.Errorf("update article: %w", err)
	}

	s.logger.Info("article updated", "id", updated.ID, "actor", actorID)
	s.publish(ctx, updated, false)

	return updated, nil
}

func (s *ArticleService) Delete(ctx context.Context, id string, actorID string) error {
	if err := s.articles.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete article: %w", err)
	}

	s.logger.Info("article deleted", "id", id, "actor", actorID)
	return nil
}

// resolveActor returns the admin id to attribute a write to. Ids that name no
// admin are dropped so the write never trips the admins foreign key.
func (s *ArticleService) resolveActor(ctx context.Context, actorID string) (*string, error) {
	if actorID == "" {
		return nil, nil
	}

	admin, err := s.admins.GetByID(ctx, actorID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("unknown article actor, write left unattributed", "actor", actorID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve actor: %w", err)
	}
	return &admin.ID, nil
}

func (s *ArticleService) publish(ctx context.Context, article *domain.Article, isNew bool) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, article, isNew); err != nil {
		s.logger.Warn("publish article change", "id", article.ID, "error", err)
	}
}

func buildArticleFilter(query ArticleQuery) (domain.ArticleFilter, int, error) {
	page, limit := query.Page, query.Limit
	if page == 0 {
		page = defaultArticlesPage
	}
	if limit == 0 {
		limit = defaultArticlesLimit
	}
	if page < 1 {
		return domain.ArticleFilter{}, 0, domain.NewValidationError("page must be positive")
	}
	if limit < 1 || limit > maxArticlesLimit {
		return domain.ArticleFilter{}, 0, domain.NewValidationError("limit must be between 1 and %d", maxArticlesLimit)
	}

	filter := domain.ArticleFilter{
		Search: strings.TrimSpace(query.Search),
		Source: strings.TrimSpace(query.Source),
		Author: strings.TrimSpace(query.Author),
		SortBy: domain.SortByUpdatedAt,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if query.Category != "" {
		filter.Category = domain.Category(strings.ToLower(strings.TrimSpace(query.Category)))
		if !filter.Category.Valid() {
			return domain.ArticleFilter{}, 0, domain.NewValidationError("unknown category %q", query.Category)
		}
	}

	if query.SortBy != "" {
		sortBy, ok := sortAliases[query.SortBy]
		if !ok {
			return domain.ArticleFilter{}, 0, domain.NewValidationError("cannot sort by %q", query.SortBy)
		}
		filter.SortBy = sortBy
	}

	switch strings.ToUpper(query.SortOrder) {
	case "", "DESC":
	case "ASC":
		filter.SortAscending = true
	default:
		return domain.ArticleFilter{}, 0, domain.NewValidationError("sortOrder must be ASC or DESC")
	}

	if query.DateFrom != "" {
		from, err := time.Parse(dateLayout, query.DateFrom)
		if err != nil {
			return domain.ArticleFilter{}, 0, domain.NewValidationError("dateFrom must be YYYY-MM-DD")
		}
		filter.PublishedFrom = &from
	}
	if query.DateTo != "" {
		to, err := time.Parse(dateLayout, query.DateTo)
		if err != nil {
			return domain.ArticleFilter{}, 0, domain.NewValidationError("dateTo must be YYYY-MM-DD")
		}
		before := to.AddDate(0, 0, 1)
		filter.PublishedBefore = &before
	}
	if filter.PublishedFrom != nil && filter.PublishedBefore != nil && !filter.PublishedFrom.Before(*filter.PublishedBefore) {
		return domain.ArticleFilter{}, 0, domain.NewValidationError("dateFrom must not be after dateTo")
	}

	return filter, page, nil
}
