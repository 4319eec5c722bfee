package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"newsdesk/internal/domain"
)

type ArticleStore interface {
	FindByIdentity(ctx context.Context, apiID string) (*domain.Article, error)
	GetByID(ctx context.Context, id string) (*domain.Article, error)
	Create(ctx context.Context, article *domain.Article) (*domain.Article, error)
	UpdateFields(ctx context.Context, id string, fields domain.ArticleFields) (*domain.Article, error)
	UpsertByIdentity(ctx context.Context, article *domain.Article) (*domain.Article, bool, error)
	List(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, int, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type SyncLogStore interface {
	Append(ctx context.Context, entry *domain.SyncLog) error
	Latest(ctx context.Context) (*domain.SyncLog, error)
	List(ctx context.Context, filter domain.SyncLogFilter) ([]domain.SyncLog, int, error)
}

type AdminStore interface {
	GetByID(ctx context.Context, id string) (*domain.Admin, error)
}

type Source interface {
	ID() string
	Name() string
	FetchPage(ctx context.Context, category domain.Category, country string, pageSize int) ([]domain.RawArticle, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article, isNew bool) error
	Close() error
}
