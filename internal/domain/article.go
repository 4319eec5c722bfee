package domain

import "time"

// Category is one of the closed set of NewsAPI top-headline categories.
type Category string

const (
	CategoryBusiness      Category = "business"
	CategoryTechnology    Category = "technology"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryHealth        Category = "health"
	CategoryScience       Category = "science"
)

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryBusiness,
		CategoryTechnology,
		CategorySports,
		CategoryEntertainment,
		CategoryHealth,
		CategoryScience,
	}
}

func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

type Article struct {
	ID           string     `db:"id" json:"id"`
	APIID        string     `db:"api_id" json:"apiId"`
	Title        string     `db:"title" json:"title"`
	Description  *string    `db:"description" json:"description,omitempty"`
	Content      *string    `db:"content" json:"content,omitempty"`
	URL          string     `db:"url" json:"url"`
	ImageURL     *string    `db:"image_url" json:"imageUrl,omitempty"`
	Source       *string    `db:"source" json:"source,omitempty"`
	Author       *string    `db:"author" json:"author,omitempty"`
	Category     Category   `db:"category" json:"category"`
	PublishedAt  time.Time  `db:"published_at" json:"publishedAt"`
	LastSyncedAt *time.Time `db:"last_synced_at" json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
	CreatedBy    *string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy    *string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// Validate checks the invariants every stored article must hold.
func (a *Article) Validate() error {
	if a.APIID == "" {
		return NewValidationError("apiId is required")
	}
	if a.Title == "" {
		return NewValidationError("title is required")
	}
	if a.URL == "" {
		return NewValidationError("url is required")
	}
	if !a.Category.Valid() {
		return NewValidationError("unknown category %q", a.Category)
	}
	return nil
}

// ArticleFields is a partial update. Nil fields are left untouched.
type ArticleFields struct {
	Title        *string
	Description  *string
	Content      *string
	URL          *string
	ImageURL     *string
	Source       *string
	Author       *string
	Category     *Category
	PublishedAt  *time.Time
	LastSyncedAt *time.Time
	UpdatedBy    *string
}

func (f ArticleFields) Validate() error {
	if f.Title != nil && *f.Title == "" {
		return NewValidationError("title must not be empty")
	}
	if f.URL != nil && *f.URL == "" {
		return NewValidationError("url must not be empty")
	}
	if f.Category != nil && !f.Category.Valid() {
		return NewValidationError("unknown category %q", *f.Category)
	}
	return nil
}

// ArticleSort names a column articles can be ordered by.
type ArticleSort string

const (
	SortByUpdatedAt   ArticleSort = "updated_at"
	SortByCreatedAt   ArticleSort = "created_at"
	SortByPublishedAt ArticleSort = "published_at"
	SortByTitle       ArticleSort = "title"
)

func (s ArticleSort) Valid() bool {
	switch s {
	case SortByUpdatedAt, SortByCreatedAt, SortByPublishedAt, SortByTitle:
		return true
	}
	return false
}

// ArticleFilter selects a page of articles. Empty fields do not filter.
type ArticleFilter struct {
	// Search matches title or description, case-insensitively.
	Search   string
	Category Category
	Source   string
	// Author matches case-insensitively as a substring.
	Author string
	// PublishedFrom is inclusive, PublishedBefore exclusive.
	PublishedFrom   *time.Time
	PublishedBefore *time.Time
	SortBy          ArticleSort
	SortAscending   bool
	Limit           int
	Offset          int
}

type ArticlePage struct {
	Data []Article `json:"data"`
	Meta PageMeta  `json:"meta"`
}

// RawArticle is an article record as delivered by the news provider.
type RawArticle struct {
	Title       string
	Description *string
	Content     *string
	URL         string
	URLToImage  *string
	SourceName  string
	Author      *string
	PublishedAt string
}

type Admin struct {
	ID       string `db:"id"`
	Email    string `db:"email"`
	Name     string `db:"name"`
	Role     string `db:"role"`
	IsActive bool   `db:"is_active"`
}
