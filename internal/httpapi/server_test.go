package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"newsdesk/internal/domain"
	"newsdesk/internal/service"
	"newsdesk/testdata/utils"
)

const adminID = "550e8400-e29b-41d4-a716-446655440000"

type fakeSync struct {
	runSync   func(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error)
	getStatus func(ctx context.Context) (*domain.SyncStatusReport, error)
	getLogs   func(ctx context.Context, page, limit int, status string) (*domain.SyncLogPage, error)
}

func (f *fakeSync) RunSync(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error) {
	return f.runSync(ctx, req, actorID)
}

func (f *fakeSync) GetStatus(ctx context.Context) (*domain.SyncStatusReport, error) {
	return f.getStatus(ctx)
}

func (f *fakeSync) GetLogs(ctx context.Context, page, limit int, status string) (*domain.SyncLogPage, error) {
	return f.getLogs(ctx, page, limit, status)
}

type fakeArticles struct {
	get    func(ctx context.Context, id string) (*domain.Article, error)
	create func(ctx context.Context, input service.ArticleInput, actorID string) (*domain.Article, error)
	update func(ctx context.Context, id string, fields domain.ArticleFields, actorID string) (*domain.Article, error)
	list   func(ctx context.Context, query service.ArticleQuery) (*domain.ArticlePage, error)
	delete func(ctx context.Context, id string, actorID string) error
}

func (f *fakeArticles) Get(ctx context.Context, id string) (*domain.Article, error) {
	return f.get(ctx, id)
}

func (f *fakeArticles) Create(ctx context.Context, input service.ArticleInput, actorID string) (*domain.Article, error) {
	return f.create(ctx, input, actorID)
}

func (f *fakeArticles) Update(ctx context.Context, id string, fields domain.ArticleFields, actorID string) (*domain.Article, error) {
	return f.update(ctx, id, fields, actorID)
}

func (f *fakeArticles) List(ctx context.Context, query service.ArticleQuery) (*domain.ArticlePage, error) {
	return f.list(ctx, query)
}

func (f *fakeArticles) Delete(ctx context.Context, id string, actorID string) error {
	return f.delete(ctx, id, actorID)
}

type fakePinger struct {
	err error
}

func (f fakePinger) PingContext(ctx context.Context) error {
	return f.err
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    json.RawMessage `json:"meta"`
	Error   *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type ServerTestSuite struct {
	suite.Suite
	sync     *fakeSync
	articles *fakeArticles
	pinger   *fakePinger
	server   *Server
}

func (s *ServerTestSuite) SetupTest() {
	s.sync = &fakeSync{}
	s.articles = &fakeArticles{}
	s.pinger = &fakePinger{}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.server = New(s.sync, s.articles, s.pinger, logger, time.Minute)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) do(method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, response) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rec, req)

	var resp response
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func (s *ServerTestSuite) TestHealth() {
	rec, resp := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.True(resp.Success)

	s.pinger.err = errors.New("connection refused")
	rec, resp = s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.False(resp.Success)
	s.Equal(codeUnavailable, resp.Error.Code)
}

func (s *ServerTestSuite) TestTriggerSync_Success() {
	s.sync.runSync = func(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error) {
		s.Equal([]string{"technology"}, req.Categories)
		s.Equal(10, req.PageSize)
		s.Equal(adminID, actorID)
		return &domain.SyncSummary{
			CreatedCount: 3,
			Status:       domain.SyncStatusSuccess,
			TriggeredBy:  &domain.Actor{ID: adminID, Name: "Super Admin"},
		}, nil
	}

	rec, resp := s.do(http.MethodPost, "/api/v1/sync", `{"categories":["technology"],"pageSize":10}`,
		map[string]string{ActorHeader: adminID})

	s.Equal(http.StatusOK, rec.Code)
	s.True(resp.Success)

	var summary map[string]any
	s.Require().NoError(json.Unmarshal(resp.Data, &summary))
	s.Equal(float64(3), summary["syncedCount"])
	s.Equal("success", summary["status"])
	s.Equal("Super Admin", summary["triggeredBy"].(map[string]any)["name"])
}

func (s *ServerTestSuite) TestTriggerSync_EmptyBody() {
	s.sync.runSync = func(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error) {
		s.Empty(req.Categories)
		s.Empty(actorID)
		return &domain.SyncSummary{Status: domain.SyncStatusPartial}, nil
	}

	rec, resp := s.do(http.MethodPost, "/api/v1/sync", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("sync completed with category errors", resp.Message)
}

func (s *ServerTestSuite) TestTriggerSync_Cooldown() {
	lastCompleted := time.Date(2026, 1, 8, 10, 30, 0, 0, time.UTC)
	s.sync.runSync = func(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error) {
		return nil, &domain.CooldownError{Remaining: 3*time.Minute + 20*time.Second, LastCompletedAt: lastCompleted}
	}

	rec, resp := s.do(http.MethodPost, "/api/v1/sync", "", nil)

	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.False(resp.Success)
	s.Equal(codeCooldown, resp.Error.Code)
	s.Equal(float64(200), resp.Error.Details["remainingSeconds"])
	s.Equal("2026-01-08T10:30:00Z", resp.Error.Details["lastSyncAt"])
	s.Contains(resp.Message, "4 minutes")
}

func (s *ServerTestSuite) TestTriggerSync_AlreadyRunning() {
	s.sync.runSync = func(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error) {
		return nil, domain.ErrSyncAlreadyRunning
	}

	rec, resp := s.do(http.MethodPost, "/api/v1/sync", "", nil)

	s.Equal(http.StatusConflict, rec.Code)
	s.Equal(codeAlreadyRunning, resp.Error.Code)
}

func (s *ServerTestSuite) TestTriggerSync_InvalidRequest() {
	s.sync.runSync = func(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error) {
		return nil, domain.NewValidationError("unknown category %q", "politics")
	}

	rec, resp := s.do(http.MethodPost, "/api/v1/sync", `{"categories":["politics"]}`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(codeInvalidRequest, resp.Error.Code)

	rec, resp = s.do(http.MethodPost, "/api/v1/sync", `{"pageSize":"ten"}`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(codeInvalidRequest, resp.Error.Code)

	rec, resp = s.do(http.MethodPost, "/api/v1/sync", "", map[string]string{ActorHeader: "admin"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(codeInvalidRequest, resp.Error.Code)
}

func (s *ServerTestSuite) TestTriggerSync_Failed() {
	s.sync.runSync = func(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error) {
		return &domain.SyncSummary{Status: domain.SyncStatusFailed, CreatedCount: 1},
			fmt.Errorf("%w: boom", domain.ErrSyncFailed)
	}

	rec, resp := s.do(http.MethodPost, "/api/v1/sync", "", nil)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.False(resp.Success)
	s.Equal(codeSyncFailed, resp.Error.Code)
	s.Contains(string(resp.Data), `"status":"failed"`)
}

func (s *ServerTestSuite) TestSyncStatus() {
	s.sync.getStatus = func(ctx context.Context) (*domain.SyncStatusReport, error) {
		return &domain.SyncStatusReport{
			TotalArticles:            1250,
			CanSyncNow:               false,
			CooldownRemainingSeconds: 180,
			LastTriggeredBy:          &domain.TriggeredBy{Name: "Super Admin", Email: "admin@newsmanagement.com"},
		}, nil
	}

	rec, resp := s.do(http.MethodGet, "/api/v1/sync/status", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	var status map[string]any
	s.Require().NoError(json.Unmarshal(resp.Data, &status))
	s.Equal(float64(1250), status["totalArticles"])
	s.Equal(float64(180), status["cooldownRemaining"])
	s.Equal(false, status["canSyncNow"])
	s.Nil(status["lastSyncAt"])
}

func (s *ServerTestSuite) TestSyncStatus_Error() {
	s.sync.getStatus = func(ctx context.Context) (*domain.SyncStatusReport, error) {
		return nil, errors.New("db down")
	}

	rec, resp := s.do(http.MethodGet, "/api/v1/sync/status", "", nil)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(codeInternal, resp.Error.Code)
	s.NotContains(resp.Message, "db down")
}

func (s *ServerTestSuite) TestSyncLogs() {
	s.sync.getLogs = func(ctx context.Context, page, limit int, status string) (*domain.SyncLogPage, error) {
		s.Equal(2, page)
		s.Equal(10, limit)
		s.Equal("partial", status)
		return &domain.SyncLogPage{
			Data: []domain.SyncLog{{ID: "log-1", Status: domain.SyncStatusPartial}},
			Meta: domain.PageMeta{Total: 11, Page: 2, Limit: 10, TotalPages: 2},
		}, nil
	}

	rec, resp := s.do(http.MethodGet, "/api/v1/sync/logs?page=2&limit=10&status=partial", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(string(resp.Data), `"id":"log-1"`)
	s.JSONEq(`{"total":11,"page":2,"limit":10,"totalPages":2}`, string(resp.Meta))
}

func (s *ServerTestSuite) TestSyncLogs_BadQuery() {
	rec, resp := s.do(http.MethodGet, "/api/v1/sync/logs?page=two", "", nil)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(codeInvalidRequest, resp.Error.Code)
}

func (s *ServerTestSuite) TestGetArticle() {
	articleID := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	s.articles.get = func(ctx context.Context, id string) (*domain.Article, error) {
		if id == articleID {
			return &domain.Article{ID: id, Title: "Storm warning"}, nil
		}
		return nil, domain.ErrNotFound
	}

	rec, resp := s.do(http.MethodGet, "/api/v1/articles/"+articleID, "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(string(resp.Data), "Storm warning")

	rec, resp = s.do(http.MethodGet, "/api/v1/articles/"+adminID, "", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(codeNotFound, resp.Error.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/articles/not-a-uuid", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestCreateArticle() {
	s.articles.create = func(ctx context.Context, input service.ArticleInput, actorID string) (*domain.Article, error) {
		s.Equal("Editorial", input.Title)
		s.Equal(domain.CategoryBusiness, input.Category)
		s.Equal(adminID, actorID)
		return &domain.Article{ID: "a", APIID: "manual_1767873600000_deadbeef", Title: input.Title}, nil
	}

	rec, resp := s.do(http.MethodPost, "/api/v1/articles",
		`{"title":"Editorial","url":"https://example.com/e","category":"business"}`,
		map[string]string{ActorHeader: adminID})

	s.Equal(http.StatusCreated, rec.Code)
	s.True(resp.Success)
	s.Contains(string(resp.Data), "manual_1767873600000_deadbeef")
}

func (s *ServerTestSuite) TestCreateArticle_Invalid() {
	s.articles.create = func(ctx context.Context, input service.ArticleInput, actorID string) (*domain.Article, error) {
		return nil, fmt.Errorf("create article: %w", domain.NewValidationError("title is required"))
	}

	rec, resp := s.do(http.MethodPost, "/api/v1/articles", `{"url":"https://example.com/e","category":"business"}`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(resp.Message, "title is required")

	rec, _ = s.do(http.MethodPost, "/api/v1/articles", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestUpdateArticle() {
	articleID := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	s.articles.update = func(ctx context.Context, id string, fields domain.ArticleFields, actorID string) (*domain.Article, error) {
		s.Equal(articleID, id)
		s.Equal(utils.Ptr("Corrected"), fields.Title)
		s.Nil(fields.URL)
		s.Equal(adminID, actorID)
		return &domain.Article{ID: id, Title: *fields.Title}, nil
	}

	rec, resp := s.do(http.MethodPatch, "/api/v1/articles/"+articleID, `{"title":"Corrected"}`,
		map[string]string{ActorHeader: adminID})

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(string(resp.Data), "Corrected")

	rec, resp = s.do(http.MethodPatch, "/api/v1/articles/"+articleID, `{}`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("no fields to update", resp.Message)
}

func (s *ServerTestSuite) TestListArticles() {
	s.articles.list = func(ctx context.Context, query service.ArticleQuery) (*domain.ArticlePage, error) {
		s.Equal(service.ArticleQuery{
			Page:      2,
			Limit:     5,
			Search:    "rates",
			Category:  "business",
			Source:    "Reuters",
			Author:    "Jane",
			SortBy:    "publishedAt",
			SortOrder: "ASC",
			DateFrom:  "2026-01-01",
			DateTo:    "2026-01-07",
		}, query)
		return &domain.ArticlePage{
			Data: []domain.Article{{ID: "a", Title: "Rates held"}},
			Meta: domain.PageMeta{Total: 6, Page: 2, Limit: 5, TotalPages: 2},
		}, nil
	}

	rec, resp := s.do(http.MethodGet, "/api/v1/articles?page=2&limit=5&search=rates&category=business"+
		"&source=Reuters&author=Jane&sortBy=publishedAt&sortOrder=ASC&dateFrom=2026-01-01&dateTo=2026-01-07", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.True(resp.Success)
	s.Contains(string(resp.Data), "Rates held")
	s.JSONEq(`{"total":6,"page":2,"limit":5,"totalPages":2}`, string(resp.Meta))
}

func (s *ServerTestSuite) TestListArticles_BadQuery() {
	rec, resp := s.do(http.MethodGet, "/api/v1/articles?limit=ten", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(codeInvalidRequest, resp.Error.Code)

	s.articles.list = func(ctx context.Context, query service.ArticleQuery) (*domain.ArticlePage, error) {
		return nil, domain.NewValidationError("cannot sort by %q", query.SortBy)
	}
	rec, _ = s.do(http.MethodGet, "/api/v1/articles?sortBy=url", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestDeleteArticle() {
	articleID := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	s.articles.delete = func(ctx context.Context, id string, actorID string) error {
		s.Equal(articleID, id)
		s.Equal(adminID, actorID)
		return nil
	}

	rec, resp := s.do(http.MethodDelete, "/api/v1/articles/"+articleID, "", map[string]string{ActorHeader: adminID})

	s.Equal(http.StatusOK, rec.Code)
	s.True(resp.Success)
	s.Equal("article deleted", resp.Message)
}

func (s *ServerTestSuite) TestDeleteArticle_NotFound() {
	s.articles.delete = func(ctx context.Context, id string, actorID string) error {
		return fmt.Errorf("delete article: %w", domain.ErrNotFound)
	}

	rec, resp := s.do(http.MethodDelete, "/api/v1/articles/7c9e6679-7425-40de-944b-e07fc1f90ae7", "", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(codeNotFound, resp.Error.Code)

	rec, _ = s.do(http.MethodDelete, "/api/v1/articles/not-a-uuid", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestTriggerSync_NotBoundByRequestTimeout() {
	s.sync.runSync = func(ctx context.Context, req domain.SyncRequest, actorID string) (*domain.SyncSummary, error) {
		_, bounded := ctx.Deadline()
		s.False(bounded)
		return &domain.SyncSummary{Status: domain.SyncStatusSuccess}, nil
	}
	s.sync.getStatus = func(ctx context.Context) (*domain.SyncStatusReport, error) {
		_, bounded := ctx.Deadline()
		s.True(bounded)
		return &domain.SyncStatusReport{}, nil
	}

	rec, _ := s.do(http.MethodPost, "/api/v1/sync", "", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/sync/status", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}
