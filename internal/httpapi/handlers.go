package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"newsdesk/internal/domain"
	"newsdesk/internal/service"
)

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req domain.SyncRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	summary, err := s.sync.RunSync(r.Context(), req, actor)
	if err != nil && summary != nil {
		// The run was admitted and finished, but failed or could not be logged.
		s.logger.Error("sync finished with error", "error", err, "status", summary.Status)
		writeJSON(w, http.StatusInternalServerError, envelope{
			Success: false,
			Data:    summary,
			Message: "sync failed",
			Error:   &apiError{Code: codeSyncFailed},
		})
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	message := "sync completed"
	if summary.Status == domain.SyncStatusPartial {
		message = "sync completed with category errors"
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: summary, Message: message})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.sync.GetStatus(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: status})
}

func (s *Server) handleSyncLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := intParam(query.Get("page"), "page")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	limit, err := intParam(query.Get("limit"), "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	logs, err := s.sync.GetLogs(r.Context(), page, limit, query.Get("status"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: logs.Data, Meta: logs.Meta})
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := intParam(query.Get("page"), "page")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	limit, err := intParam(query.Get("limit"), "limit")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	articles, err := s.articles.List(r.Context(), service.ArticleQuery{
		Page:      page,
		Limit:     limit,
		Search:    query.Get("search"),
		Category:  query.Get("category"),
		Source:    query.Get("source"),
		Author:    query.Get("author"),
		SortBy:    query.Get("sortBy"),
		SortOrder: query.Get("sortOrder"),
		DateFrom:  query.Get("dateFrom"),
		DateTo:    query.Get("dateTo"),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: articles.Data, Meta: articles.Meta})
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	article, err := s.articles.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: article})
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var input service.ArticleInput
	if err := decodeBody(r, &input, false); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	article, err := s.articles.Create(r.Context(), input, actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: article, Message: "article created"})
}

// articlePatch is the body of a partial update. Absent fields stay untouched.
type articlePatch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Content     *string          `json:"content"`
	URL         *string          `json:"url"`
	ImageURL    *string          `json:"imageUrl"`
	Source      *string          `json:"source"`
	Author      *string          `json:"author"`
	Category    *domain.Category `json:"category"`
	PublishedAt *time.Time       `json:"publishedAt"`
}

func (p articlePatch) fields() (domain.ArticleFields, error) {
	fields := domain.ArticleFields{
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		URL:         p.URL,
		ImageURL:    p.ImageURL,
		Source:      p.Source,
		Author:      p.Author,
		Category:    p.Category,
		PublishedAt: p.PublishedAt,
	}
	if fields == (domain.ArticleFields{}) {
		return fields, domain.NewValidationError("no fields to update")
	}
	return fields, nil
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	actor, err := actorID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var patch articlePatch
	if err := decodeBody(r, &patch, false); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	fields, err := patch.fields()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	article, err := s.articles.Update(r.Context(), id, fields, actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: article, Message: "article updated"})
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	actor, err := actorID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.articles.Delete(r.Context(), id, actor); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "article deleted"})
}

// decodeBody rejects unknown fields. An empty body is accepted only when optional.
func decodeBody(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidationError("invalid request body: %v", err)
	}
	return nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("%s must be an integer", name)
	}
	return v, nil
}

func articleID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", domain.NewValidationError("article id must be a uuid")
	}
	return id, nil
}
