package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"strings"
	"time"

	"newsdesk/internal/domain"
	"newsdesk/internal/identity"
)

const (
	defaultLogsPage  = 1
	defaultLogsLimit = 20
	maxLogsLimit     = 100
)

// SyncSettings are the defaults and limits applied to every sync request.
type SyncSettings struct {
	Cooldown        time.Duration
	DefaultCountry  string
	DefaultPageSize int
	MaxPageSize     int
}

// SyncService pulls headlines from the provider into the article store. At
// most one run is in flight, and a new run is refused until the cooldown since
// the previous completion has elapsed.
type SyncService struct {
	source    Source
	articles  ArticleStore
	syncLogs  SyncLogStore
	admins    AdminStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	settings  SyncSettings

	admission *admission
	now       func() time.Time
}

func NewSyncService(
	source Source,
	articles ArticleStore,
	syncLogs SyncLogStore,
	admins AdminStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	settings SyncSettings,
) *SyncService {
	return &SyncService{
		source:    source,
		articles:  articles,
		syncLogs:  syncLogs,
		admins:    admins,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("source", source.ID()),
		settings:  settings,
		admission: newAdmission(settings.Cooldown),
		now:       time.Now,
	}
}

type syncPlan struct {
	categories []domain.Category
	country    string
	pageSize   int
}

type itemOutcome int

const (
	outcomeSkipped itemOutcome = iota
	outcomeCreated
	outcomeUpdated
)

// syncRun accumulates the outcome of one accepted run.
type syncRun struct {
	startedAt time.Time
	created   int
	updated   int
	skipped   int
	status    domain.SyncStatus
	failures  []string
}

func (r *syncRun) record(outcome itemOutcome) {
	switch outcome {
	case outcomeCreated:
		r.created++
	case outcomeUpdated:
		r.updated++
	default:
		r.skipped++
	}
}

func (r *syncRun) categoryFailed(category domain.Category, err error) {
	if r.status != domain.SyncStatusFailed {
		r.status = domain.SyncStatusPartial
	}
	message := err.Error()
	var fetchErr *domain.ProviderFetchError
	if errors.As(err, &fetchErr) {
		message = fetchErr.Message
	}
	r.failures = append(r.failures, fmt.Sprintf("%s: %s", category, message))
}

func (r *syncRun) fail(reason string) {
	r.status = domain.SyncStatusFailed
	r.failures = append(r.failures, reason)
}

func (r *syncRun) errorMessage() *string {
	if len(r.failures) == 0 {
		return nil
	}
	msg := strings.Join(r.failures, "; ")
	return &msg
}

// RunSync performs one sync run on behalf of actorID, which may be empty for
// unattended runs. Admission errors are *domain.CooldownError or
// domain.ErrSyncAlreadyRunning. Once admitted, a run always produces exactly one
// sync log entry, and the caller's cancellation no longer applies.
func (s *SyncService) RunSync(ctx context.Context, req domain.SyncRequest, actorID string) (summary *domain.SyncSummary, err error) {
	plan, err := s.plan(req)
	if err != nil {
		return nil, err
	}

	if err := s.admission.acquire(s.now()); err != nil {
		s.logger.Info("sync rejected", "reason", err, "actor", actorID)
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	run := &syncRun{
		startedAt: s.now(),
		status:    domain.SyncStatusSuccess,
	}

	var actor *domain.Actor
	defer func() {
		if r := recover(); r != nil {
			run.fail(fmt.Sprint(r))
			s.logger.Error("sync aborted", "panic", r, "stack", string(debug.Stack()))
		}
		summary, err = s.finish(ctx, run, actor)
	}()

	s.logger.Info("starting sync",
		"source_name", s.source.Name(),
		"categories", plan.categories,
		"country", plan.country,
		"page_size", plan.pageSize,
		"actor", actorID,
	)

	actor = s.resolveActor(ctx, actorID)
	s.execute(ctx, plan, run)

	return nil, nil
}

func (s *SyncService) execute(ctx context.Context, plan syncPlan, run *syncRun) {
	for _, category := range plan.categories {
		raws, err := s.source.FetchPage(ctx, category, plan.country, plan.pageSize)
		if err != nil {
			s.logger.Warn("category fetch failed", "category", category, "error", err)
			run.categoryFailed(category, err)
			continue
		}

		s.logger.Debug("fetched category", "category", category, "count", len(raws))

		for i := range raws {
			run.record(s.syncItem(ctx, category, &raws[i]))
		}
	}
}

// syncItem never fails the run; anything that goes wrong counts as skipped.
func (s *SyncService) syncItem(ctx context.Context, category domain.Category, raw *domain.RawArticle) itemOutcome {
	article, err := buildArticle(raw, category)
	if err != nil {
		s.logger.Debug("skipping malformed article", "category", category, "error", err)
		return outcomeSkipped
	}

	saved, created, err := s.upsert(ctx, article)
	if errors.Is(err, domain.ErrDuplicateIdentity) {
		// A concurrent writer inserted the key first; a fresh attempt finds it.
		s.logger.Debug("identity race, retrying", "api_id", article.APIID)
		saved, created, err = s.upsert(ctx, article)
	}
	if err != nil {
		s.logger.Warn("skipping article", "api_id", article.APIID, "error", err)
		return outcomeSkipped
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, saved, created); err != nil {
			s.logger.Warn("publish article change", "api_id", saved.APIID, "error", err)
		}
	}

	if created {
		return outcomeCreated
	}
	return outcomeUpdated
}

func (s *SyncService) upsert(ctx context.Context, article *domain.Article) (*domain.Article, bool, error) {
	var saved *domain.Article
	var created bool

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		saved, created, err = s.articles.UpsertByIdentity(txCtx, article)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return saved, created, nil
}

func (s *SyncService) finish(ctx context.Context, run *syncRun, actor *domain.Actor) (*domain.SyncSummary, error) {
	completedAt := s.now()
	// Released only after the log is written so Wait covers the whole run.
	defer s.admission.release(completedAt)

	durationMs := completedAt.Sub(run.startedAt).Milliseconds()
	entry := &domain.SyncLog{
		CreatedCount: run.created,
		UpdatedCount: run.updated,
		SkippedCount: run.skipped,
		Status:       run.status,
		ErrorMessage: run.errorMessage(),
		StartedAt:    run.startedAt,
		CompletedAt:  &completedAt,
		DurationMs:   &durationMs,
	}
	if actor != nil {
		entry.TriggeredBy = &actor.ID
	}

	summary := &domain.SyncSummary{
		CreatedCount: run.created,
		UpdatedCount: run.updated,
		SkippedCount: run.skipped,
		Status:       run.status,
		StartedAt:    run.startedAt,
		LastSyncAt:   completedAt,
		DurationMs:   durationMs,
		TriggeredBy:  actor,
	}

	var errs []error
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append sync log", "error", err)
		errs = append(errs, fmt.Errorf("append sync log: %w", err))
	}
	if run.status == domain.SyncStatusFailed {
		errs = append(errs, fmt.Errorf("%w: %s", domain.ErrSyncFailed, *entry.ErrorMessage))
	}

	s.logger.Info("sync completed",
		"status", run.status,
		"created", run.created,
		"updated", run.updated,
		"skipped", run.skipped,
		"duration", completedAt.Sub(run.startedAt),
	)

	return summary, errors.Join(errs...)
}

// resolveActor returns nil for unattended runs and for ids that do not name an
// admin, so the persisted reference and the reported name always agree.
func (s *SyncService) resolveActor(ctx context.Context, actorID string) *domain.Actor {
	if actorID == "" {
		return nil
	}

	admin, err := s.admins.GetByID(ctx, actorID)
	if err != nil {
		s.logger.Warn("could not resolve sync actor", "actor", actorID, "error", err)
		return nil
	}
	return &domain.Actor{ID: admin.ID, Name: admin.Name}
}

func (s *SyncService) plan(req domain.SyncRequest) (syncPlan, error) {
	plan := syncPlan{
		country:  strings.ToLower(strings.TrimSpace(req.Country)),
		pageSize: req.PageSize,
	}

	if plan.country == "" {
		plan.country = s.settings.DefaultCountry
	}
	if plan.pageSize == 0 {
		plan.pageSize = s.settings.DefaultPageSize
	}
	if plan.pageSize < 1 || plan.pageSize > s.settings.MaxPageSize {
		return syncPlan{}, domain.NewValidationError("pageSize must be between 1 and %d", s.settings.MaxPageSize)
	}

	if len(req.Categories) == 0 {
		plan.categories = domain.Categories()
		return plan, nil
	}

	seen := make(map[domain.Category]bool, len(req.Categories))
	for _, name := range req.Categories {
		category := domain.Category(strings.ToLower(strings.TrimSpace(name)))
		if !category.Valid() {
			return syncPlan{}, domain.NewValidationError("unknown category %q", name)
		}
		if seen[category] {
			continue
		}
		seen[category] = true
		plan.categories = append(plan.categories, category)
	}

	return plan, nil
}

// Wait blocks until no run is in flight or ctx is done.
func (s *SyncService) Wait(ctx context.Context) error {
	select {
	case <-s.admission.done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetStatus is a read-only snapshot of admission state and the latest run.
func (s *SyncService) GetStatus(ctx context.Context) (*domain.SyncStatusReport, error) {
	snap := s.admission.snapshot(s.now())

	latest, err := s.syncLogs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest sync log: %w", err)
	}

	total, err := s.articles.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}

	report := &domain.SyncStatusReport{
		TotalArticles: total,
		IsRunning:     snap.running,
		CanSyncNow:    !snap.running && snap.remaining == 0,
	}

	if snap.remaining > 0 {
		next := snap.lastCompletedAt.Add(s.settings.Cooldown)
		report.NextAvailableSync = &next
		report.CooldownRemainingSeconds = int(math.Ceil(snap.remaining.Seconds()))
	}

	if latest != nil {
		startedAt := latest.StartedAt
		report.LastSyncAt = &startedAt

		if latest.TriggererName != nil {
			by := &domain.TriggeredBy{Name: *latest.TriggererName}
			if latest.TriggererEmail != nil {
				by.Email = *latest.TriggererEmail
			}
			report.LastTriggeredBy = by
		}
	}

	return report, nil
}

// GetLogs pages through run history, newest first. Zero page or limit use defaults.
func (s *SyncService) GetLogs(ctx context.Context, page, limit int, status string) (*domain.SyncLogPage, error) {
	if page == 0 {
		page = defaultLogsPage
	}
	if limit == 0 {
		limit = defaultLogsLimit
	}
	if page < 1 {
		return nil, domain.NewValidationError("page must be positive")
	}
	if limit < 1 || limit > maxLogsLimit {
		return nil, domain.NewValidationError("limit must be between 1 and %d", maxLogsLimit)
	}

	filter := domain.SyncLogFilter{
		Status: domain.SyncStatus(status),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if status != "" && !filter.Status.Valid() {
		return nil, domain.NewValidationError("unknown status %q", status)
	}

	logs, total, err := s.syncLogs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}

	return &domain.SyncLogPage{
		Data: logs,
		Meta: domain.PageMeta{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

func buildArticle(raw *domain.RawArticle, category domain.Category) (*domain.Article, error) {
	apiID, err := identity.Derive(raw.SourceName, raw.Title)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.URL) == "" {
		return nil, fmt.Errorf("%w: missing url", domain.ErrItemSyncFailed)
	}

	publishedAt, err := time.Parse(time.RFC3339, raw.PublishedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: parse publishedAt %q", domain.ErrItemSyncFailed, raw.PublishedAt)
	}

	article := &domain.Article{
		APIID:       apiID,
		Title:       raw.Title,
		Description: raw.Description,
		Content:     raw.Content,
		URL:         raw.URL,
		ImageURL:    raw.URLToImage,
		Author:      raw.Author,
		Category:    category,
		PublishedAt: publishedAt,
	}
	if raw.SourceName != "" {
		source := raw.SourceName
		article.Source = &source
	}

	return article, nil
}
