package domain

import "time"

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
)

func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusPartial, SyncStatusFailed:
		return true
	}
	return false
}

// SyncRequest narrows a sync run. Zero values fall back to configured defaults.
type SyncRequest struct {
	Categories []string `json:"categories,omitempty"`
	Country    string   `json:"country,omitempty"`
	PageSize   int      `json:"pageSize,omitempty"`
}

// SyncLog is the persisted audit record of one accepted sync run.
type SyncLog struct {
	ID           string     `db:"id" json:"id"`
	CreatedCount int        `db:"synced_count" json:"syncedCount"`
	UpdatedCount int        `db:"updated_count" json:"updatedCount"`
	SkippedCount int        `db:"skipped_count" json:"skippedCount"`
	Status       SyncStatus `db:"status" json:"status"`
	ErrorMessage *string    `db:"error_message" json:"errorMessage,omitempty"`
	StartedAt    time.Time  `db:"started_at" json:"startedAt"`
	CompletedAt  *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	DurationMs   *int64     `db:"duration_ms" json:"durationMs,omitempty"`
	TriggeredBy  *string    `db:"triggered_by" json:"triggeredBy,omitempty"`

	// Populated from admins on reads.
	TriggererName  *string `db:"triggerer_name" json:"triggererName,omitempty"`
	TriggererEmail *string `db:"triggerer_email" json:"triggererEmail,omitempty"`
}

type SyncLogFilter struct {
	Status SyncStatus
	Limit  int
	Offset int
}

type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SyncSummary is returned to the caller of a completed run.
type SyncSummary struct {
	CreatedCount int        `json:"syncedCount"`
	UpdatedCount int        `json:"updatedCount"`
	SkippedCount int        `json:"skippedCount"`
	Status       SyncStatus `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	LastSyncAt   time.Time  `json:"lastSyncAt"`
	DurationMs   int64      `json:"duration"`
	TriggeredBy  *Actor     `json:"triggeredBy,omitempty"`
}

type TriggeredBy struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SyncStatusReport is a read-only snapshot of admission state and history.
type SyncStatusReport struct {
	LastSyncAt               *time.Time   `json:"lastSyncAt"`
	TotalArticles            int64        `json:"totalArticles"`
	IsRunning                bool         `json:"isRunning"`
	CanSyncNow               bool         `json:"canSyncNow"`
	NextAvailableSync        *time.Time   `json:"nextAvailableSync"`
	CooldownRemainingSeconds int          `json:"cooldownRemaining"`
	LastTriggeredBy          *TriggeredBy `json:"lastTriggeredBy"`
}

type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type SyncLogPage struct {
	Data []SyncLog `json:"data"`
	Meta PageMeta  `json:"meta"`
}
