package store

import (
	"context"

	"github.com/vanline-group/recon-cli/internal/model"
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	CustomerID     string `json:"customer_id,omitempty"`
	OnlyUnlinked   bool   `json:"only_unlinked,omitempty"`
	OnlyDuplicates bool   `json:"only_duplicates,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

// Summary is the snapshot the status command reports.
type Summary struct {
	Jobs                int64                      `json:"jobs"`
	LinkedJobs          int64                      `json:"linked_jobs"`
	DuplicateJobs       int64                      `json:"duplicate_jobs"`
	SuspiciousJobs      int64                      `json:"suspicious_jobs"`
	BookedOpportunities int64                      `json:"booked_opportunities"`
	Leads               int64                      `json:"leads"`
	LinkedLeads         int64                      `json:"linked_leads"`
	PerformanceRows     int64                      `json:"performance_rows"`
	Entities            map[model.EntityKind]int64 `json:"entities"`
}

// Store defines the persistence interface for the reconciliation engine.
type Store interface {
	// Entities
	CreateEntity(ctx context.Context, e model.Entity) (*model.Entity, error)
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	ListEntities(ctx context.Context, kind model.EntityKind) ([]model.Entity, error)
	// ListCandidates returns the read-only (id, name) snapshot the matcher
	// scans, in stable created_at order so tie-breaks are deterministic.
	ListCandidates(ctx context.Context, kind model.EntityKind) ([]model.Candidate, error)

	// Records
	InsertJobs(ctx context.Context, jobs []model.Job) (int64, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	// ListJobCustomerIDs returns the distinct customer IDs that have linked
	// jobs, the partition keys for batch duplicate detection.
	ListJobCustomerIDs(ctx context.Context) ([]string, error)
	InsertBookedOpportunities(ctx context.Context, rows []model.BookedOpportunity) (int64, error)
	InsertLeads(ctx context.Context, rows []model.Lead) (int64, error)
	InsertPerformanceRows(ctx context.Context, rows []model.PerformanceRow) (int64, error)

	// Review
	ListSuspiciousJobs(ctx context.Context) ([]model.Job, error)

	// Reporting
	Summarize(ctx context.Context) (*Summary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
