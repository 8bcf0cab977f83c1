package model

import "time"

// Job is a transactional record imported from CRM exports. Contact fields
// are denormalized; CustomerID is filled in by the linkage resolver and,
// once set, is never overwritten except by an explicit merge.
type Job struct {
	ID                  string     `json:"id"`
	JobNumber           string     `json:"job_number,omitempty"`
	CustomerID          string     `json:"customer_id,omitempty"`
	BranchID            string     `json:"branch_id,omitempty"`
	CustomerName        string     `json:"customer_name,omitempty"`
	CustomerEmail       string     `json:"customer_email,omitempty"`
	CustomerPhone       string     `json:"customer_phone,omitempty"`
	JobType             string     `json:"job_type,omitempty"`
	JobDate             *time.Time `json:"job_date,omitempty"`
	OriginAddress       string     `json:"origin_address,omitempty"`
	DestinationAddress  string     `json:"destination_address,omitempty"`
	OriginCity          string     `json:"origin_city,omitempty"`
	DestinationCity     string     `json:"destination_city,omitempty"`
	TotalEstimatedCost  *float64   `json:"total_estimated_cost,omitempty"`
	IsDuplicate         bool       `json:"is_duplicate"`
	DuplicateConfidence float64    `json:"duplicate_confidence,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// BookedOpportunity is a booking record resolved through an independent
// channel; the linkage resolver trusts its customer link above any direct
// contact-field match.
type BookedOpportunity struct {
	ID           string    `json:"id"`
	QuoteNumber  string    `json:"quote_number,omitempty"`
	CustomerID   string    `json:"customer_id,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	BranchID     string    `json:"branch_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Lead is an inbound lead row; linked to a booked opportunity by quote
// number when one exists.
type Lead struct {
	ID                  string    `json:"id"`
	QuoteNumber         string    `json:"quote_number,omitempty"`
	BookedOpportunityID string    `json:"booked_opportunity_id,omitempty"`
	CustomerName        string    `json:"customer_name,omitempty"`
	Email               string    `json:"email,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	Status              string    `json:"status,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// PerformanceRow is a sales-performance row keyed only by a free-text name
// until the resolver links it to a canonical salesperson.
type PerformanceRow struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SalesPersonID string    `json:"sales_person_id,omitempty"`
	Period        string    `json:"period,omitempty"`
	Revenue       float64   `json:"revenue,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
