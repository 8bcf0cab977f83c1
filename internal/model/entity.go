// Package model defines the domain types shared across the resolution engine.
package model

import "time"

// EntityKind identifies which canonical table an entity row lives in.
type EntityKind string

const (
	EntityCustomer    EntityKind = "customer"
	EntitySalesPerson EntityKind = "sales_person"
	EntityBranch      EntityKind = "branch"
	EntityLeadSource  EntityKind = "lead_source"
)

// Entity is a canonical real-world actor (customer, salesperson, branch,
// lead source). Created once during import or on first unmatched reference,
// mutated only to merge duplicates, never deleted while referenced.
type Entity struct {
	ID    string     `json:"id"`
	Kind  EntityKind `json:"kind"`
	Name  string     `json:"name"`
	Email string     `json:"email,omitempty"`
	Phone string     `json:"phone,omitempty"`
	// Origin/destination cities from the record that first created the
	// customer; the last-resort linkage strategy compares against them.
	OriginCity      string    `json:"origin_city,omitempty"`
	DestinationCity string    `json:"destination_city,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Candidate is the (id, name) projection of an entity used by the name
// matcher. Candidate lists are read-only snapshots: the matcher never
// mutates its source.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
