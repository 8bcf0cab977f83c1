package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// columnIndex maps canonical column names to positions in an export header.
// CRM exports disagree on header spelling, so each canonical name carries the
// aliases seen in the wild.
type columnIndex map[string]int

var columnAliases = map[string][]string{
	"id":                   {"id", "job id", "record id"},
	"job_number":           {"job_number", "job number", "job no", "job#"},
	"quote_number":         {"quote_number", "quote number", "quote no", "quote#"},
	"customer_name":        {"customer_name", "customer name", "customer", "name"},
	"customer_email":       {"customer_email", "customer email", "email", "email address"},
	"customer_phone":       {"customer_phone", "customer phone", "phone", "phone number", "phone_number"},
	"job_type":             {"job_type", "job type", "type", "service type"},
	"job_date":             {"job_date", "job date", "date", "move date"},
	"origin_address":       {"origin_address", "origin address", "origin", "from address"},
	"destination_address":  {"destination_address", "destination address", "destination", "to address"},
	"origin_city":          {"origin_city", "origin city", "from city"},
	"destination_city":     {"destination_city", "destination city", "to city"},
	"total_estimated_cost": {"total_estimated_cost", "total estimated cost", "estimated cost", "total cost", "cost"},
	"status":               {"status", "lead status"},
	"sales_person":         {"sales_person", "sales person", "salesperson", "rep"},
	"period":               {"period", "month"},
	"revenue":              {"revenue", "total revenue", "sales"},
	"created_at":           {"created_at", "created at", "created", "entry date"},
}

// indexHeader resolves an export's header row into a columnIndex. Unknown
// columns are ignored; a canonical name maps to its first matching alias.
func indexHeader(header []string) columnIndex {
	byAlias := make(map[string]string)
	for canonical, aliases := range columnAliases {
		for _, a := range aliases {
			byAlias[a] = canonical
		}
	}

	idx := make(columnIndex)
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		canonical, ok := byAlias[key]
		if !ok {
			continue
		}
		if _, seen := idx[canonical]; !seen {
			idx[canonical] = i
		}
	}
	return idx
}

// get returns the named field from row, or "" when the export lacks the
// column or the row is short.
func (c columnIndex) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// dateLayouts are tried in order when parsing export timestamps.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
}

// parseDate parses an export timestamp in UTC. Empty input yields nil: a
// record without a date is excluded from date-windowed comparisons, never an
// import error.
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &ts, nil
		}
	}
	return nil, eris.Errorf("importer: unparseable date %q", raw)
}

// parseCost parses a money field, tolerating "$1,000.00" formatting. Empty
// input yields nil.
func parseCost(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, eris.Errorf("importer: unparseable cost %q", raw)
	}
	return &v, nil
}
