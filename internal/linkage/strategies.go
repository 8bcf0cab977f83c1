package linkage

import "github.com/vanline-group/recon-cli/internal/normalize"

// The four job-linkage strategies run in strict priority order. Every
// statement is scoped to jobs whose customer_id is still NULL, so an earlier
// strategy's assignment is never revisited: the priority order and the
// idempotence of re-runs both fall out of the same WHERE clause.

// ViaBookedOpportunitySQL returns the SQL for strategy 1: adopt the customer
// link from a booked opportunity that shares the job's email, phone, or
// normalized name. Booked opportunities were resolved through an independent
// channel, so their link outranks any direct contact-field match.
func ViaBookedOpportunitySQL() string {
	return `
UPDATE jobs j
SET customer_id = bo.customer_id,
    updated_at = NOW()
FROM booked_opportunities bo
WHERE j.customer_id IS NULL
  AND bo.customer_id IS NOT NULL
  AND (
        (` + normalize.EmailSQL("j.customer_email") + ` != ''
         AND ` + normalize.EmailSQL("j.customer_email") + ` = ` + normalize.EmailSQL("bo.email") + `)
     OR (` + normalize.PhoneSQL("j.customer_phone") + ` != ''
         AND ` + normalize.PhoneSQL("j.customer_phone") + ` = ` + normalize.PhoneSQL("bo.phone_number") + `)
     OR (` + normalize.NameSQL("j.customer_name") + ` != ''
         AND ` + normalize.NameSQL("j.customer_name") + ` = ` + normalize.NameSQL("bo.customer_name") + `)
  )`
}

// ByEmailSQL returns the SQL for strategy 2: direct match against the
// customer table by normalized email.
func ByEmailSQL() string {
	return `
UPDATE jobs j
SET customer_id = c.id,
    updated_at = NOW()
FROM entities c
WHERE j.customer_id IS NULL
  AND c.kind = 'customer'
  AND ` + normalize.EmailSQL("j.customer_email") + ` != ''
  AND ` + normalize.EmailSQL("j.customer_email") + ` = ` + normalize.EmailSQL("c.email")
}

// ByPhoneSQL returns the SQL for strategy 3: direct match against the
// customer table by digits-only phone number.
func ByPhoneSQL() string {
	return `
UPDATE jobs j
SET customer_id = c.id,
    updated_at = NOW()
FROM entities c
WHERE j.customer_id IS NULL
  AND c.kind = 'customer'
  AND ` + normalize.PhoneSQL("j.customer_phone") + ` != ''
  AND ` + normalize.PhoneSQL("j.customer_phone") + ` = ` + normalize.PhoneSQL("c.phone")
}

// ByNameCitySQL returns the SQL for strategy 4: exact normalized name plus
// matching origin/destination city pair. Gated to rows where neither side
// has an email or phone on file; when a stronger signal exists, a name-only
// agreement is not trusted enough to link.
func ByNameCitySQL() string {
	return `
UPDATE jobs j
SET customer_id = c.id,
    updated_at = NOW()
FROM entities c
WHERE j.customer_id IS NULL
  AND c.kind = 'customer'
  AND ` + normalize.EmailSQL("COALESCE(j.customer_email, '')") + ` = ''
  AND ` + normalize.PhoneSQL("j.customer_phone") + ` = ''
  AND COALESCE(c.email, '') = ''
  AND ` + normalize.PhoneSQL("c.phone") + ` = ''
  AND ` + normalize.NameSQL("j.customer_name") + ` != ''
  AND ` + normalize.NameSQL("j.customer_name") + ` = ` + normalize.NameSQL("c.name") + `
  AND LOWER(TRIM(COALESCE(j.origin_city, ''))) = LOWER(TRIM(COALESCE(c.origin_city, '')))
  AND LOWER(TRIM(COALESCE(j.destination_city, ''))) = LOWER(TRIM(COALESCE(c.destination_city, '')))`
}

// QuoteNumberSQL returns the SQL linking leads to booked opportunities that
// share a quote number. Same NULL-only write policy as the job strategies.
func QuoteNumberSQL() string {
	return `
UPDATE leads l
SET booked_opportunity_id = bo.id,
    updated_at = NOW()
FROM booked_opportunities bo
WHERE l.booked_opportunity_id IS NULL
  AND TRIM(COALESCE(l.quote_number, '')) != ''
  AND TRIM(l.quote_number) = TRIM(bo.quote_number)`
}
