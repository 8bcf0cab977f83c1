package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/vanline-group/recon-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// imports and review; the set-based linkage resolver needs the postgres
// driver and is not available against a SQLite store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id               TEXT PRIMARY KEY,
	kind             TEXT NOT NULL,
	name             TEXT NOT NULL,
	email            TEXT,
	phone            TEXT,
	origin_city      TEXT,
	destination_city TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY,
	job_number           TEXT,
	customer_id          TEXT REFERENCES entities(id),
	branch_id            TEXT REFERENCES entities(id),
	customer_name        TEXT,
	customer_email       TEXT,
	customer_phone       TEXT,
	job_type             TEXT,
	job_date             DATETIME,
	origin_address       TEXT,
	destination_address  TEXT,
	origin_city          TEXT,
	destination_city     TEXT,
	total_estimated_cost REAL,
	is_duplicate         INTEGER NOT NULL DEFAULT 0,
	duplicate_confidence REAL NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS booked_opportunities (
	id            TEXT PRIMARY KEY,
	quote_number  TEXT,
	customer_id   TEXT REFERENCES entities(id),
	customer_name TEXT,
	email         TEXT,
	phone_number  TEXT,
	branch_id     TEXT REFERENCES entities(id),
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY,
	quote_number          TEXT,
	booked_opportunity_id TEXT REFERENCES booked_opportunities(id),
	customer_name         TEXT,
	email                 TEXT,
	phone                 TEXT,
	status                TEXT,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS performance_rows (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	sales_person_id TEXT REFERENCES entities(id),
	period          TEXT,
	revenue         REAL NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_jobs_customer_id ON jobs(customer_id);
CREATE INDEX IF NOT EXISTS idx_jobs_is_duplicate ON jobs(is_duplicate);
CREATE INDEX IF NOT EXISTS idx_leads_quote ON leads(quote_number);
CREATE INDEX IF NOT EXISTS idx_perf_sales_person ON performance_rows(sales_person_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateEntity(ctx context.Context, e model.Entity) (*model.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (id, kind, name, email, phone, origin_city, destination_city, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Name, nullable(e.Email), nullable(e.Phone),
		nullable(e.OriginCity), nullable(e.DestinationCity), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert entity %s", e.Name)
	}
	return &e, nil
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, name, email, phone, origin_city, destination_city, created_at, updated_at
		 FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("entity not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get entity %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, name, email, phone, origin_city, destination_city, created_at, updated_at
		 FROM entities WHERE kind = ? ORDER BY created_at, id`, string(kind))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list entities iterate")
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, kind model.EntityKind) ([]model.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM entities WHERE kind = ? ORDER BY created_at, id`, string(kind))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list candidates iterate")
}

func (s *SQLiteStore) InsertJobs(ctx context.Context, jobs []model.Job) (int64, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert jobs begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, j := range jobs {
		if j.ID == "" {
			j.ID = uuid.New().String()
		}
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO jobs (id, job_number, customer_name, customer_email, customer_phone,
	job_type, job_date, origin_address, destination_address, origin_city,
	destination_city, total_estimated_cost, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	job_number = excluded.job_number,
	customer_name = excluded.customer_name,
	customer_email = excluded.customer_email,
	customer_phone = excluded.customer_phone,
	job_type = excluded.job_type,
	job_date = excluded.job_date,
	origin_address = excluded.origin_address,
	destination_address = excluded.destination_address,
	origin_city = excluded.origin_city,
	destination_city = excluded.destination_city,
	total_estimated_cost = excluded.total_estimated_cost,
	updated_at = excluded.updated_at`,
			j.ID, nullable(j.JobNumber), nullable(j.CustomerName), nullable(j.CustomerEmail),
			nullable(j.CustomerPhone), nullable(j.JobType), j.JobDate,
			nullable(j.OriginAddress), nullable(j.DestinationAddress),
			nullable(j.OriginCity), nullable(j.DestinationCity), j.TotalEstimatedCost,
			j.CreatedAt, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert job %s", j.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert jobs commit")
	}
	return n, nil
}

func (s *SQLiteStore) InsertBookedOpportunities(ctx context.Context, bos []model.BookedOpportunity) (int64, error) {
	if len(bos) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert booked opportunities begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, bo := range bos {
		if bo.ID == "" {
			bo.ID = uuid.New().String()
		}
		if bo.CreatedAt.IsZero() {
			bo.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO booked_opportunities (id, quote_number, customer_id, customer_name,
	email, phone_number, branch_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	quote_number = excluded.quote_number,
	customer_name = excluded.customer_name,
	email = excluded.email,
	phone_number = excluded.phone_number,
	updated_at = excluded.updated_at`,
			bo.ID, nullable(bo.QuoteNumber), nullable(bo.CustomerID), nullable(bo.CustomerName),
			nullable(bo.Email), nullable(bo.PhoneNumber), nullable(bo.BranchID), bo.CreatedAt, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert booked opportunity %s", bo.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert booked opportunities commit")
	}
	return n, nil
}

func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert leads begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, l := range leads {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO leads (id, quote_number, customer_name, email, phone, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	quote_number = excluded.quote_number,
	customer_name = excluded.customer_name,
	email = excluded.email,
	phone = excluded.phone,
	status = excluded.status,
	updated_at = excluded.updated_at`,
			l.ID, nullable(l.QuoteNumber), nullable(l.CustomerName), nullable(l.Email),
			nullable(l.Phone), nullable(l.Status), l.CreatedAt, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert lead %s", l.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert leads commit")
	}
	return n, nil
}

func (s *SQLiteStore) InsertPerformanceRows(ctx context.Context, perf []model.PerformanceRow) (int64, error) {
	if len(perf) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert performance rows begin")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var n int64
	for _, p := range perf {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO performance_rows (id, name, period, revenue, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	period = excluded.period,
	revenue = excluded.revenue,
	updated_at = excluded.updated_at`,
			p.ID, p.Name, nullable(p.Period), p.Revenue, p.CreatedAt, now,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert performance row %s", p.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert performance rows commit")
	}
	return n, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []any

	if filter.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	if filter.OnlyUnlinked {
		query += ` AND customer_id IS NULL`
	}
	if filter.OnlyDuplicates {
		query += ` AND is_duplicate`
	}
	query += ` ORDER BY created_at, id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) ListJobCustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT customer_id FROM jobs WHERE customer_id IS NOT NULL ORDER BY customer_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list job customer ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan customer id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list job customer ids iterate")
}

func (s *SQLiteStore) ListSuspiciousJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE is_duplicate AND duplicate_confidence <= ?
		 ORDER BY created_at, id`, model.LevelSuspicious.Confidence())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suspicious jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan suspicious job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list suspicious jobs iterate")
}

func (s *SQLiteStore) Summarize(ctx context.Context) (*Summary, error) {
	sum := &Summary{Entities: map[model.EntityKind]int64{}}

	err := s.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(customer_id),
	COALESCE(SUM(CASE WHEN is_duplicate THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN is_duplicate AND duplicate_confidence <= ? THEN 1 ELSE 0 END), 0)
FROM jobs`, model.LevelSuspicious.Confidence()).
		Scan(&sum.Jobs, &sum.LinkedJobs, &sum.DuplicateJobs, &sum.SuspiciousJobs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize jobs")
	}

	err = s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM booked_opportunities),
	(SELECT COUNT(*) FROM leads),
	(SELECT COUNT(booked_opportunity_id) FROM leads),
	(SELECT COUNT(*) FROM performance_rows)`).
		Scan(&sum.BookedOpportunities, &sum.Leads, &sum.LinkedLeads, &sum.PerformanceRows)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize records")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM entities GROUP BY kind`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize entities")
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity count")
		}
		sum.Entities[model.EntityKind(kind)] = n
	}
	return sum, eris.Wrap(rows.Err(), "sqlite: summarize entities iterate")
}
