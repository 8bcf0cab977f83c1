package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/vanline-group/recon-cli/internal/db"
	"github.com/vanline-group/recon-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_entity": `INSERT INTO entities (id, kind, name, email, phone, origin_city, destination_city, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"get_entity": `SELECT id, kind, name, email, phone, origin_city, destination_city, created_at, updated_at
		FROM entities WHERE id = $1`,
	"list_candidates": `SELECT id, name FROM entities WHERE kind = $1 ORDER BY created_at, id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (the linkage resolver and dedup persistence).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind             TEXT NOT NULL,
	name             TEXT NOT NULL,
	email            TEXT,
	phone            TEXT,
	origin_city      TEXT,
	destination_city TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_number           TEXT,
	customer_id          TEXT REFERENCES entities(id),
	branch_id            TEXT REFERENCES entities(id),
	customer_name        TEXT,
	customer_email       TEXT,
	customer_phone       TEXT,
	job_type             TEXT,
	job_date             TIMESTAMPTZ,
	origin_address       TEXT,
	destination_address  TEXT,
	origin_city          TEXT,
	destination_city     TEXT,
	total_estimated_cost DOUBLE PRECISION,
	is_duplicate         BOOLEAN NOT NULL DEFAULT FALSE,
	duplicate_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS booked_opportunities (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	quote_number  TEXT,
	customer_id   TEXT REFERENCES entities(id),
	customer_name TEXT,
	email         TEXT,
	phone_number  TEXT,
	branch_id     TEXT REFERENCES entities(id),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	quote_number          TEXT,
	booked_opportunity_id TEXT REFERENCES booked_opportunities(id),
	customer_name         TEXT,
	email                 TEXT,
	phone                 TEXT,
	status                TEXT,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS performance_rows (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	sales_person_id TEXT REFERENCES entities(id),
	period          TEXT,
	revenue         DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_jobs_customer_id ON jobs(customer_id);
CREATE INDEX IF NOT EXISTS idx_jobs_unlinked ON jobs(id) WHERE customer_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_jobs_is_duplicate ON jobs(is_duplicate);
CREATE INDEX IF NOT EXISTS idx_jobs_job_date ON jobs(job_date);
CREATE INDEX IF NOT EXISTS idx_booked_opps_quote ON booked_opportunities(quote_number);
CREATE INDEX IF NOT EXISTS idx_leads_quote ON leads(quote_number);
CREATE INDEX IF NOT EXISTS idx_leads_unlinked ON leads(id) WHERE booked_opportunity_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_perf_unlinked ON performance_rows(id) WHERE sales_person_id IS NULL;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateEntity(ctx context.Context, e model.Entity) (*model.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO entities (id, kind, name, email, phone, origin_city, destination_city, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, string(e.Kind), e.Name, nullable(e.Email), nullable(e.Phone),
		nullable(e.OriginCity), nullable(e.DestinationCity), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert entity %s", e.Name)
	}
	return &e, nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, name, email, phone, origin_city, destination_city, created_at, updated_at
		 FROM entities WHERE id = $1`, id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get entity %s", id)
	}
	return e, nil
}

func (s *PostgresStore) ListEntities(ctx context.Context, kind model.EntityKind) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, name, email, phone, origin_city, destination_city, created_at, updated_at
		 FROM entities WHERE kind = $1 ORDER BY created_at, id`, string(kind))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list entities iterate")
}

func (s *PostgresStore) ListCandidates(ctx context.Context, kind model.EntityKind) ([]model.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name FROM entities WHERE kind = $1 ORDER BY created_at, id`, string(kind))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list candidates iterate")
}

// jobImportColumns are the columns a job import writes. Linkage and dedup
// columns are owned by their respective passes and never touched on import.
var jobImportColumns = []string{
	"id", "job_number", "customer_name", "customer_email", "customer_phone",
	"job_type", "job_date", "origin_address", "destination_address",
	"origin_city", "destination_city", "total_estimated_cost",
	"created_at", "updated_at",
}

func (s *PostgresStore) InsertJobs(ctx context.Context, jobs []model.Job) (int64, error) {
	rows := make([][]any, 0, len(jobs))
	now := time.Now().UTC()
	for _, j := range jobs {
		if j.ID == "" {
			j.ID = uuid.New().String()
		}
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		rows = append(rows, []any{
			j.ID, nullable(j.JobNumber), nullable(j.CustomerName), nullable(j.CustomerEmail),
			nullable(j.CustomerPhone), nullable(j.JobType), j.JobDate,
			nullable(j.OriginAddress), nullable(j.DestinationAddress),
			nullable(j.OriginCity), nullable(j.DestinationCity), j.TotalEstimatedCost,
			j.CreatedAt, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "jobs",
		Columns:      jobImportColumns,
		ConflictKeys: []string{"id"},
		UpdateCols: []string{
			"job_number", "customer_name", "customer_email", "customer_phone",
			"job_type", "job_date", "origin_address", "destination_address",
			"origin_city", "destination_city", "total_estimated_cost", "updated_at",
		},
	}, rows)
	return n, eris.Wrap(err, "postgres: insert jobs")
}

func (s *PostgresStore) InsertBookedOpportunities(ctx context.Context, bos []model.BookedOpportunity) (int64, error) {
	rows := make([][]any, 0, len(bos))
	now := time.Now().UTC()
	for _, bo := range bos {
		if bo.ID == "" {
			bo.ID = uuid.New().String()
		}
		if bo.CreatedAt.IsZero() {
			bo.CreatedAt = now
		}
		rows = append(rows, []any{
			bo.ID, nullable(bo.QuoteNumber), nullable(bo.CustomerID), nullable(bo.CustomerName),
			nullable(bo.Email), nullable(bo.PhoneNumber), nullable(bo.BranchID), bo.CreatedAt, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "booked_opportunities",
		Columns: []string{
			"id", "quote_number", "customer_id", "customer_name",
			"email", "phone_number", "branch_id", "created_at", "updated_at",
		},
		ConflictKeys: []string{"id"},
		UpdateCols: []string{
			"quote_number", "customer_name", "email", "phone_number", "updated_at",
		},
	}, rows)
	return n, eris.Wrap(err, "postgres: insert booked opportunities")
}

func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	rows := make([][]any, 0, len(leads))
	now := time.Now().UTC()
	for _, l := range leads {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		rows = append(rows, []any{
			l.ID, nullable(l.QuoteNumber), nullable(l.CustomerName), nullable(l.Email),
			nullable(l.Phone), nullable(l.Status), l.CreatedAt, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "leads",
		Columns: []string{
			"id", "quote_number", "customer_name", "email", "phone", "status",
			"created_at", "updated_at",
		},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"quote_number", "customer_name", "email", "phone", "status", "updated_at"},
	}, rows)
	return n, eris.Wrap(err, "postgres: insert leads")
}

func (s *PostgresStore) InsertPerformanceRows(ctx context.Context, perf []model.PerformanceRow) (int64, error) {
	rows := make([][]any, 0, len(perf))
	now := time.Now().UTC()
	for _, p := range perf {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		rows = append(rows, []any{
			p.ID, p.Name, nullable(p.Period), p.Revenue, p.CreatedAt, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "performance_rows",
		Columns:      []string{"id", "name", "period", "revenue", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"name", "period", "revenue", "updated_at"},
	}, rows)
	return n, eris.Wrap(err, "postgres: insert performance rows")
}

const jobColumns = `id, job_number, customer_id, branch_id, customer_name, customer_email, customer_phone,
	job_type, job_date, origin_address, destination_address, origin_city, destination_city,
	total_estimated_cost, is_duplicate, duplicate_confidence, created_at, updated_at`

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CustomerID != "" {
		query += fmt.Sprintf(` AND customer_id = $%d`, argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}
	if filter.OnlyUnlinked {
		query += ` AND customer_id IS NULL`
	}
	if filter.OnlyDuplicates {
		query += ` AND is_duplicate`
	}
	query += ` ORDER BY created_at, id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) ListJobCustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT customer_id FROM jobs WHERE customer_id IS NOT NULL ORDER BY customer_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list job customer ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan customer id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list job customer ids iterate")
}

// ListSuspiciousJobs returns jobs flagged only at the lowest-confidence
// level, the set surfaced for manual review.
func (s *PostgresStore) ListSuspiciousJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE is_duplicate AND duplicate_confidence <= $1
		 ORDER BY created_at, id`, model.LevelSuspicious.Confidence())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list suspicious jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan suspicious job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list suspicious jobs iterate")
}

func (s *PostgresStore) Summarize(ctx context.Context) (*Summary, error) {
	sum := &Summary{Entities: map[model.EntityKind]int64{}}

	err := s.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(customer_id),
	COUNT(*) FILTER (WHERE is_duplicate),
	COUNT(*) FILTER (WHERE is_duplicate AND duplicate_confidence <= $1)
FROM jobs`, model.LevelSuspicious.Confidence()).
		Scan(&sum.Jobs, &sum.LinkedJobs, &sum.DuplicateJobs, &sum.SuspiciousJobs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize jobs")
	}

	err = s.pool.QueryRow(ctx, `
SELECT
	(SELECT COUNT(*) FROM booked_opportunities),
	(SELECT COUNT(*) FROM leads),
	(SELECT COUNT(booked_opportunity_id) FROM leads),
	(SELECT COUNT(*) FROM performance_rows)`).
		Scan(&sum.BookedOpportunities, &sum.Leads, &sum.LinkedLeads, &sum.PerformanceRows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize records")
	}

	rows, err := s.pool.Query(ctx, `SELECT kind, COUNT(*) FROM entities GROUP BY kind`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: summarize entities")
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity count")
		}
		sum.Entities[model.EntityKind(kind)] = n
	}
	return sum, eris.Wrap(rows.Err(), "postgres: summarize entities iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanEntity(row scannable) (*model.Entity, error) {
	var e model.Entity
	var kind string
	var email, phone, originCity, destCity *string
	if err := row.Scan(&e.ID, &kind, &e.Name, &email, &phone, &originCity, &destCity,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Kind = model.EntityKind(kind)
	e.Email = deref(email)
	e.Phone = deref(phone)
	e.OriginCity = deref(originCity)
	e.DestinationCity = deref(destCity)
	return &e, nil
}

func scanJob(row scannable) (*model.Job, error) {
	var j model.Job
	var jobNumber, customerID, branchID, customerName, customerEmail, customerPhone *string
	var jobType, originAddr, destAddr, originCity, destCity *string
	if err := row.Scan(&j.ID, &jobNumber, &customerID, &branchID, &customerName,
		&customerEmail, &customerPhone, &jobType, &j.JobDate, &originAddr, &destAddr,
		&originCity, &destCity, &j.TotalEstimatedCost, &j.IsDuplicate,
		&j.DuplicateConfidence, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.JobNumber = deref(jobNumber)
	j.CustomerID = deref(customerID)
	j.BranchID = deref(branchID)
	j.CustomerName = deref(customerName)
	j.CustomerEmail = deref(customerEmail)
	j.CustomerPhone = deref(customerPhone)
	j.JobType = deref(jobType)
	j.OriginAddress = deref(originAddr)
	j.DestinationAddress = deref(destAddr)
	j.OriginCity = deref(originCity)
	j.DestinationCity = deref(destCity)
	return &j, nil
}

// nullable maps empty strings to NULL so the linkage strategies' emptiness
// checks see one representation of "absent".
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
