package linkage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/db"
)

// JobLinkStats reports rows linked per strategy in a single resolver run.
type JobLinkStats struct {
	ViaBookedOpportunity int64 `json:"via_booked_opportunity"`
	ByEmail              int64 `json:"by_email"`
	ByPhone              int64 `json:"by_phone"`
	ByNameCity           int64 `json:"by_name_city"`
}

// Total returns the number of jobs linked across all strategies.
func (s JobLinkStats) Total() int64 {
	return s.ViaBookedOpportunity + s.ByEmail + s.ByPhone + s.ByNameCity
}

// Resolver populates missing customer links on job rows using a strict
// priority order of set-based strategies. All strategies in a run execute
// inside one transaction; on any failure the whole batch rolls back and the
// prior persisted state stays untouched.
type Resolver struct {
	pool db.Pool

	// dryRun executes every strategy and reports counts, then rolls the
	// transaction back instead of committing.
	dryRun bool
}

// NewResolver creates a Resolver writing through pool.
func NewResolver(pool db.Pool, dryRun bool) *Resolver {
	return &Resolver{pool: pool, dryRun: dryRun}
}

type strategy struct {
	name string
	sql  string
}

// jobStrategies returns the job-linkage strategies in priority order.
// Order matters only for attribution of counts: each statement is scoped to
// customer_id IS NULL, so a row claimed by an earlier strategy is invisible
// to every later one.
func jobStrategies() []strategy {
	return []strategy{
		{"via_booked_opportunity", ViaBookedOpportunitySQL()},
		{"by_email", ByEmailSQL()},
		{"by_phone", ByPhoneSQL()},
		{"by_name_city", ByNameCitySQL()},
	}
}

// LinkJobs runs the four job strategies and returns per-strategy counts.
func (r *Resolver) LinkJobs(ctx context.Context) (JobLinkStats, error) {
	log := zap.L().With(zap.String("component", "linkage_resolver"), zap.Bool("dry_run", r.dryRun))

	var counts [4]int64
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for i, st := range jobStrategies() {
			tag, err := tx.Exec(ctx, st.sql)
			if err != nil {
				return eris.Wrapf(err, "linkage: strategy %s", st.name)
			}
			counts[i] = tag.RowsAffected()
			log.Info("linkage strategy complete",
				zap.String("strategy", st.name), zap.Int64("linked", counts[i]))
		}
		return nil
	})
	if err != nil {
		return JobLinkStats{}, err
	}

	stats := JobLinkStats{
		ViaBookedOpportunity: counts[0],
		ByEmail:              counts[1],
		ByPhone:              counts[2],
		ByNameCity:           counts[3],
	}
	log.Info("job linkage complete",
		zap.Int64("via_booked_opportunity", stats.ViaBookedOpportunity),
		zap.Int64("by_email", stats.ByEmail),
		zap.Int64("by_phone", stats.ByPhone),
		zap.Int64("by_name_city", stats.ByNameCity),
		zap.Int64("total", stats.Total()))

	return stats, nil
}

// LinkQuotes links leads to booked opportunities by shared quote number and
// returns the number of leads linked.
func (r *Resolver) LinkQuotes(ctx context.Context) (int64, error) {
	log := zap.L().With(zap.String("component", "linkage_resolver"), zap.Bool("dry_run", r.dryRun))

	var linked int64
	err := r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, QuoteNumberSQL())
		if err != nil {
			return eris.Wrap(err, "linkage: link quote numbers")
		}
		linked = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info("quote linkage complete", zap.Int64("linked", linked))
	return linked, nil
}

// inTx runs fn inside a transaction. On error, or in dry-run mode, the
// transaction rolls back; counts computed inside fn remain valid either way
// because RowsAffected is observed before the rollback.
func (r *Resolver) inTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "linkage: begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if r.dryRun {
		if err := tx.Rollback(ctx); err != nil {
			return eris.Wrap(err, "linkage: rollback dry run")
		}
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "linkage: commit")
	}
	return nil
}
