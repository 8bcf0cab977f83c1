package linkage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/match"
	"github.com/vanline-group/recon-cli/internal/model"
)

// PerfLinkStats reports the outcome of a performance-row linkage pass.
type PerfLinkStats struct {
	Linked    int64 `json:"linked"`
	Unmatched int64 `json:"unmatched"`
}

// LinkPerformanceRows links orphaned performance rows to salespeople by
// fuzzy name match. Free-text names on these rows come from hand-maintained
// spreadsheets, so an exact join misses honest misspellings; the matcher
// accepts anything at or above threshold and leaves the rest unlinked for a
// later pass with a fresher salesperson snapshot.
func (r *Resolver) LinkPerformanceRows(ctx context.Context, threshold float64) (PerfLinkStats, error) {
	log := zap.L().With(zap.String("component", "linkage_resolver"), zap.Bool("dry_run", r.dryRun))

	candidates, err := r.salesPersonCandidates(ctx)
	if err != nil {
		return PerfLinkStats{}, err
	}

	orphans, err := r.orphanedPerformanceRows(ctx)
	if err != nil {
		return PerfLinkStats{}, err
	}
	if len(orphans) == 0 {
		return PerfLinkStats{}, nil
	}

	var stats PerfLinkStats
	err = r.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, row := range orphans {
			res, ok := match.FindBestMatch(row.Name, candidates, threshold)
			if !ok {
				stats.Unmatched++
				continue
			}
			tag, err := tx.Exec(ctx, `
UPDATE performance_rows
SET sales_person_id = $1, updated_at = NOW()
WHERE id = $2 AND sales_person_id IS NULL`, res.CandidateID, row.ID)
			if err != nil {
				return eris.Wrapf(err, "linkage: link performance row %s", row.ID)
			}
			stats.Linked += tag.RowsAffected()
			log.Debug("performance row matched",
				zap.String("row_id", row.ID),
				zap.String("sales_person_id", res.CandidateID),
				zap.Float64("score", res.Score),
				zap.String("tier", string(res.Tier)))
		}
		return nil
	})
	if err != nil {
		return PerfLinkStats{}, err
	}

	log.Info("performance linkage complete",
		zap.Int64("linked", stats.Linked), zap.Int64("unmatched", stats.Unmatched))
	return stats, nil
}

// salesPersonCandidates loads the read-only candidate snapshot the matcher
// scans. Ordered by created_at so ties resolve toward the oldest record.
func (r *Resolver) salesPersonCandidates(ctx context.Context) ([]model.Candidate, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, name FROM entities
WHERE kind = 'sales_person'
ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "linkage: load salesperson candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var c model.Candidate
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, eris.Wrap(err, "linkage: scan salesperson candidate")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "linkage: iterate salesperson candidates")
	}
	return out, nil
}

// orphanedPerformanceRows returns performance rows with no salesperson link.
func (r *Resolver) orphanedPerformanceRows(ctx context.Context) ([]model.PerformanceRow, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, name FROM performance_rows
WHERE sales_person_id IS NULL
ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "linkage: load orphaned performance rows")
	}
	defer rows.Close()

	var out []model.PerformanceRow
	for rows.Next() {
		var p model.PerformanceRow
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, eris.Wrap(err, "linkage: scan performance row")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "linkage: iterate performance rows")
	}
	return out, nil
}
