package dedup

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/db"
	"github.com/vanline-group/recon-cli/internal/model"
)

// SaveFlags writes the batch's duplicate decisions back onto the job rows.
// The whole batch commits or rolls back as one unit: a storage failure
// mid-write must never leave a partially flagged batch visible, so the
// caller can retry wholesale.
func SaveFlags(ctx context.Context, pool db.Pool, res Result) error {
	if len(res.Flags) == 0 {
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "dedup: begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, f := range res.Flags {
		_, err = tx.Exec(ctx, `
			UPDATE jobs
			SET is_duplicate = $1,
			    duplicate_confidence = $2,
			    updated_at = NOW()
			WHERE id = $3
		`, f.IsDuplicate, f.Confidence, f.JobID)
		if err != nil {
			return eris.Wrapf(err, "dedup: update flags for job %s", f.JobID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "dedup: commit flags")
	}

	zap.L().Info("dedup: saved duplicate flags",
		zap.Int("records", len(res.Flags)),
		zap.Int("exact", res.LevelCounts[model.LevelExact]),
		zap.Int("fuzzy", res.LevelCounts[model.LevelFuzzy]),
		zap.Int("suspicious", res.LevelCounts[model.LevelSuspicious]),
	)
	return nil
}
