package importer

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/match"
	"github.com/vanline-group/recon-cli/internal/model"
	"github.com/vanline-group/recon-cli/internal/normalize"
)

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: open %s", path)
	}
	return f, nil
}

// ensureCustomers makes sure every customer name referenced by a batch of
// jobs resolves to a customer entity, creating one on first unmatched
// reference. The candidate snapshot is loaded once per batch and extended
// in memory as entities are created, so two references to the same new name
// within a batch produce a single entity. First-seen wins: later variants of
// a name match the entity the first occurrence created.
func (im *Importer) ensureCustomers(ctx context.Context, jobs []model.Job) (int64, error) {
	return ensureEntities(ctx, im, model.EntityCustomer, jobs, func(j model.Job) model.Entity {
		return model.Entity{
			Name:            j.CustomerName,
			Email:           j.CustomerEmail,
			Phone:           j.CustomerPhone,
			OriginCity:      j.OriginCity,
			DestinationCity: j.DestinationCity,
		}
	})
}

// ensureSalesPersons is the salesperson analog for performance rows; without
// it the performance linkage pass would scan an empty candidate snapshot.
func (im *Importer) ensureSalesPersons(ctx context.Context, rows []model.PerformanceRow) (int64, error) {
	return ensureEntities(ctx, im, model.EntitySalesPerson, rows, func(p model.PerformanceRow) model.Entity {
		return model.Entity{Name: p.Name}
	})
}

func ensureEntities[R any](ctx context.Context, im *Importer, kind model.EntityKind, records []R, toEntity func(R) model.Entity) (int64, error) {
	candidates, err := im.st.ListCandidates(ctx, kind)
	if err != nil {
		return 0, err
	}

	log := zap.L().With(zap.String("component", "importer"))
	var created int64
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		e := toEntity(rec)
		if e.Name == "" {
			continue
		}
		key := normalize.Name(e.Name)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if res, ok := match.FindBestMatch(e.Name, candidates, im.threshold); ok {
			log.Debug("reference matched existing entity",
				zap.String("kind", string(kind)),
				zap.String("name", e.Name),
				zap.String("entity_id", res.CandidateID),
				zap.Float64("score", res.Score))
			continue
		}

		e.ID = uuid.NewString()
		e.Kind = kind
		stored, err := im.st.CreateEntity(ctx, e)
		if err != nil {
			return created, err
		}
		created++
		candidates = append(candidates, model.Candidate{ID: stored.ID, Name: stored.Name})
		log.Info("created entity",
			zap.String("kind", string(kind)),
			zap.String("entity_id", stored.ID),
			zap.String("name", stored.Name))
	}
	return created, nil
}
