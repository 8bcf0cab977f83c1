// Package importer loads CRM export files into the record store,
// canonicalizing contact fields on the way in and creating customer entities
// for names no existing entity matches.
package importer

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/fetcher"
	"github.com/vanline-group/recon-cli/internal/model"
	"github.com/vanline-group/recon-cli/internal/normalize"
	"github.com/vanline-group/recon-cli/internal/store"
)

// RecordKind names the export table a file feeds.
type RecordKind string

const (
	KindJobs                RecordKind = "jobs"
	KindBookedOpportunities RecordKind = "booked_opportunities"
	KindLeads               RecordKind = "leads"
	KindPerformance         RecordKind = "performance"
)

// Stats summarizes one import run.
type Stats struct {
	Rows            int64 `json:"rows"`
	Inserted        int64 `json:"inserted"`
	Skipped         int64 `json:"skipped"`
	EntitiesCreated int64 `json:"entities_created"`
}

// Importer maps export rows into model records and writes them through the
// store in batches.
type Importer struct {
	st        store.Store
	threshold float64
	batchSize int
}

// New creates an Importer. threshold is the name-match acceptance score used
// when deciding whether a customer reference matches an existing entity.
func New(st store.Store, threshold float64) *Importer {
	return &Importer{st: st, threshold: threshold, batchSize: 500}
}

// ImportFile imports an export file, dispatching on extension: .csv is
// streamed, .xlsx is read whole, .zip is extracted first. Archives may hold
// several exports of the same kind; every importable file inside counts
// toward one aggregate Stats.
func (im *Importer) ImportFile(ctx context.Context, path string, kind RecordKind, tmpDir string) (Stats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return im.importArchive(ctx, path, kind, tmpDir)
	case ".xlsx":
		header, rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SkipRows: 1})
		if err != nil {
			return Stats{}, err
		}
		return im.importRows(ctx, kind, header, sliceSource(rows))
	default:
		f, err := openFile(path)
		if err != nil {
			return Stats{}, err
		}
		defer f.Close() //nolint:errcheck
		return im.ImportCSV(ctx, f, kind)
	}
}

// importArchive extracts a ZIP export and imports every .csv and .xlsx it
// contains, skipping anything else the export tool packed alongside them.
func (im *Importer) importArchive(ctx context.Context, path string, kind RecordKind, tmpDir string) (Stats, error) {
	extracted, err := fetcher.ExtractZIP(path, tmpDir)
	if err != nil {
		return Stats{}, err
	}

	var total Stats
	var imported int
	for _, inner := range extracted {
		switch strings.ToLower(filepath.Ext(inner)) {
		case ".csv", ".xlsx":
		default:
			continue
		}
		stats, err := im.ImportFile(ctx, inner, kind, tmpDir)
		if err != nil {
			return total, eris.Wrapf(err, "importer: archive entry %s", filepath.Base(inner))
		}
		total.Rows += stats.Rows
		total.Inserted += stats.Inserted
		total.Skipped += stats.Skipped
		total.EntitiesCreated += stats.EntitiesCreated
		imported++
	}

	if imported == 0 {
		return Stats{}, eris.Errorf("importer: archive %s contains no importable files", filepath.Base(path))
	}

	return total, nil
}

// ImportCSV imports a headered CSV export from r.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader, kind RecordKind) (Stats, error) {
	// Cancel the stream on any early return so the producer can never stay
	// blocked sending into the row channel after a mid-import failure.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var header []string
	select {
	case header = <-headerCh:
	case err, ok := <-errCh:
		if ok && err != nil {
			return Stats{}, err
		}
		// Stream already finished. The header, if one was read, is still
		// buffered.
		select {
		case header = <-headerCh:
		default:
			return Stats{}, nil // empty file
		}
	case <-ctx.Done():
		return Stats{}, eris.Wrap(ctx.Err(), "importer: context cancelled")
	}

	stats, err := im.importRows(ctx, kind, header, chanSource(rowCh))
	if err != nil {
		return stats, err
	}
	for err := range errCh {
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// rowSource abstracts streamed (CSV) and materialized (XLSX) row input.
type rowSource func(yield func(row []string) error) error

func chanSource(ch <-chan []string) rowSource {
	return func(yield func([]string) error) error {
		for row := range ch {
			if err := yield(row); err != nil {
				return err
			}
		}
		return nil
	}
}

func sliceSource(rows [][]string) rowSource {
	return func(yield func([]string) error) error {
		for _, row := range rows {
			if err := yield(row); err != nil {
				return err
			}
		}
		return nil
	}
}

func (im *Importer) importRows(ctx context.Context, kind RecordKind, header []string, src rowSource) (Stats, error) {
	idx := indexHeader(header)
	log := zap.L().With(zap.String("component", "importer"), zap.String("kind", string(kind)))

	var stats Stats
	switch kind {
	case KindJobs:
		if err := im.importJobs(ctx, idx, src, &stats); err != nil {
			return stats, err
		}
	case KindBookedOpportunities:
		if err := im.importBookedOpportunities(ctx, idx, src, &stats); err != nil {
			return stats, err
		}
	case KindLeads:
		if err := im.importLeads(ctx, idx, src, &stats); err != nil {
			return stats, err
		}
	case KindPerformance:
		if err := im.importPerformance(ctx, idx, src, &stats); err != nil {
			return stats, err
		}
	default:
		return stats, eris.Errorf("importer: unknown record kind %q", kind)
	}

	log.Info("import complete",
		zap.Int64("rows", stats.Rows),
		zap.Int64("inserted", stats.Inserted),
		zap.Int64("skipped", stats.Skipped),
		zap.Int64("entities_created", stats.EntitiesCreated))
	return stats, nil
}

func (im *Importer) importJobs(ctx context.Context, idx columnIndex, src rowSource, stats *Stats) error {
	batch := make([]model.Job, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		created, err := im.ensureCustomers(ctx, batch)
		if err != nil {
			return err
		}
		stats.EntitiesCreated += created

		n, err := im.st.InsertJobs(ctx, batch)
		if err != nil {
			return err
		}
		stats.Inserted += n
		batch = batch[:0]
		return nil
	}

	err := src(func(row []string) error {
		stats.Rows++
		j, ok, err := jobFromRow(idx, row)
		if err != nil {
			return err
		}
		if !ok {
			stats.Skipped++
			return nil
		}
		batch = append(batch, j)
		if len(batch) >= im.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

// jobFromRow maps a row into a Job. Returns ok=false for rows with no
// identifying content at all; field-level parse failures on optional fields
// are errors because silently importing a corrupted cost or date would skew
// every later comparison.
func jobFromRow(idx columnIndex, row []string) (model.Job, bool, error) {
	j := model.Job{
		ID:                 idx.get(row, "id"),
		JobNumber:          idx.get(row, "job_number"),
		CustomerName:       idx.get(row, "customer_name"),
		CustomerEmail:      normalize.Email(idx.get(row, "customer_email")),
		CustomerPhone:      normalize.Phone(idx.get(row, "customer_phone")),
		JobType:            idx.get(row, "job_type"),
		OriginAddress:      idx.get(row, "origin_address"),
		DestinationAddress: idx.get(row, "destination_address"),
		OriginCity:         idx.get(row, "origin_city"),
		DestinationCity:    idx.get(row, "destination_city"),
	}
	if j.JobNumber == "" && j.CustomerName == "" && j.CustomerEmail == "" {
		return model.Job{}, false, nil
	}

	var err error
	if j.JobDate, err = parseDate(idx.get(row, "job_date")); err != nil {
		return model.Job{}, false, err
	}
	if j.TotalEstimatedCost, err = parseCost(idx.get(row, "total_estimated_cost")); err != nil {
		return model.Job{}, false, err
	}
	if created, err := parseDate(idx.get(row, "created_at")); err != nil {
		return model.Job{}, false, err
	} else if created != nil {
		j.CreatedAt = *created
	}
	return j, true, nil
}

func (im *Importer) importBookedOpportunities(ctx context.Context, idx columnIndex, src rowSource, stats *Stats) error {
	batch := make([]model.BookedOpportunity, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.st.InsertBookedOpportunities(ctx, batch)
		if err != nil {
			return err
		}
		stats.Inserted += n
		batch = batch[:0]
		return nil
	}

	err := src(func(row []string) error {
		stats.Rows++
		bo := model.BookedOpportunity{
			ID:           idx.get(row, "id"),
			QuoteNumber:  idx.get(row, "quote_number"),
			CustomerName: idx.get(row, "customer_name"),
			Email:        normalize.Email(idx.get(row, "customer_email")),
			PhoneNumber:  normalize.Phone(idx.get(row, "customer_phone")),
		}
		if bo.QuoteNumber == "" && bo.CustomerName == "" && bo.Email == "" {
			stats.Skipped++
			return nil
		}
		batch = append(batch, bo)
		if len(batch) >= im.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

func (im *Importer) importLeads(ctx context.Context, idx columnIndex, src rowSource, stats *Stats) error {
	batch := make([]model.Lead, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.st.InsertLeads(ctx, batch)
		if err != nil {
			return err
		}
		stats.Inserted += n
		batch = batch[:0]
		return nil
	}

	err := src(func(row []string) error {
		stats.Rows++
		l := model.Lead{
			ID:           idx.get(row, "id"),
			QuoteNumber:  idx.get(row, "quote_number"),
			CustomerName: idx.get(row, "customer_name"),
			Email:        normalize.Email(idx.get(row, "customer_email")),
			Phone:        normalize.Phone(idx.get(row, "customer_phone")),
			Status:       idx.get(row, "status"),
		}
		if l.QuoteNumber == "" && l.CustomerName == "" && l.Email == "" {
			stats.Skipped++
			return nil
		}
		batch = append(batch, l)
		if len(batch) >= im.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}

func (im *Importer) importPerformance(ctx context.Context, idx columnIndex, src rowSource, stats *Stats) error {
	batch := make([]model.PerformanceRow, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		created, err := im.ensureSalesPersons(ctx, batch)
		if err != nil {
			return err
		}
		stats.EntitiesCreated += created

		n, err := im.st.InsertPerformanceRows(ctx, batch)
		if err != nil {
			return err
		}
		stats.Inserted += n
		batch = batch[:0]
		return nil
	}

	err := src(func(row []string) error {
		stats.Rows++
		p := model.PerformanceRow{
			ID:     idx.get(row, "id"),
			Name:   idx.get(row, "sales_person"),
			Period: idx.get(row, "period"),
		}
		if p.Name == "" {
			p.Name = idx.get(row, "customer_name") // some exports label the column "name"
		}
		if p.Name == "" {
			stats.Skipped++
			return nil
		}
		if rev, err := parseCost(idx.get(row, "revenue")); err != nil {
			return err
		} else if rev != nil {
			p.Revenue = *rev
		}
		batch = append(batch, p)
		if len(batch) >= im.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}
