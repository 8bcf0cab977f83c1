package main

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/fetcher"
	"github.com/vanline-group/recon-cli/internal/importer"
)

var importTmpDir string

var importCmd = &cobra.Command{
	Use:   "import <kind> <path-or-url>",
	Short: "Import a CRM export file",
	Long: `Imports a CRM export into the record store.

kind is one of: jobs, booked_opportunities, leads, performance.
The source may be a local .csv, .xlsx, or .zip file, or an http(s) URL to one.
Re-importing the same export is safe: rows upsert by ID and existing linkage
and duplicate decisions are preserved.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind := importer.RecordKind(args[0])
		source := args[1]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tmpDir := importTmpDir
		if tmpDir == "" {
			tmpDir, err = os.MkdirTemp("", "recon-import-*")
			if err != nil {
				return eris.Wrap(err, "import: create temp dir")
			}
			defer os.RemoveAll(tmpDir) //nolint:errcheck
		}

		local := source
		if isRemote(source) {
			local, err = downloadExport(ctx, source, tmpDir)
			if err != nil {
				return err
			}
		}

		im := importer.New(st, cfg.Matching.SimilarityThreshold)
		stats, err := im.ImportFile(ctx, local, kind, tmpDir)
		if err != nil {
			return eris.Wrapf(err, "import %s", source)
		}

		zap.L().Info("import finished",
			zap.String("kind", string(kind)),
			zap.String("source", source),
			zap.Int64("rows", stats.Rows),
			zap.Int64("inserted", stats.Inserted),
			zap.Int64("skipped", stats.Skipped),
			zap.Int64("entities_created", stats.EntitiesCreated),
		)
		return nil
	},
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func downloadExport(ctx context.Context, rawURL, tmpDir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "import: parse url %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "export.csv"
	}
	dest := filepath.Join(tmpDir, name)
	etagPath := dest + ".etag"

	// With a persistent --tmp-dir the previous download and its validator are
	// still around, so an unchanged export is skipped instead of re-fetched.
	var etag string
	if _, err := os.Stat(dest); err == nil {
		if b, err := os.ReadFile(etagPath); err == nil {
			etag = strings.TrimSpace(string(b))
		}
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:        time.Duration(cfg.Import.TimeoutSecs) * time.Second,
		MaxRetries:     cfg.Batch.MaxRetries,
		RequestsPerSec: cfg.Import.DownloadRatePerSec,
	})
	n, newETag, changed, err := f.DownloadToFile(ctx, rawURL, dest, etag)
	if err != nil {
		return "", err
	}
	if !changed {
		zap.L().Info("export unchanged, reusing cached download", zap.String("url", rawURL), zap.String("path", dest))
		return dest, nil
	}
	if newETag != "" {
		if err := os.WriteFile(etagPath, []byte(newETag), 0o644); err != nil {
			zap.L().Warn("could not record export etag", zap.String("path", etagPath), zap.Error(err))
		}
	}
	zap.L().Info("downloaded export", zap.String("url", rawURL), zap.Int64("bytes", n))
	return dest, nil
}

func init() {
	importCmd.Flags().StringVar(&importTmpDir, "tmp-dir", "", "directory for downloads and zip extraction; keep it across runs to skip unchanged exports (default: a fresh temp dir)")
	rootCmd.AddCommand(importCmd)
}
