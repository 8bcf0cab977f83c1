package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestDownloadExport_ReusesUnchangedExport(t *testing.T) {
	var full atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"rev-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"rev-1"`)
		w.Write([]byte("id,job_number,customer_name\nj1,JOB-1,Alice Brown\n"))
	}))
	defer srv.Close()

	prev := cfg
	c, err := config.Load()
	require.NoError(t, err)
	cfg = c
	t.Cleanup(func() { cfg = prev })

	tmpDir := t.TempDir()
	ctx := context.Background()

	first, err := downloadExport(ctx, srv.URL+"/exports/jobs.csv", tmpDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "jobs.csv"), first)

	etag, err := os.ReadFile(first + ".etag")
	require.NoError(t, err)
	assert.Equal(t, `"rev-1"`, string(etag))

	// Same tmp dir, unchanged export: the cached file is reused and the
	// server only ever serves one full body.
	second, err := downloadExport(ctx, srv.URL+"/exports/jobs.csv", tmpDir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), full.Load())

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), "JOB-1")
}
