package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanline-group/recon-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_GetEntity_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, kind, name, email, phone`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetEntity(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get entity")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCandidates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name FROM entities WHERE kind = \$1`).
		WithArgs("sales_person").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).
			AddRow("sp1", "John Smith").
			AddRow("sp2", "Mary Jones"))

	cands, err := s.ListCandidates(context.Background(), model.EntitySalesPerson)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "John Smith", cands[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListJobCustomerIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT DISTINCT customer_id FROM jobs`).
		WillReturnRows(pgxmock.NewRows([]string{"customer_id"}).
			AddRow("c1").AddRow("c2"))

	ids, err := s.ListJobCustomerIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertJobs_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.InsertJobs(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertJobs_BulkUpsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_jobs"}, jobImportColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "jobs"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.InsertJobs(context.Background(), []model.Job{
		{ID: "job1", CustomerName: "John Smith"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Summarize(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM jobs`).
		WithArgs(model.LevelSuspicious.Confidence()).
		WillReturnRows(pgxmock.NewRows([]string{"c1", "c2", "c3", "c4"}).
			AddRow(int64(10), int64(8), int64(2), int64(1)))
	mock.ExpectQuery(`FROM booked_opportunities`).
		WillReturnRows(pgxmock.NewRows([]string{"c1", "c2", "c3", "c4"}).
			AddRow(int64(4), int64(6), int64(3), int64(5)))
	mock.ExpectQuery(`GROUP BY kind`).
		WillReturnRows(pgxmock.NewRows([]string{"kind", "count"}).
			AddRow("customer", int64(7)))

	sum, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.Jobs)
	assert.Equal(t, int64(8), sum.LinkedJobs)
	assert.Equal(t, int64(2), sum.DuplicateJobs)
	assert.Equal(t, int64(1), sum.SuspiciousJobs)
	assert.Equal(t, int64(6), sum.Leads)
	assert.Equal(t, int64(7), sum.Entities[model.EntityCustomer])
	assert.NoError(t, mock.ExpectationsWereMet())
}
