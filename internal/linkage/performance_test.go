package linkage

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectSalesPersonCandidates(mock pgxmock.PgxPoolIface, rows *pgxmock.Rows) {
	mock.ExpectQuery("SELECT id, name FROM entities").WillReturnRows(rows)
}

func expectOrphanedRows(mock pgxmock.PgxPoolIface, rows *pgxmock.Rows) {
	mock.ExpectQuery("SELECT id, name FROM performance_rows").WillReturnRows(rows)
}

func TestLinkPerformanceRows_MatchesAndSkips(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectSalesPersonCandidates(mock, pgxmock.NewRows([]string{"id", "name"}).
		AddRow("sp1", "John Smith").
		AddRow("sp2", "Mary Jones"))
	expectOrphanedRows(mock, pgxmock.NewRows([]string{"id", "name"}).
		AddRow("p1", "john smith").
		AddRow("p2", "Zzyzx Qwfp"))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE performance_rows").
		WithArgs("sp1", "p1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	stats, err := NewResolver(mock, false).LinkPerformanceRows(context.Background(), 0.75)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Linked)
	assert.Equal(t, int64(1), stats.Unmatched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A typo'd spreadsheet name still links when the score clears the threshold.
func TestLinkPerformanceRows_FuzzyName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectSalesPersonCandidates(mock, pgxmock.NewRows([]string{"id", "name"}).
		AddRow("sp1", "Jonathan Smith"))
	expectOrphanedRows(mock, pgxmock.NewRows([]string{"id", "name"}).
		AddRow("p1", "Jonathon Smith"))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE performance_rows").
		WithArgs("sp1", "p1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	stats, err := NewResolver(mock, false).LinkPerformanceRows(context.Background(), 0.75)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Linked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkPerformanceRows_NoOrphans(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectSalesPersonCandidates(mock, pgxmock.NewRows([]string{"id", "name"}))
	expectOrphanedRows(mock, pgxmock.NewRows([]string{"id", "name"}))

	stats, err := NewResolver(mock, false).LinkPerformanceRows(context.Background(), 0.75)
	require.NoError(t, err)
	assert.Equal(t, PerfLinkStats{}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkPerformanceRows_UpdateErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectSalesPersonCandidates(mock, pgxmock.NewRows([]string{"id", "name"}).
		AddRow("sp1", "John Smith"))
	expectOrphanedRows(mock, pgxmock.NewRows([]string{"id", "name"}).
		AddRow("p1", "John Smith"))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE performance_rows").
		WithArgs("sp1", "p1").
		WillReturnError(fmt.Errorf("connection lost"))
	mock.ExpectRollback()

	_, err = NewResolver(mock, false).LinkPerformanceRows(context.Background(), 0.75)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link performance row p1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
