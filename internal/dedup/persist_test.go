package dedup

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vanline-group/recon-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestSaveFlags_Empty(t *testing.T) {
	assert.NoError(t, SaveFlags(context.Background(), nil, Result{}))
}

func TestSaveFlags_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE jobs").
		WithArgs(false, 0.0, "job1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE jobs").
		WithArgs(true, 0.99, "job2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res := Result{
		Flags: []model.DuplicateFlag{
			{JobID: "job1"},
			{JobID: "job2", IsDuplicate: true, Confidence: 0.99},
		},
		LevelCounts: map[model.DuplicateLevel]int{model.LevelExact: 1},
	}
	assert.NoError(t, SaveFlags(context.Background(), mock, res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveFlags_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE jobs").
		WithArgs(true, 0.99, "job1").
		WillReturnError(fmt.Errorf("connection lost"))
	mock.ExpectRollback()

	res := Result{
		Flags:       []model.DuplicateFlag{{JobID: "job1", IsDuplicate: true, Confidence: 0.99}},
		LevelCounts: map[model.DuplicateLevel]int{},
	}
	err = SaveFlags(context.Background(), mock, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update flags for job job1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
