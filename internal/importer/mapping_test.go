package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexHeader(t *testing.T) {
	idx := indexHeader([]string{" Job Number ", "Customer", "email", "Unknown Column"})

	row := []string{"JOB-1", "Alice", "a@example.com", "x"}
	assert.Equal(t, "JOB-1", idx.get(row, "job_number"))
	assert.Equal(t, "Alice", idx.get(row, "customer_name"))
	assert.Equal(t, "a@example.com", idx.get(row, "customer_email"))
	assert.Equal(t, "", idx.get(row, "customer_phone"))
}

func TestIndexHeader_FirstAliasWins(t *testing.T) {
	idx := indexHeader([]string{"customer_name", "name"})
	assert.Equal(t, "left", idx.get([]string{"left", "right"}, "customer_name"))
}

func TestColumnIndex_ShortRow(t *testing.T) {
	idx := indexHeader([]string{"id", "customer_name"})
	assert.Equal(t, "", idx.get([]string{"only-id"}, "customer_name"))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2024-03-01", "2024-03-01T00:00:00Z"},
		{"2024-03-01 13:30:00", "2024-03-01T13:30:00Z"},
		{"03/15/2024", "2024-03-15T00:00:00Z"},
		{"3/5/2024", "2024-03-05T00:00:00Z"},
		{"2024-03-01T10:00:00Z", "2024-03-01T10:00:00Z"},
	}
	for _, tc := range tests {
		ts, err := parseDate(tc.raw)
		require.NoError(t, err, tc.raw)
		require.NotNil(t, ts, tc.raw)
		assert.Equal(t, tc.want, ts.UTC().Format(time.RFC3339), tc.raw)
	}
}

func TestParseDate_Empty(t *testing.T) {
	ts, err := parseDate("  ")
	require.NoError(t, err)
	assert.Nil(t, ts)
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := parseDate("March the first")
	require.Error(t, err)
}

func TestParseCost(t *testing.T) {
	v, err := parseCost("$1,250.75")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.InDelta(t, 1250.75, *v, 0.001)

	v, err = parseCost("900")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.InDelta(t, 900.0, *v, 0.001)

	v, err = parseCost("")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = parseCost("twelve")
	require.Error(t, err)
}
