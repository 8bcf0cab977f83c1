package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanline-group/recon-cli/internal/config"
	"github.com/vanline-group/recon-cli/internal/model"
)

var testOpts = Options{
	FuzzyWindow:      2 * time.Hour,
	SuspiciousWindow: 24 * time.Hour,
	CostTolerancePct: 5.0,
	AddressThreshold: 0.75,
}

var baseDate = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func cost(v float64) *float64 { return &v }

func jobAt(id, customerID string, jobDate, createdAt time.Time) model.Job {
	return model.Job{
		ID:                 id,
		CustomerID:         customerID,
		JobType:            "Residential Move",
		JobDate:            &jobDate,
		CreatedAt:          createdAt,
		OriginAddress:      "123 Main St, Springfield, IL",
		DestinationAddress: "456 Oak Ave, Springfield, IL",
		OriginCity:         "Springfield",
		DestinationCity:    "Springfield",
		TotalEstimatedCost: cost(1000.0),
	}
}

func flagFor(t *testing.T, res Result, id string) model.DuplicateFlag {
	t.Helper()
	for _, f := range res.Flags {
		if f.JobID == id {
			return f
		}
	}
	t.Fatalf("no flag for job %s", id)
	return model.DuplicateFlag{}
}

func TestClassify_ExactDuplicates(t *testing.T) {
	// Scenario A: identical tuple, two records. The later-created one is
	// flagged at 0.99; the earliest stays canonical.
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j2 := jobAt("job2", "cust1", baseDate, baseDate)

	res := New(testOpts).Classify([]model.Job{j1, j2})

	f1 := flagFor(t, res, "job1")
	f2 := flagFor(t, res, "job2")
	assert.False(t, f1.IsDuplicate)
	assert.True(t, f2.IsDuplicate)
	assert.Equal(t, 0.99, f2.Confidence)
	assert.Contains(t, f2.Levels, model.LevelExact)
	assert.GreaterOrEqual(t, res.LevelCounts[model.LevelExact], 1)
}

func TestClassify_ExactEarliestCreatedSurvives(t *testing.T) {
	a := jobAt("late-id", "cust1", baseDate, baseDate)
	b := jobAt("early-id", "cust1", baseDate, baseDate)

	res := New(testOpts).Classify([]model.Job{a, b})

	// Created-at tie: lower ID wins canonical.
	assert.True(t, flagFor(t, res, "late-id").IsDuplicate)
	assert.False(t, flagFor(t, res, "early-id").IsDuplicate)
}

func TestClassify_SingleRecord(t *testing.T) {
	// Scenario B: no peers means nothing to compare against.
	res := New(testOpts).Classify([]model.Job{jobAt("only", "cust1", baseDate, baseDate)})
	require.Len(t, res.Flags, 1)
	assert.False(t, res.Flags[0].IsDuplicate)
	assert.Zero(t, res.Flags[0].Confidence)
}

func TestClassify_EmptyBatch(t *testing.T) {
	// Scenario C: empty in, empty out, no error.
	res := New(testOpts).Classify(nil)
	assert.Empty(t, res.Flags)
	assert.Empty(t, res.Groups)
}

func TestClassify_FuzzyDuplicates(t *testing.T) {
	// Same booking submitted twice with "St" vs "Street" drift, half an
	// hour apart: level 2.
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j2 := jobAt("job2", "cust1", baseDate.Add(30*time.Minute), baseDate.Add(30*time.Minute))
	j2.OriginAddress = "123 Main Street, Springfield, IL"
	j2.DestinationAddress = "456 Oak Avenue, Springfield, IL"
	j2.TotalEstimatedCost = cost(1010.0) // not an exact tuple match

	res := New(testOpts).Classify([]model.Job{j1, j2})

	f2 := flagFor(t, res, "job2")
	assert.True(t, f2.IsDuplicate)
	assert.Contains(t, f2.Levels, model.LevelFuzzy)
	assert.InDelta(t, 0.85, f2.Confidence, 1e-9)
}

func TestClassify_FuzzyOutsideWindow(t *testing.T) {
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j2 := jobAt("job2", "cust1", baseDate.Add(3*time.Hour), baseDate.Add(3*time.Hour))
	j2.TotalEstimatedCost = cost(900.0)
	j2.OriginCity = "Chicago" // keep level 3 out of the picture too

	res := New(testOpts).Classify([]model.Job{j1, j2})
	assert.False(t, flagFor(t, res, "job2").IsDuplicate)
}

func TestClassify_SuspiciousPattern(t *testing.T) {
	// Next-day re-quote, same city pair, cost within 5%: level 3 only.
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j1.TotalEstimatedCost = cost(2000.0)
	j1.OriginAddress = "789 Elm St"
	j1.DestinationAddress = "321 Pine Ave"
	j2 := jobAt("job2", "cust1", baseDate.Add(20*time.Hour), baseDate.Add(20*time.Hour))
	j2.TotalEstimatedCost = cost(2100.0) // exactly 5% above 2000
	j2.OriginAddress = "completely different street address"
	j2.DestinationAddress = "another unrelated address entirely"

	res := New(testOpts).Classify([]model.Job{j1, j2})

	f2 := flagFor(t, res, "job2")
	assert.True(t, f2.IsDuplicate)
	assert.Equal(t, []model.DuplicateLevel{model.LevelSuspicious}, f2.Levels)
	assert.InDelta(t, 0.70, f2.Confidence, 1e-9)
}

func TestClassify_SuspiciousCostOutsideTolerance(t *testing.T) {
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j1.TotalEstimatedCost = cost(2000.0)
	j1.OriginAddress = "789 Elm St"
	j2 := jobAt("job2", "cust1", baseDate.Add(20*time.Hour), baseDate.Add(20*time.Hour))
	j2.TotalEstimatedCost = cost(2201.0)
	j2.OriginAddress = "different address"

	res := New(testOpts).Classify([]model.Job{j1, j2})
	assert.False(t, flagFor(t, res, "job2").IsDuplicate)
}

func TestClassify_DifferentCustomersNeverDuplicates(t *testing.T) {
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j2 := jobAt("job2", "cust2", baseDate, baseDate)

	res := New(testOpts).Classify([]model.Job{j1, j2})
	assert.False(t, flagFor(t, res, "job1").IsDuplicate)
	assert.False(t, flagFor(t, res, "job2").IsDuplicate)
}

func TestClassify_MissingFieldsExcludedPerLevel(t *testing.T) {
	// No job_date: excluded from every level's comparison set, never an
	// error and never flagged.
	j1 := model.Job{ID: "job1", CustomerID: "cust1", CreatedAt: baseDate}
	j2 := model.Job{ID: "job2", CustomerID: "cust1", CreatedAt: baseDate}

	res := New(testOpts).Classify([]model.Job{j1, j2})
	assert.False(t, flagFor(t, res, "job1").IsDuplicate)
	assert.False(t, flagFor(t, res, "job2").IsDuplicate)
}

func TestClassify_MaxConfidenceWins(t *testing.T) {
	// An exact tuple collision also satisfies levels 2 and 3; the combined
	// confidence must stay 0.99, not be overwritten by a later pass.
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j2 := jobAt("job2", "cust1", baseDate, baseDate)

	res := New(testOpts).Classify([]model.Job{j1, j2})

	f2 := flagFor(t, res, "job2")
	assert.True(t, f2.IsDuplicate)
	assert.Equal(t, 0.99, f2.Confidence)
	assert.Contains(t, f2.Levels, model.LevelExact)
	assert.Contains(t, f2.Levels, model.LevelSuspicious)
}

func TestClassify_Level1ImpliesLevel3(t *testing.T) {
	// Monotonicity cross-check: every pair flagged exactly must also satisfy
	// the looser suspicious predicate set when city and cost are present.
	c := New(testOpts)
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j2 := jobAt("job2", "cust1", baseDate, baseDate)
	jobs := []model.Job{j1, j2}

	exact := c.detectExact(jobs)
	require.Len(t, exact, 1)

	suspicious := c.detectSuspicious(jobs)
	require.Len(t, suspicious, 1)
	assert.ElementsMatch(t, exact[0].MemberIDs, suspicious[0].MemberIDs)
}

func TestClassify_TransitiveGrouping(t *testing.T) {
	// A~B and B~C puts all three in one group with one canonical record.
	j1 := jobAt("job1", "cust1", baseDate, baseDate)
	j2 := jobAt("job2", "cust1", baseDate.Add(90*time.Minute), baseDate.Add(90*time.Minute))
	j3 := jobAt("job3", "cust1", baseDate.Add(3*time.Hour), baseDate.Add(3*time.Hour))
	for _, j := range []*model.Job{&j1, &j2, &j3} {
		j.TotalEstimatedCost = cost(1000.0)
	}

	groups := New(testOpts).detectFuzzy([]model.Job{j1, j2, j3})
	require.Len(t, groups, 1)
	assert.Equal(t, "job1", groups[0].CanonicalID)
	assert.Len(t, groups[0].MemberIDs, 3)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.MatchingConfig{
		FuzzyDuplicateWindowHours:  2,
		SuspiciousWindowHours:      24,
		CostTolerancePct:           5,
		AddressSimilarityThreshold: 0.8,
	})
	assert.Equal(t, 2*time.Hour, opts.FuzzyWindow)
	assert.Equal(t, 24*time.Hour, opts.SuspiciousWindow)
	assert.InDelta(t, 5.0, opts.CostTolerancePct, 1e-9)
	assert.InDelta(t, 0.8, opts.AddressThreshold, 1e-9)
}

func TestWithinTolerance(t *testing.T) {
	// The band is inclusive and symmetric: 5% of 2000 is exactly 100.
	assert.True(t, withinTolerance(2000, 2100, 5))
	assert.True(t, withinTolerance(2100, 2000, 5))
	assert.False(t, withinTolerance(2000, 2101, 5))

	// Zero tolerance accepts only exact equality.
	assert.True(t, withinTolerance(1000, 1000, 0))
	assert.False(t, withinTolerance(1000, 1001, 0))

	assert.True(t, withinTolerance(0, 0, 5))
	assert.False(t, withinTolerance(0, 10, 5))
}
