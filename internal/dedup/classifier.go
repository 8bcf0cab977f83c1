// Package dedup flags redundant job records inside a candidate window using
// three cascading detection levels. The classifier is stateless: each call
// sees one batch and nothing else, so batches for independent partitions can
// run in parallel.
package dedup

import (
	"math"
	"sort"
	"time"

	"github.com/vanline-group/recon-cli/internal/config"
	"github.com/vanline-group/recon-cli/internal/match"
	"github.com/vanline-group/recon-cli/internal/model"
	"github.com/vanline-group/recon-cli/internal/normalize"
)

// Options are the classifier tunables, taken from config at batch start.
type Options struct {
	FuzzyWindow      time.Duration
	SuspiciousWindow time.Duration
	CostTolerancePct float64
	AddressThreshold float64
}

// OptionsFromConfig converts validated matching config into classifier options.
func OptionsFromConfig(m config.MatchingConfig) Options {
	return Options{
		FuzzyWindow:      time.Duration(m.FuzzyDuplicateWindowHours) * time.Hour,
		SuspiciousWindow: time.Duration(m.SuspiciousWindowHours) * time.Hour,
		CostTolerancePct: m.CostTolerancePct,
		AddressThreshold: m.AddressSimilarityThreshold,
	}
}

// Result is the classifier output for one batch.
type Result struct {
	// Flags holds one entry per input record, in input order.
	Flags []model.DuplicateFlag
	// Groups lists the detected duplicate groups per level, for reporting
	// and the manual review queue.
	Groups []model.DuplicateGroup
	// LevelCounts is the number of records flagged per level.
	LevelCounts map[model.DuplicateLevel]int
}

// Classifier runs the three detection passes over a job batch.
type Classifier struct {
	opts Options
}

// New creates a Classifier with the given options.
func New(opts Options) *Classifier {
	return &Classifier{opts: opts}
}

// Classify runs all three levels over the batch and unions their results.
// A record's final flag is the OR of the levels that caught it; its
// confidence is the maximum among them (level 1 dominates 2 dominates 3).
// An empty or single-record batch yields no duplicates. Records missing a
// field required by a level are excluded from that level only.
func (c *Classifier) Classify(jobs []model.Job) Result {
	res := Result{
		Flags:       make([]model.DuplicateFlag, len(jobs)),
		LevelCounts: map[model.DuplicateLevel]int{},
	}
	for i, j := range jobs {
		res.Flags[i] = model.DuplicateFlag{JobID: j.ID}
	}
	if len(jobs) < 2 {
		return res
	}

	byID := make(map[string]*model.DuplicateFlag, len(jobs))
	for i := range res.Flags {
		byID[res.Flags[i].JobID] = &res.Flags[i]
	}

	for _, pass := range []struct {
		level  model.DuplicateLevel
		detect func([]model.Job) []model.DuplicateGroup
	}{
		{model.LevelExact, c.detectExact},
		{model.LevelFuzzy, c.detectFuzzy},
		{model.LevelSuspicious, c.detectSuspicious},
	} {
		groups := pass.detect(jobs)
		res.Groups = append(res.Groups, groups...)
		for _, g := range groups {
			for _, id := range g.MemberIDs {
				if id == g.CanonicalID {
					continue
				}
				f := byID[id]
				if !f.IsDuplicate || !containsLevel(f.Levels, pass.level) {
					res.LevelCounts[pass.level]++
				}
				f.IsDuplicate = true
				f.Levels = appendLevel(f.Levels, pass.level)
				if conf := pass.level.Confidence(); conf > f.Confidence {
					f.Confidence = conf
				}
			}
		}
	}

	return res
}

// detectExact implements level 1: a collision on the full identifying tuple
// is treated as a certain duplicate. All but the earliest-created record in
// a colliding group are flagged.
func (c *Classifier) detectExact(jobs []model.Job) []model.DuplicateGroup {
	type key struct {
		customerID string
		jobDate    time.Time
		jobType    string
		createdAt  time.Time
		origin     string
		dest       string
		cost       float64
	}

	buckets := make(map[key][]model.Job)
	var order []key
	for _, j := range jobs {
		if j.CustomerID == "" || j.JobDate == nil || j.TotalEstimatedCost == nil {
			continue
		}
		k := key{
			customerID: j.CustomerID,
			jobDate:    j.JobDate.UTC(),
			jobType:    j.JobType,
			createdAt:  j.CreatedAt.UTC(),
			origin:     j.OriginAddress,
			dest:       j.DestinationAddress,
			cost:       *j.TotalEstimatedCost,
		}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], j)
	}

	var groups []model.DuplicateGroup
	for _, k := range order {
		members := buckets[k]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, newGroup(model.LevelExact, members))
	}
	return groups
}

// detectFuzzy implements level 2: double submissions of the same booking
// through slightly different form entries. Same customer, timestamps inside
// the fuzzy window, addresses similar above the threshold.
func (c *Classifier) detectFuzzy(jobs []model.Job) []model.DuplicateGroup {
	eligible := filterJobs(jobs, func(j model.Job) bool {
		return j.CustomerID != "" && j.JobDate != nil &&
			j.OriginAddress != "" && j.DestinationAddress != ""
	})

	return c.pairwiseGroups(model.LevelFuzzy, eligible, func(a, b model.Job) bool {
		if a.CustomerID != b.CustomerID {
			return false
		}
		if absDuration(a.JobDate.Sub(*b.JobDate)) > c.opts.FuzzyWindow {
			return false
		}
		if absDuration(a.CreatedAt.Sub(b.CreatedAt)) > c.opts.FuzzyWindow {
			return false
		}
		return match.Similarity(a.OriginAddress, b.OriginAddress) >= c.opts.AddressThreshold &&
			match.Similarity(a.DestinationAddress, b.DestinationAddress) >= c.opts.AddressThreshold
	})
}

// detectSuspicious implements level 3: plausible re-quotes. Same customer,
// job dates inside the suspicious window, same city pair, cost inside the
// tolerance band. Lowest confidence; routed to manual review, never
// auto-suppressed.
func (c *Classifier) detectSuspicious(jobs []model.Job) []model.DuplicateGroup {
	eligible := filterJobs(jobs, func(j model.Job) bool {
		return j.CustomerID != "" && j.JobDate != nil && j.TotalEstimatedCost != nil &&
			j.OriginCity != "" && j.DestinationCity != ""
	})

	return c.pairwiseGroups(model.LevelSuspicious, eligible, func(a, b model.Job) bool {
		if a.CustomerID != b.CustomerID {
			return false
		}
		if absDuration(a.JobDate.Sub(*b.JobDate)) > c.opts.SuspiciousWindow {
			return false
		}
		if normalize.Name(a.OriginCity) != normalize.Name(b.OriginCity) ||
			normalize.Name(a.DestinationCity) != normalize.Name(b.DestinationCity) {
			return false
		}
		return withinTolerance(*a.TotalEstimatedCost, *b.TotalEstimatedCost, c.opts.CostTolerancePct)
	})
}

// pairwiseGroups compares every eligible pair and merges matching pairs into
// connected groups via union-find, so A~B and B~C land in one group.
func (c *Classifier) pairwiseGroups(level model.DuplicateLevel, jobs []model.Job, related func(a, b model.Job) bool) []model.DuplicateGroup {
	if len(jobs) < 2 {
		return nil
	}

	parent := make([]int, len(jobs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < len(jobs); i++ {
		for j := i + 1; j < len(jobs); j++ {
			if related(jobs[i], jobs[j]) {
				union(i, j)
			}
		}
	}

	components := make(map[int][]model.Job)
	var roots []int
	for i := range jobs {
		r := find(i)
		if _, seen := components[r]; !seen {
			roots = append(roots, r)
		}
		components[r] = append(components[r], jobs[i])
	}

	var groups []model.DuplicateGroup
	for _, r := range roots {
		members := components[r]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, newGroup(level, members))
	}
	return groups
}

// newGroup picks the earliest-created member as canonical. Created-at ties
// fall back to ID order so the choice is stable across runs.
func newGroup(level model.DuplicateLevel, members []model.Job) model.DuplicateGroup {
	sorted := make([]model.Job, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	g := model.DuplicateGroup{Level: level, CanonicalID: sorted[0].ID}
	for _, m := range sorted {
		g.MemberIDs = append(g.MemberIDs, m.ID)
	}
	return g
}

func filterJobs(jobs []model.Job, keep func(model.Job) bool) []model.Job {
	var out []model.Job
	for _, j := range jobs {
		if keep(j) {
			out = append(out, j)
		}
	}
	return out
}

func containsLevel(levels []model.DuplicateLevel, l model.DuplicateLevel) bool {
	for _, x := range levels {
		if x == l {
			return true
		}
	}
	return false
}

func appendLevel(levels []model.DuplicateLevel, l model.DuplicateLevel) []model.DuplicateLevel {
	if containsLevel(levels, l) {
		return levels
	}
	return append(levels, l)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// withinTolerance reports whether two costs are within pct percent of each
// other, measured against the smaller of the two. Boundary inclusive.
func withinTolerance(a, b, pct float64) bool {
	diff := math.Abs(a - b)
	base := math.Min(a, b)
	if base <= 0 {
		return diff == 0
	}
	return diff <= base*pct/100
}
