package model

// MatchTier is the confidence bucket assigned to a name-match result.
type MatchTier string

const (
	TierExact  MatchTier = "exact"
	TierHigh   MatchTier = "high"
	TierMedium MatchTier = "medium"
	TierNone   MatchTier = "none"
)

// MatchResult is the ephemeral outcome of matching one name against a
// candidate snapshot. Only the chosen candidate's ID and the derived
// confidence are ever persisted.
type MatchResult struct {
	CandidateID string    `json:"candidate_id"`
	Score       float64   `json:"score"`
	Tier        MatchTier `json:"tier"`
}

// DuplicateLevel identifies which detection pass flagged a job.
type DuplicateLevel int

const (
	LevelNone DuplicateLevel = 0
	// LevelExact is a full-tuple collision: certain duplicate.
	LevelExact DuplicateLevel = 1
	// LevelFuzzy is a double-submission with minor formatting drift.
	LevelFuzzy DuplicateLevel = 2
	// LevelSuspicious is a plausible re-quote routed to manual review.
	LevelSuspicious DuplicateLevel = 3
)

// Confidence returns the fixed confidence assigned to the level. These are
// policy constants, not calibrated probabilities.
func (l DuplicateLevel) Confidence() float64 {
	switch l {
	case LevelExact:
		return 0.99
	case LevelFuzzy:
		return 0.85
	case LevelSuspicious:
		return 0.70
	default:
		return 0
	}
}

// DuplicateFlag is the per-record output of the classifier.
type DuplicateFlag struct {
	JobID       string           `json:"job_id"`
	IsDuplicate bool             `json:"is_duplicate"`
	Confidence  float64          `json:"confidence"`
	Levels      []DuplicateLevel `json:"levels,omitempty"`
}

// DuplicateGroup is a derived partition of jobs sharing a detected-duplicate
// relationship. The lowest created_at member is canonical; the rest carry
// flags. Groups are never persisted.
type DuplicateGroup struct {
	Level       DuplicateLevel `json:"level"`
	CanonicalID string         `json:"canonical_id"`
	MemberIDs   []string       `json:"member_ids"`
}
