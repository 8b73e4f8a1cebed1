package adaptive

import "math"

// Stop reasons reported by the evaluator.
const (
	ReasonScoreStable     = "score stable"
	ReasonAllMastered     = "all levels mastered"
	ReasonMaxItemsReached = "max items reached"
)

// Decision is the evaluator verdict. Reason is empty when Stop is false.
type Decision struct {
	Stop   bool   `json:"stop"`
	Reason string `json:"reason,omitempty"`
}

// StopEvaluator decides whether a rule-based session should end.
type StopEvaluator struct {
	cfg Config
}

// NewStopEvaluator creates a StopEvaluator for cfg.
func NewStopEvaluator(cfg Config) *StopEvaluator {
	return &StopEvaluator{cfg: cfg.Normalize()}
}

// MinItems is the minimum-exposure floor: max(floor(maxItems·min_ratio), 1).
func (s *StopEvaluator) MinItems(maxItems int) int {
	n := int(math.Floor(float64(maxItems) * s.cfg.MinRatio))
	if n < 1 {
		n = 1
	}
	return n
}

// Evaluate checks the deduplicated, time-ordered history against the
// stability window, full mastery and the item cap. When several hold, the
// reported reason is mastery first, then cap, then stability. The floor is
// applied last and overrides all of them.
func (s *StopEvaluator) Evaluate(history []Attempt, maxItems int) Decision {
	n := len(history)
	var d Decision

	if s.stable(history) {
		d = Decision{Stop: true, Reason: ReasonScoreStable}
	}
	if maxItems > 0 && n >= maxItems {
		d = Decision{Stop: true, Reason: ReasonMaxItemsReached}
	}
	if s.mastered(history) {
		d = Decision{Stop: true, Reason: ReasonAllMastered}
	}

	if n < s.MinItems(maxItems) {
		return Decision{}
	}
	return d
}

func (s *StopEvaluator) stable(history []Attempt) bool {
	win := s.cfg.WindowES
	if len(history) < win {
		return false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, a := range history[len(history)-win:] {
		if a.ES == nil {
			return false
		}
		lo = math.Min(lo, *a.ES)
		hi = math.Max(hi, *a.ES)
	}
	return hi-lo <= s.cfg.DeltaThr
}

func (s *StopEvaluator) mastered(history []Attempt) bool {
	seen := make(map[CognitiveLevel]bool, len(levelOrder))
	for _, a := range history {
		if a.Correct {
			seen[a.Level] = true
		}
	}
	for _, lvl := range s.cfg.TargetMastery {
		if !seen[lvl] {
			return false
		}
	}
	return true
}
