package adaptive

import "math"

// Attempt is one deduplicated entry of a student's answer history, carrying
// the level and difficulty snapshotted when the question was answered.
type Attempt struct {
	QuestionID int64
	Level      CognitiveLevel
	Difficulty Difficulty
	Correct    bool
	ES         *float64 // smoothed score recorded with the attempt, if any
}

// Estimator computes the smoothed ability estimate (ES) and final scores.
type Estimator struct {
	cfg     Config
	weights WeightTable
}

// NewEstimator creates an Estimator for cfg.
func NewEstimator(cfg Config) *Estimator {
	cfg = cfg.Normalize()
	return &Estimator{cfg: cfg, weights: NewWeightTable(cfg)}
}

// Weights exposes the weight table the estimator scores with.
func (e *Estimator) Weights() WeightTable {
	return e.weights
}

// ES returns (λ·prior + 100·Σw_correct) / (λ + Σw), rounded to 2 decimals.
// An empty history yields the prior.
func (e *Estimator) ES(history []Attempt) float64 {
	trueW, totW := e.sums(history)
	es := (e.cfg.Lambda*e.cfg.Prior + 100*trueW) / (e.cfg.Lambda + totW)
	return Round2(es)
}

// WeightedScore is the rule-based final true-score: 100·Σw_correct / Σw,
// or 0 when nothing was attempted.
func (e *Estimator) WeightedScore(history []Attempt) float64 {
	trueW, totW := e.sums(history)
	if totW <= 0 {
		return 0
	}
	return Round2(100 * trueW / totW)
}

func (e *Estimator) sums(history []Attempt) (trueW, totW float64) {
	for _, a := range history {
		d := a.Difficulty
		if d == 0 {
			d = MinDifficulty
		}
		w := e.weights.Weight(a.Level, d)
		totW += w
		if a.Correct {
			trueW += w
		}
	}
	return trueW, totW
}

// PercentScore is the static/random final true-score. The denominator is the
// room's target count, so an exam ended early is scored against the target.
func PercentScore(correct, target int) float64 {
	if target <= 0 {
		return 0
	}
	return Round2(100 * float64(correct) / float64(target))
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
