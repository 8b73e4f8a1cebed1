package adaptive

import (
	"math"
	"testing"
)

const epsilon = 0.001

func es(v float64) *float64 { return &v }

func attempt(level CognitiveLevel, d Difficulty, correct bool) Attempt {
	return Attempt{Level: level, Difficulty: d, Correct: correct}
}

func TestWeight(t *testing.T) {
	table := NewWeightTable(DefaultConfig())

	testCases := []struct {
		name     string
		level    CognitiveLevel
		diff     Difficulty
		expected float64
	}{
		{"lowest", C1, 1, 1.0},
		{"c3 medium", C3, 2, 1.44},
		{"highest", C6, 3, 2.1},
		{"unknown level", CognitiveLevel("C9"), 2, 1.2},
		{"unknown difficulty", C2, 7, 1.1},
		{"both unknown", CognitiveLevel(""), 0, 1.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := table.Weight(tc.level, tc.diff)
			if math.Abs(got-tc.expected) > epsilon {
				t.Errorf("Weight(%s, %d) = %.4f, want %.4f", tc.level, tc.diff, got, tc.expected)
			}
		})
	}
}

func TestEstimatorES(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	testCases := []struct {
		name     string
		history  []Attempt
		expected float64
	}{
		{"empty history is prior", nil, 50},
		{"one correct", []Attempt{attempt(C1, 1, true)}, 58.33},
		{"one incorrect", []Attempt{attempt(C1, 1, false)}, 41.67},
		{"missing difficulty counts as easiest", []Attempt{{Level: C1, Correct: true}}, 58.33},
		{"one of two", []Attempt{attempt(C1, 1, true), attempt(C1, 1, false)}, 50},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.ES(tc.history); got != tc.expected {
				t.Errorf("ES() = %.2f, want %.2f", got, tc.expected)
			}
		})
	}
}

func TestEstimatorESBounded(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	var allRight, allWrong []Attempt
	for i := 0; i < 40; i++ {
		allRight = append(allRight, attempt(C6, 3, true))
		allWrong = append(allWrong, attempt(C6, 3, false))
	}

	if got := e.ES(allRight); got <= 50 || got > 100 {
		t.Errorf("ES(all correct) = %.2f, want in (50, 100]", got)
	}
	if got := e.ES(allWrong); got < 0 || got >= 50 {
		t.Errorf("ES(all wrong) = %.2f, want in [0, 50)", got)
	}
}

func TestFinalScores(t *testing.T) {
	e := NewEstimator(DefaultConfig())

	t.Run("weighted one of two", func(t *testing.T) {
		got := e.WeightedScore([]Attempt{attempt(C1, 1, true), attempt(C1, 1, false)})
		if got != 50 {
			t.Errorf("WeightedScore() = %.2f, want 50.00", got)
		}
	})

	t.Run("weighted empty", func(t *testing.T) {
		if got := e.WeightedScore(nil); got != 0 {
			t.Errorf("WeightedScore(nil) = %.2f, want 0", got)
		}
	})

	t.Run("weighted favours harder items", func(t *testing.T) {
		got := e.WeightedScore([]Attempt{attempt(C1, 1, false), attempt(C6, 3, true)})
		// 2.1 / 3.1
		if math.Abs(got-67.74) > epsilon {
			t.Errorf("WeightedScore() = %.2f, want 67.74", got)
		}
	})

	percent := []struct {
		correct, target int
		expected        float64
	}{
		{7, 10, 70},
		{0, 10, 0},
		{2, 3, 66.67},
		{5, 0, 0},
		{5, -1, 0},
	}
	for _, tc := range percent {
		if got := PercentScore(tc.correct, tc.target); got != tc.expected {
			t.Errorf("PercentScore(%d, %d) = %.2f, want %.2f", tc.correct, tc.target, got, tc.expected)
		}
	}
}

func TestNext(t *testing.T) {
	testCases := []struct {
		name     string
		level    CognitiveLevel
		diff     Difficulty
		correct  bool
		expected Target
	}{
		{"correct raises difficulty", C2, 1, true, Target{C2, 2}},
		{"correct at top difficulty climbs level", C3, 3, true, Target{C4, 3}},
		{"correct at ceiling stays", C6, 3, true, Target{C6, 3}},
		{"incorrect lowers difficulty", C4, 3, false, Target{C4, 2}},
		{"incorrect at floor stays", C1, 1, false, Target{C1, 1}},
		{"incorrect never drops level", C5, 1, false, Target{C5, 1}},
		{"unknown level clamps to C1", CognitiveLevel("X"), 2, true, Target{C1, 3}},
		{"difficulty clamped", C2, 9, false, Target{C2, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Next(tc.level, tc.diff, tc.correct); got != tc.expected {
				t.Errorf("Next(%s, %d, %v) = %+v, want %+v", tc.level, tc.diff, tc.correct, got, tc.expected)
			}
		})
	}

	if got := NextFromHistory(nil); got != ColdStart {
		t.Errorf("NextFromHistory(nil) = %+v, want cold start", got)
	}
}

func TestStopEvaluator(t *testing.T) {
	t.Run("floor overrides a stable window", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.WindowES = 3
		s := NewStopEvaluator(cfg)

		history := []Attempt{
			{Level: C1, Difficulty: 1, ES: es(50)},
			{Level: C1, Difficulty: 1, ES: es(50)},
			{Level: C1, Difficulty: 1, ES: es(50)},
		}
		if d := s.Evaluate(history, 10); d.Stop {
			t.Errorf("expected no stop under the floor, got %+v", d)
		}
	})

	t.Run("mastery regardless of item count", func(t *testing.T) {
		s := NewStopEvaluator(DefaultConfig())
		var history []Attempt
		for _, lvl := range Levels() {
			history = append(history, attempt(lvl, 3, true))
		}
		for _, maxItems := range []int{6, 10} {
			d := s.Evaluate(history, maxItems)
			if !d.Stop || d.Reason != ReasonAllMastered {
				t.Errorf("max=%d: expected mastery stop, got %+v", maxItems, d)
			}
		}
	})

	t.Run("item cap", func(t *testing.T) {
		s := NewStopEvaluator(DefaultConfig())
		var history []Attempt
		for i := 0; i < 10; i++ {
			history = append(history, attempt(C1, 1, false))
		}
		d := s.Evaluate(history, 10)
		if !d.Stop || d.Reason != ReasonMaxItemsReached {
			t.Errorf("expected cap stop, got %+v", d)
		}
	})

	t.Run("stable window", func(t *testing.T) {
		s := NewStopEvaluator(DefaultConfig())
		values := []float64{41.67, 60, 61, 60.5, 61.5, 60}
		var history []Attempt
		for _, v := range values {
			history = append(history, Attempt{Level: C1, Difficulty: 1, ES: es(v)})
		}
		d := s.Evaluate(history, 10)
		if !d.Stop || d.Reason != ReasonScoreStable {
			t.Errorf("expected stable stop, got %+v", d)
		}
	})

	t.Run("missing snapshot breaks the window", func(t *testing.T) {
		s := NewStopEvaluator(DefaultConfig())
		history := []Attempt{
			{Level: C1, ES: es(60)},
			{Level: C1, ES: es(60)},
			{Level: C1},
			{Level: C1, ES: es(60)},
			{Level: C1, ES: es(60)},
			{Level: C1, ES: es(60)},
		}
		if d := s.Evaluate(history, 10); d.Stop {
			t.Errorf("expected no stop, got %+v", d)
		}
	})

	t.Run("wide spread keeps going", func(t *testing.T) {
		s := NewStopEvaluator(DefaultConfig())
		var history []Attempt
		for _, v := range []float64{50, 55, 52, 53, 54, 51} {
			history = append(history, Attempt{Level: C1, ES: es(v)})
		}
		if d := s.Evaluate(history, 10); d.Stop {
			t.Errorf("expected no stop, got %+v", d)
		}
	})
}

func TestMinItems(t *testing.T) {
	s := NewStopEvaluator(DefaultConfig())
	cases := map[int]int{10: 5, 11: 5, 3: 1, 1: 1, 0: 1}
	for maxItems, want := range cases {
		if got := s.MinItems(maxItems); got != want {
			t.Errorf("MinItems(%d) = %d, want %d", maxItems, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	cfg := Config{Lambda: -1, Prior: 150, MinRatio: 2}.Normalize()
	def := DefaultConfig()
	if cfg.Lambda != def.Lambda || cfg.Prior != def.Prior || cfg.MinRatio != def.MinRatio {
		t.Errorf("Normalize() did not restore defaults: %+v", cfg)
	}
	if cfg.WindowES != 5 || len(cfg.TargetMastery) != 6 {
		t.Errorf("Normalize() missing window or mastery defaults: %+v", cfg)
	}
}
