package adaptive

// CognitiveLevel is a Bloom-style taxonomy tag, C1 (remember) to C6 (create).
type CognitiveLevel string

const (
	C1 CognitiveLevel = "C1"
	C2 CognitiveLevel = "C2"
	C3 CognitiveLevel = "C3"
	C4 CognitiveLevel = "C4"
	C5 CognitiveLevel = "C5"
	C6 CognitiveLevel = "C6"
)

// Difficulty is 1 (easy) to 3 (hard), orthogonal to the cognitive level.
type Difficulty int

const (
	MinDifficulty Difficulty = 1
	MaxDifficulty Difficulty = 3
)

var levelOrder = []CognitiveLevel{C1, C2, C3, C4, C5, C6}

// Levels returns the ordered cognitive levels.
func Levels() []CognitiveLevel {
	out := make([]CognitiveLevel, len(levelOrder))
	copy(out, levelOrder)
	return out
}

// Index returns the 0-based position of the level, or -1 if unknown.
func (l CognitiveLevel) Index() int {
	for i, v := range levelOrder {
		if v == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is one of C1..C6.
func (l CognitiveLevel) Valid() bool {
	return l.Index() >= 0
}

// Valid reports whether d is within 1..3.
func (d Difficulty) Valid() bool {
	return d >= MinDifficulty && d <= MaxDifficulty
}

// WeightTable maps (level, difficulty) to the item weight used by scoring.
type WeightTable struct {
	cog  map[CognitiveLevel]float64
	diff map[Difficulty]float64
}

// NewWeightTable builds a table from the weights in cfg.
func NewWeightTable(cfg Config) WeightTable {
	return WeightTable{cog: cfg.WeightsCog, diff: cfg.WeightsDiff}
}

// Weight returns cog[level] * diff[difficulty]. Unknown keys count as 1.0.
func (t WeightTable) Weight(level CognitiveLevel, difficulty Difficulty) float64 {
	wc, ok := t.cog[level]
	if !ok {
		wc = 1.0
	}
	wd, ok := t.diff[difficulty]
	if !ok {
		wd = 1.0
	}
	return wc * wd
}
