package adaptive

// Config holds the tuning constants of the rule-based engine.
// It is built once at startup and injected; the engine never mutates it.
type Config struct {
	Lambda   float64 // shrinkage strength of the ES prior
	Prior    float64 // ES value with no evidence
	WindowES int     // number of trailing ES snapshots checked for stability
	DeltaThr float64 // max spread inside the window to call the score stable
	MinRatio float64 // fraction of max items that must be served before any stop

	WeightsCog  map[CognitiveLevel]float64
	WeightsDiff map[Difficulty]float64

	// TargetMastery is the set of levels that must each have a correct answer
	// for the "all levels mastered" stop.
	TargetMastery []CognitiveLevel
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Lambda:   5,
		Prior:    50,
		WindowES: 5,
		DeltaThr: 2.0,
		MinRatio: 0.5,
		WeightsCog: map[CognitiveLevel]float64{
			C1: 1.0, C2: 1.1, C3: 1.2, C4: 1.3, C5: 1.4, C6: 1.5,
		},
		WeightsDiff: map[Difficulty]float64{
			1: 1.0, 2: 1.2, 3: 1.4,
		},
		TargetMastery: Levels(),
	}
}

// Normalize replaces zero or out-of-range fields with their defaults so that a
// partially filled Config (e.g. from env) is always usable.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.Lambda <= 0 {
		c.Lambda = def.Lambda
	}
	if c.Prior < 0 || c.Prior > 100 {
		c.Prior = def.Prior
	}
	if c.WindowES < 1 {
		c.WindowES = def.WindowES
	}
	if c.DeltaThr < 0 {
		c.DeltaThr = def.DeltaThr
	}
	if c.MinRatio < 0 || c.MinRatio > 1 {
		c.MinRatio = def.MinRatio
	}
	if len(c.WeightsCog) == 0 {
		c.WeightsCog = def.WeightsCog
	}
	if len(c.WeightsDiff) == 0 {
		c.WeightsDiff = def.WeightsDiff
	}
	if len(c.TargetMastery) == 0 {
		c.TargetMastery = def.TargetMastery
	}
	return c
}
