package adaptive

// Target is a point on the level × difficulty lattice.
type Target struct {
	Level      CognitiveLevel `json:"cognitive_level"`
	Difficulty Difficulty     `json:"difficulty"`
}

// ColdStart is where every rule-based session begins.
var ColdStart = Target{Level: C1, Difficulty: MinDifficulty}

// Next walks one step on the lattice after an answer at (level, difficulty).
//
// Correct answers raise difficulty, and past difficulty 3 move to the next
// level at difficulty 3. Incorrect answers lower difficulty, clamped at 1,
// and never drop a level. Unknown levels are treated as C1 and out-of-range
// difficulties are clamped into 1..3.
func Next(level CognitiveLevel, difficulty Difficulty, correct bool) Target {
	idx := level.Index()
	if idx < 0 {
		idx = 0
		level = levelOrder[0]
	}
	if difficulty < MinDifficulty {
		difficulty = MinDifficulty
	}
	if difficulty > MaxDifficulty {
		difficulty = MaxDifficulty
	}

	if correct {
		if difficulty < MaxDifficulty {
			return Target{Level: level, Difficulty: difficulty + 1}
		}
		if idx < len(levelOrder)-1 {
			return Target{Level: levelOrder[idx+1], Difficulty: MaxDifficulty}
		}
		return Target{Level: levelOrder[len(levelOrder)-1], Difficulty: MaxDifficulty}
	}

	if difficulty > MinDifficulty {
		return Target{Level: level, Difficulty: difficulty - 1}
	}
	return Target{Level: level, Difficulty: MinDifficulty}
}

// NextFromHistory derives the next target from the last attempt, or returns
// ColdStart for an empty history.
func NextFromHistory(history []Attempt) Target {
	if len(history) == 0 {
		return ColdStart
	}
	last := history[len(history)-1]
	return Next(last.Level, last.Difficulty, last.Correct)
}
