// Package selection decides which question a student sees next.
package selection

import (
	"slices"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

// Selector builds question maps for static and random rooms and picks the
// next item for rule-based rooms.
type Selector struct {
	src *Source
}

// New creates a Selector drawing randomness from src.
func New(src *Source) *Selector {
	return &Selector{src: src}
}

// RandomMap samples up to count questions from pool without replacement.
// The pool is ordered by id first so the map depends only on the source.
func (s *Selector) RandomMap(roomID int64, studentID uuid.UUID, pool []model.Question, count int) []int64 {
	ids := make([]int64, 0, len(pool))
	for i := range pool {
		ids = append(ids, pool[i].ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	s.shuffle(roomID, studentID, ids)
	if count >= 0 && count < len(ids) {
		ids = ids[:count]
	}
	return ids
}

// Preset draws count distinct question ids from pool for a static room's
// fixed list. nonce identifies the room being created (its keypass); equal
// seeds, nonces and pools give equal presets. The result is sorted by id.
func (s *Selector) Preset(nonce string, pool []model.Question, count int) []int64 {
	ids := make([]int64, 0, len(pool))
	for i := range pool {
		ids = append(ids, pool[i].ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	r := s.src.randFor(nonce)
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if count >= 0 && count < len(ids) {
		ids = ids[:count]
	}
	slices.Sort(ids)
	return ids
}

// StaticMap returns the room's preset list shuffled for one participant.
func (s *Selector) StaticMap(roomID int64, studentID uuid.UUID, preset []int64) []int64 {
	ids := slices.Clone(preset)
	s.shuffle(roomID, studentID, ids)
	return ids
}

func (s *Selector) shuffle(roomID int64, studentID uuid.UUID, ids []int64) {
	r := s.src.rand(roomID, studentID, mapStep)
	r.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// NextUnanswered returns the first map entry not yet attempted and its
// 1-based position. ok is false once every entry has been attempted.
func NextUnanswered(questionMap []int64, attempted map[int64]bool) (id int64, position int, ok bool) {
	for i, qid := range questionMap {
		if !attempted[qid] {
			return qid, i + 1, true
		}
	}
	return 0, 0, false
}

// PickRuleBased picks uniformly among the pool questions at exactly the target
// level and difficulty that have not been served. step is the number of
// answers recorded so far. It returns nil when no candidate exists.
func (s *Selector) PickRuleBased(roomID int64, studentID uuid.UUID, step int, pool []model.Question, target adaptive.Target, served map[int64]bool) *model.Question {
	var candidates []*model.Question
	for i := range pool {
		q := &pool[i]
		if q.CognitiveLevel != target.Level || q.Difficulty != target.Difficulty || served[q.ID] {
			continue
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return nil
	}
	slices.SortFunc(candidates, func(a, b *model.Question) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	r := s.src.rand(roomID, studentID, step)
	return candidates[r.IntN(len(candidates))]
}
