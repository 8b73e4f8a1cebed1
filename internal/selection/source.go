package selection

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"

	"github.com/google/uuid"
)

// mapStep salts the generator used to build question maps, keeping it apart
// from the per-step rule-based picks.
const mapStep = -1

// Source derives reproducible random streams. The same seed, room, student
// and step always produce the same stream, so repeating a request yields the
// same question.
type Source struct {
	seed uint64
}

// NewSource returns a Source for seed.
func NewSource(seed int64) *Source {
	return &Source{seed: uint64(seed)}
}

// Seed returns the seed the source was built with.
func (s *Source) Seed() int64 {
	return int64(s.seed)
}

func (s *Source) rand(roomID int64, studentID uuid.UUID, step int) *rand.Rand {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(roomID))
	h.Write(buf[:])
	h.Write(studentID[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(step)))
	h.Write(buf[:])
	return rand.New(rand.NewPCG(s.seed, h.Sum64()))
}

// randFor returns the stream for a room that has no id yet, keyed by its
// creation nonce.
func (s *Source) randFor(nonce string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte("preset/"))
	h.Write([]byte(nonce))
	return rand.New(rand.NewPCG(s.seed, h.Sum64()))
}
