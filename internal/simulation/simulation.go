// Package simulation runs synthetic students through a rule-based room on an
// in-memory store, so engine tuning can be inspected without a live exam.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository/sqlite"
	"github.com/stemsi/exstem-adaptive/internal/selection"
	"github.com/stemsi/exstem-adaptive/internal/service"
)

const (
	subjectID  = 1
	classLevel = "SIM"
	keyAnswer  = "A"
	wrongGuess = "B"
)

var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params configures one simulation run.
type Params struct {
	Students int
	// Ability is the student ability on a logit scale. Zero answers a C3
	// item at difficulty 1 correctly about half the time.
	Ability  float64
	MaxItems int
	// PerCell is the number of bank questions at each level and difficulty.
	PerCell int
	Seed    int64
	Engine  adaptive.Config
}

// StudentRun is the outcome of one simulated student.
type StudentRun struct {
	StudentID        uuid.UUID `json:"student_id"`
	Answered         int       `json:"answered"`
	Correct          int       `json:"correct"`
	TrueScore        float64   `json:"true_score"`
	ExpectationScore *float64  `json:"expectation_score,omitempty"`
	Reason           string    `json:"reason"`
}

// Report aggregates all runs.
type Report struct {
	Runs      []StudentRun   `json:"runs"`
	MeanScore float64        `json:"mean_score"`
	MeanItems float64        `json:"mean_items"`
	Reasons   map[string]int `json:"reasons"`
}

// Run seeds a question bank, opens a rule-based room, and drives every
// student to the end of their session. Equal params give equal reports.
func Run(ctx context.Context, p Params, log zerolog.Logger) (*Report, error) {
	if p.Students < 1 || p.MaxItems < 1 || p.PerCell < 1 {
		return nil, fmt.Errorf("%w: students, max items and per-cell must be positive", ErrInvalidParams)
	}

	store, err := sqlite.New(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := seedBank(ctx, store, p.PerCell); err != nil {
		return nil, err
	}

	selector := selection.New(selection.NewSource(p.Seed))
	sessions := service.NewExamSessionService(store, store, store, nil, selector, p.Engine.Normalize(), log)
	rooms := service.NewRoomService(store, store, selector, log)

	instructor := studentID(p.Seed, -1)
	room, err := rooms.CreateRoom(ctx, instructor, model.CreateRoomRequest{
		Name:          "simulation",
		Mechanism:     string(model.MechanismRuleBased),
		QuestionCount: p.MaxItems,
		SubjectID:     subjectID,
		ClassLevel:    classLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	students := make([]uuid.UUID, p.Students)
	for i := range students {
		students[i] = studentID(p.Seed, i)
		if _, _, err := rooms.JoinRoom(ctx, students[i], room.Keypass); err != nil {
			return nil, fmt.Errorf("join student %d: %w", i, err)
		}
	}
	if _, err := rooms.UpdateStatus(ctx, instructor, room.ID, model.RoomStatusActive); err != nil {
		return nil, fmt.Errorf("activate room: %w", err)
	}

	report := &Report{Runs: make([]StudentRun, 0, p.Students), Reasons: make(map[string]int)}
	for i, sid := range students {
		rng := rand.New(rand.NewPCG(uint64(p.Seed), uint64(i)))
		run, err := runStudent(ctx, sessions, room.ID, sid, p, rng)
		if err != nil {
			return nil, fmt.Errorf("student %d: %w", i, err)
		}
		log.Debug().
			Str("student_id", sid.String()).
			Int("answered", run.Answered).
			Float64("true_score", run.TrueScore).
			Str("reason", run.Reason).
			Msg("simulated student finished")

		report.Runs = append(report.Runs, *run)
		report.Reasons[run.Reason]++
		report.MeanScore += run.TrueScore
		report.MeanItems += float64(run.Answered)
	}
	report.MeanScore = round2(report.MeanScore / float64(p.Students))
	report.MeanItems = round2(report.MeanItems / float64(p.Students))
	return report, nil
}

func runStudent(ctx context.Context, sessions *service.ExamSessionService, roomID int64, sid uuid.UUID, p Params, rng *rand.Rand) (*StudentRun, error) {
	out, err := sessions.Start(ctx, sid, roomID)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	for steps := 0; !out.IsDone(); steps++ {
		if steps > p.MaxItems {
			return nil, fmt.Errorf("session did not stop after %d answers", steps)
		}
		q := out.Question
		answer := wrongGuess
		if rng.Float64() < correctProbability(p.Ability, q.CognitiveLevel, q.Difficulty) {
			answer = keyAnswer
		}
		out, err = sessions.Answer(ctx, service.AnswerInput{
			StudentID:  sid,
			RoomID:     roomID,
			QuestionID: q.ID,
			Response:   &answer,
		})
		if err != nil {
			return nil, fmt.Errorf("answer question %d: %w", q.ID, err)
		}
	}

	sum, err := sessions.Finish(ctx, sid, roomID)
	if err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}
	return &StudentRun{
		StudentID:        sid,
		Answered:         sum.TotalAnswered,
		Correct:          sum.TotalCorrect,
		TrueScore:        sum.TrueScore,
		ExpectationScore: sum.ExpectationScore,
		Reason:           out.Reason,
	}, nil
}

// correctProbability is a one-parameter logistic model. Item hardness grows
// with level and, more gently, with difficulty.
func correctProbability(ability float64, level adaptive.CognitiveLevel, difficulty adaptive.Difficulty) float64 {
	hardness := 0.6*float64(level.Index()-2) + 0.3*float64(difficulty-adaptive.MinDifficulty)
	return 1 / (1 + math.Exp(hardness-ability))
}

func seedBank(ctx context.Context, store *sqlite.Store, perCell int) error {
	var topic int64
	for _, level := range adaptive.Levels() {
		topic++
		for d := adaptive.MinDifficulty; d <= adaptive.MaxDifficulty; d++ {
			for n := 1; n <= perCell; n++ {
				q := &model.Question{
					TopicID:        topic,
					SubjectID:      subjectID,
					ClassLevel:     classLevel,
					QuestionText:   fmt.Sprintf("%s difficulty %d item %d", level, d, n),
					OptionA:        "A",
					OptionB:        "B",
					OptionC:        "C",
					OptionD:        "D",
					OptionE:        "E",
					CognitiveLevel: level,
					Difficulty:     d,
					CorrectAnswer:  keyAnswer,
				}
				if err := store.Create(ctx, q); err != nil {
					return fmt.Errorf("seed question: %w", err)
				}
			}
		}
	}
	return nil
}

// studentID derives stable ids so selection is reproducible across runs.
func studentID(seed int64, i int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "exstem-sim/%d/%d", seed, i))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
