package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

func params(ability float64) Params {
	return Params{
		Students: 3,
		Ability:  ability,
		MaxItems: 10,
		PerCell:  3,
		Seed:     42,
		Engine:   adaptive.DefaultConfig(),
	}
}

func TestRunStrongStudentsMasterEveryLevel(t *testing.T) {
	report, err := Run(context.Background(), params(50), zerolog.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Runs) != 3 {
		t.Fatalf("runs = %d, want 3", len(report.Runs))
	}
	for _, r := range report.Runs {
		if r.Reason != adaptive.ReasonAllMastered || r.Answered != 8 || r.Correct != 8 || r.TrueScore != 100 {
			t.Errorf("run = %+v", r)
		}
	}
	if report.MeanScore != 100 || report.MeanItems != 8 || report.Reasons[adaptive.ReasonAllMastered] != 3 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunWeakStudentsExhaustTheEntryCell(t *testing.T) {
	report, err := Run(context.Background(), params(-50), zerolog.Nop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range report.Runs {
		if r.Reason != model.ReasonPoolExhausted || r.Answered != 3 || r.Correct != 0 || r.TrueScore != 0 {
			t.Errorf("run = %+v", r)
		}
	}
}

func TestRunIsReproducible(t *testing.T) {
	first, err := Run(context.Background(), params(0.5), zerolog.Nop())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := Run(context.Background(), params(0.5), zerolog.Nop())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	for i := range first.Runs {
		a, b := first.Runs[i], second.Runs[i]
		if a.StudentID != b.StudentID || a.Answered != b.Answered || a.Correct != b.Correct ||
			a.TrueScore != b.TrueScore || a.Reason != b.Reason {
			t.Errorf("run %d differs: %+v vs %+v", i, a, b)
		}
		if a.Answered > 10 || a.TrueScore < 0 || a.TrueScore > 100 {
			t.Errorf("run %d out of bounds: %+v", i, a)
		}
	}
}

func TestRunRejectsEmptyParams(t *testing.T) {
	p := params(0)
	p.Students = 0
	if _, err := Run(context.Background(), p, zerolog.Nop()); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
}

func TestCorrectProbabilityFallsWithHardness(t *testing.T) {
	easy := correctProbability(0, adaptive.C1, 1)
	mid := correctProbability(0, adaptive.C3, 1)
	hard := correctProbability(0, adaptive.C6, 3)
	if !(easy > mid && mid > hard) {
		t.Errorf("probabilities not decreasing: %v %v %v", easy, mid, hard)
	}
	if mid != 0.5 {
		t.Errorf("C3 difficulty 1 at ability 0 = %v, want 0.5", mid)
	}
}
