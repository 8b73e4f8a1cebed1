package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository/sqlite"
	"github.com/stemsi/exstem-adaptive/internal/selection"
)

const testSeed = 20240917

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type testEnv struct {
	store      *sqlite.Store
	exams      *ExamSessionService
	rooms      *RoomService
	events     *recordingPublisher
	instructor uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	selector := selection.New(selection.NewSource(testSeed))
	events := &recordingPublisher{}
	return &testEnv{
		store:      store,
		exams:      NewExamSessionService(store, store, store, events, selector, adaptive.DefaultConfig(), zerolog.Nop()),
		rooms:      NewRoomService(store, store, selector, zerolog.Nop()),
		events:     events,
		instructor: uuid.New(),
	}
}

func (e *testEnv) addQuestion(t *testing.T, level adaptive.CognitiveLevel, d adaptive.Difficulty) int64 {
	t.Helper()
	q := &model.Question{
		TopicID:        1,
		SubjectID:      1,
		ClassLevel:     "X",
		QuestionText:   "question",
		OptionA:        "a",
		OptionB:        "b",
		OptionC:        "c",
		OptionD:        "d",
		OptionE:        "e",
		CognitiveLevel: level,
		Difficulty:     d,
		CorrectAnswer:  "A",
	}
	if err := e.store.Create(context.Background(), q); err != nil {
		t.Fatalf("addQuestion: %v", err)
	}
	return q.ID
}

// openRoom creates a room, enrols the students and activates it.
func (e *testEnv) openRoom(t *testing.T, mechanism model.Mechanism, count int, students ...uuid.UUID) *model.Room {
	t.Helper()
	ctx := context.Background()
	room, err := e.rooms.CreateRoom(ctx, e.instructor, model.CreateRoomRequest{
		Name:          "Ujian",
		Mechanism:     string(mechanism),
		QuestionCount: count,
		SubjectID:     1,
		ClassLevel:    "X",
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for _, sid := range students {
		if _, _, err := e.rooms.JoinRoom(ctx, sid, room.Keypass); err != nil {
			t.Fatalf("join room: %v", err)
		}
	}
	if _, err := e.rooms.UpdateStatus(ctx, e.instructor, room.ID, model.RoomStatusActive); err != nil {
		t.Fatalf("activate room: %v", err)
	}
	return room
}

func (e *testEnv) answer(t *testing.T, studentID uuid.UUID, roomID, questionID int64, response string) *model.Outcome {
	t.Helper()
	seconds := 30
	out, err := e.exams.Answer(context.Background(), AnswerInput{
		StudentID:        studentID,
		RoomID:           roomID,
		QuestionID:       questionID,
		Response:         &response,
		TimeTakenSeconds: &seconds,
	})
	if err != nil {
		t.Fatalf("answer %d: %v", questionID, err)
	}
	return out
}

func TestStaticRoomScoresAgainstQuestionCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		env.addQuestion(t, adaptive.C1, 1)
	}
	student := uuid.New()
	room := env.openRoom(t, model.MechanismStatic, 10, student)

	out, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out.IsDone() || out.Position != 1 || out.Total != 10 || len(out.QuestionMap) != 10 {
		t.Fatalf("unexpected first outcome: %+v", out)
	}

	for i := 0; i < 10; i++ {
		if out.IsDone() {
			t.Fatalf("done early after %d answers: %s", i, out.Reason)
		}
		if wantLast := i == 9; out.IsLast != wantLast {
			t.Errorf("answer %d: is_last = %v, want %v", i, out.IsLast, wantLast)
		}
		response := " a "
		if i >= 7 {
			response = "B"
		}
		out = env.answer(t, student, room.ID, out.Question.ID, response)
	}
	if !out.IsDone() || out.Reason != model.ReasonAllAnswered {
		t.Fatalf("expected %q, got %+v", model.ReasonAllAnswered, out)
	}
	if out.Summary != nil {
		t.Errorf("map exhaustion should not finish the session")
	}

	sum, err := env.exams.Finish(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.TrueScore != 70 || sum.TotalCorrect != 7 || sum.TotalAnswered != 10 {
		t.Errorf("summary = %+v, want 70.00 with 7/10", sum)
	}
	if sum.TotalTimeSeconds != 300 || sum.AvgTimePerQuestion != 30 {
		t.Errorf("time = %d / %.2f, want 300 / 30", sum.TotalTimeSeconds, sum.AvgTimePerQuestion)
	}
	if sum.ExpectationScore != nil {
		t.Errorf("static rooms have no expectation score")
	}

	res, err := env.exams.Result(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	assertSameSummary(t, sum, res)

	again, err := env.exams.Finish(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("second finish: %v", err)
	}
	assertSameSummary(t, sum, again)
}

func TestRuleBasedTwoAttemptsScoreFifty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addQuestion(t, adaptive.C1, 1)
	env.addQuestion(t, adaptive.C1, 1)
	student := uuid.New()
	room := env.openRoom(t, model.MechanismRuleBased, 2, student)

	out, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out.Question.CognitiveLevel != adaptive.C1 || out.Question.Difficulty != 1 {
		t.Fatalf("cold start served %s/%d", out.Question.CognitiveLevel, out.Question.Difficulty)
	}

	out = env.answer(t, student, room.ID, out.Question.ID, "C")
	if out.IsDone() {
		t.Fatalf("stopped after one answer: %s", out.Reason)
	}
	if out.Position != 2 || !out.IsLast {
		t.Errorf("position %d is_last %v, want 2 true", out.Position, out.IsLast)
	}

	out = env.answer(t, student, room.ID, out.Question.ID, "A")
	if !out.IsDone() || out.Reason != adaptive.ReasonMaxItemsReached {
		t.Fatalf("expected %q, got %+v", adaptive.ReasonMaxItemsReached, out)
	}
	if out.Summary == nil {
		t.Fatal("stop should carry the summary")
	}
	if out.Summary.TrueScore != 50 {
		t.Errorf("true score = %.2f, want 50.00", out.Summary.TrueScore)
	}
	if out.Summary.ExpectationScore == nil || *out.Summary.ExpectationScore != 50 {
		t.Errorf("expectation score = %v, want 50", out.Summary.ExpectationScore)
	}

	res, err := env.exams.Result(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	assertSameSummary(t, out.Summary, res)
}

func TestAnswerResubmissionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addQuestion(t, adaptive.C1, 1)
	env.addQuestion(t, adaptive.C1, 1)
	for i := 0; i < 4; i++ {
		env.addQuestion(t, adaptive.C1, 2)
	}
	student := uuid.New()
	room := env.openRoom(t, model.MechanismRuleBased, 5, student)

	start, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	first := env.answer(t, student, room.ID, start.Question.ID, "A")
	second := env.answer(t, student, room.ID, start.Question.ID, "A")

	if first.Question.ID != second.Question.ID || first.Position != second.Position {
		t.Errorf("resubmission changed the outcome: %d@%d vs %d@%d",
			first.Question.ID, first.Position, second.Question.ID, second.Position)
	}
	if second.Question.Difficulty != 2 {
		t.Errorf("after a correct (C1,1) the target is (C1,2), got difficulty %d", second.Question.Difficulty)
	}

	history, err := env.store.ListHistory(ctx, room.ID, student)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history has %d rows, want 1", len(history))
	}
	if history[0].ESValue == nil || *history[0].ESValue != 58.33 {
		t.Errorf("es = %v, want 58.33", history[0].ESValue)
	}

	again, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if again.Question.ID != second.Question.ID {
		t.Errorf("start after answer served %d, want %d", again.Question.ID, second.Question.ID)
	}
}

func TestRandomMapIsStableAcrossStarts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		env.addQuestion(t, adaptive.C2, 2)
	}
	student := uuid.New()
	room := env.openRoom(t, model.MechanismRandom, 8, student)

	first, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(first.QuestionMap) != 8 {
		t.Fatalf("map length = %d, want 8", len(first.QuestionMap))
	}
	if !slices.Equal(first.QuestionMap, second.QuestionMap) || first.Question.ID != second.Question.ID {
		t.Errorf("map changed between starts: %v vs %v", first.QuestionMap, second.QuestionMap)
	}

	// A fresh service with the same seed rebuilds the same map.
	p, err := env.store.GetParticipant(ctx, room.ID, student)
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	pool, err := env.store.FindPool(ctx, room.PoolFilter())
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	rebuilt := selection.New(selection.NewSource(testSeed)).RandomMap(room.ID, student, pool, 8)
	if !slices.Equal(rebuilt, p.QuestionMap) {
		t.Errorf("stored map %v differs from rebuilt %v", p.QuestionMap, rebuilt)
	}
}

func TestSkippedQuestionAdvancesMap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.addQuestion(t, adaptive.C1, 1)
	}
	student := uuid.New()
	room := env.openRoom(t, model.MechanismStatic, 3, student)

	out, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	skipped := out.Question.ID
	out, err = env.exams.Answer(ctx, AnswerInput{StudentID: student, RoomID: room.ID, QuestionID: skipped})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if out.IsDone() || out.Question.ID == skipped || out.Position != 2 {
		t.Fatalf("skip did not advance: %+v", out)
	}

	view, err := env.exams.Question(ctx, student, room.ID, skipped)
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if view.PreviousAnswer != nil || view.Position != 1 {
		t.Errorf("view = %+v, want position 1 with no previous answer", view)
	}
}

func TestRuleBasedPoolExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addQuestion(t, adaptive.C1, 1)
	env.addQuestion(t, adaptive.C3, 3)
	student := uuid.New()
	room := env.openRoom(t, model.MechanismRuleBased, 5, student)

	out, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	out = env.answer(t, student, room.ID, out.Question.ID, "E")
	if !out.IsDone() || out.Reason != model.ReasonPoolExhausted {
		t.Fatalf("expected %q, got %+v", model.ReasonPoolExhausted, out)
	}
	if out.Summary != nil {
		t.Error("pool exhaustion should not finish the session")
	}
	if _, err := env.exams.Result(ctx, student, room.ID); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("result before finish: got %v, want ErrResultNotFound", err)
	}
}

func TestRuleBasedRejectsOffTargetAnswer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	easy := env.addQuestion(t, adaptive.C1, 1)
	harder := env.addQuestion(t, adaptive.C1, 2)
	far := env.addQuestion(t, adaptive.C3, 3)
	student := uuid.New()
	room := env.openRoom(t, model.MechanismRuleBased, 5, student)

	submit := func(questionID int64) error {
		resp := "A"
		_, err := env.exams.Answer(ctx, AnswerInput{StudentID: student, RoomID: room.ID, QuestionID: questionID, Response: &resp})
		return err
	}

	steps := []struct {
		name     string
		question int64
		want     error
	}{
		{"skip the cold start", far, ErrQuestionNotInSession},
		{"cold start item", easy, nil},
		{"resubmit the answered item", easy, nil},
		{"jump past the next target", far, ErrQuestionNotInSession},
		{"next target after a correct answer", harder, nil},
	}
	for _, st := range steps {
		if err := submit(st.question); !errors.Is(err, st.want) {
			t.Fatalf("%s: got %v, want %v", st.name, err, st.want)
		}
	}

	history, err := env.store.ListHistory(ctx, room.ID, student)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var got []int64
	for _, a := range history {
		got = append(got, a.QuestionID)
	}
	if !slices.Equal(got, []int64{easy, harder}) {
		t.Errorf("history = %v, want [%d %d]", got, easy, harder)
	}
}

func TestRuleBasedStopsOnMastery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addQuestion(t, adaptive.C1, 1)
	env.addQuestion(t, adaptive.C1, 2)
	for _, level := range adaptive.Levels() {
		env.addQuestion(t, level, 3)
	}
	student := uuid.New()
	room := env.openRoom(t, model.MechanismRuleBased, 10, student)

	out, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	answered := 0
	for !out.IsDone() {
		if answered == 10 {
			t.Fatal("session never stopped")
		}
		out = env.answer(t, student, room.ID, out.Question.ID, "A")
		answered++
	}

	if out.Reason != adaptive.ReasonAllMastered {
		t.Fatalf("reason = %q after %d answers, want %q", out.Reason, answered, adaptive.ReasonAllMastered)
	}
	if answered != 8 {
		t.Errorf("answered %d, want 8", answered)
	}
	if out.Summary == nil || out.Summary.TrueScore != 100 {
		t.Errorf("summary = %+v, want true score 100", out.Summary)
	}

	// Any later start or answer replays the terminal outcome untouched.
	replay, err := env.exams.Start(ctx, student, room.ID)
	if err != nil {
		t.Fatalf("start after stop: %v", err)
	}
	if !replay.IsDone() || replay.Reason != adaptive.ReasonAllMastered {
		t.Errorf("replay = %+v", replay)
	}
	history, _ := env.store.ListHistory(ctx, room.ID, student)
	if len(history) != 8 {
		t.Errorf("history has %d rows, want 8", len(history))
	}

	var finished int
	for _, ev := range env.events.events {
		if ev.Type == model.ProgressFinished {
			finished++
		}
	}
	if finished != 1 {
		t.Errorf("published %d finished events, want 1", finished)
	}
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.addQuestion(t, adaptive.C1, 1)
	}
	enrolled := uuid.New()
	stranger := uuid.New()
	ruleRoom := env.openRoom(t, model.MechanismRuleBased, 3, enrolled)
	staticRoom := env.openRoom(t, model.MechanismStatic, 3, enrolled)

	preparing, err := env.rooms.CreateRoom(ctx, env.instructor, model.CreateRoomRequest{
		Name: "Belum mulai", Mechanism: "random", QuestionCount: 3, SubjectID: 1, ClassLevel: "X",
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, _, err := env.rooms.JoinRoom(ctx, enrolled, preparing.Keypass); err != nil {
		t.Fatalf("join: %v", err)
	}

	tests := []struct {
		name   string
		run    func() error
		want   error
		family error
	}{
		{
			name:   "missing room",
			run:    func() error { _, err := env.exams.Start(ctx, enrolled, 9999); return err },
			want:   ErrRoomNotFound,
			family: ErrNotFound,
		},
		{
			name:   "inactive room",
			run:    func() error { _, err := env.exams.Start(ctx, enrolled, preparing.ID); return err },
			want:   ErrRoomNotActive,
			family: ErrInvalidState,
		},
		{
			name:   "not enrolled",
			run:    func() error { _, err := env.exams.Start(ctx, stranger, ruleRoom.ID); return err },
			want:   ErrNotEnrolled,
			family: ErrInvalidState,
		},
		{
			name: "unknown question",
			run: func() error {
				_, err := env.exams.Answer(ctx, AnswerInput{StudentID: enrolled, RoomID: ruleRoom.ID, QuestionID: 9999})
				return err
			},
			want:   ErrInvalidQuestion,
			family: ErrNotFound,
		},
		{
			name: "question outside the map",
			run: func() error {
				_, err := env.exams.Answer(ctx, AnswerInput{StudentID: enrolled, RoomID: staticRoom.ID, QuestionID: 9999})
				return err
			},
			want:   ErrQuestionNotInSession,
			family: ErrInvalidState,
		},
		{
			name:   "navigation in rule-based room",
			run:    func() error { _, err := env.exams.Question(ctx, enrolled, ruleRoom.ID, 1); return err },
			want:   ErrNavigationNotAllowed,
			family: ErrInvalidState,
		},
		{
			name:   "result before finish",
			run:    func() error { _, err := env.exams.Result(ctx, enrolled, ruleRoom.ID); return err },
			want:   ErrResultNotFound,
			family: ErrNotFound,
		},
		{
			name:   "finish without enrolment",
			run:    func() error { _, err := env.exams.Finish(ctx, stranger, ruleRoom.ID); return err },
			want:   ErrNotEnrolled,
			family: ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if !errors.Is(err, tt.family) {
				t.Errorf("%v is not in family %v", err, tt.family)
			}
		})
	}

	history, err := env.store.ListHistory(ctx, ruleRoom.ID, enrolled)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("rejected answers left %d rows", len(history))
	}
}

func assertSameSummary(t *testing.T, want, got *model.Summary) {
	t.Helper()
	if want.TotalAnswered != got.TotalAnswered || want.TotalCorrect != got.TotalCorrect ||
		want.TrueScore != got.TrueScore || want.TotalTimeSeconds != got.TotalTimeSeconds ||
		want.AvgTimePerQuestion != got.AvgTimePerQuestion {
		t.Errorf("summary mismatch:\nwant %+v\n got %+v", want, got)
	}
	if (want.ExpectationScore == nil) != (got.ExpectationScore == nil) ||
		(want.ExpectationScore != nil && *want.ExpectationScore != *got.ExpectationScore) {
		t.Errorf("expectation score mismatch: %v vs %v", want.ExpectationScore, got.ExpectationScore)
	}
	if want.FinishedAt == nil || got.FinishedAt == nil || !want.FinishedAt.Equal(*got.FinishedAt) {
		t.Errorf("finished_at mismatch: %v vs %v", want.FinishedAt, got.FinishedAt)
	}
}
