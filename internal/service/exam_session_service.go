package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/metrics"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository"
	"github.com/stemsi/exstem-adaptive/internal/selection"
)

// ExamSessionService drives a student through a room: it serves questions,
// records answers, decides when to stop and computes the final summary.
type ExamSessionService struct {
	questions QuestionRepository
	answers   AnswerLedger
	rooms     RoomStore
	events    EventPublisher
	selector  *selection.Selector
	estimator *adaptive.Estimator
	stopper   *adaptive.StopEvaluator
	log       zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	questions QuestionRepository,
	answers AnswerLedger,
	rooms RoomStore,
	events EventPublisher,
	selector *selection.Selector,
	cfg adaptive.Config,
	log zerolog.Logger,
) *ExamSessionService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ExamSessionService{
		questions: questions,
		answers:   answers,
		rooms:     rooms,
		events:    events,
		selector:  selector,
		estimator: adaptive.NewEstimator(cfg),
		stopper:   adaptive.NewStopEvaluator(cfg),
		log:       log.With().Str("component", "exam_session").Logger(),
	}
}

// AnswerInput is one submitted answer.
type AnswerInput struct {
	StudentID        uuid.UUID
	RoomID           int64
	QuestionID       int64
	Response         *string
	TimeTakenSeconds *int
}

// session is the validated (room, participant) pair an operation runs on.
type session struct {
	room        *model.Room
	participant *model.Participant
}

// ─── Start ───────────────────────────────────────────────────────────

// Start opens or resumes a session and returns the question to show, or the
// terminal outcome if the session is already over.
func (s *ExamSessionService) Start(ctx context.Context, studentID uuid.UUID, roomID int64) (*model.Outcome, error) {
	defer metrics.Since("start", time.Now())

	sess, err := s.load(ctx, studentID, roomID)
	if err != nil {
		return nil, err
	}
	history, err := s.history(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.participant.Finished() {
		return s.finishedOutcome(sess, history), nil
	}
	return s.next(ctx, sess, history)
}

// ─── Answer ──────────────────────────────────────────────────────────

// Answer records a response and returns what comes next. Resubmitting the
// same question overwrites the earlier answer and yields the same outcome.
func (s *ExamSessionService) Answer(ctx context.Context, in AnswerInput) (*model.Outcome, error) {
	defer metrics.Since("answer", time.Now())

	sess, err := s.load(ctx, in.StudentID, in.RoomID)
	if err != nil {
		return nil, err
	}
	room, p := sess.room, sess.participant

	if room.Mechanism.MapBased() && !slices.Contains(p.QuestionMap, in.QuestionID) {
		return nil, ErrQuestionNotInSession
	}

	q, err := s.questions.GetByID(ctx, in.QuestionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidQuestion
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	if room.Mechanism == model.MechanismRuleBased && !inPool(q, room) {
		return nil, ErrQuestionNotInSession
	}

	history, err := s.history(ctx, sess)
	if err != nil {
		return nil, err
	}
	if p.Finished() {
		return s.finishedOutcome(sess, history), nil
	}
	if room.Mechanism == model.MechanismRuleBased && !onTarget(q, history) {
		return nil, ErrQuestionNotInSession
	}

	response := normalizeResponse(in.Response)
	ans := &model.Answer{
		RoomID:           room.ID,
		StudentID:        in.StudentID,
		QuestionID:       q.ID,
		Response:         response,
		IsCorrect:        q.IsCorrect(response),
		TimeTakenSeconds: in.TimeTakenSeconds,
		CognitiveLevel:   q.CognitiveLevel,
		Difficulty:       q.Difficulty,
	}

	if room.Mechanism == model.MechanismRuleBased {
		// A resubmission replaces its earlier row, so that row must not
		// count towards the new estimate.
		prior := slices.DeleteFunc(slices.Clone(history), func(a model.Answer) bool {
			return a.QuestionID == q.ID
		})
		es := s.estimator.ES(append(model.Attempts(prior), ans.Attempt()))
		ans.ESValue = &es
	}

	if err := s.answers.Upsert(ctx, ans); err != nil {
		return nil, fmt.Errorf("upsert answer: %w", err)
	}
	metrics.ObserveAnswer(string(room.Mechanism), ans.IsCorrect)

	history, err = s.history(ctx, sess)
	if err != nil {
		return nil, err
	}

	correct := ans.IsCorrect
	s.publish(ctx, model.ProgressEvent{
		Type:          model.ProgressAnswered,
		RoomID:        room.ID,
		StudentID:     in.StudentID,
		QuestionID:    q.ID,
		IsCorrect:     &correct,
		AnsweredCount: len(history),
		ES:            ans.ESValue,
		At:            ans.AnsweredAt,
	})

	s.log.Debug().
		Int64("room_id", room.ID).
		Str("student_id", in.StudentID.String()).
		Int64("question_id", q.ID).
		Bool("correct", ans.IsCorrect).
		Msg("answer recorded")

	return s.next(ctx, sess, history)
}

// ─── Question (free navigation) ─────────────────────────────────────

// Question returns one question of a static or random session together with
// the student's previous response, so the client can jump around the map.
func (s *ExamSessionService) Question(ctx context.Context, studentID uuid.UUID, roomID, questionID int64) (*model.QuestionView, error) {
	sess, err := s.load(ctx, studentID, roomID)
	if err != nil {
		return nil, err
	}
	room, p := sess.room, sess.participant
	if !room.Mechanism.MapBased() {
		return nil, ErrNavigationNotAllowed
	}

	idx := slices.Index(p.QuestionMap, questionID)
	if idx < 0 {
		return nil, ErrQuestionNotInSession
	}

	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidQuestion
		}
		return nil, fmt.Errorf("get question: %w", err)
	}

	history, err := s.history(ctx, sess)
	if err != nil {
		return nil, err
	}
	view := &model.QuestionView{
		Question: q.ForStudent(),
		Position: idx + 1,
		Total:    len(p.QuestionMap),
		IsLast:   idx == len(p.QuestionMap)-1,
	}
	for _, a := range history {
		if a.QuestionID == questionID {
			view.PreviousAnswer = a.Response
			break
		}
	}
	return view, nil
}

// ─── Finish / Result ─────────────────────────────────────────────────

// Finish aggregates the ledger into the terminal summary and stores it.
// Calling it again recomputes the same summary and keeps the first finish time.
func (s *ExamSessionService) Finish(ctx context.Context, studentID uuid.UUID, roomID int64) (*model.Summary, error) {
	defer metrics.Since("finish", time.Now())

	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	p, err := s.getParticipant(ctx, roomID, studentID)
	if err != nil {
		return nil, err
	}
	sess := &session{room: room, participant: p}
	history, err := s.history(ctx, sess)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, sess, history)
}

// Result reads the stored summary. It fails with ErrResultNotFound when the
// student never joined or never finished the room.
func (s *ExamSessionService) Result(ctx context.Context, studentID uuid.UUID, roomID int64) (*model.Summary, error) {
	p, err := s.rooms.GetParticipant(ctx, roomID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	if !p.Finished() {
		return nil, ErrResultNotFound
	}
	return model.SummaryOf(p), nil
}

// ─── Internals ───────────────────────────────────────────────────────

func (s *ExamSessionService) getRoom(ctx context.Context, roomID int64) (*model.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

func (s *ExamSessionService) getParticipant(ctx context.Context, roomID int64, studentID uuid.UUID) (*model.Participant, error) {
	p, err := s.rooms.GetParticipant(ctx, roomID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// load validates the room and enrolment before anything is mutated.
func (s *ExamSessionService) load(ctx context.Context, studentID uuid.UUID, roomID int64) (*session, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != model.RoomStatusActive {
		return nil, ErrRoomNotActive
	}
	p, err := s.getParticipant(ctx, roomID, studentID)
	if err != nil {
		return nil, err
	}
	if !room.Mechanism.Valid() {
		return nil, ErrUnknownMechanism
	}
	return &session{room: room, participant: p}, nil
}

func (s *ExamSessionService) history(ctx context.Context, sess *session) ([]model.Answer, error) {
	history, err := s.answers.ListHistory(ctx, sess.room.ID, sess.participant.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return history, nil
}

func (s *ExamSessionService) next(ctx context.Context, sess *session, history []model.Answer) (*model.Outcome, error) {
	switch sess.room.Mechanism {
	case model.MechanismStatic, model.MechanismRandom:
		return s.nextFromMap(ctx, sess, history)
	case model.MechanismRuleBased:
		return s.nextRuleBased(ctx, sess, history)
	}
	return nil, ErrUnknownMechanism
}

func (s *ExamSessionService) nextFromMap(ctx context.Context, sess *session, history []model.Answer) (*model.Outcome, error) {
	questionMap, err := s.ensureMap(ctx, sess)
	if err != nil {
		return nil, err
	}

	attempted := make(map[int64]bool, len(history))
	attemptedIDs := make([]int64, 0, len(history))
	for _, a := range history {
		attempted[a.QuestionID] = true
		attemptedIDs = append(attemptedIDs, a.QuestionID)
	}

	id, position, ok := selection.NextUnanswered(questionMap, attempted)
	if !ok {
		out := model.Done(model.ReasonAllAnswered, nil)
		out.QuestionMap = questionMap
		out.AttemptedIDs = attemptedIDs
		metrics.ObserveDone(string(sess.room.Mechanism), out.Reason)
		return out, nil
	}

	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get mapped question %d: %w", id, err)
	}

	remaining := 0
	for _, qid := range questionMap {
		if !attempted[qid] {
			remaining++
		}
	}
	out := model.Continue(q, position, len(questionMap), remaining == 1)
	out.QuestionMap = questionMap
	out.AttemptedIDs = attemptedIDs
	return out, nil
}

// ensureMap returns the participant's question map, building and storing it
// on first use.
func (s *ExamSessionService) ensureMap(ctx context.Context, sess *session) ([]int64, error) {
	room, p := sess.room, sess.participant
	if len(p.QuestionMap) > 0 {
		return p.QuestionMap, nil
	}

	var questionMap []int64
	switch room.Mechanism {
	case model.MechanismRandom:
		pool, err := s.questions.FindPool(ctx, room.PoolFilter())
		if err != nil {
			return nil, fmt.Errorf("find pool: %w", err)
		}
		questionMap = s.selector.RandomMap(room.ID, p.StudentID, pool, room.QuestionCount)
	case model.MechanismStatic:
		preset, err := s.rooms.ListRoomQuestionIDs(ctx, room.ID)
		if err != nil {
			return nil, fmt.Errorf("list room questions: %w", err)
		}
		questionMap = s.selector.StaticMap(room.ID, p.StudentID, preset)
	}

	if err := s.rooms.SaveQuestionMap(ctx, room.ID, p.StudentID, questionMap); err != nil {
		return nil, fmt.Errorf("save question map: %w", err)
	}
	p.QuestionMap = questionMap
	return questionMap, nil
}

func (s *ExamSessionService) nextRuleBased(ctx context.Context, sess *session, history []model.Answer) (*model.Outcome, error) {
	room, p := sess.room, sess.participant
	attempts := model.Attempts(history)

	if d := s.stopper.Evaluate(attempts, room.QuestionCount); d.Stop {
		summary, err := s.finish(ctx, sess, history)
		if err != nil {
			return nil, err
		}
		metrics.ObserveDone(string(room.Mechanism), d.Reason)
		return model.Done(d.Reason, summary), nil
	}

	pool, err := s.questions.FindPool(ctx, room.PoolFilter())
	if err != nil {
		return nil, fmt.Errorf("find pool: %w", err)
	}
	served := make(map[int64]bool, len(history))
	for _, a := range history {
		served[a.QuestionID] = true
	}

	target := adaptive.NextFromHistory(attempts)
	q := s.selector.PickRuleBased(room.ID, p.StudentID, len(history), pool, target, served)
	if q == nil {
		s.log.Info().
			Int64("room_id", room.ID).
			Str("student_id", p.StudentID.String()).
			Str("level", string(target.Level)).
			Int("difficulty", int(target.Difficulty)).
			Msg("no question left at target")
		metrics.ObserveDone(string(room.Mechanism), model.ReasonPoolExhausted)
		return model.Done(model.ReasonPoolExhausted, nil), nil
	}

	position := len(history) + 1
	return model.Continue(q, position, room.QuestionCount, position >= room.QuestionCount), nil
}

// finishedOutcome is returned for any start or answer after the summary has
// been written; it never mutates the ledger.
func (s *ExamSessionService) finishedOutcome(sess *session, history []model.Answer) *model.Outcome {
	reason := model.ReasonFinished
	if sess.room.Mechanism == model.MechanismRuleBased {
		if d := s.stopper.Evaluate(model.Attempts(history), sess.room.QuestionCount); d.Stop {
			reason = d.Reason
		}
	}
	return model.Done(reason, model.SummaryOf(sess.participant))
}

func (s *ExamSessionService) finish(ctx context.Context, sess *session, history []model.Answer) (*model.Summary, error) {
	room := sess.room
	sum := s.summarize(room, history)

	p, err := s.rooms.UpdateParticipantSummary(ctx, room.ID, sess.participant.StudentID, sum)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("update participant summary: %w", err)
	}
	sess.participant = p
	out := model.SummaryOf(p)

	metrics.ObserveFinalScore(string(room.Mechanism), out.TrueScore)
	score := out.TrueScore
	s.publish(ctx, model.ProgressEvent{
		Type:          model.ProgressFinished,
		RoomID:        room.ID,
		StudentID:     p.StudentID,
		AnsweredCount: out.TotalAnswered,
		TrueScore:     &score,
		At:            time.Now(),
	})

	s.log.Info().
		Int64("room_id", room.ID).
		Str("student_id", p.StudentID.String()).
		Float64("true_score", out.TrueScore).
		Int("answered", out.TotalAnswered).
		Msg("session finished")

	return out, nil
}

func (s *ExamSessionService) summarize(room *model.Room, history []model.Answer) *model.Summary {
	sum := &model.Summary{RoomID: room.ID, TotalAnswered: len(history)}
	for _, a := range history {
		if a.IsCorrect {
			sum.TotalCorrect++
		}
		if a.TimeTakenSeconds != nil {
			sum.TotalTimeSeconds += *a.TimeTakenSeconds
		}
	}
	if sum.TotalAnswered > 0 {
		sum.AvgTimePerQuestion = adaptive.Round2(float64(sum.TotalTimeSeconds) / float64(sum.TotalAnswered))
	}

	if room.Mechanism == model.MechanismRuleBased {
		attempts := model.Attempts(history)
		sum.TrueScore = s.estimator.WeightedScore(attempts)
		if n := len(history); n > 0 && history[n-1].ESValue != nil {
			es := *history[n-1].ESValue
			sum.ExpectationScore = &es
		}
	} else {
		sum.TrueScore = adaptive.PercentScore(sum.TotalCorrect, room.QuestionCount)
	}
	return sum
}

func (s *ExamSessionService) publish(ctx context.Context, ev model.ProgressEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Int64("room_id", ev.RoomID).
			Str("type", string(ev.Type)).
			Msg("failed to publish progress event")
	}
}

// normalizeResponse trims and upper-cases a response; blank becomes nil.
func normalizeResponse(r *string) *string {
	if r == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*r))
	if v == "" {
		return nil
	}
	return &v
}

// onTarget reports whether a rule-based answer is for the item the history
// asks for next: either a resubmission of an answered question or a question
// at the expected level and difficulty.
func onTarget(q *model.Question, history []model.Answer) bool {
	if slices.ContainsFunc(history, func(a model.Answer) bool { return a.QuestionID == q.ID }) {
		return true
	}
	target := adaptive.NextFromHistory(model.Attempts(history))
	return q.CognitiveLevel == target.Level && q.Difficulty == target.Difficulty
}

func inPool(q *model.Question, room *model.Room) bool {
	if q.SubjectID != room.SubjectID || q.ClassLevel != room.ClassLevel {
		return false
	}
	return len(room.TopicIDs) == 0 || slices.Contains(room.TopicIDs, q.TopicID)
}
