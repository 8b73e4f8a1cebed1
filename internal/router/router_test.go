package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-adaptive/internal/adaptive"
	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/handler"
	"github.com/stemsi/exstem-adaptive/internal/model"
	"github.com/stemsi/exstem-adaptive/internal/repository/sqlite"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/selection"
	"github.com/stemsi/exstem-adaptive/internal/service"
	"github.com/stemsi/exstem-adaptive/internal/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

type testServer struct {
	engine     *gin.Engine
	store      *sqlite.Store
	auth       *service.AuthService
	instructor string
	student    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := zerolog.Nop()
	selector := selection.New(selection.NewSource(7))
	sessions := service.NewExamSessionService(store, store, store, nil, selector, adaptive.DefaultConfig(), log)
	rooms := service.NewRoomService(store, store, selector, log)
	auth := service.NewAuthService("router-test-secret", time.Hour)

	engine := SetupRouter(auth, &Handlers{
		Exam: handler.NewExamHandler(sessions, rooms, log),
		Room: handler.NewRoomHandler(rooms, log),
	}, &config.Config{GinMode: gin.TestMode})

	instructor, err := auth.GenerateToken(uuid.New(), service.RoleInstructor)
	if err != nil {
		t.Fatalf("instructor token: %v", err)
	}
	student, err := auth.GenerateToken(uuid.New(), service.RoleStudent)
	if err != nil {
		t.Fatalf("student token: %v", err)
	}
	return &testServer{engine: engine, store: store, auth: auth, instructor: instructor, student: student}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
	return v
}

func (s *testServer) seedQuestions(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		q := &model.Question{
			TopicID: 1, SubjectID: 1, ClassLevel: "X", QuestionText: "soal",
			OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", OptionE: "e",
			CognitiveLevel: adaptive.C1, Difficulty: 1, CorrectAnswer: "A",
		}
		if err := s.store.Create(context.Background(), q); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
}

func TestStudentFlow(t *testing.T) {
	srv := newTestServer(t)
	srv.seedQuestions(t, 3)

	code, env := srv.do(t, http.MethodPost, "/api/v1/instructor/rooms", srv.instructor, gin.H{
		"name": "Ujian Harian", "mechanism": "static", "question_count": 3,
		"subject_id": 1, "class_level": "X",
	})
	if code != http.StatusCreated {
		t.Fatalf("create room: %d %+v", code, env.Error)
	}
	room := decode[model.Room](t, env.Data)

	if code, env = srv.do(t, http.MethodPost, "/api/v1/student/rooms/join", srv.student, gin.H{"keypass": room.Keypass}); code != http.StatusOK {
		t.Fatalf("join: %d %+v", code, env.Error)
	}
	statusPath := "/api/v1/instructor/rooms/" + strconv.FormatInt(room.ID, 10) + "/status"
	if code, env = srv.do(t, http.MethodPatch, statusPath, srv.instructor, gin.H{"status": "active"}); code != http.StatusOK {
		t.Fatalf("activate: %d %+v", code, env.Error)
	}

	base := "/api/v1/student/rooms/" + strconv.FormatInt(room.ID, 10)
	code, env = srv.do(t, http.MethodPost, base+"/start", srv.student, nil)
	if code != http.StatusOK {
		t.Fatalf("start: %d %+v", code, env.Error)
	}
	out := decode[model.Outcome](t, env.Data)

	code, env = srv.do(t, http.MethodPost, base+"/answer", srv.student, gin.H{"question_id": out.Question.ID, "answer": "Z"})
	if code != http.StatusBadRequest || env.Error == nil || env.Error.Code != response.ErrValidation {
		t.Fatalf("invalid option: %d %+v", code, env.Error)
	}
	if _, ok := env.Error.Fields["answer"]; !ok {
		t.Errorf("validation fields %v missing answer", env.Error.Fields)
	}

	for !out.IsDone() {
		code, env = srv.do(t, http.MethodPost, base+"/answer", srv.student, gin.H{
			"question_id": out.Question.ID, "answer": "a", "time_taken_seconds": 12,
		})
		if code != http.StatusOK {
			t.Fatalf("answer: %d %+v", code, env.Error)
		}
		out = decode[model.Outcome](t, env.Data)
	}
	if out.Reason != model.ReasonAllAnswered {
		t.Errorf("reason = %q", out.Reason)
	}

	code, env = srv.do(t, http.MethodPost, base+"/finish", srv.student, nil)
	if code != http.StatusOK {
		t.Fatalf("finish: %d %+v", code, env.Error)
	}
	finished := decode[model.Summary](t, env.Data)
	if finished.TrueScore != 100 || finished.TotalAnswered != 3 || finished.TotalTimeSeconds != 36 {
		t.Errorf("summary = %+v", finished)
	}

	code, env = srv.do(t, http.MethodGet, base+"/result", srv.student, nil)
	if code != http.StatusOK {
		t.Fatalf("result: %d %+v", code, env.Error)
	}
	if result := decode[model.Summary](t, env.Data); result.TrueScore != finished.TrueScore || result.TotalCorrect != finished.TotalCorrect {
		t.Errorf("result %+v differs from finish %+v", result, finished)
	}
}

func TestErrorResponses(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		code   response.ErrCode
	}{
		{"no token", http.MethodPost, "/api/v1/student/rooms/1/start", "", nil, http.StatusUnauthorized, response.ErrTokenInvalid},
		{"instructor on student route", http.MethodPost, "/api/v1/student/rooms/1/start", srv.instructor, nil, http.StatusForbidden, response.ErrStudentAccessOnly},
		{"student on instructor route", http.MethodPost, "/api/v1/instructor/rooms", srv.student, gin.H{}, http.StatusForbidden, response.ErrInstructorAccessOnly},
		{"bad room id", http.MethodPost, "/api/v1/student/rooms/abc/start", srv.student, nil, http.StatusBadRequest, response.ErrInvalidID},
		{"missing room", http.MethodPost, "/api/v1/student/rooms/42/start", srv.student, nil, http.StatusNotFound, response.ErrRoomNotFound},
		{"no result yet", http.MethodGet, "/api/v1/student/rooms/42/result", srv.student, nil, http.StatusNotFound, response.ErrResultNotFound},
		{"malformed keypass", http.MethodPost, "/api/v1/student/rooms/join", srv.student, gin.H{"keypass": "abc"}, http.StatusBadRequest, response.ErrValidation},
		{"unknown keypass", http.MethodPost, "/api/v1/student/rooms/join", srv.student, gin.H{"keypass": "QWERTY12"}, http.StatusNotFound, response.ErrRoomNotFound},
		{"bad mechanism", http.MethodPost, "/api/v1/instructor/rooms", srv.instructor, gin.H{
			"name": "Ujian", "mechanism": "irt", "question_count": 5, "subject_id": 1, "class_level": "X",
		}, http.StatusBadRequest, response.ErrValidation},
		{"bad status filter", http.MethodGet, "/api/v1/instructor/rooms?status=open", srv.instructor, nil, http.StatusBadRequest, response.ErrValidation},
		{"bad student id", http.MethodDelete, "/api/v1/instructor/rooms/1/participants/nobody", srv.instructor, nil, http.StatusBadRequest, response.ErrInvalidID},
		{"leave without enrolment", http.MethodPost, "/api/v1/student/rooms/42/leave", srv.student, nil, http.StatusForbidden, response.ErrNotEnrolled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := srv.do(t, tt.method, tt.path, tt.token, tt.body)
			if code != tt.status {
				t.Errorf("status = %d, want %d", code, tt.status)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	code, env := srv.do(t, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK || env.Error != nil {
		t.Errorf("health: %d %+v", code, env.Error)
	}
}
