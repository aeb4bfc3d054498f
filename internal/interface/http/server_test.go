package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/coursehub-platform/internal/application/command"
	"github.com/coursehub/coursehub-platform/internal/application/issuance"
	"github.com/coursehub/coursehub-platform/internal/application/query"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/auth"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/docgen"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/messaging"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/storage"
	"github.com/coursehub/coursehub-platform/internal/interface/http/handlers"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

type apiEnv struct {
	t       *testing.T
	server  *Server
	store   *memory.Store
	gateway *docgen.Stub
	blobs   *storage.Memory
	relay   *messaging.MemoryRelay
	health  *handlers.CompositeHealthChecker
	deps    command.Deps
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store := memory.NewStore()
	gateway := docgen.NewStub()
	blobs := storage.NewMemory("https://files.test")
	relay := messaging.NewMemoryRelay(8)
	tokens, err := auth.NewJWTManager(auth.Config{Secret: "test-secret", AccessTTL: time.Hour})
	require.NoError(t, err)

	cmdDeps := command.Deps{UoW: store, Log: logger.Nop()}
	qDeps := query.Deps{UoW: store, Archive: issuance.NewArchive(blobs), Log: logger.Nop()}
	health := handlers.NewCompositeHealthChecker("test")
	testResults := query.NewGetTestResultHandler(qDeps, issuance.NewCertificateIssuer(gateway, blobs, nil, nil))

	deps := Dependencies{
		Commands: Commands{
			CreateUser:        command.NewCreateUserHandler(cmdDeps, bcrypt.MinCost),
			Authenticate:      command.NewAuthenticateHandler(cmdDeps, tokens),
			CreateCourse:      command.NewCreateCourseHandler(cmdDeps),
			AddModule:         command.NewAddModuleHandler(cmdDeps),
			AddLesson:         command.NewAddLessonHandler(cmdDeps),
			AddQuestion:       command.NewAddQuestionHandler(cmdDeps),
			RegisterForCourse: command.NewRegisterForCourseHandler(cmdDeps, issuance.NewContractIssuer(gateway, blobs, nil, nil)),
			StartLesson:       command.NewStartLessonHandler(cmdDeps),
			FinishLesson:      command.NewFinishLessonHandler(cmdDeps),
			GenerateTest:      command.NewGenerateTestHandler(cmdDeps),
			StartTest:         command.NewStartTestHandler(cmdDeps),
			SubmitTest:        command.NewSubmitTestHandler(cmdDeps),
			GiveFeedback:      command.NewGiveFeedbackHandler(cmdDeps),
			SendMessage:       command.NewSendMessageHandler(cmdDeps, relay),
		},
		Queries: Queries{
			ListCourses:         query.NewListCoursesHandler(qDeps),
			GetCourse:           query.NewGetCourseHandler(qDeps),
			ListModules:         query.NewListModulesHandler(qDeps),
			ListLessons:         query.NewListLessonsHandler(qDeps),
			GetModule:           query.NewGetModuleHandler(qDeps),
			GetLesson:           query.NewGetLessonHandler(qDeps),
			ListFeedback:        query.NewListFeedbackHandler(qDeps),
			ListEnrollments:     query.NewListEnrollmentsHandler(qDeps),
			ListResults:         query.NewListResultsHandler(qDeps),
			GetTestResult:       testResults,
			InitialTestResult:   query.NewInitialTestResultHandler(qDeps),
			DownloadCertificate: query.NewDownloadCertificateHandler(qDeps, testResults),
			DownloadContract:    query.NewDownloadContractHandler(qDeps),
			ListMessages:        query.NewListMessagesHandler(qDeps),
			GetStatistics:       query.NewGetStatisticsHandler(qDeps, nil, 0),
		},
		Tokens:        tokens,
		HealthChecker: health,
		Logger:        logger.Nop(),
	}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	return &apiEnv{
		t:       t,
		server:  NewServer(cfg, deps),
		store:   store,
		gateway: gateway,
		blobs:   blobs,
		relay:   relay,
		health:  health,
		deps:    cmdDeps,
	}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

type response struct {
	status int
	body   envelope
}

func (r response) into(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body.Data, dst), string(r.body.Data))
}

func (e *apiEnv) do(method, path, token string, body any) response {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return response{status: rec.Code, body: env}
}

// fetch returns the raw recorder for non-JSON responses.
func (e *apiEnv) fetch(path, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// account creates a user directly and logs in through the API.
func (e *apiEnv) account(username string, role shared.Role) string {
	e.t.Helper()
	_, err := command.NewCreateUserHandler(e.deps, bcrypt.MinCost).Handle(context.Background(), command.CreateUserCommand{
		Username: username,
		Email:    username + "@example.com",
		Name:     username,
		Role:     role.String(),
		Password: "correct-horse",
	})
	require.NoError(e.t, err)

	res := e.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: username, Password: "correct-horse"})
	require.Equal(e.t, http.StatusOK, res.status)
	var tok tokenResponse
	res.into(e.t, &tok)
	require.NotEmpty(e.t, tok.AccessToken)
	return tok.AccessToken
}

type courseFixture struct {
	courseID int64
	moduleID int64
	lessonID int64
}

// course builds a course with one module, one lesson and one pre-course
// question whose correct answer is "4".
func (e *apiEnv) course(teacher string) courseFixture {
	e.t.Helper()

	res := e.do(http.MethodPost, "/api/v1/courses", teacher, createCourseRequest{Title: "Go Basics", Price: "199.90"})
	require.Equal(e.t, http.StatusCreated, res.status, res.body.Error)
	var course query.CourseDTO
	res.into(e.t, &course)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/modules", course.ID), teacher, addModuleRequest{Title: "Syntax"})
	require.Equal(e.t, http.StatusCreated, res.status, res.body.Error)
	var module query.ModuleDTO
	res.into(e.t, &module)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/modules/%d/lessons", module.ID), teacher, addLessonRequest{Title: "Variables"})
	require.Equal(e.t, http.StatusCreated, res.status, res.body.Error)
	var lesson query.LessonDTO
	res.into(e.t, &lesson)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/questions", course.ID), teacher, addQuestionRequest{
		Text: "2 + 2 = ?",
		Type: 1,
		Answers: []answerPayload{
			{Text: "4", Correct: true},
			{Text: "5"},
		},
	})
	require.Equal(e.t, http.StatusCreated, res.status, res.body.Error)

	return courseFixture{courseID: course.ID, moduleID: module.ID, lessonID: lesson.ID}
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_Health(t *testing.T) {
	e := newAPIEnv(t)

	res := e.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.True(t, res.body.Success)
	assert.NotEmpty(t, res.body.RequestID)

	res = e.do(http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, res.status)

	e.health.AddOptionalCheck("relay", func(context.Context) error { return errors.New("redis down") })
	res = e.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, res.status)

	e.health.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
	res = e.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	require.NotNil(t, res.body.Error)
	assert.Contains(t, res.body.Error.Message, "database")
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNTS
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_RegisterLoginMe(t *testing.T) {
	e := newAPIEnv(t)

	res := e.do(http.MethodPost, "/api/v1/auth/register", "", registerUserRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-horse",
	})
	require.Equal(t, http.StatusCreated, res.status)
	var u userResponse
	res.into(t, &u)
	assert.Equal(t, "student", u.Role)

	res = e.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: "alice", Password: "wrong-horse"})
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = e.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{Username: "alice", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, res.status)
	var tok tokenResponse
	res.into(t, &tok)
	assert.Equal(t, "Bearer", tok.TokenType)

	res = e.do(http.MethodGet, "/api/v1/auth/me", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var me principal
	res.into(t, &me)
	assert.Equal(t, u.ID, me.ID)
	assert.Equal(t, "alice", me.Username)
}

func TestServer_Unauthenticated(t *testing.T) {
	e := newAPIEnv(t)

	res := e.do(http.MethodGet, "/api/v1/enrollments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	require.NotNil(t, res.body.Error)
	assert.Equal(t, codeUnauthenticated, res.body.Error.Code)

	res = e.do(http.MethodGet, "/api/v1/enrollments", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	// A bad token is rejected on public routes too.
	res = e.do(http.MethodGet, "/api/v1/courses", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
}

func TestServer_OnlyAdminsCreateStaff(t *testing.T) {
	e := newAPIEnv(t)
	student := e.account("bob", shared.RoleStudent)
	admin := e.account("root", shared.RoleAdmin)
	req := registerUserRequest{Username: "carol", Password: "correct-horse", Role: "teacher"}

	res := e.do(http.MethodPost, "/api/v1/auth/register", "", req)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = e.do(http.MethodPost, "/api/v1/auth/register", student, req)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = e.do(http.MethodPost, "/api/v1/auth/register", admin, req)
	require.Equal(t, http.StatusCreated, res.status)
	var u userResponse
	res.into(t, &u)
	assert.Equal(t, "teacher", u.Role)
}

func TestServer_ClosedRegistration(t *testing.T) {
	e := newAPIEnv(t)
	admin := e.account("root", shared.RoleAdmin)
	e.server.config.ClosedRegistration = true
	req := registerUserRequest{Username: "dave", Password: "correct-horse"}

	res := e.do(http.MethodPost, "/api/v1/auth/register", "", req)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = e.do(http.MethodPost, "/api/v1/auth/register", admin, req)
	require.Equal(t, http.StatusCreated, res.status)
}

// ══════════════════════════════════════════════════════════════════════════════
// WORKFLOW
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_EnrollmentAndAssessmentFlow(t *testing.T) {
	e := newAPIEnv(t)
	teacher := e.account("teacher", shared.RoleTeacher)
	student := e.account("alice", shared.RoleStudent)
	fx := e.course(teacher)

	// Registration is idempotent and renders one contract.
	res := e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/register", fx.courseID), student, nil)
	require.Equal(t, http.StatusCreated, res.status, res.body.Error)
	var reg registrationResponse
	res.into(t, &reg)
	assert.Equal(t, fmt.Sprintf("contract_%d.pdf", reg.EnrollmentID), reg.ContractFile)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/register", fx.courseID), student, nil)
	require.Equal(t, http.StatusOK, res.status)
	var again registrationResponse
	res.into(t, &again)
	assert.True(t, again.AlreadyEnrolled)
	assert.Equal(t, reg.EnrollmentID, again.EnrollmentID)
	assert.Equal(t, 1, e.gateway.Renders())

	// Access is granted only after the contract is paid.
	res = e.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", fx.courseID), student, nil)
	require.Equal(t, http.StatusOK, res.status)
	var course query.CourseDTO
	res.into(t, &course)
	require.NotNil(t, course.HasAccess)
	assert.False(t, *course.HasAccess)

	res = e.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", fx.courseID), "", nil)
	require.Equal(t, http.StatusOK, res.status)
	var anonymous query.CourseDTO
	res.into(t, &anonymous)
	assert.Nil(t, anonymous.HasAccess)

	// Lesson progress.
	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/lessons/%d/start", fx.lessonID), student, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var started progressResponse
	res.into(t, &started)
	require.NotNil(t, started.StartedAt)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/lessons/%d/finish", fx.lessonID), student, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var finished progressResponse
	res.into(t, &finished)
	require.NotNil(t, finished.CompletedAt)
	assert.Equal(t, *started.StartedAt, *finished.StartedAt)

	// Pre-course test.
	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/tests", fx.courseID), student, generateTestRequest{Type: 1})
	require.Equal(t, http.StatusCreated, res.status, res.body.Error)
	var gen generateTestResponse
	res.into(t, &gen)
	assert.Equal(t, 1, gen.TotalQuestions)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/tests", fx.courseID), student, generateTestRequest{Type: 1})
	require.Equal(t, http.StatusOK, res.status)
	var resumed generateTestResponse
	res.into(t, &resumed)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, gen.TestEnrollmentID, resumed.TestEnrollmentID)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/start", gen.TestEnrollmentID), student, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var sheet startTestResponse
	res.into(t, &sheet)
	require.Len(t, sheet.Questions, 1)
	assert.NotContains(t, string(res.body.Data), "correct")

	var pick pickPayload
	pick.QuestionID = sheet.Questions[0].ID
	for _, a := range sheet.Questions[0].Answers {
		if a.Text == "4" {
			pick.SelectedAnswerID = a.ID
		}
	}
	require.NotZero(t, pick.SelectedAnswerID)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/submit", gen.TestEnrollmentID), student, submitTestRequest{Answers: []pickPayload{pick}})
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var score submitTestResponse
	res.into(t, &score)
	assert.Equal(t, 1, score.CorrectAnswers)
	assert.Equal(t, 1, score.TotalQuestions)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/submit", gen.TestEnrollmentID), student, submitTestRequest{Answers: []pickPayload{pick}})
	assert.Equal(t, http.StatusConflict, res.status)

	res = e.do(http.MethodGet, fmt.Sprintf("/api/v1/tests/%d/result", gen.TestEnrollmentID), student, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var result query.TestResultDTO
	res.into(t, &result)
	assert.True(t, result.Finished)
	assert.Equal(t, 1, result.CorrectAnswers)

	res = e.do(http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/tests/initial", fx.courseID), student, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var initial query.InitialTestResultDTO
	res.into(t, &initial)
	assert.True(t, initial.Finished)

	res = e.do(http.MethodGet, "/api/v1/tests", student, nil)
	require.Equal(t, http.StatusOK, res.status)
	var results []query.TestResultDTO
	res.into(t, &results)
	assert.Len(t, results, 1)
}

func TestServer_DocumentDownloads(t *testing.T) {
	e := newAPIEnv(t)
	teacher := e.account("teacher", shared.RoleTeacher)
	student := e.account("alice", shared.RoleStudent)
	other := e.account("bob", shared.RoleStudent)
	fx := e.course(teacher)
	ctx := context.Background()

	res := e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/register", fx.courseID), student, nil)
	require.Equal(t, http.StatusCreated, res.status, res.body.Error)
	var reg registrationResponse
	res.into(t, &reg)

	contractPath := fmt.Sprintf("/api/v1/enrollments/%d/contract", reg.EnrollmentID)
	rec := e.fetch(contractPath, student)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="`+reg.ContractFile+`"`, rec.Header().Get("Content-Disposition"))
	stored, err := e.blobs.Get(ctx, reg.ContractFile)
	require.NoError(t, err)
	assert.Equal(t, stored, rec.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, e.fetch(contractPath, other).Code)
	assert.Equal(t, http.StatusUnauthorized, e.fetch(contractPath, "").Code)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/tests", fx.courseID), student, generateTestRequest{Type: 1})
	require.Equal(t, http.StatusCreated, res.status, res.body.Error)
	var gen generateTestResponse
	res.into(t, &gen)

	certificatePath := fmt.Sprintf("/api/v1/tests/%d/certificate", gen.TestEnrollmentID)
	assert.Equal(t, http.StatusNotFound, e.fetch(certificatePath, student).Code)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/start", gen.TestEnrollmentID), student, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var sheet startTestResponse
	res.into(t, &sheet)
	pick := pickPayload{QuestionID: sheet.Questions[0].ID, SelectedAnswerID: sheet.Questions[0].Answers[0].ID}
	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/submit", gen.TestEnrollmentID), student, submitTestRequest{Answers: []pickPayload{pick}})
	require.Equal(t, http.StatusOK, res.status, res.body.Error)

	res = e.do(http.MethodGet, fmt.Sprintf("/api/v1/tests/%d/result", gen.TestEnrollmentID), student, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var result query.TestResultDTO
	res.into(t, &result)
	require.NotEmpty(t, result.CertificateFile)

	rec = e.fetch(certificatePath, student)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), result.CertificateFile)
	stored, err = e.blobs.Get(ctx, result.CertificateFile)
	require.NoError(t, err)
	assert.Equal(t, stored, rec.Body.Bytes())

	// Contract plus one certificate; downloads reuse the stored document.
	assert.Equal(t, 2, e.gateway.Renders())
	assert.Equal(t, http.StatusNotFound, e.fetch(certificatePath, other).Code)
}

func TestServer_CertificateDownloadIssuesOnFirstRequest(t *testing.T) {
	e := newAPIEnv(t)
	teacher := e.account("teacher", shared.RoleTeacher)
	student := e.account("alice", shared.RoleStudent)
	fx := e.course(teacher)

	res := e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/tests", fx.courseID), student, generateTestRequest{Type: 1})
	require.Equal(t, http.StatusCreated, res.status, res.body.Error)
	var gen generateTestResponse
	res.into(t, &gen)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/start", gen.TestEnrollmentID), student, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var sheet startTestResponse
	res.into(t, &sheet)
	pick := pickPayload{QuestionID: sheet.Questions[0].ID, SelectedAnswerID: sheet.Questions[0].Answers[0].ID}
	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/submit", gen.TestEnrollmentID), student, submitTestRequest{Answers: []pickPayload{pick}})
	require.Equal(t, http.StatusOK, res.status, res.body.Error)

	rec := e.fetch(fmt.Sprintf("/api/v1/tests/%d/certificate", gen.TestEnrollmentID), student)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Body.Bytes())
	assert.Equal(t, 1, e.gateway.Renders())
}

func TestServer_ModuleAndLessonDetail(t *testing.T) {
	e := newAPIEnv(t)
	teacher := e.account("teacher", shared.RoleTeacher)
	fx := e.course(teacher)

	res := e.do(http.MethodGet, fmt.Sprintf("/api/v1/modules/%d", fx.moduleID), "", nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var module query.ModuleDTO
	res.into(t, &module)
	assert.Equal(t, fx.courseID, module.CourseID)
	assert.Equal(t, "Syntax", module.Title)

	res = e.do(http.MethodGet, fmt.Sprintf("/api/v1/lessons/%d", fx.lessonID), "", nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Error)
	var lesson query.LessonDTO
	res.into(t, &lesson)
	assert.Equal(t, fx.moduleID, lesson.ModuleID)
	assert.Equal(t, "Variables", lesson.Title)

	res = e.do(http.MethodGet, "/api/v1/modules/999", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	res = e.do(http.MethodGet, "/api/v1/lessons/999", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestServer_ContractFailureMapsToBadGateway(t *testing.T) {
	e := newAPIEnv(t)
	teacher := e.account("teacher", shared.RoleTeacher)
	student := e.account("alice", shared.RoleStudent)
	fx := e.course(teacher)

	e.gateway.FailWith(errors.New("renderer offline"))

	res := e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/register", fx.courseID), student, nil)
	assert.Equal(t, http.StatusBadGateway, res.status)
	require.NotNil(t, res.body.Error)
	assert.Equal(t, codeExternalService, res.body.Error.Code)

	res = e.do(http.MethodGet, "/api/v1/enrollments", student, nil)
	require.Equal(t, http.StatusOK, res.status)
	var list []query.EnrollmentDTO
	res.into(t, &list)
	assert.Empty(t, list)
}

func TestServer_RoleChecks(t *testing.T) {
	e := newAPIEnv(t)
	teacher := e.account("teacher", shared.RoleTeacher)
	student := e.account("alice", shared.RoleStudent)
	fx := e.course(teacher)

	res := e.do(http.MethodPost, "/api/v1/courses", student, createCourseRequest{Title: "Hack", Price: "0"})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = e.do(http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/tests", fx.courseID), teacher, generateTestRequest{Type: 1})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = e.do(http.MethodPost, "/api/v1/courses", teacher, createCourseRequest{Title: "Negative", Price: "-5.00"})
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestServer_FeedbackAndStatistics(t *testing.T) {
	e := newAPIEnv(t)
	teacher := e.account("teacher", shared.RoleTeacher)
	student := e.account("alice", shared.RoleStudent)
	fx := e.course(teacher)

	path := fmt.Sprintf("/api/v1/courses/%d/feedback", fx.courseID)
	res := e.do(http.MethodPost, path, student, feedbackRequest{FullName: "Alice", Text: "Great", Rating: 5})
	require.Equal(t, http.StatusCreated, res.status, res.body.Error)

	res = e.do(http.MethodPost, path, student, feedbackRequest{FullName: "Alice", Text: "Again", Rating: 4})
	assert.Equal(t, http.StatusConflict, res.status)

	res = e.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, res.status)
	var list []query.FeedbackDTO
	res.into(t, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].Rating)

	res = e.do(http.MethodGet, "/api/v1/statistics", "", nil)
	require.Equal(t, http.StatusOK, res.status)
	var stats query.StatisticsDTO
	res.into(t, &stats)
	assert.Equal(t, query.StatisticsDTO{CoursesCount: 1, TeachersCount: 1, StudentsCount: 1}, stats)
}

func TestServer_Chat(t *testing.T) {
	e := newAPIEnv(t)
	teacher := e.account("teacher", shared.RoleTeacher)
	student := e.account("alice", shared.RoleStudent)
	fx := e.course(teacher)

	updates, cancel := e.relay.Subscribe(fmt.Sprintf("module_%d", fx.moduleID))
	defer cancel()

	path := fmt.Sprintf("/api/v1/modules/%d/messages", fx.moduleID)
	res := e.do(http.MethodPost, path, student, sendMessageRequest{Message: "hello"})
	require.Equal(t, http.StatusCreated, res.status, res.body.Error)
	var sent sendMessageResponse
	res.into(t, &sent)
	assert.True(t, sent.Relayed)
	assert.Equal(t, "hello", sent.Message)

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("message was not relayed")
	}

	res = e.do(http.MethodPost, path, teacher, sendMessageRequest{Message: "hi", Type: 2, Reply: &sent.ID})
	require.Equal(t, http.StatusCreated, res.status, res.body.Error)

	res = e.do(http.MethodGet, path, student, nil)
	require.Equal(t, http.StatusOK, res.status)
	var list []query.MessageDTO
	res.into(t, &list)
	require.Len(t, list, 2)
	require.NotNil(t, list[1].Reply)
	assert.Equal(t, "hello", list[1].Reply.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HANDLING
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_BadInput(t *testing.T) {
	e := newAPIEnv(t)
	student := e.account("alice", shared.RoleStudent)

	res := e.do(http.MethodPost, "/api/v1/courses/abc/register", student, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = e.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"user": "alice"})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = e.do(http.MethodGet, "/api/v1/courses/999", "", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", shared.ErrCourseNotFound, http.StatusNotFound},
		{"conflict", fmt.Errorf("submit: %w", shared.ErrAlreadySubmitted), http.StatusConflict},
		{"invalid", shared.ErrNegativePrice, http.StatusBadRequest},
		{"forbidden", shared.ErrNotEnrolled, http.StatusForbidden},
		{"unauthenticated", auth.ErrTokenExpired, http.StatusUnauthorized},
		{"external", shared.ErrContractGenerationFailed, http.StatusBadGateway},
		{"external wins", shared.WrapError("docgen", "Render", shared.ErrExternalService, "render failed", shared.ErrCourseNotFound), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := classify(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &rateLimiter{requests: map[string][]time.Time{}, limit: 2, window: time.Minute, stop: make(chan struct{})}
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow("1.2.3.4"))

	rl.cleanup()
	assert.Len(t, rl.requests["1.2.3.4"], 1)
	_, ok := rl.requests["5.6.7.8"]
	assert.False(t, ok)
}
