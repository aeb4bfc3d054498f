package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/application/issuance"
	"github.com/coursehub/coursehub-platform/internal/domain/account"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/enrollment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/docgen"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/storage"
	"github.com/coursehub/coursehub-platform/pkg/timeutil"
)

var fixedNow = time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.Event(nil), p.events...)
}

type env struct {
	t         *testing.T
	store     *memory.Store
	gateway   *docgen.Stub
	blobs     *storage.Memory
	publisher *recordingPublisher
	deps      Deps

	teacher shared.Principal
	student shared.Principal
	course  *catalog.Course
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		t:         t,
		store:     memory.NewStore(),
		gateway:   docgen.NewStub(),
		blobs:     storage.NewMemory("https://files.test"),
		publisher: &recordingPublisher{},
	}
	e.deps = Deps{
		UoW:       e.store,
		Archive:   issuance.NewArchive(e.blobs),
		Publisher: e.publisher,
		Clock:     timeutil.Fixed(fixedNow),
	}
	e.teacher = e.user("teacher", shared.RoleTeacher)
	e.student = e.user("alice", shared.RoleStudent)
	e.course = e.newCourse("Go Basics", 19990)
	return e
}

func (e *env) ctx() context.Context {
	return context.Background()
}

func (e *env) user(username string, role shared.Role) shared.Principal {
	e.t.Helper()
	u, err := account.NewUser(account.NewUserParams{
		ID:           shared.UserID(uuid.NewString()),
		Username:     username,
		Role:         role,
		PasswordHash: "x",
	})
	require.NoError(e.t, err)
	require.NoError(e.t, e.store.Repositories().Users.Create(e.ctx(), u))
	return u.Principal()
}

func (e *env) newCourse(title string, price shared.Money) *catalog.Course {
	e.t.Helper()
	c, err := catalog.NewCourse(catalog.NewCourseParams{Title: title, Price: price, TeacherID: e.teacher.ID})
	require.NoError(e.t, err)
	require.NoError(e.t, e.store.Repositories().Courses.Create(e.ctx(), c))
	return c
}

func (e *env) enroll(p shared.Principal, courseID int64, access bool) *enrollment.Enrollment {
	e.t.Helper()
	en, err := enrollment.New(p.ID, courseID)
	require.NoError(e.t, err)
	en.HasAccess = access
	require.NoError(e.t, e.store.Repositories().Enrollments.Create(e.ctx(), en))
	return en
}

func (e *env) module(title string) *catalog.Module {
	e.t.Helper()
	m, err := catalog.NewModule(e.course.ID, title, "")
	require.NoError(e.t, err)
	require.NoError(e.t, e.store.Repositories().Modules.Create(e.ctx(), m))
	return m
}

// attempt stores a test attempt over one fresh question, finished when correct >= 0.
func (e *env) attempt(p shared.Principal, testType assessment.TestType, correct int) *assessment.TestEnrollment {
	e.t.Helper()
	repos := e.store.Repositories()
	q, err := assessment.NewQuestion(assessment.NewQuestionParams{
		CourseID: e.course.ID, Text: "2+2?", Type: testType,
		Answers: []assessment.Answer{{Text: "4", Correct: true}, {Text: "5"}},
	})
	require.NoError(e.t, err)
	require.NoError(e.t, repos.Questions.Create(e.ctx(), q))

	te, err := assessment.NewTestEnrollment(p.ID, e.course.ID, testType, []*assessment.Question{q})
	require.NoError(e.t, err)
	require.NoError(e.t, repos.Tests.Create(e.ctx(), te))
	if correct >= 0 {
		require.NoError(e.t, te.Finish(correct, fixedNow))
		require.NoError(e.t, repos.Tests.Update(e.ctx(), te))
	}
	return te
}

func (e *env) certificates() *issuance.CertificateIssuer {
	return issuance.NewCertificateIssuer(e.gateway, e.blobs, timeutil.Fixed(fixedNow), nil)
}
