package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/application/issuance"
	"github.com/coursehub/coursehub-platform/internal/domain/account"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/docgen"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub-platform/internal/infrastructure/storage"
	"github.com/coursehub/coursehub-platform/pkg/timeutil"
)

var fixedNow = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

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

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fakeRelay struct {
	mu      sync.Mutex
	groups  []string
	payload []chat.Payload
	err     error
}

func (r *fakeRelay) GroupSend(_ context.Context, group string, p chat.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.groups = append(r.groups, group)
	r.payload = append(r.payload, p)
	return nil
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
		blobs:     storage.NewMemory(""),
		publisher: &recordingPublisher{},
	}
	e.deps = Deps{UoW: e.store, Publisher: e.publisher, Clock: timeutil.Fixed(fixedNow)}
	e.teacher = e.user("teacher", shared.RoleTeacher)
	e.student = e.user("alice", shared.RoleStudent)

	course, err := catalog.NewCourse(catalog.NewCourseParams{Title: "Go Basics", Price: 19990, TeacherID: e.teacher.ID})
	require.NoError(t, err)
	require.NoError(t, e.store.Repositories().Courses.Create(context.Background(), course))
	e.course = course
	return e
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
	require.NoError(e.t, e.store.Repositories().Users.Create(context.Background(), u))
	return u.Principal()
}

func (e *env) contracts() *issuance.ContractIssuer {
	return issuance.NewContractIssuer(e.gateway, e.blobs, timeutil.Fixed(fixedNow), nil)
}

func (e *env) module(title string) *catalog.Module {
	e.t.Helper()
	m, err := catalog.NewModule(e.course.ID, title, "")
	require.NoError(e.t, err)
	require.NoError(e.t, e.store.Repositories().Modules.Create(context.Background(), m))
	return m
}

func (e *env) lesson(moduleID int64, title string) *catalog.Lesson {
	e.t.Helper()
	l, err := catalog.NewLesson(catalog.NewLessonParams{ModuleID: moduleID, Title: title})
	require.NoError(e.t, err)
	require.NoError(e.t, e.store.Repositories().Lessons.Create(context.Background(), l))
	return l
}

// question stores a question whose first answer is correct.
func (e *env) question(testType assessment.TestType, text string, answers ...string) *assessment.Question {
	e.t.Helper()
	opts := make([]assessment.Answer, 0, len(answers))
	for i, a := range answers {
		opts = append(opts, assessment.Answer{Text: a, Correct: i == 0})
	}
	q, err := assessment.NewQuestion(assessment.NewQuestionParams{
		CourseID: e.course.ID, Text: text, Type: testType, Answers: opts,
	})
	require.NoError(e.t, err)
	require.NoError(e.t, e.store.Repositories().Questions.Create(context.Background(), q))
	return q
}

var errRelayDown = errors.New("relay down")
