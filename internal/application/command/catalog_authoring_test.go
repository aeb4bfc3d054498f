package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

func TestCreateCourse(t *testing.T) {
	e := newEnv(t)
	h := NewCreateCourseHandler(e.deps)

	course, err := h.Handle(context.Background(), CreateCourseCommand{
		Principal: e.teacher, Title: "Advanced Go: Concurrency", Price: "49.50",
	})
	require.NoError(t, err)
	assert.Equal(t, "advanced-go-concurrency", course.Slug)
	assert.Equal(t, shared.Money(4950), course.Price)
	assert.Equal(t, e.teacher.ID, course.TeacherID)
	assert.Contains(t, e.publisher.types(), shared.EventCourseCreated)

	_, err = h.Handle(context.Background(), CreateCourseCommand{Principal: e.teacher, Title: "Advanced Go: concurrency", Price: "1"})
	assert.ErrorIs(t, err, shared.ErrSlugTaken)
}

func TestCreateCourse_Rejections(t *testing.T) {
	e := newEnv(t)
	h := NewCreateCourseHandler(e.deps)
	admin := e.user("root", shared.RoleAdmin)

	_, err := h.Handle(context.Background(), CreateCourseCommand{Principal: e.teacher, Title: "Cheap", Price: "-5.00"})
	assert.ErrorIs(t, err, shared.ErrNegativePrice)
	n, _ := e.store.Repositories().Courses.Count(context.Background())
	assert.Equal(t, 1, n)

	_, err = h.Handle(context.Background(), CreateCourseCommand{Principal: e.student, Title: "Mine", Price: "1"})
	assert.ErrorIs(t, err, shared.ErrNotCourseTeacher)

	_, err = h.Handle(context.Background(), CreateCourseCommand{Principal: admin, Title: "Owned", Price: "1", TeacherID: e.student.ID})
	assert.True(t, shared.IsInvalidArgument(err))

	course, err := h.Handle(context.Background(), CreateCourseCommand{Principal: admin, Title: "Owned", Price: "1", TeacherID: e.teacher.ID})
	require.NoError(t, err)
	assert.Equal(t, e.teacher.ID, course.TeacherID)
}

func TestAuthoring_ModuleLessonQuestion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	other := e.user("other-teacher", shared.RoleTeacher)

	mod, err := NewAddModuleHandler(e.deps).Handle(ctx, AddModuleCommand{Principal: e.teacher, CourseID: e.course.ID, Title: "Intro"})
	require.NoError(t, err)

	_, err = NewAddModuleHandler(e.deps).Handle(ctx, AddModuleCommand{Principal: other, CourseID: e.course.ID, Title: "Hijack"})
	assert.ErrorIs(t, err, shared.ErrNotCourseTeacher)

	_, err = NewAddModuleHandler(e.deps).Handle(ctx, AddModuleCommand{Principal: e.teacher, CourseID: e.course.ID, Title: "Intro"})
	assert.ErrorIs(t, err, shared.ErrModuleExists)

	lesson, err := NewAddLessonHandler(e.deps).Handle(ctx, AddLessonCommand{
		Principal: e.teacher, ModuleID: mod.ID, Title: "Hello", PDF: "notes.pdf", Presentation: "slides.pptx",
	})
	require.NoError(t, err)
	assert.Equal(t, e.course.ID, lesson.CourseID)

	_, err = NewAddLessonHandler(e.deps).Handle(ctx, AddLessonCommand{Principal: e.teacher, ModuleID: mod.ID, Title: "Bad", PDF: "notes.doc"})
	assert.ErrorIs(t, err, shared.ErrInvalidAttachment)

	q, err := NewAddQuestionHandler(e.deps).Handle(ctx, AddQuestionCommand{
		Principal: e.teacher, CourseID: e.course.ID, Text: "2+2?", Type: 1,
		Answers: []assessment.Answer{{Text: "4", Correct: true}, {Text: "5"}},
	})
	require.NoError(t, err)
	assert.NotZero(t, q.Answers[1].ID)

	_, err = NewAddQuestionHandler(e.deps).Handle(ctx, AddQuestionCommand{
		Principal: e.teacher, CourseID: e.course.ID, Text: "no correct", Type: 1,
		Answers: []assessment.Answer{{Text: "a"}},
	})
	assert.True(t, shared.IsInvalidArgument(err))
}

func TestGiveFeedback(t *testing.T) {
	e := newEnv(t)
	h := NewGiveFeedbackHandler(e.deps)

	fb, err := h.Handle(context.Background(), GiveFeedbackCommand{Principal: e.student, CourseID: e.course.ID, Text: "great", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, "alice", fb.FullName)

	_, err = h.Handle(context.Background(), GiveFeedbackCommand{Principal: e.student, CourseID: e.course.ID, Text: "again", Rating: 4})
	assert.ErrorIs(t, err, shared.ErrFeedbackExists)

	other := e.user("bob", shared.RoleStudent)
	_, err = h.Handle(context.Background(), GiveFeedbackCommand{Principal: other, CourseID: e.course.ID, Text: "meh", Rating: 6})
	assert.ErrorIs(t, err, shared.ErrInvalidRating)
}
