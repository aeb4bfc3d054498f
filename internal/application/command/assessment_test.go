package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

func generate(t *testing.T, e *env, testType assessment.TestType) *GenerateTestResult {
	t.Helper()
	res, err := NewGenerateTestHandler(e.deps).Handle(context.Background(), GenerateTestCommand{
		Principal: e.student, CourseID: e.course.ID, Type: int(testType),
	})
	require.NoError(t, err)
	return res
}

func TestGenerateTest_ResumesUnfinished(t *testing.T) {
	e := newEnv(t)
	e.question(assessment.TestTypePre, "2+2?", "4", "5")
	e.question(assessment.TestTypePre, "3+3?", "6", "7")
	e.question(assessment.TestTypePost, "post only", "a", "b")

	first := generate(t, e, assessment.TestTypePre)
	assert.False(t, first.Resumed)
	assert.Equal(t, 2, first.TotalQuestions)

	// Questions added later do not change the snapshot.
	e.question(assessment.TestTypePre, "4+4?", "8", "9")

	again := generate(t, e, assessment.TestTypePre)
	assert.True(t, again.Resumed)
	assert.Equal(t, first.TestEnrollmentID, again.TestEnrollmentID)
	assert.Equal(t, 2, again.TotalQuestions)

	assert.Equal(t, 1, e.store.Stats().Tests)
	assert.Equal(t, []shared.EventType{shared.EventTestGenerated}, e.publisher.types())
}

func TestGenerateTest_NoQuestions(t *testing.T) {
	e := newEnv(t)
	e.question(assessment.TestTypePost, "post only", "a")

	_, err := NewGenerateTestHandler(e.deps).Handle(context.Background(), GenerateTestCommand{
		Principal: e.student, CourseID: e.course.ID, Type: 1,
	})
	assert.ErrorIs(t, err, shared.ErrNoQuestionsAvailable)
	assert.True(t, shared.IsInvalidArgument(err))
	assert.Equal(t, 0, e.store.Stats().Tests)
}

func TestGenerateTest_InvalidInput(t *testing.T) {
	e := newEnv(t)
	h := NewGenerateTestHandler(e.deps)

	_, err := h.Handle(context.Background(), GenerateTestCommand{Principal: e.student, CourseID: e.course.ID, Type: 3})
	assert.ErrorIs(t, err, shared.ErrInvalidTestType)

	_, err = h.Handle(context.Background(), GenerateTestCommand{Principal: e.student, CourseID: 404, Type: 1})
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)
}

func TestStartTest_HidesCorrectness(t *testing.T) {
	e := newEnv(t)
	q := e.question(assessment.TestTypePre, "2+2?", "4", "5")
	gen := generate(t, e, assessment.TestTypePre)
	h := NewStartTestHandler(e.deps)

	res, err := h.Handle(context.Background(), StartTestCommand{Principal: e.student, TestEnrollmentID: gen.TestEnrollmentID})
	require.NoError(t, err)
	assert.Equal(t, assessment.StateStarted, res.State)
	require.Len(t, res.Questions, 1)
	assert.Equal(t, q.ID, res.Questions[0].ID)
	assert.Equal(t, []AnswerOption{{ID: q.Answers[0].ID, Text: "4"}, {ID: q.Answers[1].ID, Text: "5"}}, res.Questions[0].Answers)

	again, err := h.Handle(context.Background(), StartTestCommand{Principal: e.student, TestEnrollmentID: gen.TestEnrollmentID})
	require.NoError(t, err)
	assert.Equal(t, *res.StartedAt, *again.StartedAt)

	other := e.user("bob", shared.RoleStudent)
	_, err = h.Handle(context.Background(), StartTestCommand{Principal: other, TestEnrollmentID: gen.TestEnrollmentID})
	assert.ErrorIs(t, err, shared.ErrTestEnrollmentNotFound)
}

func TestSubmitTest_ScoresOnce(t *testing.T) {
	e := newEnv(t)
	q1 := e.question(assessment.TestTypePre, "2+2?", "4", "5")
	q2 := e.question(assessment.TestTypePre, "3+3?", "6", "7")
	gen := generate(t, e, assessment.TestTypePre)
	h := NewSubmitTestHandler(e.deps)

	cmd := SubmitTestCommand{
		Principal:        e.student,
		TestEnrollmentID: gen.TestEnrollmentID,
		Answers: []assessment.Pick{
			{QuestionID: q1.ID, AnswerID: q1.Answers[0].ID},
			{QuestionID: q2.ID, AnswerID: q2.Answers[1].ID},
		},
	}
	res, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CorrectAnswers)
	assert.Equal(t, 2, res.TotalQuestions)
	assert.Equal(t, fixedNow, res.CompletedAt)

	_, err = h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrAlreadySubmitted)
	assert.True(t, shared.IsConflict(err))

	te, err := e.store.Repositories().Tests.GetForStudent(context.Background(), gen.TestEnrollmentID, e.student.ID)
	require.NoError(t, err)
	assert.True(t, te.Finished)
	assert.Equal(t, 1, te.CorrectAnswers)
	assert.NotNil(t, te.StartedAt)
	assert.NoError(t, te.Validate())
	assert.Equal(t, 2, e.store.Stats().Answers)
}

func TestSubmitTest_ConcurrentSubmissionsScoreOnce(t *testing.T) {
	e := newEnv(t)
	q := e.question(assessment.TestTypePre, "2+2?", "4", "5")
	gen := generate(t, e, assessment.TestTypePre)
	h := NewSubmitTestHandler(e.deps)
	cmd := SubmitTestCommand{
		Principal:        e.student,
		TestEnrollmentID: gen.TestEnrollmentID,
		Answers:          []assessment.Pick{{QuestionID: q.ID, AnswerID: q.Answers[0].ID}},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dupe int
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), cmd)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if shared.IsConflict(err) {
				dupe++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 4, dupe)
	assert.Equal(t, 1, e.store.Stats().Answers)
}

func TestSubmitTest_DuplicateAnswerRollsBackEverything(t *testing.T) {
	e := newEnv(t)
	pre := e.question(assessment.TestTypePre, "2+2?", "4", "5")
	gen := generate(t, e, assessment.TestTypePre)
	_, err := NewSubmitTestHandler(e.deps).Handle(context.Background(), SubmitTestCommand{
		Principal: e.student, TestEnrollmentID: gen.TestEnrollmentID,
		Answers: []assessment.Pick{{QuestionID: pre.ID, AnswerID: pre.Answers[0].ID}},
	})
	require.NoError(t, err)

	// The post test shares a question id with an answer already on record.
	post := e.question(assessment.TestTypePost, "new", "yes", "no")
	postGen := generate(t, e, assessment.TestTypePost)
	te, err := e.store.Repositories().Tests.GetForStudent(context.Background(), postGen.TestEnrollmentID, e.student.ID)
	require.NoError(t, err)
	te.QuestionIDs = append(te.QuestionIDs, pre.ID)
	te.TotalQuestions = len(te.QuestionIDs)
	require.NoError(t, e.store.Repositories().Tests.Update(context.Background(), te))

	_, err = NewSubmitTestHandler(e.deps).Handle(context.Background(), SubmitTestCommand{
		Principal: e.student, TestEnrollmentID: postGen.TestEnrollmentID,
		Answers: []assessment.Pick{
			{QuestionID: post.ID, AnswerID: post.Answers[0].ID},
			{QuestionID: pre.ID, AnswerID: pre.Answers[0].ID},
		},
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateAnswer)
	assert.Equal(t, 1, e.store.Stats().Answers)

	after, err := e.store.Repositories().Tests.GetForStudent(context.Background(), postGen.TestEnrollmentID, e.student.ID)
	require.NoError(t, err)
	assert.False(t, after.Finished)
	assert.Zero(t, after.CorrectAnswers)
}

func TestSubmitTest_InvalidAnswers(t *testing.T) {
	e := newEnv(t)
	q := e.question(assessment.TestTypePre, "2+2?", "4", "5")
	stray := e.question(assessment.TestTypePost, "other", "x")
	gen := generate(t, e, assessment.TestTypePre)
	h := NewSubmitTestHandler(e.deps)

	tests := []struct {
		name    string
		answers []assessment.Pick
		check   func(error) bool
	}{
		{"empty", nil, shared.IsInvalidArgument},
		{"missing id", []assessment.Pick{{QuestionID: q.ID}}, shared.IsInvalidArgument},
		{"outside snapshot", []assessment.Pick{{QuestionID: stray.ID, AnswerID: stray.Answers[0].ID}}, shared.IsInvalidArgument},
		{"foreign option", []assessment.Pick{{QuestionID: q.ID, AnswerID: stray.Answers[0].ID}}, shared.IsInvalidArgument},
		{"repeated question", []assessment.Pick{
			{QuestionID: q.ID, AnswerID: q.Answers[0].ID},
			{QuestionID: q.ID, AnswerID: q.Answers[1].ID},
		}, shared.IsConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), SubmitTestCommand{
				Principal: e.student, TestEnrollmentID: gen.TestEnrollmentID, Answers: tt.answers,
			})
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
	assert.Equal(t, 0, e.store.Stats().Answers)
}
