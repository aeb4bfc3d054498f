package assessment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

const student = shared.UserID("3c9d2a7e-5b41-4f08-a6c2-9e1d7b3f0a55")

func sampleQuestions() map[int64]*Question {
	return map[int64]*Question{
		1: {ID: 1, CourseID: 5, Text: "2+2?", Type: TestTypePre, Answers: []Answer{
			{ID: 10, QuestionID: 1, Text: "4", Correct: true},
			{ID: 11, QuestionID: 1, Text: "5"},
		}},
		2: {ID: 2, CourseID: 5, Text: "Capital of France?", Type: TestTypePre, Answers: []Answer{
			{ID: 20, QuestionID: 2, Text: "Paris", Correct: true},
			{ID: 21, QuestionID: 2, Text: "Lyon"},
		}},
	}
}

func newTest(t *testing.T) *TestEnrollment {
	t.Helper()
	qs := sampleQuestions()
	te, err := NewTestEnrollment(student, 5, TestTypePre, []*Question{qs[1], qs[2]})
	require.NoError(t, err)
	te.ID = 99
	return te
}

func TestParseTestType(t *testing.T) {
	for _, v := range []int{1, 2} {
		tt, err := ParseTestType(v)
		require.NoError(t, err)
		assert.Equal(t, v, tt.Int())
	}

	_, err := ParseTestType(3)
	assert.ErrorIs(t, err, shared.ErrInvalidTestType)
	assert.True(t, shared.IsInvalidArgument(err))
}

func TestNewTestEnrollment_NoQuestions(t *testing.T) {
	te, err := NewTestEnrollment(student, 5, TestTypePre, nil)
	assert.Nil(t, te)
	assert.ErrorIs(t, err, shared.ErrNoQuestionsAvailable)
}

func TestNewTestEnrollment_Snapshot(t *testing.T) {
	te := newTest(t)

	assert.Equal(t, []int64{1, 2}, te.QuestionIDs)
	assert.Equal(t, 2, te.TotalQuestions)
	assert.Equal(t, 0, te.CorrectAnswers)
	assert.False(t, te.Finished)
	assert.Equal(t, StateNotStarted, te.State())
}

func TestTestEnrollment_StateMachine(t *testing.T) {
	te := newTest(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, te.Start(now))
	assert.False(t, te.Start(now.Add(time.Minute)))
	assert.Equal(t, StateStarted, te.State())

	require.NoError(t, te.Finish(1, now.Add(10*time.Minute)))
	assert.Equal(t, StateFinished, te.State())
	assert.Equal(t, 1, te.CorrectAnswers)

	err := te.Finish(2, now.Add(20*time.Minute))
	assert.ErrorIs(t, err, shared.ErrAlreadySubmitted)
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, 1, te.CorrectAnswers)
	assert.NoError(t, te.Validate())
}

func TestTestEnrollment_FinishWithoutStart(t *testing.T) {
	te := newTest(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, te.Finish(0, now))
	require.NotNil(t, te.StartedAt)
	assert.Equal(t, *te.StartedAt, *te.CompletedAt)
	assert.NoError(t, te.Validate())
}

func TestTestEnrollment_AttachCertificateRequiresFinished(t *testing.T) {
	te := newTest(t)

	err := te.AttachCertificate("certificate_99.pdf")
	assert.ErrorIs(t, err, shared.ErrInvalidTestTransition)

	require.NoError(t, te.Finish(2, time.Now()))
	require.NoError(t, te.AttachCertificate("certificate_99.pdf"))
	require.NoError(t, te.AttachCertificate("certificate_99.pdf"))
	assert.True(t, te.HasCertificate())
}

func TestGrade_CountsMatches(t *testing.T) {
	te := newTest(t)

	sheet, err := Grade(te, sampleQuestions(), []Pick{
		{QuestionID: 1, AnswerID: 10},
		{QuestionID: 2, AnswerID: 21},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sheet.Correct)
	require.Len(t, sheet.Answers, 2)
	assert.Equal(t, int64(99), sheet.Answers[0].TestEnrollmentID)
	assert.Equal(t, student, sheet.Answers[1].StudentID)
}

func TestGrade_Rejections(t *testing.T) {
	te := newTest(t)

	_, err := Grade(te, sampleQuestions(), nil)
	assert.True(t, shared.IsInvalidArgument(err))

	_, err = Grade(te, sampleQuestions(), []Pick{{QuestionID: 3, AnswerID: 30}})
	assert.True(t, shared.IsInvalidArgument(err))

	_, err = Grade(te, sampleQuestions(), []Pick{{QuestionID: 1, AnswerID: 20}})
	assert.True(t, shared.IsInvalidArgument(err))

	_, err = Grade(te, sampleQuestions(), []Pick{
		{QuestionID: 1, AnswerID: 10},
		{QuestionID: 1, AnswerID: 11},
	})
	assert.ErrorIs(t, err, shared.ErrDuplicateAnswer)
}

func TestNewQuestion_Validation(t *testing.T) {
	_, err := NewQuestion(NewQuestionParams{CourseID: 1, Type: TestTypePost, Answers: []Answer{{Text: "a", Correct: true}}})
	assert.True(t, shared.IsInvalidArgument(err), "text or image required")

	_, err = NewQuestion(NewQuestionParams{CourseID: 1, Type: TestTypePost, Image: "q.png"})
	assert.True(t, shared.IsInvalidArgument(err), "answers required")

	_, err = NewQuestion(NewQuestionParams{CourseID: 1, Type: TestTypePost, Text: "q", Answers: []Answer{{Text: "a"}}})
	assert.True(t, shared.IsInvalidArgument(err), "correct answer required")

	q, err := NewQuestion(NewQuestionParams{CourseID: 1, Type: TestTypePost, Image: "q.png", Answers: []Answer{{Text: " a ", Correct: true}}})
	require.NoError(t, err)
	assert.Equal(t, "a", q.Answers[0].Text)
}
