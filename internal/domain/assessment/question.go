// Package assessment содержит тестирование до и после курса:
// банк вопросов, попытки (TestEnrollment), ответы студентов и подсчёт баллов.
package assessment

import (
	"strings"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST TYPE
// ══════════════════════════════════════════════════════════════════════════════

// TestType - вид теста: входной (до курса) или итоговый (после курса).
type TestType int

const (
	// TestTypePre - тест до начала курса.
	TestTypePre TestType = 1
	// TestTypePost - тест после окончания курса.
	TestTypePost TestType = 2
)

// IsValid проверяет, что тип теста известен.
func (t TestType) IsValid() bool {
	return t == TestTypePre || t == TestTypePost
}

// Int возвращает числовое значение.
func (t TestType) Int() int {
	return int(t)
}

// String возвращает отображаемое название.
func (t TestType) String() string {
	switch t {
	case TestTypePre:
		return "Pre-course Test"
	case TestTypePost:
		return "Post-course Test"
	default:
		return "Unknown"
	}
}

// ParseTestType проверяет значение из запроса.
func ParseTestType(v int) (TestType, error) {
	t := TestType(v)
	if !t.IsValid() {
		return 0, shared.ErrInvalidTestType
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION & ANSWER
// ══════════════════════════════════════════════════════════════════════════════

// Question - вопрос теста с вариантами ответа.
type Question struct {
	ID       int64
	CourseID int64
	Text     string
	Image    string
	Type     TestType
	Answers  []Answer
}

// Answer - вариант ответа. Correct знает только сервер.
type Answer struct {
	ID         int64
	QuestionID int64
	Text       string
	Correct    bool
}

// NewQuestionParams - параметры для создания вопроса.
type NewQuestionParams struct {
	CourseID int64
	Text     string
	Image    string
	Type     TestType
	Answers  []Answer
}

// NewQuestion создаёт вопрос: нужен текст или картинка,
// хотя бы один вариант ответа и хотя бы один правильный.
func NewQuestion(p NewQuestionParams) (*Question, error) {
	q := &Question{
		CourseID: p.CourseID,
		Text:     strings.TrimSpace(p.Text),
		Image:    strings.TrimSpace(p.Image),
		Type:     p.Type,
	}
	if q.CourseID <= 0 {
		return nil, shared.NewDomainError("assessment", "NewQuestion", shared.ErrInvalidArgument, "course is required")
	}
	if !q.Type.IsValid() {
		return nil, shared.ErrInvalidTestType
	}
	if q.Text == "" && q.Image == "" {
		return nil, shared.NewDomainError("assessment", "NewQuestion", shared.ErrInvalidArgument, "either question text or image must be provided")
	}
	if len(p.Answers) == 0 {
		return nil, shared.NewDomainError("assessment", "NewQuestion", shared.ErrInvalidArgument, "question needs at least one answer")
	}

	hasCorrect := false
	for _, a := range p.Answers {
		text := strings.TrimSpace(a.Text)
		if text == "" || len(text) > 200 {
			return nil, shared.NewDomainError("assessment", "NewQuestion", shared.ErrInvalidArgument, "answer text must be 1-200 chars")
		}
		hasCorrect = hasCorrect || a.Correct
		q.Answers = append(q.Answers, Answer{Text: text, Correct: a.Correct})
	}
	if !hasCorrect {
		return nil, shared.NewDomainError("assessment", "NewQuestion", shared.ErrInvalidArgument, "question needs a correct answer")
	}
	return q, nil
}

// IsCorrect сообщает, является ли answerID правильным ответом на вопрос.
func (q *Question) IsCorrect(answerID int64) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return a.Correct
		}
	}
	return false
}

// HasAnswer проверяет, что answerID принадлежит вопросу.
func (q *Question) HasAnswer(answerID int64) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}
