package assessment

import (
	"context"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// QuestionRepository - банк вопросов курса.
type QuestionRepository interface {
	// Create сохраняет вопрос вместе с вариантами ответов и заполняет ID.
	Create(ctx context.Context, q *Question) error

	// ListByCourseAndType возвращает все вопросы курса данного типа с ответами.
	ListByCourseAndType(ctx context.Context, courseID int64, testType TestType) ([]*Question, error)

	// GetByIDs возвращает вопросы с ответами в порядке ID. Отсутствующие пропускаются.
	GetByIDs(ctx context.Context, ids []int64) ([]*Question, error)
}

// TestRepository - попытки прохождения тестов.
type TestRepository interface {
	// Create сохраняет попытку и её снимок вопросов, заполняет ID.
	// Возвращает ErrTestEnrollmentExists при нарушении уникальности (студент, курс, тип).
	Create(ctx context.Context, t *TestEnrollment) error

	// GetForStudent возвращает попытку студента или ErrTestEnrollmentNotFound
	// (в том числе, если попытка принадлежит другому студенту).
	GetForStudent(ctx context.Context, id int64, studentID shared.UserID) (*TestEnrollment, error)

	// GetForStudentForUpdate - то же под блокировкой строки до конца транзакции.
	GetForStudentForUpdate(ctx context.Context, id int64, studentID shared.UserID) (*TestEnrollment, error)

	// FindUnfinished возвращает незавершённую попытку для (студент, курс, тип)
	// или ErrTestEnrollmentNotFound.
	FindUnfinished(ctx context.Context, studentID shared.UserID, courseID int64, testType TestType) (*TestEnrollment, error)

	// Find возвращает попытку для (студент, курс, тип) в любом состоянии.
	Find(ctx context.Context, studentID shared.UserID, courseID int64, testType TestType) (*TestEnrollment, error)

	// ListByStudent возвращает все попытки студента.
	ListByStudent(ctx context.Context, studentID shared.UserID) ([]*TestEnrollment, error)

	// Update сохраняет состояние попытки (started_at, результат, сертификат).
	Update(ctx context.Context, t *TestEnrollment) error
}

// AnswerRepository - ответы студентов.
type AnswerRepository interface {
	// AnsweredQuestions возвращает те из questionIDs, на которые студент уже отвечал.
	AnsweredQuestions(ctx context.Context, studentID shared.UserID, questionIDs []int64) ([]int64, error)

	// Create сохраняет ответ. Возвращает ErrDuplicateAnswer при повторе (студент, вопрос).
	Create(ctx context.Context, a *StudentAnswer) error
}
