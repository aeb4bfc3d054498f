package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST RESULTS QUERY
// Все попытки тестов студента.
// ══════════════════════════════════════════════════════════════════════════════

// ListResultsQuery - параметры запроса.
type ListResultsQuery struct {
	Principal shared.Principal
}

// ListResultsHandler возвращает попытки тестов вызывающего студента.
type ListResultsHandler struct {
	deps Deps
}

// NewListResultsHandler создаёт обработчик.
func NewListResultsHandler(deps Deps) *ListResultsHandler {
	return &ListResultsHandler{deps: deps.withDefaults("list_results")}
}

// Handle выполняет запрос.
func (h *ListResultsHandler) Handle(ctx context.Context, q ListResultsQuery) ([]TestResultDTO, error) {
	if err := q.Principal.Validate(); err != nil {
		return nil, fmt.Errorf("list_results: validation failed: %w", err)
	}

	tests, err := h.deps.UoW.Repositories().Tests.ListByStudent(ctx, q.Principal.ID)
	if err != nil {
		return nil, fmt.Errorf("list_results: %w", err)
	}

	out := make([]TestResultDTO, 0, len(tests))
	for _, t := range tests {
		out = append(out, testResultDTO(t, h.deps.url(t.CertificateFile)))
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INITIAL TEST RESULT QUERY
// Отвечает, прошёл ли записанный на курс студент тест данного типа.
// ══════════════════════════════════════════════════════════════════════════════

// InitialTestResultQuery - параметры запроса. Type по умолчанию 1 (входной тест).
type InitialTestResultQuery struct {
	Principal shared.Principal
	CourseID  int64
	Type      int
}

// Validate проверяет параметры и подставляет тип по умолчанию.
func (q *InitialTestResultQuery) Validate() error {
	if err := q.Principal.Validate(); err != nil {
		return err
	}
	if q.CourseID <= 0 {
		return errInvalid("InitialTestResult", "course_id is required")
	}
	if q.Type == 0 {
		q.Type = int(assessment.TestTypePre)
	}
	if _, err := assessment.ParseTestType(q.Type); err != nil {
		return err
	}
	return nil
}

// InitialTestResultDTO - ответ. TestResult пуст, если попытки ещё нет.
type InitialTestResultDTO struct {
	Finished   bool           `json:"finished"`
	TestResult *TestResultDTO `json:"test_results,omitempty"`
}

// InitialTestResultHandler обрабатывает запрос.
type InitialTestResultHandler struct {
	deps Deps
}

// NewInitialTestResultHandler создаёт обработчик.
func NewInitialTestResultHandler(deps Deps) *InitialTestResultHandler {
	return &InitialTestResultHandler{deps: deps.withDefaults("initial_test_result")}
}

// Handle выполняет запрос. Без записи на курс - ErrNotEnrolled.
func (h *InitialTestResultHandler) Handle(ctx context.Context, q InitialTestResultQuery) (*InitialTestResultDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("initial_test_result: validation failed: %w", err)
	}
	repos := h.deps.UoW.Repositories()

	if _, err := repos.Enrollments.GetByUserAndCourse(ctx, q.Principal.ID, q.CourseID); err != nil {
		if errors.Is(err, shared.ErrEnrollmentNotFound) {
			return nil, fmt.Errorf("initial_test_result: %w", shared.ErrNotEnrolled)
		}
		return nil, fmt.Errorf("initial_test_result: %w", err)
	}

	test, err := repos.Tests.Find(ctx, q.Principal.ID, q.CourseID, assessment.TestType(q.Type))
	if errors.Is(err, shared.ErrTestEnrollmentNotFound) {
		return &InitialTestResultDTO{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("initial_test_result: %w", err)
	}

	dto := testResultDTO(test, h.deps.url(test.CertificateFile))
	return &InitialTestResultDTO{Finished: test.Finished, TestResult: &dto}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST ENROLLMENTS QUERY
// Записи пользователя на курсы со ссылками на договоры.
// ══════════════════════════════════════════════════════════════════════════════

// ListEnrollmentsHandler возвращает записи вызывающего пользователя.
type ListEnrollmentsHandler struct {
	deps Deps
}

// NewListEnrollmentsHandler создаёт обработчик.
func NewListEnrollmentsHandler(deps Deps) *ListEnrollmentsHandler {
	return &ListEnrollmentsHandler{deps: deps.withDefaults("list_enrollments")}
}

// Handle выполняет запрос.
func (h *ListEnrollmentsHandler) Handle(ctx context.Context, p shared.Principal) ([]EnrollmentDTO, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("list_enrollments: validation failed: %w", err)
	}
	list, err := h.deps.UoW.Repositories().Enrollments.ListByUser(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list_enrollments: %w", err)
	}
	out := make([]EnrollmentDTO, 0, len(list))
	for _, e := range list {
		out = append(out, enrollmentDTO(e, h.deps.url(e.ContractFile)))
	}
	return out, nil
}
