package query

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/application/issuance"
	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TEST RESULT QUERY
// Возвращает результат попытки теста. Для завершённой попытки при первом
// обращении выпускается сертификат, дальше отдаётся сохранённый.
// ══════════════════════════════════════════════════════════════════════════════

// GetTestResultQuery - параметры запроса результата.
type GetTestResultQuery struct {
	Principal        shared.Principal
	TestEnrollmentID int64

	CorrelationID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetTestResultQuery) Validate() error {
	if err := q.Principal.Validate(); err != nil {
		return err
	}
	if err := q.Principal.RequireRole(shared.RoleStudent); err != nil {
		return err
	}
	if q.TestEnrollmentID <= 0 {
		return errInvalid("GetTestResult", "test enrollment id is required")
	}
	return nil
}

// GetTestResultHandler обрабатывает запросы результата теста.
type GetTestResultHandler struct {
	deps         Deps
	certificates *issuance.CertificateIssuer
}

// NewGetTestResultHandler создаёт обработчик.
func NewGetTestResultHandler(deps Deps, certificates *issuance.CertificateIssuer) *GetTestResultHandler {
	return &GetTestResultHandler{deps: deps.withDefaults("get_test_result"), certificates: certificates}
}

// Handle выполняет запрос.
func (h *GetTestResultHandler) Handle(ctx context.Context, q GetTestResultQuery) (*TestResultDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_test_result: validation failed: %w", err)
	}

	var (
		test *assessment.TestEnrollment
		cert *issuance.Certificate
	)
	err := h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		test, err = repos.Tests.GetForStudentForUpdate(ctx, q.TestEnrollmentID, q.Principal.ID)
		if err != nil {
			return fmt.Errorf("failed to get test enrollment: %w", err)
		}
		if !test.Finished {
			return nil
		}

		cert, err = h.certificates.Issue(ctx, test, q.Principal.Username)
		if err != nil {
			return err
		}
		if !cert.Generated {
			return nil
		}
		return repos.Tests.Update(ctx, test)
	})
	if err != nil {
		return nil, fmt.Errorf("get_test_result: %w", err)
	}

	if cert != nil && cert.Generated {
		h.deps.Log.Info("certificate issued",
			logger.TestID(test.ID),
			logger.UserID(q.Principal.ID.String()),
			logger.Document(cert.File),
		)
		event := shared.NewCertificateIssuedEvent(test.ID, test.StudentID, cert.File, cert.ValidUntil)
		if q.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(q.CorrelationID)
		}
		if err := h.deps.Publisher.Publish(event); err != nil {
			h.deps.Log.Warn("event publish failed", logger.EventType(string(event.EventType())), logger.Err(err))
		}
	}

	dto := testResultDTO(test, h.deps.url(test.CertificateFile))
	return &dto, nil
}
