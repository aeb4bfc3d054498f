package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON TEST SUBMITTED HANDLER
// После сдачи итогового теста помечает запись на курс завершённой.
// Входной тест запись не меняет.
// ═══════════════════════════════════════════════════════════════════════════

// OnTestSubmittedHandler обрабатывает test.submitted.
type OnTestSubmittedHandler struct {
	uow     uow.UnitOfWork
	log     *logger.Logger
	timeout time.Duration
}

// NewOnTestSubmittedHandler создаёт обработчик.
func NewOnTestSubmittedHandler(u uow.UnitOfWork, log *logger.Logger) *OnTestSubmittedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnTestSubmittedHandler{
		uow:     u,
		log:     log.With(logger.Component("on_test_submitted")),
		timeout: 5 * time.Second,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnTestSubmittedHandler) Handle(event shared.Event) error {
	// Событие уже обработано на инстансе, который его опубликовал.
	if shared.IsRemote(event) {
		return nil
	}
	submitted, ok := event.(shared.TestSubmittedEvent)
	if !ok {
		h.log.Warn("unexpected event", logger.EventType(string(event.EventType())))
		return nil
	}

	testID := submitted.TestEnrollmentID
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var courseID int64
	err := h.uow.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		test, err := repos.Tests.GetForStudent(ctx, testID, submitted.StudentID)
		if err != nil {
			return err
		}
		if test.Type != assessment.TestTypePost || !test.Finished {
			return nil
		}
		courseID = test.CourseID

		e, err := repos.Enrollments.GetByUserAndCourse(ctx, submitted.StudentID, test.CourseID)
		if errors.Is(err, shared.ErrEnrollmentNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !e.MarkCompleted(*test.CompletedAt) {
			return nil
		}
		return repos.Enrollments.Update(ctx, e)
	})
	if err != nil {
		return fmt.Errorf("on_test_submitted: %w", err)
	}

	if courseID != 0 {
		h.log.Info("post-course test submitted",
			logger.TestID(testID),
			logger.CourseID(courseID),
			logger.UserID(submitted.StudentID.String()),
		)
	}
	return nil
}
