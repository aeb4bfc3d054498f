package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE TEST COMMAND
// Creates a test attempt with a fixed snapshot of the course questions, or
// resumes the unfinished attempt of the same (student, course, type).
// ══════════════════════════════════════════════════════════════════════════════

// GenerateTestCommand contains the data to generate a test.
type GenerateTestCommand struct {
	Principal shared.Principal
	CourseID  int64

	// Type is 1 (pre-course) or 2 (post-course).
	Type int

	CorrelationID string
}

// Validate validates the command.
func (c GenerateTestCommand) Validate() error {
	if err := requireStudent(c.Principal); err != nil {
		return err
	}
	if c.CourseID <= 0 {
		return errInvalid("GenerateTest", "course_id is required")
	}
	if _, err := assessment.ParseTestType(c.Type); err != nil {
		return err
	}
	return nil
}

// GenerateTestResult identifies the attempt.
type GenerateTestResult struct {
	TestEnrollmentID int64
	TotalQuestions   int

	// Resumed is true when an unfinished attempt was returned.
	Resumed bool
}

// GenerateTestHandler handles GenerateTestCommand.
type GenerateTestHandler struct {
	deps Deps
}

// NewGenerateTestHandler creates a new GenerateTestHandler.
func NewGenerateTestHandler(deps Deps) *GenerateTestHandler {
	return &GenerateTestHandler{deps: deps.withDefaults("generate_test")}
}

// Handle executes the command.
func (h *GenerateTestHandler) Handle(ctx context.Context, cmd GenerateTestCommand) (*GenerateTestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("generate_test: validation failed: %w", err)
	}
	testType, _ := assessment.ParseTestType(cmd.Type)

	var result *GenerateTestResult
	err := h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		course, err := repos.Courses.GetByID(ctx, cmd.CourseID)
		if err != nil {
			return fmt.Errorf("failed to get course: %w", err)
		}

		if resumed, err := h.resume(ctx, repos, cmd.Principal.ID, course.ID, testType); err != nil || resumed != nil {
			result = resumed
			return err
		}

		// A finished attempt occupies the (student, course, type) slot for good.
		if _, err := repos.Tests.Find(ctx, cmd.Principal.ID, course.ID, testType); err == nil {
			return shared.ErrTestEnrollmentExists
		} else if !errors.Is(err, shared.ErrTestEnrollmentNotFound) {
			return fmt.Errorf("failed to look up attempts: %w", err)
		}

		questions, err := repos.Questions.ListByCourseAndType(ctx, course.ID, testType)
		if err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}

		te, err := assessment.NewTestEnrollment(cmd.Principal.ID, course.ID, testType, questions)
		if err != nil {
			return err
		}
		if err := repos.Tests.Create(ctx, te); err != nil {
			if errors.Is(err, shared.ErrTestEnrollmentExists) {
				resumed, resumeErr := h.resume(ctx, repos, cmd.Principal.ID, course.ID, testType)
				if resumeErr == nil && resumed != nil {
					result = resumed
					return nil
				}
			}
			return fmt.Errorf("failed to create test enrollment: %w", err)
		}

		result = &GenerateTestResult{TestEnrollmentID: te.ID, TotalQuestions: te.TotalQuestions}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate_test: %w", err)
	}

	if !result.Resumed {
		h.deps.Log.Info("test generated",
			logger.UserID(cmd.Principal.ID.String()),
			logger.CourseID(cmd.CourseID),
			logger.TestID(result.TestEnrollmentID),
			logger.Int("questions", result.TotalQuestions),
		)
		event := shared.NewTestGeneratedEvent(result.TestEnrollmentID, cmd.Principal.ID, cmd.CourseID, cmd.Type, result.TotalQuestions)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		h.deps.publish(event)
	}
	return result, nil
}

// resume returns the unfinished attempt, or nil if there is none.
func (h *GenerateTestHandler) resume(ctx context.Context, repos uow.Repositories, student shared.UserID, courseID int64, testType assessment.TestType) (*GenerateTestResult, error) {
	te, err := repos.Tests.FindUnfinished(ctx, student, courseID, testType)
	switch {
	case err == nil:
		return &GenerateTestResult{TestEnrollmentID: te.ID, TotalQuestions: te.TotalQuestions, Resumed: true}, nil
	case errors.Is(err, shared.ErrTestEnrollmentNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to look up unfinished attempt: %w", err)
	}
}
