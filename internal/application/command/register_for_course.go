package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/application/issuance"
	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/enrollment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER FOR COURSE COMMAND
// Enrolls the caller and issues the enrollment contract in one transaction.
// A contract failure rolls the enrollment back so a retry starts clean.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterForCourseCommand contains the data to enroll a user.
type RegisterForCourseCommand struct {
	Principal shared.Principal
	CourseID  int64

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RegisterForCourseCommand) Validate() error {
	if err := c.Principal.Validate(); err != nil {
		return err
	}
	if c.CourseID <= 0 {
		return errInvalid("RegisterForCourse", "course_id is required")
	}
	return nil
}

// RegisterForCourseResult contains the enrollment state after the call.
type RegisterForCourseResult struct {
	EnrollmentID int64
	CourseID     int64
	ContractFile string

	// AlreadyEnrolled is true when nothing was changed.
	AlreadyEnrolled bool
}

// RegisterForCourseHandler handles RegisterForCourseCommand.
type RegisterForCourseHandler struct {
	deps      Deps
	contracts *issuance.ContractIssuer
}

// NewRegisterForCourseHandler creates a new RegisterForCourseHandler.
func NewRegisterForCourseHandler(deps Deps, contracts *issuance.ContractIssuer) *RegisterForCourseHandler {
	return &RegisterForCourseHandler{
		deps:      deps.withDefaults("register_for_course"),
		contracts: contracts,
	}
}

// Handle executes the command.
func (h *RegisterForCourseHandler) Handle(ctx context.Context, cmd RegisterForCourseCommand) (*RegisterForCourseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_for_course: validation failed: %w", err)
	}

	result := &RegisterForCourseResult{CourseID: cmd.CourseID}
	var issued string

	err := h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		course, err := repos.Courses.GetByID(ctx, cmd.CourseID)
		if err != nil {
			return fmt.Errorf("failed to get course: %w", err)
		}

		existing, err := repos.Enrollments.GetByUserAndCourse(ctx, cmd.Principal.ID, course.ID)
		switch {
		case err == nil:
			result.AlreadyEnrolled = true
			result.EnrollmentID = existing.ID
			result.ContractFile = existing.ContractFile
			return nil
		case !errors.Is(err, shared.ErrEnrollmentNotFound):
			return fmt.Errorf("failed to look up enrollment: %w", err)
		}

		e, err := enrollment.New(cmd.Principal.ID, course.ID)
		if err != nil {
			return err
		}
		if err := repos.Enrollments.Create(ctx, e); err != nil {
			if errors.Is(err, shared.ErrEnrollmentExists) {
				// A concurrent request won the unique index.
				winner, getErr := repos.Enrollments.GetByUserAndCourse(ctx, cmd.Principal.ID, course.ID)
				if getErr != nil {
					return fmt.Errorf("failed to read concurrent enrollment: %w", getErr)
				}
				result.AlreadyEnrolled = true
				result.EnrollmentID = winner.ID
				result.ContractFile = winner.ContractFile
				return nil
			}
			return fmt.Errorf("failed to create enrollment: %w", err)
		}

		file, err := h.contracts.Issue(ctx, e, course, cmd.Principal.Username)
		if err != nil {
			return err
		}
		issued = file
		if err := repos.Enrollments.Update(ctx, e); err != nil {
			return fmt.Errorf("failed to record contract: %w", err)
		}

		result.EnrollmentID = e.ID
		result.ContractFile = file
		return nil
	})
	if err != nil {
		// The stored contract outlived the rolled back enrollment.
		h.contracts.Discard(context.WithoutCancel(ctx), issued)
		return nil, fmt.Errorf("register_for_course: %w", err)
	}

	if result.AlreadyEnrolled {
		return result, nil
	}

	h.deps.Log.Info("user enrolled",
		logger.UserID(cmd.Principal.ID.String()),
		logger.CourseID(cmd.CourseID),
		logger.EnrollmentID(result.EnrollmentID),
		logger.Document(result.ContractFile),
	)

	event := shared.NewEnrollmentRegisteredEvent(result.EnrollmentID, cmd.Principal.ID, cmd.CourseID, result.ContractFile)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)

	return result, nil
}
