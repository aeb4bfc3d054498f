package command

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// GiveFeedbackCommand rates a course. One feedback per (user, course).
type GiveFeedbackCommand struct {
	Principal shared.Principal
	CourseID  int64
	FullName  string
	Text      string
	Rating    int

	CorrelationID string
}

// GiveFeedbackHandler handles GiveFeedbackCommand.
type GiveFeedbackHandler struct {
	deps Deps
}

// NewGiveFeedbackHandler creates a new GiveFeedbackHandler.
func NewGiveFeedbackHandler(deps Deps) *GiveFeedbackHandler {
	return &GiveFeedbackHandler{deps: deps.withDefaults("give_feedback")}
}

// Handle executes the command.
func (h *GiveFeedbackHandler) Handle(ctx context.Context, cmd GiveFeedbackCommand) (*catalog.Feedback, error) {
	if err := cmd.Principal.Validate(); err != nil {
		return nil, fmt.Errorf("give_feedback: validation failed: %w", err)
	}

	fullName := cmd.FullName
	if fullName == "" {
		fullName = cmd.Principal.Username
	}
	fb, err := catalog.NewFeedback(cmd.CourseID, cmd.Principal.ID, fullName, cmd.Text, cmd.Rating)
	if err != nil {
		return nil, fmt.Errorf("give_feedback: %w", err)
	}

	err = h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		if _, err := repos.Courses.GetByID(ctx, cmd.CourseID); err != nil {
			return fmt.Errorf("failed to get course: %w", err)
		}
		return repos.Feedback.Create(ctx, fb)
	})
	if err != nil {
		return nil, fmt.Errorf("give_feedback: %w", err)
	}

	event := shared.NewFeedbackGivenEvent(fb.CourseID, fb.UserID, fb.Rating.Int())
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)
	return fb, nil
}
