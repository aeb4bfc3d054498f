package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/progress"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS COMMANDS
// Start and finish are idempotent: a repeated call reports Changed=false and
// never overwrites the stored timestamps.
// ══════════════════════════════════════════════════════════════════════════════

// LessonProgressCommand identifies the student and the lesson.
type LessonProgressCommand struct {
	Principal shared.Principal
	LessonID  int64

	CorrelationID string
}

// Validate validates the command.
func (c LessonProgressCommand) Validate() error {
	if err := requireStudent(c.Principal); err != nil {
		return err
	}
	if c.LessonID <= 0 {
		return errInvalid("LessonProgress", "lesson_id is required")
	}
	return nil
}

// LessonProgressResult is the progress row after the call.
type LessonProgressResult struct {
	ProgressID  int64
	LessonID    int64
	CourseID    int64
	State       progress.State
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Changed is false when the call was a no-op.
	Changed bool
}

func resultOf(p *progress.LessonProgress, changed bool) *LessonProgressResult {
	return &LessonProgressResult{
		ProgressID:  p.ID,
		LessonID:    p.LessonID,
		CourseID:    p.CourseID,
		State:       p.State(),
		StartedAt:   p.StartedAt,
		CompletedAt: p.CompletedAt,
		Changed:     changed,
	}
}

// lessonProgressHandler holds the shared get-or-create flow.
type lessonProgressHandler struct {
	deps Deps
}

// apply locks (or creates) the progress row and applies mutate to it.
func (h lessonProgressHandler) apply(
	ctx context.Context,
	cmd LessonProgressCommand,
	mutate func(p *progress.LessonProgress, now time.Time) bool,
) (*LessonProgressResult, error) {
	var result *LessonProgressResult
	now := h.deps.Clock()

	err := h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		lesson, err := repos.Lessons.GetByID(ctx, cmd.LessonID)
		if err != nil {
			return fmt.Errorf("failed to get lesson: %w", err)
		}

		p, err := repos.Progress.GetForUpdate(ctx, cmd.Principal.ID, lesson.ID)
		switch {
		case errors.Is(err, shared.ErrProgressNotFound):
			p, err = progress.New(cmd.Principal.ID, lesson.CourseID, lesson.ID)
			if err != nil {
				return err
			}
			changed := mutate(p, now)
			createErr := repos.Progress.Create(ctx, p)
			if createErr == nil {
				result = resultOf(p, changed)
				return nil
			}
			if !errors.Is(createErr, shared.ErrProgressExists) {
				return fmt.Errorf("failed to create progress: %w", createErr)
			}
			// Lost the insert race: lock the winner's row and continue.
			p, err = repos.Progress.GetForUpdate(ctx, cmd.Principal.ID, lesson.ID)
			if err != nil {
				return fmt.Errorf("failed to lock progress: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to lock progress: %w", err)
		}

		changed := mutate(p, now)
		if changed {
			if err := repos.Progress.Update(ctx, p); err != nil {
				return fmt.Errorf("failed to update progress: %w", err)
			}
		}
		result = resultOf(p, changed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StartLessonHandler handles startLesson.
type StartLessonHandler struct {
	lessonProgressHandler
}

// NewStartLessonHandler creates a new StartLessonHandler.
func NewStartLessonHandler(deps Deps) *StartLessonHandler {
	return &StartLessonHandler{lessonProgressHandler{deps: deps.withDefaults("start_lesson")}}
}

// Handle sets started_at once.
func (h *StartLessonHandler) Handle(ctx context.Context, cmd LessonProgressCommand) (*LessonProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("start_lesson: validation failed: %w", err)
	}

	result, err := h.apply(ctx, cmd, (*progress.LessonProgress).Start)
	if err != nil {
		return nil, fmt.Errorf("start_lesson: %w", err)
	}

	if result.Changed {
		event := shared.NewLessonStartedEvent(result.ProgressID, cmd.Principal.ID, cmd.LessonID, *result.StartedAt)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		h.deps.publish(event)
	}
	return result, nil
}

// FinishLessonHandler handles finishLesson. A lesson finished without a
// start is started at the same instant.
type FinishLessonHandler struct {
	lessonProgressHandler
}

// NewFinishLessonHandler creates a new FinishLessonHandler.
func NewFinishLessonHandler(deps Deps) *FinishLessonHandler {
	return &FinishLessonHandler{lessonProgressHandler{deps: deps.withDefaults("finish_lesson")}}
}

// Handle sets completed_at once.
func (h *FinishLessonHandler) Handle(ctx context.Context, cmd LessonProgressCommand) (*LessonProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("finish_lesson: validation failed: %w", err)
	}

	result, err := h.apply(ctx, cmd, (*progress.LessonProgress).Finish)
	if err != nil {
		return nil, fmt.Errorf("finish_lesson: %w", err)
	}

	if result.Changed {
		h.deps.Log.Debug("lesson finished",
			logger.UserID(cmd.Principal.ID.String()),
			logger.LessonID(cmd.LessonID),
		)
		event := shared.NewLessonFinishedEvent(result.ProgressID, cmd.Principal.ID, cmd.LessonID, *result.CompletedAt)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		h.deps.publish(event)
	}
	return result, nil
}
