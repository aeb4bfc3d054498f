package command

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT TEST COMMAND
// Scores an attempt exactly once. The attempt row stays locked for the whole
// transaction; any duplicate answer rolls back every answer of the submission.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitTestCommand contains the selected answers.
type SubmitTestCommand struct {
	Principal        shared.Principal
	TestEnrollmentID int64
	Answers          []assessment.Pick

	CorrelationID string
}

// Validate validates the command.
func (c SubmitTestCommand) Validate() error {
	if err := requireStudent(c.Principal); err != nil {
		return err
	}
	if c.TestEnrollmentID <= 0 {
		return errInvalid("SubmitTest", "test id is required")
	}
	if len(c.Answers) == 0 {
		return errInvalid("SubmitTest", "answers are required")
	}
	for i, a := range c.Answers {
		if a.QuestionID <= 0 || a.AnswerID <= 0 {
			return errInvalid("SubmitTest", fmt.Sprintf("answer %d: question_id and selected_answer_id are required", i))
		}
	}
	return nil
}

// SubmitTestResult is the final score.
type SubmitTestResult struct {
	TestEnrollmentID int64
	CorrectAnswers   int
	TotalQuestions   int
	CompletedAt      time.Time
}

// SubmitTestHandler handles SubmitTestCommand.
type SubmitTestHandler struct {
	deps Deps
}

// NewSubmitTestHandler creates a new SubmitTestHandler.
func NewSubmitTestHandler(deps Deps) *SubmitTestHandler {
	return &SubmitTestHandler{deps: deps.withDefaults("submit_test")}
}

// Handle executes the command.
func (h *SubmitTestHandler) Handle(ctx context.Context, cmd SubmitTestCommand) (*SubmitTestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_test: validation failed: %w", err)
	}

	var result *SubmitTestResult
	err := h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		te, err := repos.Tests.GetForStudentForUpdate(ctx, cmd.TestEnrollmentID, cmd.Principal.ID)
		if err != nil {
			return fmt.Errorf("failed to lock test enrollment: %w", err)
		}
		if te.Finished {
			return shared.ErrAlreadySubmitted
		}

		questions, err := repos.Questions.GetByIDs(ctx, te.QuestionIDs)
		if err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}
		byID := make(map[int64]*assessment.Question, len(questions))
		for _, q := range questions {
			byID[q.ID] = q
		}

		sheet, err := assessment.Grade(te, byID, cmd.Answers)
		if err != nil {
			return err
		}

		asked := make([]int64, 0, len(sheet.Answers))
		for _, a := range sheet.Answers {
			asked = append(asked, a.QuestionID)
		}
		answered, err := repos.Answers.AnsweredQuestions(ctx, cmd.Principal.ID, asked)
		if err != nil {
			return fmt.Errorf("failed to check previous answers: %w", err)
		}
		if len(answered) > 0 {
			return shared.WrapError("assessment", "Submit", shared.ErrDuplicateAnswer,
				fmt.Sprintf("answer for question %d already submitted", answered[0]), nil)
		}

		for _, a := range sheet.Answers {
			if err := repos.Answers.Create(ctx, a); err != nil {
				return fmt.Errorf("failed to save answer for question %d: %w", a.QuestionID, err)
			}
		}

		if err := te.Finish(sheet.Correct, h.deps.Clock()); err != nil {
			return err
		}
		if err := repos.Tests.Update(ctx, te); err != nil {
			return fmt.Errorf("failed to save score: %w", err)
		}

		result = &SubmitTestResult{
			TestEnrollmentID: te.ID,
			CorrectAnswers:   te.CorrectAnswers,
			TotalQuestions:   te.TotalQuestions,
			CompletedAt:      *te.CompletedAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("submit_test: %w", err)
	}

	h.deps.Log.Info("test submitted",
		logger.UserID(cmd.Principal.ID.String()),
		logger.TestID(result.TestEnrollmentID),
		logger.Int("correct", result.CorrectAnswers),
		logger.Int("total", result.TotalQuestions),
	)
	event := shared.NewTestSubmittedEvent(result.TestEnrollmentID, cmd.Principal.ID, result.CorrectAnswers, result.TotalQuestions)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)

	return result, nil
}
