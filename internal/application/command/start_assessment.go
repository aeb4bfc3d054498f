package command

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// START TEST COMMAND
// Marks the attempt as started and returns the question sheet. Which answer
// is correct never leaves this package.
// ══════════════════════════════════════════════════════════════════════════════

// StartTestCommand identifies the attempt.
type StartTestCommand struct {
	Principal        shared.Principal
	TestEnrollmentID int64
}

// Validate validates the command.
func (c StartTestCommand) Validate() error {
	if err := requireStudent(c.Principal); err != nil {
		return err
	}
	if c.TestEnrollmentID <= 0 {
		return errInvalid("StartTest", "test id is required")
	}
	return nil
}

// AnswerOption is a selectable answer without its correctness flag.
type AnswerOption struct {
	ID   int64
	Text string
}

// QuestionSheet is one question as shown to the student.
type QuestionSheet struct {
	ID      int64
	Text    string
	Image   string
	Answers []AnswerOption
}

// StartTestResult is the full attempt detail.
type StartTestResult struct {
	TestEnrollmentID int64
	CourseID         int64
	Type             assessment.TestType
	State            assessment.State
	StartedAt        *time.Time
	TotalQuestions   int
	Questions        []QuestionSheet
}

// StartTestHandler handles StartTestCommand.
type StartTestHandler struct {
	deps Deps
}

// NewStartTestHandler creates a new StartTestHandler.
func NewStartTestHandler(deps Deps) *StartTestHandler {
	return &StartTestHandler{deps: deps.withDefaults("start_test")}
}

// Handle sets started_at if unset and returns the sheet.
func (h *StartTestHandler) Handle(ctx context.Context, cmd StartTestCommand) (*StartTestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("start_test: validation failed: %w", err)
	}

	var result *StartTestResult
	err := h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		te, err := repos.Tests.GetForStudentForUpdate(ctx, cmd.TestEnrollmentID, cmd.Principal.ID)
		if err != nil {
			return fmt.Errorf("failed to get test enrollment: %w", err)
		}

		if te.Start(h.deps.Clock()) {
			if err := repos.Tests.Update(ctx, te); err != nil {
				return fmt.Errorf("failed to mark test started: %w", err)
			}
		}

		questions, err := repos.Questions.GetByIDs(ctx, te.QuestionIDs)
		if err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}

		result = &StartTestResult{
			TestEnrollmentID: te.ID,
			CourseID:         te.CourseID,
			Type:             te.Type,
			State:            te.State(),
			StartedAt:        te.StartedAt,
			TotalQuestions:   te.TotalQuestions,
			Questions:        sheetsOf(questions),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start_test: %w", err)
	}
	return result, nil
}

// sheetsOf strips the correctness flags.
func sheetsOf(questions []*assessment.Question) []QuestionSheet {
	out := make([]QuestionSheet, 0, len(questions))
	for _, q := range questions {
		sheet := QuestionSheet{ID: q.ID, Text: q.Text, Image: q.Image}
		for _, a := range q.Answers {
			sheet.Answers = append(sheet.Answers, AnswerOption{ID: a.ID, Text: a.Text})
		}
		out = append(out, sheet)
	}
	return out
}
