package assessment

import (
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// Pick - пара (вопрос, выбранный ответ) из отправки теста.
type Pick struct {
	QuestionID int64
	AnswerID   int64
}

// Sheet - проверенная отправка: строки ответов и число совпадений.
type Sheet struct {
	Answers []*StudentAnswer
	Correct int
}

// Grade проверяет отправку против снимка вопросов попытки и считает баллы.
// questions должны содержать все вопросы снимка с вариантами ответов.
// Вопрос вне снимка или чужой вариант ответа - ErrInvalidArgument,
// повтор вопроса в одной отправке - ErrDuplicateAnswer.
func Grade(t *TestEnrollment, questions map[int64]*Question, picks []Pick) (*Sheet, error) {
	if len(picks) == 0 {
		return nil, shared.NewDomainError("assessment", "Grade", shared.ErrInvalidArgument, "answers are required")
	}

	sheet := &Sheet{Answers: make([]*StudentAnswer, 0, len(picks))}
	seen := make(map[int64]struct{}, len(picks))

	for _, p := range picks {
		if !t.Contains(p.QuestionID) {
			return nil, shared.NewDomainError("assessment", "Grade", shared.ErrInvalidArgument,
				fmt.Sprintf("question %d is not part of this test", p.QuestionID))
		}
		if _, dup := seen[p.QuestionID]; dup {
			return nil, shared.WrapError("assessment", "Grade", shared.ErrDuplicateAnswer,
				fmt.Sprintf("answer for question %d already submitted", p.QuestionID), nil)
		}
		seen[p.QuestionID] = struct{}{}

		q, ok := questions[p.QuestionID]
		if !ok {
			return nil, shared.NewDomainError("assessment", "Grade", shared.ErrNotFound,
				fmt.Sprintf("question %d not found", p.QuestionID))
		}
		if !q.HasAnswer(p.AnswerID) {
			return nil, shared.NewDomainError("assessment", "Grade", shared.ErrInvalidArgument,
				fmt.Sprintf("option %d does not belong to question %d", p.AnswerID, p.QuestionID))
		}
		if q.IsCorrect(p.AnswerID) {
			sheet.Correct++
		}

		sheet.Answers = append(sheet.Answers, &StudentAnswer{
			StudentID:        t.StudentID,
			QuestionID:       p.QuestionID,
			AnswerID:         p.AnswerID,
			TestEnrollmentID: t.ID,
		})
	}
	return sheet, nil
}
