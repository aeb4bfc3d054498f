package assessment

import (
	"strings"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE: NOT_STARTED -> STARTED -> FINISHED
// ══════════════════════════════════════════════════════════════════════════════

// State - состояние попытки прохождения теста.
type State string

const (
	StateNotStarted State = "NOT_STARTED"
	StateStarted    State = "STARTED"
	StateFinished   State = "FINISHED"
)

// TestEnrollment - одна попытка теста для (студент, курс, тип).
// Набор вопросов фиксируется при создании и больше не меняется.
type TestEnrollment struct {
	ID        int64
	StudentID shared.UserID
	CourseID  int64
	Type      TestType

	// QuestionIDs - снимок набора вопросов на момент генерации.
	QuestionIDs []int64

	TotalQuestions int
	CorrectAnswers int

	StartedAt   *time.Time
	CompletedAt *time.Time
	Finished    bool

	// CertificateFile - ссылка на сертификат (certificate_{id}.pdf).
	CertificateFile string

	CreatedAt time.Time
}

// NewTestEnrollment создаёт попытку со снимком вопросов.
// Пустой набор вопросов - ErrNoQuestionsAvailable.
func NewTestEnrollment(studentID shared.UserID, courseID int64, testType TestType, questions []*Question) (*TestEnrollment, error) {
	if !studentID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if !testType.IsValid() {
		return nil, shared.ErrInvalidTestType
	}
	if len(questions) == 0 {
		return nil, shared.ErrNoQuestionsAvailable
	}

	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}

	return &TestEnrollment{
		StudentID:      studentID,
		CourseID:       courseID,
		Type:           testType,
		QuestionIDs:    ids,
		TotalQuestions: len(ids),
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// State возвращает текущее состояние попытки.
func (t *TestEnrollment) State() State {
	switch {
	case t.Finished:
		return StateFinished
	case t.StartedAt != nil:
		return StateStarted
	default:
		return StateNotStarted
	}
}

// OwnedBy проверяет, что попытка принадлежит студенту.
func (t *TestEnrollment) OwnedBy(userID shared.UserID) bool {
	return t.StudentID == userID
}

// Contains проверяет, входит ли вопрос в снимок.
func (t *TestEnrollment) Contains(questionID int64) bool {
	for _, id := range t.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// Start выставляет started_at, если он ещё не задан. Возвращает true при изменении.
func (t *TestEnrollment) Start(now time.Time) bool {
	if t.StartedAt != nil {
		return false
	}
	ts := now.UTC()
	t.StartedAt = &ts
	return true
}

// Finish фиксирует результат. Повторная сдача - ErrAlreadySubmitted.
// Сдача без явного старта выставляет started_at = completed_at.
func (t *TestEnrollment) Finish(correct int, now time.Time) error {
	if t.Finished {
		return shared.ErrAlreadySubmitted
	}
	if correct < 0 || correct > t.TotalQuestions {
		return shared.NewDomainError("assessment", "Finish", shared.ErrInvalidArgument, "score out of range")
	}
	ts := now.UTC()
	if t.StartedAt == nil {
		t.StartedAt = &ts
	}
	if ts.Before(*t.StartedAt) {
		ts = *t.StartedAt
	}
	t.CorrectAnswers = correct
	t.CompletedAt = &ts
	t.Finished = true
	return nil
}

// HasCertificate возвращает true, если сертификат уже сохранён.
func (t *TestEnrollment) HasCertificate() bool {
	return t.CertificateFile != ""
}

// AttachCertificate фиксирует ссылку на сертификат. Только для завершённых попыток.
func (t *TestEnrollment) AttachCertificate(ref string) error {
	ref = strings.TrimSpace(ref)
	if !t.Finished {
		return shared.WrapError("assessment", "AttachCertificate", shared.ErrInvalidArgument,
			"certificate cannot be generated before the test is completed", shared.ErrInvalidTestTransition)
	}
	if ref == "" {
		return shared.NewDomainError("assessment", "AttachCertificate", shared.ErrInvalidArgument, "certificate reference is empty")
	}
	if t.HasCertificate() && t.CertificateFile != ref {
		return shared.NewDomainError("assessment", "AttachCertificate", shared.ErrConflict, "certificate already attached")
	}
	t.CertificateFile = ref
	return nil
}

// Validate проверяет инварианты попытки.
func (t *TestEnrollment) Validate() error {
	if t.Finished && t.StartedAt == nil {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidArgument, "test cannot be completed without being started")
	}
	if t.CompletedAt != nil && t.StartedAt != nil && t.CompletedAt.Before(*t.StartedAt) {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidArgument, "completion time cannot be earlier than start time")
	}
	if t.HasCertificate() && !t.Finished {
		return shared.NewDomainError("assessment", "Validate", shared.ErrInvalidArgument, "certificate requires a finished test")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT ANSWER
// ══════════════════════════════════════════════════════════════════════════════

// StudentAnswer - выбранный студентом ответ. Уникален по (студент, вопрос)
// для всех попыток.
type StudentAnswer struct {
	ID               int64
	StudentID        shared.UserID
	QuestionID       int64
	AnswerID         int64
	TestEnrollmentID int64
}
