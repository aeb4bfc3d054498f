// Package progress отслеживает прохождение уроков студентом:
// started -> completed, без обратных переходов.
package progress

import (
	"context"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// State - состояние прохождения урока.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in progress"
	StateCompleted  State = "completed"
)

// LessonProgress - прогресс студента по уроку. Уникален по (студент, урок).
type LessonProgress struct {
	ID        int64
	StudentID shared.UserID
	CourseID  int64
	LessonID  int64

	StartedAt   *time.Time
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New создаёт пустую запись прогресса.
func New(studentID shared.UserID, courseID, lessonID int64) (*LessonProgress, error) {
	if !studentID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if lessonID <= 0 || courseID <= 0 {
		return nil, shared.NewDomainError("progress", "New", shared.ErrInvalidArgument, "lesson and course are required")
	}
	now := time.Now().UTC()
	return &LessonProgress{
		StudentID: studentID,
		CourseID:  courseID,
		LessonID:  lessonID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// State возвращает текущее состояние.
func (p *LessonProgress) State() State {
	switch {
	case p.CompletedAt != nil:
		return StateCompleted
	case p.StartedAt != nil:
		return StateInProgress
	default:
		return StateNotStarted
	}
}

// Start отмечает начало урока. Возвращает false, если урок уже начат:
// started_at не перезаписывается.
func (p *LessonProgress) Start(now time.Time) bool {
	if p.StartedAt != nil {
		return false
	}
	t := now.UTC()
	p.StartedAt = &t
	p.UpdatedAt = t
	return true
}

// Finish отмечает завершение урока. Возвращает false, если урок уже завершён.
// Завершение без начала выставляет started_at = completed_at,
// чтобы "завершён" всегда означало и "начат".
func (p *LessonProgress) Finish(now time.Time) bool {
	if p.CompletedAt != nil {
		return false
	}
	t := now.UTC()
	if p.StartedAt == nil {
		p.StartedAt = &t
	}
	p.CompletedAt = &t
	p.UpdatedAt = t
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище прогресса по урокам.
type Repository interface {
	// Create сохраняет прогресс и заполняет ID.
	// Возвращает ErrProgressExists, если запись для (студент, урок) уже есть.
	Create(ctx context.Context, p *LessonProgress) error

	// GetForUpdate возвращает прогресс под блокировкой строки до конца транзакции.
	// Возвращает ErrProgressNotFound, если записи нет.
	GetForUpdate(ctx context.Context, studentID shared.UserID, lessonID int64) (*LessonProgress, error)

	// Get возвращает прогресс без блокировки.
	Get(ctx context.Context, studentID shared.UserID, lessonID int64) (*LessonProgress, error)

	// Update сохраняет started_at / completed_at.
	Update(ctx context.Context, p *LessonProgress) error
}
