// Package enrollment содержит запись студента на курс и договор,
// который генерируется ровно один раз на каждую запись.
package enrollment

import (
	"context"
	"strings"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// Enrollment - запись пользователя на курс. Уникальна по (пользователь, курс).
type Enrollment struct {
	ID       int64
	UserID   shared.UserID
	CourseID int64

	// HasAccess выставляется вручную после оплаты договора.
	HasAccess bool

	// Completed - курс пройден.
	Completed bool

	// ContractFile - ссылка на сгенерированный договор (contract_{id}.pdf).
	ContractFile string

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New создаёт запись на курс без договора и без доступа.
func New(userID shared.UserID, courseID int64) (*Enrollment, error) {
	if !userID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if courseID <= 0 {
		return nil, shared.NewDomainError("enrollment", "New", shared.ErrInvalidArgument, "course is required")
	}
	now := time.Now().UTC()
	return &Enrollment{
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasContract возвращает true, если договор уже сохранён.
func (e *Enrollment) HasContract() bool {
	return e.ContractFile != ""
}

// AttachContract фиксирует ссылку на договор. Повторная привязка
// того же файла - no-op, другого файла - ошибка.
func (e *Enrollment) AttachContract(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return shared.NewDomainError("enrollment", "AttachContract", shared.ErrInvalidArgument, "contract reference is empty")
	}
	if e.HasContract() {
		if e.ContractFile == ref {
			return nil
		}
		return shared.NewDomainError("enrollment", "AttachContract", shared.ErrConflict, "contract already attached")
	}
	e.ContractFile = ref
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted отмечает курс пройденным. Возвращает false, если он уже отмечен.
func (e *Enrollment) MarkCompleted(at time.Time) bool {
	if e.Completed {
		return false
	}
	ts := at.UTC()
	e.Completed = true
	e.CompletedAt = &ts
	e.UpdatedAt = ts
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище записей на курсы.
type Repository interface {
	// Create сохраняет запись и заполняет ID.
	// Возвращает ErrEnrollmentExists при конкурентной записи на тот же курс.
	Create(ctx context.Context, e *Enrollment) error

	// GetByUserAndCourse возвращает запись или ErrEnrollmentNotFound.
	GetByUserAndCourse(ctx context.Context, userID shared.UserID, courseID int64) (*Enrollment, error)

	// GetForUser возвращает запись по ID, если она принадлежит пользователю,
	// иначе ErrEnrollmentNotFound.
	GetForUser(ctx context.Context, id int64, userID shared.UserID) (*Enrollment, error)

	// Update сохраняет изменения (договор, доступ, завершение).
	Update(ctx context.Context, e *Enrollment) error

	// ListByUser возвращает все записи пользователя.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Enrollment, error)
}
