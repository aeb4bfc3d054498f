package catalog

import (
	"context"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository - хранилище курсов.
type CourseRepository interface {
	// Create сохраняет курс и заполняет ID.
	// Возвращает ErrSlugTaken, если slug уже занят.
	Create(ctx context.Context, course *Course) error

	// GetByID возвращает курс или ErrCourseNotFound.
	GetByID(ctx context.Context, id int64) (*Course, error)

	// List возвращает курсы по фильтру, отсортированные по названию.
	List(ctx context.Context, filter CourseFilter) ([]*Course, error)

	// Count возвращает общее количество курсов.
	Count(ctx context.Context) (int, error)
}

// ModuleRepository - хранилище модулей.
type ModuleRepository interface {
	// Create возвращает ErrModuleExists при повторе (курс, название).
	Create(ctx context.Context, module *Module) error

	// GetByID возвращает модуль или ErrModuleNotFound.
	GetByID(ctx context.Context, id int64) (*Module, error)

	// ListByCourse возвращает модули курса, отсортированные по названию.
	ListByCourse(ctx context.Context, courseID int64) ([]*Module, error)
}

// LessonRepository - хранилище уроков.
type LessonRepository interface {
	// Create возвращает ErrLessonExists при повторе (модуль, название).
	Create(ctx context.Context, lesson *Lesson) error

	// GetByID возвращает урок с заполненным CourseID или ErrLessonNotFound.
	GetByID(ctx context.Context, id int64) (*Lesson, error)

	// ListByModule возвращает уроки модуля, отсортированные по названию.
	ListByModule(ctx context.Context, moduleID int64) ([]*Lesson, error)
}

// FeedbackRepository - хранилище отзывов.
type FeedbackRepository interface {
	// Create возвращает ErrFeedbackExists, если пользователь уже оставил отзыв.
	Create(ctx context.Context, feedback *Feedback) error

	// ListByCourse возвращает отзывы курса (courseID = 0 - все отзывы).
	ListByCourse(ctx context.Context, courseID int64, page shared.Pagination) ([]*Feedback, error)
}

// CourseFilter - параметры выборки курсов.
type CourseFilter struct {
	// TitleContains - подстрока названия без учёта регистра.
	TitleContains string

	// Price - точная цена (nil - без фильтра).
	Price *shared.Money

	Page shared.Pagination
}

// WithTitle возвращает копию фильтра с поиском по названию.
func (f CourseFilter) WithTitle(title string) CourseFilter {
	f.TitleContains = title
	return f
}

// WithPrice возвращает копию фильтра с точной ценой.
func (f CourseFilter) WithPrice(price shared.Money) CourseFilter {
	f.Price = &price
	return f
}
