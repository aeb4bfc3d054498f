package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST COURSES QUERY
// Публичный каталог курсов. Для авторизованного пользователя
// дополнительно заполняется has_access.
// ══════════════════════════════════════════════════════════════════════════════

// ListCoursesQuery - параметры выборки курсов.
type ListCoursesQuery struct {
	// Principal - вызывающий (пустой для анонимов).
	Principal shared.Principal

	// Title - подстрока названия.
	Title string

	// Price - точная цена "199.90" (пустая строка - без фильтра).
	Price string

	Page     int
	PageSize int
}

// Filter строит фильтр репозитория из параметров запроса.
func (q *ListCoursesQuery) Filter() (catalog.CourseFilter, error) {
	filter := catalog.CourseFilter{}.WithTitle(strings.TrimSpace(q.Title))
	if q.Price != "" {
		price, err := shared.ParseMoney(q.Price)
		if err != nil {
			return filter, err
		}
		filter = filter.WithPrice(price)
	}
	if q.Page > 0 || q.PageSize > 0 {
		filter.Page = shared.NewPagination(q.Page, q.PageSize)
	}
	return filter, nil
}

// ListCoursesHandler обрабатывает выборку курсов.
type ListCoursesHandler struct {
	deps Deps
}

// NewListCoursesHandler создаёт обработчик.
func NewListCoursesHandler(deps Deps) *ListCoursesHandler {
	return &ListCoursesHandler{deps: deps.withDefaults("list_courses")}
}

// Handle выполняет запрос.
func (h *ListCoursesHandler) Handle(ctx context.Context, q ListCoursesQuery) ([]CourseDTO, error) {
	filter, err := q.Filter()
	if err != nil {
		return nil, fmt.Errorf("list_courses: validation failed: %w", err)
	}
	repos := h.deps.UoW.Repositories()

	courses, err := repos.Courses.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list_courses: %w", err)
	}

	out := make([]CourseDTO, 0, len(courses))
	for _, c := range courses {
		dto := CourseDTOOf(c, false)
		if q.Principal.ID.IsValid() {
			access, err := hasAccess(ctx, repos, q.Principal.ID, c.ID)
			if err != nil {
				return nil, fmt.Errorf("list_courses: %w", err)
			}
			dto.HasAccess = &access
		}
		out = append(out, dto)
	}
	return out, nil
}

// hasAccess - true, если есть запись на курс с оплаченным доступом.
func hasAccess(ctx context.Context, repos uow.Repositories, userID shared.UserID, courseID int64) (bool, error) {
	e, err := repos.Enrollments.GetByUserAndCourse(ctx, userID, courseID)
	if errors.Is(err, shared.ErrEnrollmentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.HasAccess, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseHandler возвращает карточку курса с полным описанием.
type GetCourseHandler struct {
	deps Deps
}

// NewGetCourseHandler создаёт обработчик.
func NewGetCourseHandler(deps Deps) *GetCourseHandler {
	return &GetCourseHandler{deps: deps.withDefaults("get_course")}
}

// Handle выполняет запрос.
func (h *GetCourseHandler) Handle(ctx context.Context, p shared.Principal, courseID int64) (*CourseDTO, error) {
	repos := h.deps.UoW.Repositories()
	c, err := repos.Courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get_course: %w", err)
	}
	dto := CourseDTOOf(c, true)
	if p.ID.IsValid() {
		access, err := hasAccess(ctx, repos, p.ID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("get_course: %w", err)
		}
		dto.HasAccess = &access
	}
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST MODULES / LESSONS
// ══════════════════════════════════════════════════════════════════════════════

// ListModulesHandler возвращает модули курса.
type ListModulesHandler struct {
	deps Deps
}

// NewListModulesHandler создаёт обработчик.
func NewListModulesHandler(deps Deps) *ListModulesHandler {
	return &ListModulesHandler{deps: deps.withDefaults("list_modules")}
}

// Handle выполняет запрос. Неизвестный курс - ErrCourseNotFound.
func (h *ListModulesHandler) Handle(ctx context.Context, courseID int64) ([]ModuleDTO, error) {
	repos := h.deps.UoW.Repositories()
	if _, err := repos.Courses.GetByID(ctx, courseID); err != nil {
		return nil, fmt.Errorf("list_modules: %w", err)
	}
	modules, err := repos.Modules.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list_modules: %w", err)
	}
	out := make([]ModuleDTO, 0, len(modules))
	for _, m := range modules {
		out = append(out, ModuleDTOOf(m))
	}
	return out, nil
}

// ListLessonsHandler возвращает уроки модуля.
type ListLessonsHandler struct {
	deps Deps
}

// NewListLessonsHandler создаёт обработчик.
func NewListLessonsHandler(deps Deps) *ListLessonsHandler {
	return &ListLessonsHandler{deps: deps.withDefaults("list_lessons")}
}

// Handle выполняет запрос. Неизвестный модуль - ErrModuleNotFound.
func (h *ListLessonsHandler) Handle(ctx context.Context, moduleID int64) ([]LessonDTO, error) {
	repos := h.deps.UoW.Repositories()
	if _, err := repos.Modules.GetByID(ctx, moduleID); err != nil {
		return nil, fmt.Errorf("list_lessons: %w", err)
	}
	lessons, err := repos.Lessons.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list_lessons: %w", err)
	}
	out := make([]LessonDTO, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, LessonDTOOf(l))
	}
	return out, nil
}

// GetModuleHandler возвращает модуль по ID.
type GetModuleHandler struct {
	deps Deps
}

// NewGetModuleHandler создаёт обработчик.
func NewGetModuleHandler(deps Deps) *GetModuleHandler {
	return &GetModuleHandler{deps: deps.withDefaults("get_module")}
}

// Handle выполняет запрос.
func (h *GetModuleHandler) Handle(ctx context.Context, moduleID int64) (*ModuleDTO, error) {
	m, err := h.deps.UoW.Repositories().Modules.GetByID(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("get_module: %w", err)
	}
	dto := ModuleDTOOf(m)
	return &dto, nil
}

// GetLessonHandler возвращает урок по ID.
type GetLessonHandler struct {
	deps Deps
}

// NewGetLessonHandler создаёт обработчик.
func NewGetLessonHandler(deps Deps) *GetLessonHandler {
	return &GetLessonHandler{deps: deps.withDefaults("get_lesson")}
}

// Handle выполняет запрос.
func (h *GetLessonHandler) Handle(ctx context.Context, lessonID int64) (*LessonDTO, error) {
	l, err := h.deps.UoW.Repositories().Lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("get_lesson: %w", err)
	}
	dto := LessonDTOOf(l)
	return &dto, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST FEEDBACK
// ══════════════════════════════════════════════════════════════════════════════

// ListFeedbackQuery - параметры. CourseID = 0 - отзывы по всем курсам.
type ListFeedbackQuery struct {
	CourseID int64
	Page     int
	PageSize int
}

// ListFeedbackHandler возвращает отзывы, новые первыми.
type ListFeedbackHandler struct {
	deps Deps
}

// NewListFeedbackHandler создаёт обработчик.
func NewListFeedbackHandler(deps Deps) *ListFeedbackHandler {
	return &ListFeedbackHandler{deps: deps.withDefaults("list_feedback")}
}

// Handle выполняет запрос.
func (h *ListFeedbackHandler) Handle(ctx context.Context, q ListFeedbackQuery) ([]FeedbackDTO, error) {
	if q.CourseID < 0 {
		return nil, errInvalid("ListFeedback", "course id cannot be negative")
	}
	var page shared.Pagination
	if q.Page > 0 || q.PageSize > 0 {
		page = shared.NewPagination(q.Page, q.PageSize)
	}
	list, err := h.deps.UoW.Repositories().Feedback.ListByCourse(ctx, q.CourseID, page)
	if err != nil {
		return nil, fmt.Errorf("list_feedback: %w", err)
	}
	out := make([]FeedbackDTO, 0, len(list))
	for _, f := range list {
		out = append(out, FeedbackDTOOf(f))
	}
	return out, nil
}
