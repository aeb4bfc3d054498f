package command

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG AUTHORING COMMANDS
// Courses, modules, lessons and test questions. Only the course teacher or an
// admin may change a course.
// ══════════════════════════════════════════════════════════════════════════════

// authorizeCourse checks that p may edit course.
func authorizeCourse(p shared.Principal, course *catalog.Course) error {
	if p.Role == shared.RoleAdmin || (p.Role == shared.RoleTeacher && course.TeacherID == p.ID) {
		return nil
	}
	return shared.ErrNotCourseTeacher
}

// ─────────────────────────────────────────────────────────────────────────────
// Create course
// ─────────────────────────────────────────────────────────────────────────────

// CreateCourseCommand contains the course fields. Price is a decimal string.
type CreateCourseCommand struct {
	Principal         shared.Principal
	Title             string
	Slug              string
	Description       string
	ShortDescription  string
	Image             string
	Price             string
	TestQuestionCount int
	TestDuration      int

	// TeacherID defaults to the caller. Only admins may set someone else.
	TeacherID shared.UserID

	CorrelationID string
}

// Validate validates the command.
func (c CreateCourseCommand) Validate() error {
	if err := requireAuthor(c.Principal); err != nil {
		return err
	}
	if c.TeacherID != "" && c.TeacherID != c.Principal.ID && c.Principal.Role != shared.RoleAdmin {
		return shared.ErrRoleRequired
	}
	return nil
}

// CreateCourseHandler handles CreateCourseCommand.
type CreateCourseHandler struct {
	deps Deps
}

// NewCreateCourseHandler creates a new CreateCourseHandler.
func NewCreateCourseHandler(deps Deps) *CreateCourseHandler {
	return &CreateCourseHandler{deps: deps.withDefaults("create_course")}
}

// Handle executes the command.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*catalog.Course, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_course: validation failed: %w", err)
	}

	price, err := shared.ParseMoney(cmd.Price)
	if err != nil {
		return nil, fmt.Errorf("create_course: %w", err)
	}
	teacherID := cmd.TeacherID
	if teacherID == "" {
		teacherID = cmd.Principal.ID
	}

	course, err := catalog.NewCourse(catalog.NewCourseParams{
		Title:             cmd.Title,
		Slug:              cmd.Slug,
		Description:       cmd.Description,
		ShortDescription:  cmd.ShortDescription,
		Image:             cmd.Image,
		Price:             price,
		TestQuestionCount: cmd.TestQuestionCount,
		TestDuration:      cmd.TestDuration,
		TeacherID:         teacherID,
	})
	if err != nil {
		return nil, fmt.Errorf("create_course: %w", err)
	}

	err = h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		teacher, err := repos.Users.GetByID(ctx, teacherID)
		if err != nil {
			return fmt.Errorf("failed to get teacher: %w", err)
		}
		if teacher.Role != shared.RoleTeacher {
			return shared.NewDomainError("catalog", "CreateCourse", shared.ErrInvalidArgument, "course teacher must have the teacher role")
		}
		return repos.Courses.Create(ctx, course)
	})
	if err != nil {
		return nil, fmt.Errorf("create_course: %w", err)
	}

	h.deps.Log.Info("course created", logger.CourseID(course.ID), logger.String("slug", course.Slug))
	event := shared.NewCourseCreatedEvent(course.ID, course.Slug, course.TeacherID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)
	return course, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Add module
// ─────────────────────────────────────────────────────────────────────────────

// AddModuleCommand adds a module to a course.
type AddModuleCommand struct {
	Principal   shared.Principal
	CourseID    int64
	Title       string
	Description string
}

// AddModuleHandler handles AddModuleCommand.
type AddModuleHandler struct {
	deps Deps
}

// NewAddModuleHandler creates a new AddModuleHandler.
func NewAddModuleHandler(deps Deps) *AddModuleHandler {
	return &AddModuleHandler{deps: deps.withDefaults("add_module")}
}

// Handle executes the command.
func (h *AddModuleHandler) Handle(ctx context.Context, cmd AddModuleCommand) (*catalog.Module, error) {
	if err := requireAuthor(cmd.Principal); err != nil {
		return nil, fmt.Errorf("add_module: validation failed: %w", err)
	}
	module, err := catalog.NewModule(cmd.CourseID, cmd.Title, cmd.Description)
	if err != nil {
		return nil, fmt.Errorf("add_module: %w", err)
	}

	err = h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		course, err := repos.Courses.GetByID(ctx, cmd.CourseID)
		if err != nil {
			return fmt.Errorf("failed to get course: %w", err)
		}
		if err := authorizeCourse(cmd.Principal, course); err != nil {
			return err
		}
		return repos.Modules.Create(ctx, module)
	})
	if err != nil {
		return nil, fmt.Errorf("add_module: %w", err)
	}
	return module, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Add lesson
// ─────────────────────────────────────────────────────────────────────────────

// AddLessonCommand adds a lesson to a module.
type AddLessonCommand struct {
	Principal    shared.Principal
	ModuleID     int64
	Title        string
	Description  string
	PDF          string
	VideoURL     string
	Presentation string
}

// AddLessonHandler handles AddLessonCommand.
type AddLessonHandler struct {
	deps Deps
}

// NewAddLessonHandler creates a new AddLessonHandler.
func NewAddLessonHandler(deps Deps) *AddLessonHandler {
	return &AddLessonHandler{deps: deps.withDefaults("add_lesson")}
}

// Handle executes the command.
func (h *AddLessonHandler) Handle(ctx context.Context, cmd AddLessonCommand) (*catalog.Lesson, error) {
	if err := requireAuthor(cmd.Principal); err != nil {
		return nil, fmt.Errorf("add_lesson: validation failed: %w", err)
	}
	lesson, err := catalog.NewLesson(catalog.NewLessonParams{
		ModuleID:     cmd.ModuleID,
		Title:        cmd.Title,
		Description:  cmd.Description,
		PDF:          cmd.PDF,
		VideoURL:     cmd.VideoURL,
		Presentation: cmd.Presentation,
	})
	if err != nil {
		return nil, fmt.Errorf("add_lesson: %w", err)
	}

	err = h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		module, err := repos.Modules.GetByID(ctx, cmd.ModuleID)
		if err != nil {
			return fmt.Errorf("failed to get module: %w", err)
		}
		course, err := repos.Courses.GetByID(ctx, module.CourseID)
		if err != nil {
			return fmt.Errorf("failed to get course: %w", err)
		}
		if err := authorizeCourse(cmd.Principal, course); err != nil {
			return err
		}
		return repos.Lessons.Create(ctx, lesson)
	})
	if err != nil {
		return nil, fmt.Errorf("add_lesson: %w", err)
	}
	return lesson, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Add question
// ─────────────────────────────────────────────────────────────────────────────

// AddQuestionCommand adds a test question with its answers.
type AddQuestionCommand struct {
	Principal shared.Principal
	CourseID  int64
	Text      string
	Image     string
	Type      int
	Answers   []assessment.Answer
}

// AddQuestionHandler handles AddQuestionCommand.
type AddQuestionHandler struct {
	deps Deps
}

// NewAddQuestionHandler creates a new AddQuestionHandler.
func NewAddQuestionHandler(deps Deps) *AddQuestionHandler {
	return &AddQuestionHandler{deps: deps.withDefaults("add_question")}
}

// Handle executes the command.
func (h *AddQuestionHandler) Handle(ctx context.Context, cmd AddQuestionCommand) (*assessment.Question, error) {
	if err := requireAuthor(cmd.Principal); err != nil {
		return nil, fmt.Errorf("add_question: validation failed: %w", err)
	}
	testType, err := assessment.ParseTestType(cmd.Type)
	if err != nil {
		return nil, fmt.Errorf("add_question: %w", err)
	}
	q, err := assessment.NewQuestion(assessment.NewQuestionParams{
		CourseID: cmd.CourseID,
		Text:     cmd.Text,
		Image:    cmd.Image,
		Type:     testType,
		Answers:  cmd.Answers,
	})
	if err != nil {
		return nil, fmt.Errorf("add_question: %w", err)
	}

	err = h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		course, err := repos.Courses.GetByID(ctx, cmd.CourseID)
		if err != nil {
			return fmt.Errorf("failed to get course: %w", err)
		}
		if err := authorizeCourse(cmd.Principal, course); err != nil {
			return err
		}
		return repos.Questions.Create(ctx, q)
	})
	if err != nil {
		return nil, fmt.Errorf("add_question: %w", err)
	}
	return q, nil
}
