// Package catalog содержит доменную модель учебного каталога:
// курсы, модули, уроки и отзывы о курсах.
// Здесь нет внешних зависимостей - только правила и инварианты.
package catalog

import (
	"path"
	"strings"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE
// ══════════════════════════════════════════════════════════════════════════════

// Course - курс, который ведёт преподаватель.
type Course struct {
	// ID - суррогатный ключ (BIGSERIAL).
	ID int64

	// Title - название курса.
	Title string

	// Slug - уникальный URL-идентификатор, выводится из Title, если не задан.
	Slug string

	// Description - полное описание (HTML).
	Description string

	// ShortDescription - краткое описание для списка курсов.
	ShortDescription string

	// Image - ссылка на обложку (опционально).
	Image string

	// Price - стоимость курса, не может быть отрицательной.
	Price shared.Money

	// TestQuestionCount - количество вопросов в итоговом тесте (для витрины).
	TestQuestionCount int

	// TestDuration - длительность теста в минутах.
	TestDuration int

	// TeacherID - преподаватель курса (роль teacher).
	TeacherID shared.UserID

	CreatedAt time.Time
}

// NewCourseParams - параметры для создания курса.
type NewCourseParams struct {
	Title             string
	Slug              string
	Description       string
	ShortDescription  string
	Image             string
	Price             shared.Money
	TestQuestionCount int
	TestDuration      int
	TeacherID         shared.UserID
}

// NewCourse создаёт курс и прогоняет Clean до сохранения.
func NewCourse(p NewCourseParams) (*Course, error) {
	c := &Course{
		Title:             strings.TrimSpace(p.Title),
		Slug:              strings.TrimSpace(p.Slug),
		Description:       p.Description,
		ShortDescription:  p.ShortDescription,
		Image:             p.Image,
		Price:             p.Price,
		TestQuestionCount: p.TestQuestionCount,
		TestDuration:      p.TestDuration,
		TeacherID:         p.TeacherID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := c.Clean(); err != nil {
		return nil, err
	}
	return c, nil
}

// Clean проверяет инварианты курса. Пустой slug выводится из названия.
func (c *Course) Clean() error {
	if c.Price.IsNegative() {
		return shared.ErrNegativePrice
	}
	if c.Title == "" {
		return shared.NewDomainError("catalog", "Clean", shared.ErrInvalidArgument, "title is required")
	}
	if len(c.Title) > 255 {
		return shared.NewDomainError("catalog", "Clean", shared.ErrInvalidArgument, "title must be at most 255 chars")
	}
	if c.Slug == "" {
		c.Slug = shared.Slugify(c.Title)
	}
	if c.Slug == "" {
		return shared.NewDomainError("catalog", "Clean", shared.ErrInvalidArgument, "title must contain latin letters or digits")
	}
	if !c.TeacherID.IsValid() {
		return shared.NewDomainError("catalog", "Clean", shared.ErrInvalidArgument, "teacher is required")
	}
	if c.TestQuestionCount < 0 || c.TestDuration < 0 {
		return shared.NewDomainError("catalog", "Clean", shared.ErrInvalidArgument, "test settings cannot be negative")
	}
	return nil
}

// String возвращает название курса.
func (c *Course) String() string {
	return c.Title
}

// ══════════════════════════════════════════════════════════════════════════════
// MODULE
// ══════════════════════════════════════════════════════════════════════════════

// Module - раздел курса со своим чатом. Название уникально в пределах курса.
type Module struct {
	ID          int64
	CourseID    int64
	Title       string
	Description string
}

// NewModule создаёт модуль курса.
func NewModule(courseID int64, title, description string) (*Module, error) {
	title = strings.TrimSpace(title)
	if courseID <= 0 {
		return nil, shared.NewDomainError("catalog", "NewModule", shared.ErrInvalidArgument, "course is required")
	}
	if title == "" {
		return nil, shared.NewDomainError("catalog", "NewModule", shared.ErrInvalidArgument, "title is required")
	}
	return &Module{CourseID: courseID, Title: title, Description: description}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - урок внутри модуля. Название уникально в пределах модуля.
type Lesson struct {
	ID       int64
	ModuleID int64

	// CourseID заполняется при чтении (через модуль) и не хранится отдельно.
	CourseID int64

	Title        string
	Description  string
	PDF          string
	VideoURL     string
	Presentation string
}

var (
	pdfExtensions          = []string{".pdf"}
	presentationExtensions = []string{".ppt", ".pptx", ".odp"}
)

// NewLessonParams - параметры для создания урока.
type NewLessonParams struct {
	ModuleID     int64
	Title        string
	Description  string
	PDF          string
	VideoURL     string
	Presentation string
}

// NewLesson создаёт урок и проверяет расширения вложений.
func NewLesson(p NewLessonParams) (*Lesson, error) {
	l := &Lesson{
		ModuleID:     p.ModuleID,
		Title:        strings.TrimSpace(p.Title),
		Description:  p.Description,
		PDF:          strings.TrimSpace(p.PDF),
		VideoURL:     strings.TrimSpace(p.VideoURL),
		Presentation: strings.TrimSpace(p.Presentation),
	}
	if l.ModuleID <= 0 {
		return nil, shared.NewDomainError("catalog", "NewLesson", shared.ErrInvalidArgument, "module is required")
	}
	if l.Title == "" {
		return nil, shared.NewDomainError("catalog", "NewLesson", shared.ErrInvalidArgument, "title is required")
	}
	if l.PDF != "" && !hasExtension(l.PDF, pdfExtensions) {
		return nil, shared.ErrInvalidAttachment
	}
	if l.Presentation != "" && !hasExtension(l.Presentation, presentationExtensions) {
		return nil, shared.ErrInvalidAttachment
	}
	return l, nil
}

func hasExtension(name string, allowed []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// FEEDBACK
// ══════════════════════════════════════════════════════════════════════════════

// Feedback - отзыв пользователя о курсе. Один отзыв на (пользователь, курс).
type Feedback struct {
	ID        int64
	CourseID  int64
	UserID    shared.UserID
	FullName  string
	Text      string
	Rating    shared.Rating
	CreatedAt time.Time
}

// NewFeedback создаёт отзыв с оценкой от 0 до 5.
func NewFeedback(courseID int64, userID shared.UserID, fullName, text string, rating int) (*Feedback, error) {
	r, err := shared.NewRating(rating)
	if err != nil {
		return nil, err
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || len(fullName) > 200 {
		return nil, shared.NewDomainError("catalog", "NewFeedback", shared.ErrInvalidArgument, "full name must be 1-200 chars")
	}
	if strings.TrimSpace(text) == "" {
		return nil, shared.NewDomainError("catalog", "NewFeedback", shared.ErrInvalidArgument, "feedback text is required")
	}
	return &Feedback{
		CourseID:  courseID,
		UserID:    userID,
		FullName:  fullName,
		Text:      text,
		Rating:    r,
		CreatedAt: time.Now().UTC(),
	}, nil
}
