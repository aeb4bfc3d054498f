// Package query contains read operations following CQRS pattern.
// Запросы возвращают DTO, готовые к сериализации в JSON.
// Единственное исключение из "только чтение" - GetTestResult:
// сертификат выпускается при первом получении результата.
package query

import (
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/enrollment"
)

// CourseDTO - курс в списке и в карточке.
type CourseDTO struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Slug              string `json:"slug"`
	ShortDescription  string `json:"short_description"`
	Description       string `json:"description,omitempty"`
	Image             string `json:"image,omitempty"`
	Price             string `json:"price"`
	TestQuestionCount int    `json:"test_question_count"`
	TestDuration      int    `json:"test_duration"`
	TeacherID         string `json:"teacher"`

	// HasAccess - есть ли у вызывающего оплаченный доступ (nil для анонимов).
	HasAccess *bool `json:"has_access,omitempty"`
}

// CourseDTOOf строит DTO курса; detailed добавляет полное описание.
func CourseDTOOf(c *catalog.Course, detailed bool) CourseDTO {
	dto := CourseDTO{
		ID:                c.ID,
		Title:             c.Title,
		Slug:              c.Slug,
		ShortDescription:  c.ShortDescription,
		Image:             c.Image,
		Price:             c.Price.String(),
		TestQuestionCount: c.TestQuestionCount,
		TestDuration:      c.TestDuration,
		TeacherID:         c.TeacherID.String(),
	}
	if detailed {
		dto.Description = c.Description
	}
	return dto
}

// ModuleDTO - модуль курса.
type ModuleDTO struct {
	ID          int64  `json:"id"`
	CourseID    int64  `json:"course"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ModuleDTOOf строит DTO модуля.
func ModuleDTOOf(m *catalog.Module) ModuleDTO {
	return ModuleDTO{ID: m.ID, CourseID: m.CourseID, Title: m.Title, Description: m.Description}
}

// LessonDTO - урок модуля.
type LessonDTO struct {
	ID           int64  `json:"id"`
	ModuleID     int64  `json:"module"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	PDF          string `json:"pdf,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
	Presentation string `json:"presentation,omitempty"`
}

// LessonDTOOf строит DTO урока.
func LessonDTOOf(l *catalog.Lesson) LessonDTO {
	return LessonDTO{
		ID:           l.ID,
		ModuleID:     l.ModuleID,
		Title:        l.Title,
		Description:  l.Description,
		PDF:          l.PDF,
		VideoURL:     l.VideoURL,
		Presentation: l.Presentation,
	}
}

// FeedbackDTO - отзыв о курсе.
type FeedbackDTO struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course"`
	FullName  string    `json:"full_name"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackDTOOf строит DTO отзыва.
func FeedbackDTOOf(f *catalog.Feedback) FeedbackDTO {
	return FeedbackDTO{
		ID:        f.ID,
		CourseID:  f.CourseID,
		FullName:  f.FullName,
		Text:      f.Text,
		Rating:    f.Rating.Int(),
		CreatedAt: f.CreatedAt,
	}
}

// EnrollmentDTO - запись на курс с договором.
type EnrollmentDTO struct {
	ID           int64      `json:"id"`
	CourseID     int64      `json:"course"`
	HasAccess    bool       `json:"has_access"`
	Completed    bool       `json:"completed"`
	ContractFile string     `json:"contract_file"`
	ContractURL  string     `json:"contract_url,omitempty"`
	StartedAt    *time.Time `json:"started_date"`
	CompletedAt  *time.Time `json:"completed_date"`
}

func enrollmentDTO(e *enrollment.Enrollment, url string) EnrollmentDTO {
	return EnrollmentDTO{
		ID:           e.ID,
		CourseID:     e.CourseID,
		HasAccess:    e.HasAccess,
		Completed:    e.Completed,
		ContractFile: e.ContractFile,
		ContractURL:  url,
		StartedAt:    e.StartedAt,
		CompletedAt:  e.CompletedAt,
	}
}

// TestResultDTO - состояние попытки теста.
type TestResultDTO struct {
	ID              int64      `json:"id"`
	CourseID        int64      `json:"course"`
	Type            int        `json:"type"`
	TypeName        string     `json:"type_name"`
	State           string     `json:"state"`
	TotalQuestions  int        `json:"total_questions"`
	CorrectAnswers  int        `json:"correct_answers"`
	Finished        bool       `json:"finished"`
	StartedAt       *time.Time `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_date"`
	CertificateFile string     `json:"certificate_file,omitempty"`
	CertificateURL  string     `json:"certificate_url,omitempty"`
}

func testResultDTO(t *assessment.TestEnrollment, certificateURL string) TestResultDTO {
	return TestResultDTO{
		ID:              t.ID,
		CourseID:        t.CourseID,
		Type:            t.Type.Int(),
		TypeName:        t.Type.String(),
		State:           string(t.State()),
		TotalQuestions:  t.TotalQuestions,
		CorrectAnswers:  t.CorrectAnswers,
		Finished:        t.Finished,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
		CertificateFile: t.CertificateFile,
		CertificateURL:  certificateURL,
	}
}

// ReplyDTO - краткая ссылка на сообщение, на которое ответили.
type ReplyDTO struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// MessageDTO - сообщение чата модуля.
type MessageDTO struct {
	ID       int64     `json:"id"`
	ModuleID int64     `json:"module"`
	UserID   string    `json:"user"`
	Username string    `json:"username"`
	Message  string    `json:"message"`
	Type     int       `json:"type"`
	Reply    *ReplyDTO `json:"reply"`
	Date     time.Time `json:"date"`
}

// MessageDTOOf конвертирует сообщение для ответа API.
func MessageDTOOf(m *chat.Message) MessageDTO {
	dto := MessageDTO{
		ID:       m.ID,
		ModuleID: m.ModuleID,
		UserID:   m.UserID.String(),
		Username: m.Username,
		Message:  m.Text,
		Type:     int(m.Type),
		Date:     m.Date,
	}
	if m.ReplyID != nil {
		dto.Reply = &ReplyDTO{ID: *m.ReplyID, Message: m.ReplyText}
	}
	return dto
}
