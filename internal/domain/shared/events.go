// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They are published after the owning transaction commits.
const (
	// Enrollment events
	EventEnrollmentRegistered EventType = "enrollment.registered"

	// Progress events
	EventLessonStarted  EventType = "lesson.started"
	EventLessonFinished EventType = "lesson.finished"

	// Assessment events
	EventTestGenerated     EventType = "test.generated"
	EventTestSubmitted     EventType = "test.submitted"
	EventCertificateIssued EventType = "certificate.issued"

	// Chat events
	EventChatMessageSent EventType = "chat.message_sent"

	// Catalog events
	EventCourseCreated  EventType = "catalog.course_created"
	EventFeedbackGiven  EventType = "catalog.feedback_given"
	EventUserRegistered EventType = "account.user_registered"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// Correlation returns the correlation ID, if any.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentRegisteredEvent is emitted when a user is enrolled and the contract is stored.
type EnrollmentRegisteredEvent struct {
	BaseEvent
	UserID       UserID `json:"user_id"`
	CourseID     int64  `json:"course_id"`
	ContractFile string `json:"contract_file"`
}

// Payload implements Event interface.
func (e EnrollmentRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID.String(),
		"course_id":     e.CourseID,
		"contract_file": e.ContractFile,
	}
}

// NewEnrollmentRegisteredEvent creates a new EnrollmentRegisteredEvent.
func NewEnrollmentRegisteredEvent(enrollmentID int64, userID UserID, courseID int64, contractFile string) EnrollmentRegisteredEvent {
	return EnrollmentRegisteredEvent{
		BaseEvent:    NewBaseEvent(EventEnrollmentRegistered, FormatID(enrollmentID)),
		UserID:       userID,
		CourseID:     courseID,
		ContractFile: contractFile,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonProgressEvent is emitted when a lesson is started or finished.
type LessonProgressEvent struct {
	BaseEvent
	StudentID UserID    `json:"student_id"`
	LessonID  int64     `json:"lesson_id"`
	At        time.Time `json:"at"`
}

// Payload implements Event interface.
func (e LessonProgressEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID.String(),
		"lesson_id":  e.LessonID,
		"at":         e.At.Format(time.RFC3339),
	}
}

// NewLessonStartedEvent creates a lesson.started event.
func NewLessonStartedEvent(progressID int64, studentID UserID, lessonID int64, at time.Time) LessonProgressEvent {
	return LessonProgressEvent{
		BaseEvent: NewBaseEvent(EventLessonStarted, FormatID(progressID)),
		StudentID: studentID,
		LessonID:  lessonID,
		At:        at,
	}
}

// NewLessonFinishedEvent creates a lesson.finished event.
func NewLessonFinishedEvent(progressID int64, studentID UserID, lessonID int64, at time.Time) LessonProgressEvent {
	return LessonProgressEvent{
		BaseEvent: NewBaseEvent(EventLessonFinished, FormatID(progressID)),
		StudentID: studentID,
		LessonID:  lessonID,
		At:        at,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Assessment Events
// ═══════════════════════════════════════════════════════════════════════════

// TestGeneratedEvent is emitted when a new test attempt is snapshotted.
type TestGeneratedEvent struct {
	BaseEvent
	StudentID      UserID `json:"student_id"`
	CourseID       int64  `json:"course_id"`
	TestType       int    `json:"test_type"`
	TotalQuestions int    `json:"total_questions"`
}

// Payload implements Event interface.
func (e TestGeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID.String(),
		"course_id":       e.CourseID,
		"test_type":       e.TestType,
		"total_questions": e.TotalQuestions,
	}
}

// NewTestGeneratedEvent creates a new TestGeneratedEvent.
func NewTestGeneratedEvent(testID int64, studentID UserID, courseID int64, testType, total int) TestGeneratedEvent {
	return TestGeneratedEvent{
		BaseEvent:      NewBaseEvent(EventTestGenerated, FormatID(testID)),
		StudentID:      studentID,
		CourseID:       courseID,
		TestType:       testType,
		TotalQuestions: total,
	}
}

// TestSubmittedEvent is emitted once per test attempt, when it is scored.
type TestSubmittedEvent struct {
	BaseEvent
	TestEnrollmentID int64  `json:"test_enrollment_id"`
	StudentID        UserID `json:"student_id"`
	CorrectAnswers   int    `json:"correct_answers"`
	TotalQuestions   int    `json:"total_questions"`
}

// Payload implements Event interface.
func (e TestSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID.String(),
		"correct_answers": e.CorrectAnswers,
		"total_questions": e.TotalQuestions,
	}
}

// NewTestSubmittedEvent creates a new TestSubmittedEvent.
func NewTestSubmittedEvent(testID int64, studentID UserID, correct, total int) TestSubmittedEvent {
	return TestSubmittedEvent{
		BaseEvent:        NewBaseEvent(EventTestSubmitted, FormatID(testID)),
		TestEnrollmentID: testID,
		StudentID:        studentID,
		CorrectAnswers:   correct,
		TotalQuestions:   total,
	}
}

// CertificateIssuedEvent is emitted the first time a certificate is stored.
type CertificateIssuedEvent struct {
	BaseEvent
	StudentID       UserID    `json:"student_id"`
	CertificateFile string    `json:"certificate_file"`
	ValidUntil      time.Time `json:"valid_until"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":       e.StudentID.String(),
		"certificate_file": e.CertificateFile,
		"valid_until":      e.ValidUntil.Format(time.DateOnly),
	}
}

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent.
func NewCertificateIssuedEvent(testID int64, studentID UserID, file string, validUntil time.Time) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent:       NewBaseEvent(EventCertificateIssued, FormatID(testID)),
		StudentID:       studentID,
		CertificateFile: file,
		ValidUntil:      validUntil,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Chat & Catalog Events
// ═══════════════════════════════════════════════════════════════════════════

// ChatMessageSentEvent is emitted after a chat message is persisted.
type ChatMessageSentEvent struct {
	BaseEvent
	ModuleID int64  `json:"module_id"`
	UserID   UserID `json:"user_id"`
}

// Payload implements Event interface.
func (e ChatMessageSentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"module_id": e.ModuleID,
		"user_id":   e.UserID.String(),
	}
}

// NewChatMessageSentEvent creates a new ChatMessageSentEvent.
func NewChatMessageSentEvent(messageID, moduleID int64, userID UserID) ChatMessageSentEvent {
	return ChatMessageSentEvent{
		BaseEvent: NewBaseEvent(EventChatMessageSent, FormatID(messageID)),
		ModuleID:  moduleID,
		UserID:    userID,
	}
}

// CourseCreatedEvent is emitted when a course is added to the catalog.
type CourseCreatedEvent struct {
	BaseEvent
	Slug      string `json:"slug"`
	TeacherID UserID `json:"teacher_id"`
}

// Payload implements Event interface.
func (e CourseCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"slug":       e.Slug,
		"teacher_id": e.TeacherID.String(),
	}
}

// NewCourseCreatedEvent creates a new CourseCreatedEvent.
func NewCourseCreatedEvent(courseID int64, slug string, teacherID UserID) CourseCreatedEvent {
	return CourseCreatedEvent{
		BaseEvent: NewBaseEvent(EventCourseCreated, FormatID(courseID)),
		Slug:      slug,
		TeacherID: teacherID,
	}
}

// FeedbackGivenEvent is emitted when a user rates a course.
type FeedbackGivenEvent struct {
	BaseEvent
	UserID UserID `json:"user_id"`
	Rating int    `json:"rating"`
}

// Payload implements Event interface.
func (e FeedbackGivenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID.String(),
		"rating":  e.Rating,
	}
}

// NewFeedbackGivenEvent creates a new FeedbackGivenEvent.
func NewFeedbackGivenEvent(courseID int64, userID UserID, rating int) FeedbackGivenEvent {
	return FeedbackGivenEvent{
		BaseEvent: NewBaseEvent(EventFeedbackGiven, FormatID(courseID)),
		UserID:    userID,
		Rating:    rating,
	}
}

// UserRegisteredEvent is emitted when an account is created.
type UserRegisteredEvent struct {
	BaseEvent
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username": e.Username,
		"role":     e.Role.String(),
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID UserID, username string, role Role) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent: NewBaseEvent(EventUserRegistered, userID.String()),
		Username:  username,
		Role:      role,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// Remote is implemented by events replayed from another instance.
type Remote interface {
	Remote() bool
}

// IsRemote reports whether event was published by another instance.
func IsRemote(event Event) bool {
	r, ok := event.(Remote)
	return ok && r.Remote()
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event. Useful where no bus is configured.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
