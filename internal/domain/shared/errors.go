// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Every error returned by the workflow matches exactly one
// of them through errors.Is(), which is what the transport layer maps to a status.
var (
	// ErrNotFound: missing course/module/lesson/enrollment, or one not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrConflict: duplicate enrollment, answer or feedback; already-finished test.
	ErrConflict = errors.New("conflict")

	// ErrInvalidArgument: bad test type, missing required fields, broken invariants.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExternalService: document generation gateway, converter or blob storage failure.
	ErrExternalService = errors.New("external service failure")

	// ErrUnauthorized: role or ownership mismatch for an authenticated principal.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnauthenticated: no principal or an invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// Transport-level failures of collaborators. They are external service
	// failures, but retrying them can help.
	ErrServiceUnavailable = fmt.Errorf("service unavailable: %w", ErrExternalService)
	ErrTimeout            = fmt.Errorf("operation timeout: %w", ErrExternalService)
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "enrollment", "assessment", "chat"
	Op      string // Operation that failed, e.g., "Register", "Submit"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Catalog errors
var (
	ErrCourseNotFound    = NewDomainError("catalog", "FindCourse", ErrNotFound, "course not found")
	ErrModuleNotFound    = NewDomainError("catalog", "FindModule", ErrNotFound, "module not found")
	ErrLessonNotFound    = NewDomainError("catalog", "FindLesson", ErrNotFound, "lesson not found")
	ErrNegativePrice     = NewDomainError("catalog", "Clean", ErrInvalidArgument, "price cannot be negative")
	ErrSlugTaken         = NewDomainError("catalog", "CreateCourse", ErrConflict, "course slug already exists")
	ErrModuleExists      = NewDomainError("catalog", "AddModule", ErrConflict, "module with this title already exists in the course")
	ErrLessonExists      = NewDomainError("catalog", "AddLesson", ErrConflict, "lesson with this title already exists in the module")
	ErrFeedbackExists    = NewDomainError("catalog", "GiveFeedback", ErrConflict, "feedback already submitted for this course")
	ErrInvalidRating     = NewDomainError("catalog", "Validate", ErrInvalidArgument, "rating must be between 0 and 5")
	ErrNotCourseTeacher  = NewDomainError("catalog", "Authorize", ErrUnauthorized, "only a teacher or admin may author courses")
	ErrInvalidAttachment = NewDomainError("catalog", "Validate", ErrInvalidArgument, "unsupported attachment extension")
)

// Enrollment errors
var (
	ErrEnrollmentNotFound       = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrEnrollmentExists         = NewDomainError("enrollment", "Create", ErrConflict, "user already enrolled")
	ErrContractGenerationFailed = NewDomainError("enrollment", "IssueContract", ErrExternalService, "failed to generate contract")
	ErrNotEnrolled              = NewDomainError("enrollment", "Check", ErrUnauthorized, "you are not enrolled in this course")
)

// Progress errors
var (
	ErrProgressNotFound = NewDomainError("progress", "Find", ErrNotFound, "lesson progress not found")
	ErrProgressExists   = NewDomainError("progress", "Create", ErrConflict, "lesson progress already exists")
)

// Assessment errors
var (
	ErrTestEnrollmentNotFound      = NewDomainError("assessment", "Find", ErrNotFound, "test enrollment not found")
	ErrTestEnrollmentExists        = NewDomainError("assessment", "Create", ErrConflict, "test enrollment already exists")
	ErrQuestionNotFound            = NewDomainError("assessment", "FindQuestion", ErrNotFound, "question not found")
	ErrInvalidTestType             = NewDomainError("assessment", "Validate", ErrInvalidArgument, "invalid test type")
	ErrNoQuestionsAvailable        = NewDomainError("assessment", "Generate", ErrInvalidArgument, "no questions available for this test type")
	ErrAlreadySubmitted            = NewDomainError("assessment", "Submit", ErrConflict, "test has already been submitted")
	ErrDuplicateAnswer             = NewDomainError("assessment", "Submit", ErrConflict, "answer already submitted")
	ErrCertificateGenerationFailed = NewDomainError("assessment", "IssueCertificate", ErrExternalService, "failed to generate certificate")
	ErrInvalidTestTransition       = NewDomainError("assessment", "Transition", ErrInvalidArgument, "invalid test state transition")
	ErrCertificateNotReady         = NewDomainError("assessment", "DownloadCertificate", ErrNotFound, "certificate is available after the test is finished")
)

// Chat errors
var (
	ErrMessageNotFound = NewDomainError("chat", "Find", ErrNotFound, "message not found")
	ErrEmptyMessage    = NewDomainError("chat", "Validate", ErrInvalidArgument, "message cannot be empty")
	ErrInvalidSide     = NewDomainError("chat", "Validate", ErrInvalidArgument, "message type must be 1 (right) or 2 (left)")
)

// Account errors
var (
	ErrUserNotFound       = NewDomainError("account", "Find", ErrNotFound, "user not found")
	ErrUserExists         = NewDomainError("account", "Create", ErrConflict, "username or email already taken")
	ErrInvalidRole        = NewDomainError("account", "Validate", ErrInvalidArgument, "role must be student, teacher or admin")
	ErrInvalidCredentials = NewDomainError("account", "Authenticate", ErrUnauthenticated, "invalid username or password")
	ErrRoleRequired       = NewDomainError("account", "Authorize", ErrUnauthorized, "operation not allowed for this role")
	ErrInvalidUserID      = NewDomainError("account", "Validate", ErrInvalidArgument, "invalid user ID")
)

// Document errors
var (
	ErrTemplateMissing  = NewDomainError("document", "Render", ErrExternalService, "template is missing")
	ErrConversionFailed = NewDomainError("document", "Convert", ErrExternalService, "document conversion failed")
	ErrBlobNotFound     = NewDomainError("document", "Get", ErrNotFound, "document not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidArgument checks if the error is a validation error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsUnauthorized checks if the error is a role/ownership error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsUnauthenticated checks if the caller could not be identified.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
