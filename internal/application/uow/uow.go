// Package uow defines the transaction boundary used by every workflow operation.
package uow

import (
	"context"

	"github.com/coursehub/coursehub-platform/internal/domain/account"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/enrollment"
	"github.com/coursehub/coursehub-platform/internal/domain/progress"
)

// Repositories bundles every repository, bound either to a transaction
// (inside Do) or to the connection pool (Repositories()).
type Repositories struct {
	Users       account.Repository
	Courses     catalog.CourseRepository
	Modules     catalog.ModuleRepository
	Lessons     catalog.LessonRepository
	Feedback    catalog.FeedbackRepository
	Enrollments enrollment.Repository
	Progress    progress.Repository
	Questions   assessment.QuestionRepository
	Tests       assessment.TestRepository
	Answers     assessment.AnswerRepository
	Messages    chat.Repository
}

// UnitOfWork runs a function inside one atomic transaction.
type UnitOfWork interface {
	// Do commits when fn returns nil and rolls back otherwise, including on panic.
	// Row locks taken through *ForUpdate methods are held until Do returns.
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// Repositories returns repositories outside of any transaction, for reads.
	Repositories() Repositories
}
