package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
)

// Store implements uow.UnitOfWork on a connection pool.
type Store struct {
	conn *Connection
}

// NewStore creates a Store.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

var _ uow.UnitOfWork = (*Store)(nil)

// Do runs fn in one read-committed transaction. Every repository passed to
// fn shares it, so SELECT ... FOR UPDATE locks last until Do returns.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos uow.Repositories) error) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, repositories(tx))
	})
}

// Repositories returns repositories bound to the pool.
func (s *Store) Repositories() uow.Repositories {
	return repositories(s.conn)
}

func repositories(q Querier) uow.Repositories {
	return uow.Repositories{
		Users:       &UserRepository{q: q},
		Courses:     &CourseRepository{q: q},
		Modules:     &ModuleRepository{q: q},
		Lessons:     &LessonRepository{q: q},
		Feedback:    &FeedbackRepository{q: q},
		Enrollments: &EnrollmentRepository{q: q},
		Progress:    &ProgressRepository{q: q},
		Questions:   &QuestionRepository{q: q},
		Tests:       &TestRepository{q: q},
		Answers:     &AnswerRepository{q: q},
		Messages:    &MessageRepository{q: q},
	}
}
