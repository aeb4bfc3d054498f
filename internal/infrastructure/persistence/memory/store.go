// Package memory is an in-process implementation of every repository and of
// uow.UnitOfWork. A single mutex serializes transactions, which gives the
// same observable behaviour as row locks; a failed transaction restores the
// snapshot taken when it began.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/account"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/enrollment"
	"github.com/coursehub/coursehub-platform/internal/domain/progress"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// state is everything a transaction can change.
type state struct {
	seq int64

	users       map[shared.UserID]account.User
	courses     map[int64]catalog.Course
	modules     map[int64]catalog.Module
	lessons     map[int64]catalog.Lesson
	feedback    map[int64]catalog.Feedback
	enrollments map[int64]enrollment.Enrollment
	progress    map[int64]progress.LessonProgress
	questions   map[int64]assessment.Question
	tests       map[int64]assessment.TestEnrollment
	answers     map[int64]assessment.StudentAnswer
	messages    map[int64]chat.Message
}

func newState() *state {
	return &state{
		users:       map[shared.UserID]account.User{},
		courses:     map[int64]catalog.Course{},
		modules:     map[int64]catalog.Module{},
		lessons:     map[int64]catalog.Lesson{},
		feedback:    map[int64]catalog.Feedback{},
		enrollments: map[int64]enrollment.Enrollment{},
		progress:    map[int64]progress.LessonProgress{},
		questions:   map[int64]assessment.Question{},
		tests:       map[int64]assessment.TestEnrollment{},
		answers:     map[int64]assessment.StudentAnswer{},
		messages:    map[int64]chat.Message{},
	}
}

// clone copies maps; values are copied again on every read and write so
// slices inside entities are never shared with callers.
func (s *state) clone() *state {
	return &state{
		seq:         s.seq,
		users:       maps.Clone(s.users),
		courses:     maps.Clone(s.courses),
		modules:     maps.Clone(s.modules),
		lessons:     maps.Clone(s.lessons),
		feedback:    maps.Clone(s.feedback),
		enrollments: maps.Clone(s.enrollments),
		progress:    maps.Clone(s.progress),
		questions:   maps.Clone(s.questions),
		tests:       maps.Clone(s.tests),
		answers:     maps.Clone(s.answers),
		messages:    maps.Clone(s.messages),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store owns the data and implements uow.UnitOfWork.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: newState()}
}

var _ uow.UnitOfWork = (*Store)(nil)

// Do runs fn with exclusive access. Repositories passed to fn must not be
// used after Do returns; calling s.Repositories() inside fn deadlocks.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos uow.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	if err = fn(ctx, s.repos(true)); err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("memory: transaction aborted: %w", ctxErr)
	}
	return nil
}

// Repositories returns repositories that lock per call.
func (s *Store) Repositories() uow.Repositories {
	return s.repos(false)
}

func (s *Store) repos(inTx bool) uow.Repositories {
	b := base{store: s, inTx: inTx}
	return uow.Repositories{
		Users:       userRepo{b},
		Courses:     courseRepo{b},
		Modules:     moduleRepo{b},
		Lessons:     lessonRepo{b},
		Feedback:    feedbackRepo{b},
		Enrollments: enrollmentRepo{b},
		Progress:    progressRepo{b},
		Questions:   questionRepo{b},
		Tests:       testRepo{b},
		Answers:     answerRepo{b},
		Messages:    messageRepo{b},
	}
}

// base gives every repository access to the current state.
type base struct {
	store *Store
	inTx  bool
}

// with runs fn on the current state, taking the lock outside transactions.
func (b base) with(fn func(st *state) error) error {
	if !b.inTx {
		b.store.mu.Lock()
		defer b.store.mu.Unlock()
	}
	return fn(b.store.st)
}

// sortedValues returns map values ordered by key.
func sortedValues[V any](m map[int64]V) []V {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// Stats reports row counts, for tests.
type Stats struct {
	Enrollments int
	Tests       int
	Answers     int
	Progress    int
	Messages    int
}

// Stats returns current row counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Enrollments: len(s.st.enrollments),
		Tests:       len(s.st.tests),
		Answers:     len(s.st.answers),
		Progress:    len(s.st.progress),
		Messages:    len(s.st.messages),
	}
}
