package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/progress"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/timeutil"
)

func TestStartLesson_Idempotent(t *testing.T) {
	e := newEnv(t)
	lesson := e.lesson(e.module("Intro").ID, "Hello")
	h := NewStartLessonHandler(e.deps)
	cmd := LessonProgressCommand{Principal: e.student, LessonID: lesson.ID}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, progress.StateInProgress, first.State)
	assert.Equal(t, e.course.ID, first.CourseID)
	require.NotNil(t, first.StartedAt)

	later := e.deps
	later.Clock = timeutil.Fixed(fixedNow.Add(time.Hour))
	second, err := NewStartLessonHandler(later).Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, *first.StartedAt, *second.StartedAt)
	assert.Equal(t, first.ProgressID, second.ProgressID)

	assert.Equal(t, 1, e.store.Stats().Progress)
	assert.Equal(t, []shared.EventType{shared.EventLessonStarted}, e.publisher.types())
}

func TestFinishLesson_AfterStart(t *testing.T) {
	e := newEnv(t)
	lesson := e.lesson(e.module("Intro").ID, "Hello")
	cmd := LessonProgressCommand{Principal: e.student, LessonID: lesson.ID}

	_, err := NewStartLessonHandler(e.deps).Handle(context.Background(), cmd)
	require.NoError(t, err)

	later := e.deps
	later.Clock = timeutil.Fixed(fixedNow.Add(30 * time.Minute))
	finish := NewFinishLessonHandler(later)

	done, err := finish.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, done.Changed)
	assert.Equal(t, progress.StateCompleted, done.State)
	assert.Equal(t, fixedNow, *done.StartedAt)
	assert.Equal(t, fixedNow.Add(30*time.Minute), *done.CompletedAt)

	again, err := finish.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, *done.CompletedAt, *again.CompletedAt)
}

func TestFinishLesson_WithoutStartAutoStarts(t *testing.T) {
	e := newEnv(t)
	lesson := e.lesson(e.module("Intro").ID, "Hello")

	res, err := NewFinishLessonHandler(e.deps).Handle(context.Background(), LessonProgressCommand{Principal: e.student, LessonID: lesson.ID})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	require.NotNil(t, res.StartedAt)
	require.NotNil(t, res.CompletedAt)
	assert.Equal(t, *res.StartedAt, *res.CompletedAt)

	stored, err := e.store.Repositories().Progress.Get(context.Background(), e.student.ID, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.StateCompleted, stored.State())

	// A later start does not move started_at.
	start, err := NewStartLessonHandler(e.deps).Handle(context.Background(), LessonProgressCommand{Principal: e.student, LessonID: lesson.ID})
	require.NoError(t, err)
	assert.False(t, start.Changed)
}

func TestLessonProgress_Errors(t *testing.T) {
	e := newEnv(t)
	h := NewStartLessonHandler(e.deps)

	_, err := h.Handle(context.Background(), LessonProgressCommand{Principal: e.student, LessonID: 404})
	assert.ErrorIs(t, err, shared.ErrLessonNotFound)

	_, err = h.Handle(context.Background(), LessonProgressCommand{Principal: e.teacher, LessonID: 1})
	assert.True(t, shared.IsUnauthorized(err))

	_, err = NewFinishLessonHandler(e.deps).Handle(context.Background(), LessonProgressCommand{Principal: e.student})
	assert.True(t, shared.IsInvalidArgument(err))
}
