package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

const studentID = shared.UserID("0b7c6b8e-2f1a-4c55-9d2e-6a3f1e0c9b11")

func TestLessonProgress_StartIsIdempotent(t *testing.T) {
	p, err := New(studentID, 1, 10)
	require.NoError(t, err)

	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, p.Start(first))
	assert.False(t, p.Start(first.Add(time.Hour)))

	require.NotNil(t, p.StartedAt)
	assert.Equal(t, first, *p.StartedAt)
	assert.Equal(t, StateInProgress, p.State())
}

func TestLessonProgress_FinishIsIdempotent(t *testing.T) {
	p, err := New(studentID, 1, 10)
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	done := start.Add(30 * time.Minute)
	p.Start(start)

	assert.True(t, p.Finish(done))
	assert.False(t, p.Finish(done.Add(time.Hour)))
	assert.Equal(t, done, *p.CompletedAt)
	assert.Equal(t, start, *p.StartedAt)
	assert.Equal(t, StateCompleted, p.State())
}

func TestLessonProgress_FinishWithoutStartAutoStarts(t *testing.T) {
	p, err := New(studentID, 1, 10)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, p.Finish(at))

	require.NotNil(t, p.StartedAt)
	assert.Equal(t, at, *p.StartedAt)
	assert.Equal(t, at, *p.CompletedAt)
}

func TestNew_Validates(t *testing.T) {
	_, err := New("nope", 1, 1)
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)

	_, err = New(studentID, 0, 1)
	assert.True(t, shared.IsInvalidArgument(err))
}
