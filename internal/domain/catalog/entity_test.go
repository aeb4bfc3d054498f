package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

const teacherID = shared.UserID("7f1e5c1a-1b2c-4d3e-8f90-a1b2c3d4e5f6")

func TestNewCourse_RejectsNegativePrice(t *testing.T) {
	price, err := shared.ParseMoney("-5.00")
	require.NoError(t, err)

	course, err := NewCourse(NewCourseParams{
		Title:     "Go Basics",
		Price:     price,
		TeacherID: teacherID,
	})

	assert.Nil(t, course)
	assert.ErrorIs(t, err, shared.ErrNegativePrice)
	assert.True(t, shared.IsInvalidArgument(err))
}

func TestNewCourse_DerivesSlugFromTitle(t *testing.T) {
	course, err := NewCourse(NewCourseParams{
		Title:     "  Intro to   Distributed Systems! ",
		Price:     19990,
		TeacherID: teacherID,
	})
	require.NoError(t, err)

	assert.Equal(t, "intro-to-distributed-systems", course.Slug)
	assert.Equal(t, "199.90", course.Price.String())
}

func TestNewCourse_KeepsExplicitSlug(t *testing.T) {
	course, err := NewCourse(NewCourseParams{
		Title:     "Go Basics",
		Slug:      "go-101",
		TeacherID: teacherID,
	})
	require.NoError(t, err)
	assert.Equal(t, "go-101", course.Slug)
}

func TestNewCourse_RequiresTeacher(t *testing.T) {
	_, err := NewCourse(NewCourseParams{Title: "Go Basics"})
	assert.True(t, shared.IsInvalidArgument(err))
}

func TestNewLesson_AttachmentExtensions(t *testing.T) {
	tests := []struct {
		name    string
		params  NewLessonParams
		wantErr bool
	}{
		{"pdf ok", NewLessonParams{ModuleID: 1, Title: "L1", PDF: "notes.PDF"}, false},
		{"pdf wrong", NewLessonParams{ModuleID: 1, Title: "L1", PDF: "notes.docx"}, true},
		{"slides ok", NewLessonParams{ModuleID: 1, Title: "L1", Presentation: "deck.odp"}, false},
		{"slides wrong", NewLessonParams{ModuleID: 1, Title: "L1", Presentation: "deck.key"}, true},
		{"no module", NewLessonParams{Title: "L1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLesson(tt.params)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewFeedback_RatingRange(t *testing.T) {
	_, err := NewFeedback(1, teacherID, "Ann Lee", "great", 0)
	assert.NoError(t, err)

	_, err = NewFeedback(1, teacherID, "Ann Lee", "great", 5)
	assert.NoError(t, err)

	_, err = NewFeedback(1, teacherID, "Ann Lee", "great", 6)
	assert.ErrorIs(t, err, shared.ErrInvalidRating)

	_, err = NewFeedback(1, teacherID, "Ann Lee", "great", -1)
	assert.ErrorIs(t, err, shared.ErrInvalidRating)
}
