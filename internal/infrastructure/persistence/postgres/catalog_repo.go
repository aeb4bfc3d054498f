package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements catalog.CourseRepository for PostgreSQL.
type CourseRepository struct {
	q Querier
}

const courseColumns = `id, title, slug, description, short_description, image, price,
	test_question_count, test_duration, teacher_id, created_at`

// Create inserts a course and fills its ID.
func (r *CourseRepository) Create(ctx context.Context, c *catalog.Course) error {
	query := `
		INSERT INTO courses (
			title, slug, description, short_description, image, price,
			test_question_count, test_duration, teacher_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (slug) DO NOTHING
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		c.Title,
		c.Slug,
		c.Description,
		c.ShortDescription,
		c.Image,
		int64(c.Price),
		c.TestQuestionCount,
		c.TestDuration,
		string(c.TeacherID),
		c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrSlugTaken
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrUserNotFound
		}
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

// GetByID returns a course by ID.
func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*catalog.Course, error) {
	row := r.q.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	c, err := scanCourse(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return c, nil
}

// List returns courses matching the filter ordered by title.
func (r *CourseRepository) List(ctx context.Context, f catalog.CourseFilter) ([]*catalog.Course, error) {
	query := `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE ($1::text = '' OR position(lower($1::text) IN lower(title)) > 0)
		  AND ($2::bigint IS NULL OR price = $2)
		ORDER BY title COLLATE "C", id
		LIMIT $3 OFFSET $4
	`

	var price *int64
	if f.Price != nil {
		p := int64(*f.Price)
		price = &p
	}
	limit, offset := pageBounds(f.Page)

	rows, err := r.q.Query(ctx, query, f.TitleContains, price, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return collect(rows, scanCourse)
}

// Count returns the number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM courses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return n, nil
}

func scanCourse(row rowScanner) (*catalog.Course, error) {
	var (
		c         catalog.Course
		price     int64
		teacherID string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.ShortDescription, &c.Image, &price,
		&c.TestQuestionCount, &c.TestDuration, &teacherID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Price = shared.Money(price)
	c.TeacherID = shared.UserID(teacherID)
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MODULE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ModuleRepository implements catalog.ModuleRepository for PostgreSQL.
type ModuleRepository struct {
	q Querier
}

// Create inserts a module; the title is unique within a course.
func (r *ModuleRepository) Create(ctx context.Context, m *catalog.Module) error {
	query := `
		INSERT INTO modules (course_id, title, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (course_id, title) DO NOTHING
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query, m.CourseID, m.Title, m.Description).Scan(&m.ID)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrModuleExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrCourseNotFound
		}
		return fmt.Errorf("failed to create module: %w", err)
	}
	return nil
}

// GetByID returns a module by ID.
func (r *ModuleRepository) GetByID(ctx context.Context, id int64) (*catalog.Module, error) {
	row := r.q.QueryRow(ctx, `SELECT id, course_id, title, description FROM modules WHERE id = $1`, id)
	m, err := scanModule(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrModuleNotFound
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	return m, nil
}

// ListByCourse returns the course's modules ordered by title.
func (r *ModuleRepository) ListByCourse(ctx context.Context, courseID int64) ([]*catalog.Module, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, course_id, title, description
		FROM modules
		WHERE course_id = $1
		ORDER BY title COLLATE "C", id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return collect(rows, scanModule)
}

func scanModule(row rowScanner) (*catalog.Module, error) {
	var m catalog.Module
	if err := row.Scan(&m.ID, &m.CourseID, &m.Title, &m.Description); err != nil {
		return nil, err
	}
	return &m, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements catalog.LessonRepository for PostgreSQL.
type LessonRepository struct {
	q Querier
}

const lessonSelect = `
	SELECT l.id, l.module_id, m.course_id, l.title, l.description, l.pdf, l.video_url, l.presentation
	FROM lessons l
	JOIN modules m ON m.id = l.module_id
`

// Create inserts a lesson and fills ID and CourseID.
func (r *LessonRepository) Create(ctx context.Context, l *catalog.Lesson) error {
	var courseID int64
	if err := r.q.QueryRow(ctx, `SELECT course_id FROM modules WHERE id = $1`, l.ModuleID).Scan(&courseID); err != nil {
		if IsNoRows(err) {
			return shared.ErrModuleNotFound
		}
		return fmt.Errorf("failed to get module: %w", err)
	}

	query := `
		INSERT INTO lessons (module_id, title, description, pdf, video_url, presentation)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (module_id, title) DO NOTHING
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query, l.ModuleID, l.Title, l.Description, l.PDF, l.VideoURL, l.Presentation).Scan(&l.ID)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrLessonExists
		}
		return fmt.Errorf("failed to create lesson: %w", err)
	}
	l.CourseID = courseID
	return nil
}

// GetByID returns a lesson with its CourseID.
func (r *LessonRepository) GetByID(ctx context.Context, id int64) (*catalog.Lesson, error) {
	l, err := scanLesson(r.q.QueryRow(ctx, lessonSelect+` WHERE l.id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return l, nil
}

// ListByModule returns the module's lessons ordered by title.
func (r *LessonRepository) ListByModule(ctx context.Context, moduleID int64) ([]*catalog.Lesson, error) {
	rows, err := r.q.Query(ctx, lessonSelect+` WHERE l.module_id = $1 ORDER BY l.title COLLATE "C", l.id`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	return collect(rows, scanLesson)
}

func scanLesson(row rowScanner) (*catalog.Lesson, error) {
	var l catalog.Lesson
	if err := row.Scan(&l.ID, &l.ModuleID, &l.CourseID, &l.Title, &l.Description, &l.PDF, &l.VideoURL, &l.Presentation); err != nil {
		return nil, err
	}
	return &l, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FEEDBACK REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// FeedbackRepository implements catalog.FeedbackRepository for PostgreSQL.
type FeedbackRepository struct {
	q Querier
}

// Create inserts feedback; one per (course, user).
func (r *FeedbackRepository) Create(ctx context.Context, f *catalog.Feedback) error {
	query := `
		INSERT INTO feedback (course_id, user_id, full_name, text, rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (course_id, user_id) DO NOTHING
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query, f.CourseID, string(f.UserID), f.FullName, f.Text, int(f.Rating), f.CreatedAt).Scan(&f.ID)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrFeedbackExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrCourseNotFound
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// ListByCourse returns feedback newest first; courseID 0 lists all courses.
func (r *FeedbackRepository) ListByCourse(ctx context.Context, courseID int64, page shared.Pagination) ([]*catalog.Feedback, error) {
	limit, offset := pageBounds(page)
	rows, err := r.q.Query(ctx, `
		SELECT id, course_id, user_id, full_name, text, rating, created_at
		FROM feedback
		WHERE ($1::bigint = 0 OR course_id = $1)
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, courseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return collect(rows, scanFeedback)
}

func scanFeedback(row rowScanner) (*catalog.Feedback, error) {
	var (
		f      catalog.Feedback
		userID string
		rating int
		at     time.Time
	)
	if err := row.Scan(&f.ID, &f.CourseID, &userID, &f.FullName, &f.Text, &rating, &at); err != nil {
		return nil, err
	}
	f.UserID = shared.UserID(userID)
	f.Rating = shared.Rating(rating)
	f.CreatedAt = at.UTC()
	return &f, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// pageBounds returns LIMIT/OFFSET; the zero Pagination means no limit.
func pageBounds(p shared.Pagination) (*int, int) {
	if p.Page == 0 && p.PageSize == 0 {
		return nil, 0
	}
	limit := p.Limit()
	return &limit, p.Offset()
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, scan func(rowScanner) (*T, error)) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
