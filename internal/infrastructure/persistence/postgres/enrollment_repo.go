package postgres

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/domain/enrollment"
	"github.com/coursehub/coursehub-platform/internal/domain/progress"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
type EnrollmentRepository struct {
	q Querier
}

const enrollmentColumns = `id, user_id, course_id, has_access, completed, contract_file,
	started_at, completed_at, created_at, updated_at`

// Create inserts an enrollment. The unique (user, course) index turns a
// concurrent duplicate into ErrEnrollmentExists without aborting the transaction.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			user_id, course_id, has_access, completed, contract_file,
			started_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, course_id) DO NOTHING
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		string(e.UserID),
		e.CourseID,
		e.HasAccess,
		e.Completed,
		e.ContractFile,
		e.StartedAt,
		e.CompletedAt,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrEnrollmentExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrCourseNotFound
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}
	return nil
}

// GetByUserAndCourse returns the enrollment of user in course.
func (r *EnrollmentRepository) GetByUserAndCourse(ctx context.Context, userID shared.UserID, courseID int64) (*enrollment.Enrollment, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 AND course_id = $2`,
		string(userID), courseID)
	e, err := scanEnrollment(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

// GetForUser returns enrollment id when it belongs to user.
func (r *EnrollmentRepository) GetForUser(ctx context.Context, id int64, userID shared.UserID) (*enrollment.Enrollment, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 AND user_id = $2`,
		id, string(userID))
	e, err := scanEnrollment(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return e, nil
}

// Update stores access, completion and contract fields.
func (r *EnrollmentRepository) Update(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		UPDATE enrollments SET
			has_access = $1,
			completed = $2,
			contract_file = $3,
			started_at = $4,
			completed_at = $5,
			updated_at = $6
		WHERE id = $7
	`

	result, err := r.q.Exec(ctx, query,
		e.HasAccess,
		e.Completed,
		e.ContractFile,
		e.StartedAt,
		e.CompletedAt,
		e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrEnrollmentNotFound
	}
	return nil
}

// ListByUser returns every enrollment of user.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*enrollment.Enrollment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 ORDER BY id`,
		string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return collect(rows, scanEnrollment)
}

func scanEnrollment(row rowScanner) (*enrollment.Enrollment, error) {
	var (
		e      enrollment.Enrollment
		userID string
	)
	err := row.Scan(&e.ID, &userID, &e.CourseID, &e.HasAccess, &e.Completed, &e.ContractFile,
		&e.StartedAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.UserID = shared.UserID(userID)
	e.StartedAt = utcPtr(e.StartedAt)
	e.CompletedAt = utcPtr(e.CompletedAt)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	q Querier
}

const progressSelect = `
	SELECT id, student_id, course_id, lesson_id, started_at, completed_at, created_at, updated_at
	FROM lesson_progress
	WHERE student_id = $1 AND lesson_id = $2
`

// Create inserts a progress row; one per (student, lesson).
func (r *ProgressRepository) Create(ctx context.Context, p *progress.LessonProgress) error {
	query := `
		INSERT INTO lesson_progress (
			student_id, course_id, lesson_id, started_at, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, lesson_id) DO NOTHING
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		string(p.StudentID),
		p.CourseID,
		p.LessonID,
		p.StartedAt,
		p.CompletedAt,
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrProgressExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrLessonNotFound
		}
		return fmt.Errorf("failed to create progress: %w", err)
	}
	return nil
}

// GetForUpdate reads the row with FOR UPDATE; the lock lasts until the
// surrounding transaction ends.
func (r *ProgressRepository) GetForUpdate(ctx context.Context, studentID shared.UserID, lessonID int64) (*progress.LessonProgress, error) {
	return r.get(ctx, progressSelect+` FOR UPDATE`, studentID, lessonID)
}

// Get reads the row without locking.
func (r *ProgressRepository) Get(ctx context.Context, studentID shared.UserID, lessonID int64) (*progress.LessonProgress, error) {
	return r.get(ctx, progressSelect, studentID, lessonID)
}

func (r *ProgressRepository) get(ctx context.Context, query string, studentID shared.UserID, lessonID int64) (*progress.LessonProgress, error) {
	var (
		p       progress.LessonProgress
		student string
	)
	err := r.q.QueryRow(ctx, query, string(studentID), lessonID).Scan(
		&p.ID, &student, &p.CourseID, &p.LessonID, &p.StartedAt, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	p.StudentID = shared.UserID(student)
	p.StartedAt = utcPtr(p.StartedAt)
	p.CompletedAt = utcPtr(p.CompletedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Update stores started_at and completed_at.
func (r *ProgressRepository) Update(ctx context.Context, p *progress.LessonProgress) error {
	result, err := r.q.Exec(ctx, `
		UPDATE lesson_progress
		SET started_at = $1, completed_at = $2, updated_at = $3
		WHERE id = $4
	`, p.StartedAt, p.CompletedAt, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProgressNotFound
	}
	return nil
}
