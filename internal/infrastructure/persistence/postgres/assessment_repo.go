package postgres

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// QuestionRepository implements assessment.QuestionRepository for PostgreSQL.
type QuestionRepository struct {
	q Querier
}

// Create inserts a question and its answer options, filling every ID.
func (r *QuestionRepository) Create(ctx context.Context, q *assessment.Question) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO questions (course_id, text, image, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, q.CourseID, q.Text, q.Image, q.Type.Int()).Scan(&q.ID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrCourseNotFound
		}
		return fmt.Errorf("failed to create question: %w", err)
	}

	for i := range q.Answers {
		a := &q.Answers[i]
		err := r.q.QueryRow(ctx, `
			INSERT INTO answers (question_id, text, correct)
			VALUES ($1, $2, $3)
			RETURNING id
		`, q.ID, a.Text, a.Correct).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
		a.QuestionID = q.ID
	}
	return nil
}

// ListByCourseAndType returns the question pool of a course for one test type.
func (r *QuestionRepository) ListByCourseAndType(ctx context.Context, courseID int64, testType assessment.TestType) ([]*assessment.Question, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, course_id, text, image, type
		FROM questions
		WHERE course_id = $1 AND type = $2
		ORDER BY id
	`, courseID, testType.Int())
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	questions, err := collect(rows, scanQuestion)
	if err != nil {
		return nil, err
	}
	if err := r.loadAnswers(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// GetByIDs returns questions in the order of ids, skipping missing ones.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []int64) ([]*assessment.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, course_id, text, image, type
		FROM questions
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	found, err := collect(rows, scanQuestion)
	if err != nil {
		return nil, err
	}
	if err := r.loadAnswers(ctx, found); err != nil {
		return nil, err
	}

	byID := make(map[int64]*assessment.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]*assessment.Question, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *QuestionRepository) loadAnswers(ctx context.Context, questions []*assessment.Question) error {
	if len(questions) == 0 {
		return nil
	}

	ids := make([]int64, len(questions))
	byID := make(map[int64]*assessment.Question, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
		byID[q.ID] = q
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, question_id, text, correct
		FROM answers
		WHERE question_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a assessment.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.Correct); err != nil {
			return fmt.Errorf("failed to scan answer: %w", err)
		}
		if q, ok := byID[a.QuestionID]; ok {
			q.Answers = append(q.Answers, a)
		}
	}
	return rows.Err()
}

func scanQuestion(row rowScanner) (*assessment.Question, error) {
	var (
		q        assessment.Question
		testType int
	)
	if err := row.Scan(&q.ID, &q.CourseID, &q.Text, &q.Image, &testType); err != nil {
		return nil, err
	}
	q.Type = assessment.TestType(testType)
	return &q, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST ENROLLMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TestRepository implements assessment.TestRepository for PostgreSQL.
type TestRepository struct {
	q Querier
}

const testColumns = `id, student_id, course_id, type, question_ids, total_questions, correct_answers,
	started_at, completed_at, finished, certificate_file, created_at`

// Create inserts an attempt with its question snapshot.
func (r *TestRepository) Create(ctx context.Context, t *assessment.TestEnrollment) error {
	query := `
		INSERT INTO test_enrollments (
			student_id, course_id, type, question_ids, total_questions, correct_answers,
			started_at, completed_at, finished, certificate_file, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (student_id, course_id, type) DO NOTHING
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		string(t.StudentID),
		t.CourseID,
		t.Type.Int(),
		questionIDs(t.QuestionIDs),
		t.TotalQuestions,
		t.CorrectAnswers,
		t.StartedAt,
		t.CompletedAt,
		t.Finished,
		t.CertificateFile,
		t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrTestEnrollmentExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrCourseNotFound
		}
		return fmt.Errorf("failed to create test enrollment: %w", err)
	}
	return nil
}

// GetForStudent returns the attempt if it belongs to studentID.
func (r *TestRepository) GetForStudent(ctx context.Context, id int64, studentID shared.UserID) (*assessment.TestEnrollment, error) {
	return r.getOne(ctx,
		`SELECT `+testColumns+` FROM test_enrollments WHERE id = $1 AND student_id = $2`,
		id, string(studentID))
}

// GetForStudentForUpdate is GetForStudent with FOR UPDATE.
func (r *TestRepository) GetForStudentForUpdate(ctx context.Context, id int64, studentID shared.UserID) (*assessment.TestEnrollment, error) {
	return r.getOne(ctx,
		`SELECT `+testColumns+` FROM test_enrollments WHERE id = $1 AND student_id = $2 FOR UPDATE`,
		id, string(studentID))
}

// FindUnfinished returns the unfinished attempt for (student, course, type).
func (r *TestRepository) FindUnfinished(ctx context.Context, studentID shared.UserID, courseID int64, testType assessment.TestType) (*assessment.TestEnrollment, error) {
	return r.getOne(ctx, `
		SELECT `+testColumns+`
		FROM test_enrollments
		WHERE student_id = $1 AND course_id = $2 AND type = $3 AND NOT finished
		ORDER BY id
		LIMIT 1
	`, string(studentID), courseID, testType.Int())
}

// Find returns the attempt for (student, course, type) in any state.
func (r *TestRepository) Find(ctx context.Context, studentID shared.UserID, courseID int64, testType assessment.TestType) (*assessment.TestEnrollment, error) {
	return r.getOne(ctx, `
		SELECT `+testColumns+`
		FROM test_enrollments
		WHERE student_id = $1 AND course_id = $2 AND type = $3
		ORDER BY id
		LIMIT 1
	`, string(studentID), courseID, testType.Int())
}

// ListByStudent returns every attempt of studentID.
func (r *TestRepository) ListByStudent(ctx context.Context, studentID shared.UserID) ([]*assessment.TestEnrollment, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+testColumns+` FROM test_enrollments WHERE student_id = $1 ORDER BY id`,
		string(studentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list test enrollments: %w", err)
	}
	return collect(rows, scanTest)
}

// Update stores timing, result and certificate fields.
func (r *TestRepository) Update(ctx context.Context, t *assessment.TestEnrollment) error {
	query := `
		UPDATE test_enrollments SET
			question_ids = $1,
			total_questions = $2,
			correct_answers = $3,
			started_at = $4,
			completed_at = $5,
			finished = $6,
			certificate_file = $7
		WHERE id = $8
	`

	result, err := r.q.Exec(ctx, query,
		questionIDs(t.QuestionIDs),
		t.TotalQuestions,
		t.CorrectAnswers,
		t.StartedAt,
		t.CompletedAt,
		t.Finished,
		t.CertificateFile,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update test enrollment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrTestEnrollmentNotFound
	}
	return nil
}

func (r *TestRepository) getOne(ctx context.Context, query string, args ...any) (*assessment.TestEnrollment, error) {
	t, err := scanTest(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrTestEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to get test enrollment: %w", err)
	}
	return t, nil
}

func scanTest(row rowScanner) (*assessment.TestEnrollment, error) {
	var (
		t         assessment.TestEnrollment
		studentID string
		testType  int
	)
	err := row.Scan(&t.ID, &studentID, &t.CourseID, &testType, &t.QuestionIDs, &t.TotalQuestions, &t.CorrectAnswers,
		&t.StartedAt, &t.CompletedAt, &t.Finished, &t.CertificateFile, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.StudentID = shared.UserID(studentID)
	t.Type = assessment.TestType(testType)
	t.StartedAt = utcPtr(t.StartedAt)
	t.CompletedAt = utcPtr(t.CompletedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

// questionIDs maps a nil snapshot to an empty array for the NOT NULL column.
func questionIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT ANSWER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AnswerRepository implements assessment.AnswerRepository for PostgreSQL.
type AnswerRepository struct {
	q Querier
}

// AnsweredQuestions returns the subset of questionIDs the student has answered.
func (r *AnswerRepository) AnsweredQuestions(ctx context.Context, studentID shared.UserID, questionIDs []int64) ([]int64, error) {
	if len(questionIDs) == 0 {
		return nil, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT question_id
		FROM student_answers
		WHERE student_id = $1 AND question_id = ANY($2)
		ORDER BY question_id
	`, string(studentID), questionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query answered questions: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan answered question: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Create stores an answer; one per (student, question) across attempts.
func (r *AnswerRepository) Create(ctx context.Context, a *assessment.StudentAnswer) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO student_answers (student_id, question_id, answer_id, test_enrollment_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, question_id) DO NOTHING
		RETURNING id
	`, string(a.StudentID), a.QuestionID, a.AnswerID, a.TestEnrollmentID).Scan(&a.ID)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrDuplicateAnswer
		}
		return fmt.Errorf("failed to create student answer: %w", err)
	}
	return nil
}
