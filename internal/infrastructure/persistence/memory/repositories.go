package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/account"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/enrollment"
	"github.com/coursehub/coursehub-platform/internal/domain/progress"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

type userRepo struct{ base }

func (r userRepo) Create(_ context.Context, u *account.User) error {
	return r.with(func(st *state) error {
		for _, existing := range st.users {
			if existing.ID == u.ID || strings.EqualFold(existing.Username, u.Username) ||
				(u.Email != "" && strings.EqualFold(existing.Email, u.Email)) {
				return shared.ErrUserExists
			}
		}
		st.users[u.ID] = *u
		return nil
	})
}

func (r userRepo) GetByID(_ context.Context, id shared.UserID) (*account.User, error) {
	var out *account.User
	err := r.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return shared.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*account.User, error) {
	var out *account.User
	err := r.with(func(st *state) error {
		for _, u := range st.users {
			if u.Username == username {
				out = &u
				return nil
			}
		}
		return shared.ErrUserNotFound
	})
	return out, err
}

func (r userRepo) CountByRole(_ context.Context, role shared.Role) (int, error) {
	n := 0
	err := r.with(func(st *state) error {
		for _, u := range st.users {
			if u.Role == role {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r userRepo) TouchLastLogin(_ context.Context, id shared.UserID, at time.Time) error {
	return r.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return shared.ErrUserNotFound
		}
		t := at.UTC()
		u.LastLogin = &t
		st.users[id] = u
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

type courseRepo struct{ base }

func (r courseRepo) Create(_ context.Context, c *catalog.Course) error {
	return r.with(func(st *state) error {
		for _, existing := range st.courses {
			if existing.Slug == c.Slug {
				return shared.ErrSlugTaken
			}
		}
		c.ID = st.nextID()
		st.courses[c.ID] = *c
		return nil
	})
}

func (r courseRepo) GetByID(_ context.Context, id int64) (*catalog.Course, error) {
	var out *catalog.Course
	err := r.with(func(st *state) error {
		c, ok := st.courses[id]
		if !ok {
			return shared.ErrCourseNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r courseRepo) List(_ context.Context, f catalog.CourseFilter) ([]*catalog.Course, error) {
	var out []*catalog.Course
	err := r.with(func(st *state) error {
		needle := strings.ToLower(f.TitleContains)
		for _, c := range sortedValues(st.courses) {
			if needle != "" && !strings.Contains(strings.ToLower(c.Title), needle) {
				continue
			}
			if f.Price != nil && c.Price != *f.Price {
				continue
			}
			out = append(out, &c)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return paginate(out, f.Page), err
}

func (r courseRepo) Count(_ context.Context) (int, error) {
	n := 0
	err := r.with(func(st *state) error {
		n = len(st.courses)
		return nil
	})
	return n, err
}

type moduleRepo struct{ base }

func (r moduleRepo) Create(_ context.Context, m *catalog.Module) error {
	return r.with(func(st *state) error {
		if _, ok := st.courses[m.CourseID]; !ok {
			return shared.ErrCourseNotFound
		}
		for _, existing := range st.modules {
			if existing.CourseID == m.CourseID && existing.Title == m.Title {
				return shared.ErrModuleExists
			}
		}
		m.ID = st.nextID()
		st.modules[m.ID] = *m
		return nil
	})
}

func (r moduleRepo) GetByID(_ context.Context, id int64) (*catalog.Module, error) {
	var out *catalog.Module
	err := r.with(func(st *state) error {
		m, ok := st.modules[id]
		if !ok {
			return shared.ErrModuleNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (r moduleRepo) ListByCourse(_ context.Context, courseID int64) ([]*catalog.Module, error) {
	var out []*catalog.Module
	err := r.with(func(st *state) error {
		for _, m := range sortedValues(st.modules) {
			if m.CourseID == courseID {
				out = append(out, &m)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, err
}

type lessonRepo struct{ base }

func (r lessonRepo) Create(_ context.Context, l *catalog.Lesson) error {
	return r.with(func(st *state) error {
		m, ok := st.modules[l.ModuleID]
		if !ok {
			return shared.ErrModuleNotFound
		}
		for _, existing := range st.lessons {
			if existing.ModuleID == l.ModuleID && existing.Title == l.Title {
				return shared.ErrLessonExists
			}
		}
		l.ID = st.nextID()
		l.CourseID = m.CourseID
		st.lessons[l.ID] = *l
		return nil
	})
}

func (r lessonRepo) GetByID(_ context.Context, id int64) (*catalog.Lesson, error) {
	var out *catalog.Lesson
	err := r.with(func(st *state) error {
		l, ok := st.lessons[id]
		if !ok {
			return shared.ErrLessonNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

func (r lessonRepo) ListByModule(_ context.Context, moduleID int64) ([]*catalog.Lesson, error) {
	var out []*catalog.Lesson
	err := r.with(func(st *state) error {
		for _, l := range sortedValues(st.lessons) {
			if l.ModuleID == moduleID {
				out = append(out, &l)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, err
}

type feedbackRepo struct{ base }

func (r feedbackRepo) Create(_ context.Context, f *catalog.Feedback) error {
	return r.with(func(st *state) error {
		for _, existing := range st.feedback {
			if existing.CourseID == f.CourseID && existing.UserID == f.UserID {
				return shared.ErrFeedbackExists
			}
		}
		f.ID = st.nextID()
		st.feedback[f.ID] = *f
		return nil
	})
}

func (r feedbackRepo) ListByCourse(_ context.Context, courseID int64, page shared.Pagination) ([]*catalog.Feedback, error) {
	var out []*catalog.Feedback
	err := r.with(func(st *state) error {
		for _, f := range sortedValues(st.feedback) {
			if courseID == 0 || f.CourseID == courseID {
				out = append(out, &f)
			}
		}
		return nil
	})
	// newest first
	slices.Reverse(out)
	return paginate(out, page), err
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollment & progress
// ─────────────────────────────────────────────────────────────────────────────

type enrollmentRepo struct{ base }

func (r enrollmentRepo) Create(_ context.Context, e *enrollment.Enrollment) error {
	return r.with(func(st *state) error {
		for _, existing := range st.enrollments {
			if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
				return shared.ErrEnrollmentExists
			}
		}
		e.ID = st.nextID()
		st.enrollments[e.ID] = *e
		return nil
	})
}

func (r enrollmentRepo) GetByUserAndCourse(_ context.Context, userID shared.UserID, courseID int64) (*enrollment.Enrollment, error) {
	var out *enrollment.Enrollment
	err := r.with(func(st *state) error {
		for _, e := range st.enrollments {
			if e.UserID == userID && e.CourseID == courseID {
				out = &e
				return nil
			}
		}
		return shared.ErrEnrollmentNotFound
	})
	return out, err
}

func (r enrollmentRepo) GetForUser(_ context.Context, id int64, userID shared.UserID) (*enrollment.Enrollment, error) {
	var out *enrollment.Enrollment
	err := r.with(func(st *state) error {
		e, ok := st.enrollments[id]
		if !ok || e.UserID != userID {
			return shared.ErrEnrollmentNotFound
		}
		out = &e
		return nil
	})
	return out, err
}

func (r enrollmentRepo) Update(_ context.Context, e *enrollment.Enrollment) error {
	return r.with(func(st *state) error {
		if _, ok := st.enrollments[e.ID]; !ok {
			return shared.ErrEnrollmentNotFound
		}
		st.enrollments[e.ID] = *e
		return nil
	})
}

func (r enrollmentRepo) ListByUser(_ context.Context, userID shared.UserID) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	err := r.with(func(st *state) error {
		for _, e := range sortedValues(st.enrollments) {
			if e.UserID == userID {
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

type progressRepo struct{ base }

func (r progressRepo) Create(_ context.Context, p *progress.LessonProgress) error {
	return r.with(func(st *state) error {
		for _, existing := range st.progress {
			if existing.StudentID == p.StudentID && existing.LessonID == p.LessonID {
				return shared.ErrProgressExists
			}
		}
		p.ID = st.nextID()
		st.progress[p.ID] = *p
		return nil
	})
}

func (r progressRepo) find(studentID shared.UserID, lessonID int64) (*progress.LessonProgress, error) {
	var out *progress.LessonProgress
	err := r.with(func(st *state) error {
		for _, p := range st.progress {
			if p.StudentID == studentID && p.LessonID == lessonID {
				out = &p
				return nil
			}
		}
		return shared.ErrProgressNotFound
	})
	return out, err
}

// GetForUpdate relies on the transaction mutex for exclusivity.
func (r progressRepo) GetForUpdate(_ context.Context, studentID shared.UserID, lessonID int64) (*progress.LessonProgress, error) {
	return r.find(studentID, lessonID)
}

func (r progressRepo) Get(_ context.Context, studentID shared.UserID, lessonID int64) (*progress.LessonProgress, error) {
	return r.find(studentID, lessonID)
}

func (r progressRepo) Update(_ context.Context, p *progress.LessonProgress) error {
	return r.with(func(st *state) error {
		if _, ok := st.progress[p.ID]; !ok {
			return shared.ErrProgressNotFound
		}
		st.progress[p.ID] = *p
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Assessment
// ─────────────────────────────────────────────────────────────────────────────

type questionRepo struct{ base }

func copyQuestion(q assessment.Question) *assessment.Question {
	q.Answers = slices.Clone(q.Answers)
	return &q
}

func (r questionRepo) Create(_ context.Context, q *assessment.Question) error {
	return r.with(func(st *state) error {
		if _, ok := st.courses[q.CourseID]; !ok {
			return shared.ErrCourseNotFound
		}
		q.ID = st.nextID()
		for i := range q.Answers {
			q.Answers[i].ID = st.nextID()
			q.Answers[i].QuestionID = q.ID
		}
		st.questions[q.ID] = *copyQuestion(*q)
		return nil
	})
}

func (r questionRepo) ListByCourseAndType(_ context.Context, courseID int64, testType assessment.TestType) ([]*assessment.Question, error) {
	var out []*assessment.Question
	err := r.with(func(st *state) error {
		for _, q := range sortedValues(st.questions) {
			if q.CourseID == courseID && q.Type == testType {
				out = append(out, copyQuestion(q))
			}
		}
		return nil
	})
	return out, err
}

func (r questionRepo) GetByIDs(_ context.Context, ids []int64) ([]*assessment.Question, error) {
	var out []*assessment.Question
	err := r.with(func(st *state) error {
		for _, id := range ids {
			if q, ok := st.questions[id]; ok {
				out = append(out, copyQuestion(q))
			}
		}
		return nil
	})
	return out, err
}

type testRepo struct{ base }

func copyTest(t assessment.TestEnrollment) *assessment.TestEnrollment {
	t.QuestionIDs = slices.Clone(t.QuestionIDs)
	return &t
}

func (r testRepo) Create(_ context.Context, t *assessment.TestEnrollment) error {
	return r.with(func(st *state) error {
		for _, existing := range st.tests {
			if existing.StudentID == t.StudentID && existing.CourseID == t.CourseID && existing.Type == t.Type {
				return shared.ErrTestEnrollmentExists
			}
		}
		t.ID = st.nextID()
		st.tests[t.ID] = *copyTest(*t)
		return nil
	})
}

func (r testRepo) GetForStudent(_ context.Context, id int64, studentID shared.UserID) (*assessment.TestEnrollment, error) {
	var out *assessment.TestEnrollment
	err := r.with(func(st *state) error {
		t, ok := st.tests[id]
		if !ok || t.StudentID != studentID {
			return shared.ErrTestEnrollmentNotFound
		}
		out = copyTest(t)
		return nil
	})
	return out, err
}

// GetForStudentForUpdate relies on the transaction mutex for exclusivity.
func (r testRepo) GetForStudentForUpdate(ctx context.Context, id int64, studentID shared.UserID) (*assessment.TestEnrollment, error) {
	return r.GetForStudent(ctx, id, studentID)
}

func (r testRepo) find(studentID shared.UserID, courseID int64, testType assessment.TestType, unfinishedOnly bool) (*assessment.TestEnrollment, error) {
	var out *assessment.TestEnrollment
	err := r.with(func(st *state) error {
		for _, t := range sortedValues(st.tests) {
			if t.StudentID == studentID && t.CourseID == courseID && t.Type == testType && (!unfinishedOnly || !t.Finished) {
				out = copyTest(t)
				return nil
			}
		}
		return shared.ErrTestEnrollmentNotFound
	})
	return out, err
}

func (r testRepo) FindUnfinished(_ context.Context, studentID shared.UserID, courseID int64, testType assessment.TestType) (*assessment.TestEnrollment, error) {
	return r.find(studentID, courseID, testType, true)
}

func (r testRepo) Find(_ context.Context, studentID shared.UserID, courseID int64, testType assessment.TestType) (*assessment.TestEnrollment, error) {
	return r.find(studentID, courseID, testType, false)
}

func (r testRepo) ListByStudent(_ context.Context, studentID shared.UserID) ([]*assessment.TestEnrollment, error) {
	var out []*assessment.TestEnrollment
	err := r.with(func(st *state) error {
		for _, t := range sortedValues(st.tests) {
			if t.StudentID == studentID {
				out = append(out, copyTest(t))
			}
		}
		return nil
	})
	return out, err
}

func (r testRepo) Update(_ context.Context, t *assessment.TestEnrollment) error {
	return r.with(func(st *state) error {
		if _, ok := st.tests[t.ID]; !ok {
			return shared.ErrTestEnrollmentNotFound
		}
		st.tests[t.ID] = *copyTest(*t)
		return nil
	})
}

type answerRepo struct{ base }

func (r answerRepo) AnsweredQuestions(_ context.Context, studentID shared.UserID, questionIDs []int64) ([]int64, error) {
	var out []int64
	err := r.with(func(st *state) error {
		for _, a := range st.answers {
			if a.StudentID == studentID && slices.Contains(questionIDs, a.QuestionID) {
				out = append(out, a.QuestionID)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, err
}

func (r answerRepo) Create(_ context.Context, a *assessment.StudentAnswer) error {
	return r.with(func(st *state) error {
		for _, existing := range st.answers {
			if existing.StudentID == a.StudentID && existing.QuestionID == a.QuestionID {
				return shared.ErrDuplicateAnswer
			}
		}
		a.ID = st.nextID()
		st.answers[a.ID] = *a
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Chat
// ─────────────────────────────────────────────────────────────────────────────

type messageRepo struct{ base }

func (r messageRepo) Create(_ context.Context, m *chat.Message) error {
	return r.with(func(st *state) error {
		if _, ok := st.modules[m.ModuleID]; !ok {
			return shared.ErrModuleNotFound
		}
		if m.ReplyID != nil {
			reply, ok := st.messages[*m.ReplyID]
			if !ok {
				return shared.ErrMessageNotFound
			}
			m.ReplyText = reply.Text
		}
		m.ID = st.nextID()
		if m.Date.IsZero() {
			m.Date = time.Now().UTC()
		}
		st.messages[m.ID] = *m
		return nil
	})
}

func (r messageRepo) GetByID(_ context.Context, id int64) (*chat.Message, error) {
	var out *chat.Message
	err := r.with(func(st *state) error {
		m, ok := st.messages[id]
		if !ok {
			return shared.ErrMessageNotFound
		}
		out = st.hydrate(m)
		return nil
	})
	return out, err
}

func (r messageRepo) ListByAuthors(_ context.Context, moduleID int64, authors []shared.UserID) ([]*chat.Message, error) {
	var out []*chat.Message
	err := r.with(func(st *state) error {
		for _, m := range sortedValues(st.messages) {
			if m.ModuleID == moduleID && slices.Contains(authors, m.UserID) {
				out = append(out, st.hydrate(m))
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// hydrate fills the read-only display fields of a message.
func (s *state) hydrate(m chat.Message) *chat.Message {
	if u, ok := s.users[m.UserID]; ok {
		m.Username = u.Username
	}
	m.ReplyText = ""
	if m.ReplyID != nil {
		if reply, ok := s.messages[*m.ReplyID]; ok {
			m.ReplyText = reply.Text
		}
	}
	return &m
}

func paginate[T any](items []T, page shared.Pagination) []T {
	if page.Page == 0 && page.PageSize == 0 {
		return items
	}
	off := page.Offset()
	if off >= len(items) {
		return nil
	}
	end := min(off+page.Limit(), len(items))
	return items[off:end]
}
