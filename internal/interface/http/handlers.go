package http

import (
	"net/http"
	"time"

	"github.com/coursehub/coursehub-platform/internal/application/command"
	"github.com/coursehub/coursehub-platform/internal/application/query"
	"github.com/coursehub/coursehub-platform/internal/domain/account"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Course Hub API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":     "/health",
			"courses":    "/api/v1/courses",
			"statistics": "/api/v1/statistics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNTS
// ══════════════════════════════════════════════════════════════════════════════

type registerUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type userResponse struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email,omitempty"`
	Name       string     `json:"name,omitempty"`
	Role       string     `json:"role"`
	DateJoined time.Time  `json:"date_joined"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

func toUserResponse(u *account.User) userResponse {
	return userResponse{
		ID:         u.ID.String(),
		Username:   u.Username,
		Email:      u.Email,
		Name:       u.Name,
		Role:       u.Role.String(),
		DateJoined: u.DateJoined,
		LastLogin:  u.LastLogin,
	}
}

// handleRegisterUser creates an account. Only admins may create
// teacher or admin accounts.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	role, err := shared.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if role != shared.RoleStudent || s.config.ClosedRegistration {
		caller := handlers.PrincipalFromContext(r.Context())
		if err := caller.Validate(); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := caller.RequireRole(shared.RoleAdmin); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	u, err := s.deps.Commands.CreateUser.Handle(r.Context(), command.CreateUserCommand{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Role:     role.String(),
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toUserResponse(u))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        principal `json:"user"`
}

type principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func toPrincipal(p shared.Principal) principal {
	return principal{ID: p.ID.String(), Username: p.Username, Role: p.Role.String()}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Authenticate.Handle(r.Context(), command.AuthenticateCommand{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   res.ExpiresAt,
		User:        toPrincipal(res.Principal),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, toPrincipal(handlers.PrincipalFromContext(r.Context())))
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	courses, err := s.deps.Queries.ListCourses.Handle(r.Context(), query.ListCoursesQuery{
		Principal: handlers.PrincipalFromContext(r.Context()),
		Title:     r.URL.Query().Get("title"),
		Price:     r.URL.Query().Get("price"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, courses)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	course, err := s.deps.Queries.GetCourse.Handle(r.Context(), handlers.PrincipalFromContext(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, course)
}

type createCourseRequest struct {
	Title             string `json:"title"`
	Slug              string `json:"slug"`
	Description       string `json:"description"`
	ShortDescription  string `json:"short_description"`
	Image             string `json:"image"`
	Price             string `json:"price"`
	TestQuestionCount int    `json:"test_question_count"`
	TestDuration      int    `json:"test_duration"`

	// Teacher is honoured for admins only.
	Teacher string `json:"teacher"`
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	course, err := s.deps.Commands.CreateCourse.Handle(r.Context(), command.CreateCourseCommand{
		Principal:         handlers.PrincipalFromContext(r.Context()),
		Title:             req.Title,
		Slug:              req.Slug,
		Description:       req.Description,
		ShortDescription:  req.ShortDescription,
		Image:             req.Image,
		Price:             req.Price,
		TestQuestionCount: req.TestQuestionCount,
		TestDuration:      req.TestDuration,
		TeacherID:         shared.UserID(req.Teacher),
		CorrelationID:     getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, query.CourseDTOOf(course, true))
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	modules, err := s.deps.Queries.ListModules.Handle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, modules)
}

type addModuleRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleAddModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req addModuleRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.deps.Commands.AddModule.Handle(r.Context(), command.AddModuleCommand{
		Principal:   handlers.PrincipalFromContext(r.Context()),
		CourseID:    id,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, query.ModuleDTOOf(m))
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lessons, err := s.deps.Queries.ListLessons.Handle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lessons)
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	module, err := s.deps.Queries.GetModule.Handle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, module)
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lesson, err := s.deps.Queries.GetLesson.Handle(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lesson)
}

type addLessonRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	PDF          string `json:"pdf"`
	VideoURL     string `json:"video_url"`
	Presentation string `json:"presentation"`
}

func (s *Server) handleAddLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req addLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	l, err := s.deps.Commands.AddLesson.Handle(r.Context(), command.AddLessonCommand{
		Principal:    handlers.PrincipalFromContext(r.Context()),
		ModuleID:     id,
		Title:        req.Title,
		Description:  req.Description,
		PDF:          req.PDF,
		VideoURL:     req.VideoURL,
		Presentation: req.Presentation,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, query.LessonDTOOf(l))
}

type answerPayload struct {
	ID      int64  `json:"id,omitempty"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type addQuestionRequest struct {
	Text    string          `json:"text"`
	Image   string          `json:"image"`
	Type    int             `json:"type"`
	Answers []answerPayload `json:"answers"`
}

type questionResponse struct {
	ID       int64           `json:"id"`
	CourseID int64           `json:"course"`
	Text     string          `json:"text"`
	Image    string          `json:"image,omitempty"`
	Type     int             `json:"type"`
	Answers  []answerPayload `json:"answers"`
}

func (s *Server) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req addQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	answers := make([]assessment.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, assessment.Answer{Text: a.Text, Correct: a.Correct})
	}

	q, err := s.deps.Commands.AddQuestion.Handle(r.Context(), command.AddQuestionCommand{
		Principal: handlers.PrincipalFromContext(r.Context()),
		CourseID:  id,
		Text:      req.Text,
		Image:     req.Image,
		Type:      req.Type,
		Answers:   answers,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := questionResponse{
		ID:       q.ID,
		CourseID: q.CourseID,
		Text:     q.Text,
		Image:    q.Image,
		Type:     q.Type.Int(),
		Answers:  make([]answerPayload, 0, len(q.Answers)),
	}
	for _, a := range q.Answers {
		resp.Answers = append(resp.Answers, answerPayload{ID: a.ID, Text: a.Text, Correct: a.Correct})
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

// handleListFeedback serves both /feedback and /courses/{id}/feedback.
func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	var courseID int64
	if r.PathValue("id") != "" {
		id, err := pathID(r, "id")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		courseID = id
	}
	page, err := queryInt(r, "page", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	list, err := s.deps.Queries.ListFeedback.Handle(r.Context(), query.ListFeedbackQuery{
		CourseID: courseID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

type feedbackRequest struct {
	FullName string `json:"full_name"`
	Text     string `json:"text"`
	Rating   int    `json:"rating"`
}

func (s *Server) handleGiveFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	f, err := s.deps.Commands.GiveFeedback.Handle(r.Context(), command.GiveFeedbackCommand{
		Principal:     handlers.PrincipalFromContext(r.Context()),
		CourseID:      id,
		FullName:      req.FullName,
		Text:          req.Text,
		Rating:        req.Rating,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, query.FeedbackDTOOf(f))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Queries.GetStatistics.Handle(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}
