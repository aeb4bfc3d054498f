package http

import (
	"context"
	"net/http"
	"time"

	"github.com/coursehub/coursehub-platform/internal/application/command"
	"github.com/coursehub/coursehub-platform/internal/application/query"
	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

type registrationResponse struct {
	EnrollmentID    int64  `json:"enrollment_id"`
	CourseID        int64  `json:"course"`
	ContractFile    string `json:"contract_file"`
	AlreadyEnrolled bool   `json:"already_enrolled"`
}

// handleRegisterForCourse answers 201 for a new enrollment and 200 when
// the caller was already enrolled.
func (s *Server) handleRegisterForCourse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.RegisterForCourse.Handle(r.Context(), command.RegisterForCourseCommand{
		Principal:     handlers.PrincipalFromContext(r.Context()),
		CourseID:      id,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyEnrolled {
		status = http.StatusOK
	}
	writeJSON(w, r, status, registrationResponse{
		EnrollmentID:    res.EnrollmentID,
		CourseID:        res.CourseID,
		ContractFile:    res.ContractFile,
		AlreadyEnrolled: res.AlreadyEnrolled,
	})
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Queries.ListEnrollments.Handle(r.Context(), handlers.PrincipalFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// handleDownloadContract streams the caller's enrollment contract.
func (s *Server) handleDownloadContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := s.deps.Queries.DownloadContract.Handle(r.Context(), query.DownloadContractQuery{
		Principal:    handlers.PrincipalFromContext(r.Context()),
		EnrollmentID: id,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeDocument(w, doc.Name, doc.ContentType, doc.Data)
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

type progressResponse struct {
	ID          int64      `json:"id"`
	LessonID    int64      `json:"lesson"`
	CourseID    int64      `json:"course"`
	State       string     `json:"state"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Changed     bool       `json:"changed"`
}

func toProgressResponse(res *command.LessonProgressResult) progressResponse {
	return progressResponse{
		ID:          res.ProgressID,
		LessonID:    res.LessonID,
		CourseID:    res.CourseID,
		State:       string(res.State),
		StartedAt:   res.StartedAt,
		CompletedAt: res.CompletedAt,
		Changed:     res.Changed,
	}
}

func (s *Server) handleStartLesson(w http.ResponseWriter, r *http.Request) {
	s.lessonProgress(w, r, s.deps.Commands.StartLesson.Handle)
}

func (s *Server) handleFinishLesson(w http.ResponseWriter, r *http.Request) {
	s.lessonProgress(w, r, s.deps.Commands.FinishLesson.Handle)
}

func (s *Server) lessonProgress(
	w http.ResponseWriter,
	r *http.Request,
	handle func(ctx context.Context, cmd command.LessonProgressCommand) (*command.LessonProgressResult, error),
) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := handle(r.Context(), command.LessonProgressCommand{
		Principal:     handlers.PrincipalFromContext(r.Context()),
		LessonID:      id,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProgressResponse(res))
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENTS
// ══════════════════════════════════════════════════════════════════════════════

type generateTestRequest struct {
	Type int `json:"type"`
}

type generateTestResponse struct {
	TestEnrollmentID int64 `json:"id"`
	TotalQuestions   int   `json:"total_questions"`
	Resumed          bool  `json:"resumed"`
}

// handleGenerateTest answers 201 for a new attempt and 200 when an
// unfinished attempt is resumed.
func (s *Server) handleGenerateTest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req generateTestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.GenerateTest.Handle(r.Context(), command.GenerateTestCommand{
		Principal:     handlers.PrincipalFromContext(r.Context()),
		CourseID:      id,
		Type:          req.Type,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, r, status, generateTestResponse{
		TestEnrollmentID: res.TestEnrollmentID,
		TotalQuestions:   res.TotalQuestions,
		Resumed:          res.Resumed,
	})
}

type answerOption struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type questionSheet struct {
	ID      int64          `json:"id"`
	Text    string         `json:"text"`
	Image   string         `json:"image,omitempty"`
	Answers []answerOption `json:"answers"`
}

type startTestResponse struct {
	ID             int64           `json:"id"`
	CourseID       int64           `json:"course"`
	Type           int             `json:"type"`
	TypeName       string          `json:"type_name"`
	State          string          `json:"state"`
	StartedAt      *time.Time      `json:"started_at"`
	TotalQuestions int             `json:"total_questions"`
	Questions      []questionSheet `json:"questions"`
}

func (s *Server) handleStartTest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.StartTest.Handle(r.Context(), command.StartTestCommand{
		Principal:        handlers.PrincipalFromContext(r.Context()),
		TestEnrollmentID: id,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := startTestResponse{
		ID:             res.TestEnrollmentID,
		CourseID:       res.CourseID,
		Type:           res.Type.Int(),
		TypeName:       res.Type.String(),
		State:          string(res.State),
		StartedAt:      res.StartedAt,
		TotalQuestions: res.TotalQuestions,
		Questions:      make([]questionSheet, 0, len(res.Questions)),
	}
	for _, q := range res.Questions {
		sheet := questionSheet{ID: q.ID, Text: q.Text, Image: q.Image, Answers: make([]answerOption, 0, len(q.Answers))}
		for _, a := range q.Answers {
			sheet.Answers = append(sheet.Answers, answerOption{ID: a.ID, Text: a.Text})
		}
		resp.Questions = append(resp.Questions, sheet)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type pickPayload struct {
	QuestionID       int64 `json:"question_id"`
	SelectedAnswerID int64 `json:"selected_answer_id"`
}

type submitTestRequest struct {
	Answers []pickPayload `json:"answers"`
}

type submitTestResponse struct {
	ID             int64     `json:"id"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_date"`
}

func (s *Server) handleSubmitTest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req submitTestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	picks := make([]assessment.Pick, 0, len(req.Answers))
	for _, a := range req.Answers {
		picks = append(picks, assessment.Pick{QuestionID: a.QuestionID, AnswerID: a.SelectedAnswerID})
	}

	res, err := s.deps.Commands.SubmitTest.Handle(r.Context(), command.SubmitTestCommand{
		Principal:        handlers.PrincipalFromContext(r.Context()),
		TestEnrollmentID: id,
		Answers:          picks,
		CorrelationID:    getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, submitTestResponse{
		ID:             res.TestEnrollmentID,
		CorrectAnswers: res.CorrectAnswers,
		TotalQuestions: res.TotalQuestions,
		CompletedAt:    res.CompletedAt,
	})
}

func (s *Server) handleTestResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Queries.GetTestResult.Handle(r.Context(), query.GetTestResultQuery{
		Principal:        handlers.PrincipalFromContext(r.Context()),
		TestEnrollmentID: id,
		CorrelationID:    getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleDownloadCertificate streams the certificate of a finished test,
// issuing it first when needed. Unfinished tests answer 404.
func (s *Server) handleDownloadCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	doc, err := s.deps.Queries.DownloadCertificate.Handle(r.Context(), query.GetTestResultQuery{
		Principal:        handlers.PrincipalFromContext(r.Context()),
		TestEnrollmentID: id,
		CorrelationID:    getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeDocument(w, doc.Name, doc.ContentType, doc.Data)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Queries.ListResults.Handle(r.Context(), query.ListResultsQuery{
		Principal: handlers.PrincipalFromContext(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) handleInitialTestResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	testType, err := queryInt(r, "type", assessment.TestTypePre.Int())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Queries.InitialTestResult.Handle(r.Context(), query.InitialTestResultQuery{
		Principal: handlers.PrincipalFromContext(r.Context()),
		CourseID:  id,
		Type:      testType,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHAT
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	list, err := s.deps.Queries.ListMessages.Handle(r.Context(), query.ListMessagesQuery{
		Principal:   handlers.PrincipalFromContext(r.Context()),
		ModuleID:    id,
		Counterpart: shared.UserID(r.URL.Query().Get("counterpart")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

type sendMessageRequest struct {
	Message string `json:"message"`
	Type    int    `json:"type"`
	Reply   *int64 `json:"reply"`
}

type sendMessageResponse struct {
	query.MessageDTO
	Relayed bool `json:"relayed"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.SendMessage.Handle(r.Context(), command.SendMessageCommand{
		Principal:     handlers.PrincipalFromContext(r.Context()),
		ModuleID:      id,
		Text:          req.Message,
		Type:          chat.Side(req.Type),
		ReplyID:       req.Reply,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sendMessageResponse{
		MessageDTO: query.MessageDTOOf(res.Message),
		Relayed:    res.Relayed,
	})
}
