package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/middleware"
	"github.com/contest-maker-150/assessment/internal/session"
)

// SessionManager is the session surface exposed over HTTP
type SessionManager interface {
	Join(ctx context.Context, participantID string, req *domain.JoinSessionRequest) (*session.Snapshot, error)
	Open(ctx context.Context, participantID string, ref domain.ActivityRef) (*session.Snapshot, error)
	Snapshot(ctx context.Context, participantID, activityID string) (*session.Snapshot, error)
	Window(ctx context.Context, participantID, activityID string) (domain.Window, error)
	SelectQuestion(ctx context.Context, participantID, activityID, questionID string) (*session.QuestionView, error)
	Question(ctx context.Context, participantID, activityID, questionID string) (*session.QuestionView, error)
	Run(ctx context.Context, participantID, activityID string, cmd session.CodeCommand) (*session.RunReport, error)
	Submit(ctx context.Context, participantID, activityID string, cmd session.CodeCommand) (*session.SubmitReceipt, error)
	Answer(ctx context.Context, participantID, activityID string, cmd session.AnswerCommand) (*domain.QuizAnswer, error)
	RefreshProgress(ctx context.Context, participantID, activityID string) (*session.Snapshot, error)
	End(ctx context.Context, participantID, activityID string) (*session.Snapshot, error)
}

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	sessions SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Register mounts the session routes on an authenticated group
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("/join", h.Join)
		sessions.POST("", h.Open)
		sessions.GET("/:activityId", h.GetSession)
		sessions.PUT("/:activityId/current", h.SelectQuestion)
		sessions.GET("/:activityId/questions/:questionId", h.GetQuestion)
		sessions.POST("/:activityId/questions/:questionId/run", h.Run)
		sessions.POST("/:activityId/questions/:questionId/submissions", h.Submit)
		sessions.PUT("/:activityId/questions/:questionId/answer", h.Answer)
		sessions.POST("/:activityId/progress/refresh", h.RefreshProgress)
		sessions.POST("/:activityId/end", h.End)
	}
}

// Join exchanges an access key for a session
// POST /api/sessions/join
func (h *SessionHandler) Join(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	var req domain.JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	snap, err := h.sessions.Join(c.Request.Context(), participantID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// Open loads the session of an activity the participant already joined
// POST /api/sessions
func (h *SessionHandler) Open(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	var req domain.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	snap, err := h.sessions.Open(c.Request.Context(), participantID, domain.ActivityRef{ID: req.ActivityID, Kind: req.Kind})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetSession returns the current snapshot of a session
// GET /api/sessions/:activityId
func (h *SessionHandler) GetSession(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	snap, err := h.sessions.Snapshot(c.Request.Context(), participantID, c.Param("activityId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SelectQuestion switches the current question
// PUT /api/sessions/:activityId/current
func (h *SessionHandler) SelectQuestion(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	var req domain.SelectQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	view, err := h.sessions.SelectQuestion(c.Request.Context(), participantID, c.Param("activityId"), req.QuestionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetQuestion returns a question without switching to it
// GET /api/sessions/:activityId/questions/:questionId
func (h *SessionHandler) GetQuestion(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	view, err := h.sessions.Question(c.Request.Context(), participantID, c.Param("activityId"), c.Param("questionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Run executes the public test cases
// POST /api/sessions/:activityId/questions/:questionId/run
func (h *SessionHandler) Run(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	cmd, ok := bindCode(c)
	if !ok {
		return
	}

	report, err := h.sessions.Run(c.Request.Context(), participantID, c.Param("activityId"), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Submit sends code to the backend for grading
// POST /api/sessions/:activityId/questions/:questionId/submissions
func (h *SessionHandler) Submit(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	cmd, ok := bindCode(c)
	if !ok {
		return
	}

	receipt, err := h.sessions.Submit(c.Request.Context(), participantID, c.Param("activityId"), cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

// Answer records the selected option of a quiz question
// PUT /api/sessions/:activityId/questions/:questionId/answer
func (h *SessionHandler) Answer(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	var req domain.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	answer, err := h.sessions.Answer(c.Request.Context(), participantID, c.Param("activityId"), session.AnswerCommand{
		QuestionID:     c.Param("questionId"),
		SelectedOption: req.SelectedOption,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// RefreshProgress reloads solved questions from the backend
// POST /api/sessions/:activityId/progress/refresh
func (h *SessionHandler) RefreshProgress(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	snap, err := h.sessions.RefreshProgress(c.Request.Context(), participantID, c.Param("activityId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// End closes the session
// POST /api/sessions/:activityId/end
func (h *SessionHandler) End(c *gin.Context) {
	participantID, ok := middleware.RequireParticipant(c)
	if !ok {
		return
	}

	snap, err := h.sessions.End(c.Request.Context(), participantID, c.Param("activityId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func bindCode(c *gin.Context) (session.CodeCommand, bool) {
	var req domain.CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return session.CodeCommand{}, false
	}
	return session.CodeCommand{
		QuestionID: c.Param("questionId"),
		Language:   req.Language,
		Code:       req.Code,
	}, true
}
