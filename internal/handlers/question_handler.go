package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TechFest-2026/exam-session-service/internal/models"
	"github.com/TechFest-2026/exam-session-service/internal/repositories"
	"github.com/TechFest-2026/exam-session-service/internal/services"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

// QuestionHandler exposes bank authoring endpoints; all of them sit behind
// the admin middleware since responses include answer keys only implicitly
// via authoring round-trips, never in candidate payloads.
type QuestionHandler struct {
	BaseHandler
	bankService services.QuestionBankService
}

func NewQuestionHandler(bankService services.QuestionBankService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler: NewBaseHandler(logger),
		bankService: bankService,
	}
}

// CreateQuestion adds one question to the bank
// @Summary Create question
// @Tags questions
// @Accept json
// @Produce json
// @Param question body models.RawQuestionItem true "Question"
// @Success 201 {object} models.Question
// @Failure 400 {object} ErrorResponse
// @Router /admin/questions [post]
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var item models.RawQuestionItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	question, err := h.bankService.CreateQuestion(c.Request.Context(), item, models.SourceManual)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// ListQuestions lists bank questions with optional filters
// @Summary List questions
// @Tags questions
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} SuccessResponse
// @Router /admin/questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	filters := repositories.QuestionFilters{
		Limit:  parseQueryInt(c, "limit", 50),
		Offset: parseQueryInt(c, "offset", 0),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filters.Active = &active
	}

	questions, total, err := h.bankService.ListQuestions(c.Request.Context(), filters)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"total":     total,
	})
}

// GetQuestion retrieves one question
// @Summary Get question
// @Tags questions
// @Produce json
// @Param id path int true "Question ID"
// @Success 200 {object} models.Question
// @Failure 404 {object} ErrorResponse
// @Router /admin/questions/{id} [get]
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := ParseUintParam(c, "id")
	if id == 0 {
		return
	}

	question, err := h.bankService.GetQuestion(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// SetQuestionActiveRequest toggles a question's sampling eligibility.
type SetQuestionActiveRequest struct {
	Active bool `json:"active"`
}

// SetQuestionActive includes or excludes a question from future sampling
// @Summary Set question active flag
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Question ID"
// @Param request body SetQuestionActiveRequest true "Flag"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/questions/{id}/active [put]
func (h *QuestionHandler) SetQuestionActive(c *gin.Context) {
	id := ParseUintParam(c, "id")
	if id == 0 {
		return
	}

	var req SetQuestionActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.bankService.SetQuestionActive(c.Request.Context(), id, req.Active); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question updated"})
}

// DeleteQuestion soft-deletes a question from the bank
// @Summary Delete question
// @Tags questions
// @Produce json
// @Param id path int true "Question ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/questions/{id} [delete]
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id := ParseUintParam(c, "id")
	if id == 0 {
		return
	}

	if err := h.bankService.DeleteQuestion(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Question deleted"})
}

// GenerateQuestionsRequest asks the configured source for new questions.
type GenerateQuestionsRequest struct {
	Topic string `json:"topic" validate:"required,min=1,max=200"`
	Count int    `json:"count" validate:"required,gt=0,lte=50"`
}

// GenerateQuestions generates questions via the configured source
// @Summary Generate questions
// @Tags questions
// @Accept json
// @Produce json
// @Param request body GenerateQuestionsRequest true "Generation request"
// @Success 200 {object} services.QuestionImportResult
// @Failure 502 {object} ErrorResponse "Source unavailable"
// @Router /admin/questions/generate [post]
func (h *QuestionHandler) GenerateQuestions(c *gin.Context) {
	var req GenerateQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Generating questions", "topic", req.Topic, "count", req.Count)

	result, err := h.bankService.GenerateQuestions(c.Request.Context(), req.Topic, req.Count)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
