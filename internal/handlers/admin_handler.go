package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/TechFest-2026/exam-session-service/internal/repositories"
	"github.com/TechFest-2026/exam-session-service/internal/services"
	"github.com/TechFest-2026/exam-session-service/internal/utils"
)

// AdminHandler exposes the proctor dashboard endpoints. Every route behind it
// requires an authenticated admin (see AdminMiddleware).
type AdminHandler struct {
	BaseHandler
	sessionService services.SessionService
	exportService  services.ExportService
}

func NewAdminHandler(
	sessionService services.SessionService,
	exportService services.ExportService,
	logger utils.Logger,
) *AdminHandler {
	return &AdminHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		exportService:  exportService,
	}
}

// ListActiveSessions lists in-progress sessions for the live dashboard
// @Summary List active sessions
// @Tags admin
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} SuccessResponse
// @Router /admin/sessions/active [get]
func (h *AdminHandler) ListActiveSessions(c *gin.Context) {
	filters := repositories.SessionFilters{
		Limit:  parseQueryInt(c, "limit", 50),
		Offset: parseQueryInt(c, "offset", 0),
	}

	sessions, total, err := h.sessionService.ListActiveSessions(c.Request.Context(), filters)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    total,
	})
}

// GetStats summarizes session counts and the average score
// @Summary Session statistics
// @Tags admin
// @Produce json
// @Success 200 {object} repositories.SessionStats
// @Router /admin/stats [get]
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.sessionService.GetStats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListResults returns finalized sessions ranked by score, earliest
// submission breaking ties
// @Summary Ranked results
// @Tags admin
// @Produce json
// @Success 200 {array} services.RankedResult
// @Router /admin/results [get]
func (h *AdminHandler) ListResults(c *gin.Context) {
	results, err := h.sessionService.ListFinalizedRanked(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// ExportResults downloads the ranked results as a spreadsheet
// @Summary Export results
// @Tags admin
// @Produce application/octet-stream
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} binary
// @Router /admin/results/export [get]
func (h *AdminHandler) ExportResults(c *gin.Context) {
	format := c.DefaultQuery("format", "xlsx")

	var (
		data        []byte
		err         error
		contentType string
		filename    string
	)
	switch format {
	case "xlsx":
		data, err = h.exportService.ExportResultsToExcel(c.Request.Context())
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "results.xlsx"
	case "csv":
		data, err = h.exportService.ExportResultsToCSV(c.Request.Context())
		contentType = "text/csv"
		filename = "results.csv"
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid format",
			Details: "format must be xlsx or csv",
		})
		return
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}

// ForceSubmit finalizes a session on the proctor's authority
// @Summary Force submit session
// @Tags admin
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResult
// @Failure 404 {object} ErrorResponse
// @Router /admin/sessions/{id}/force-submit [post]
func (h *AdminHandler) ForceSubmit(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == uuid.Nil {
		return
	}

	h.LogRequest(c, "Force-submitting session", "session_id", id, "admin", adminName(c))

	result, err := h.sessionService.ForceFinalize(c.Request.Context(), id, adminName(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExtensionRequest carries the minutes to add to a session's budget.
type ExtensionRequest struct {
	Minutes int `json:"minutes" validate:"required,gt=0"`
}

// GrantExtension adds time to one active session
// @Summary Grant extension
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body ExtensionRequest true "Extension"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/sessions/{id}/extend [post]
func (h *AdminHandler) GrantExtension(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == uuid.Nil {
		return
	}

	var req ExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.GrantExtension(c.Request.Context(), id, req.Minutes, adminName(c)); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Extension granted"})
}

// GrantExtensionAll adds time to every active session
// @Summary Grant extension to all active sessions
// @Tags admin
// @Accept json
// @Produce json
// @Param request body ExtensionRequest true "Extension"
// @Success 200 {object} SuccessResponse
// @Router /admin/sessions/extend-all [post]
func (h *AdminHandler) GrantExtensionAll(c *gin.Context) {
	var req ExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	count, err := h.sessionService.GrantExtensionAll(c.Request.Context(), req.Minutes, adminName(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Extension granted to all active sessions",
		Data:    gin.H{"sessions": count},
	})
}

// AdminMessageRequest carries a one-way proctor notice.
type AdminMessageRequest struct {
	Message string `json:"message" validate:"required,min=1,max=500"`
}

// PostMessage sends a notice to one candidate, surfaced on their next poll
// @Summary Post admin message
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body AdminMessageRequest true "Message"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/sessions/{id}/message [post]
func (h *AdminHandler) PostMessage(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == uuid.Nil {
		return
	}

	var req AdminMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.sessionService.PostAdminMessage(c.Request.Context(), id, req.Message, adminName(c)); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Message sent"})
}

// ImportQuestions uploads an Excel workbook of questions
// @Summary Import questions from Excel
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Workbook"
// @Success 200 {object} services.QuestionImportResult
// @Failure 400 {object} ErrorResponse
// @Router /admin/questions/import [post]
func (h *AdminHandler) ImportQuestions(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to open uploaded file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	result, err := h.exportService.ImportQuestionsFromExcel(c.Request.Context(), file)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parseQueryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
