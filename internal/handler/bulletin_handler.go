package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-bulletin-api/internal/dto"
	"github.com/noah-isme/sma-bulletin-api/internal/middleware"
	"github.com/noah-isme/sma-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
	"github.com/noah-isme/sma-bulletin-api/pkg/response"
)

type bulletinService interface {
	Create(ctx context.Context, req dto.CreateBulletinRequest) (*models.Bulletin, error)
	Get(ctx context.Context, id string) (*models.Bulletin, error)
	List(ctx context.Context, filter models.BulletinFilter) ([]models.Bulletin, *models.Pagination, error)
	Calculate(ctx context.Context, id string) (*models.Bulletin, error)
	Validate(ctx context.Context, id, actor string) (*models.Bulletin, error)
	Publish(ctx context.Context, id, actor string) (*models.Bulletin, error)
	Archive(ctx context.Context, id, actor, reason string) (*models.Bulletin, error)
	UpdateHeader(ctx context.Context, id string, req dto.UpdateBulletinRequest) (*models.Bulletin, error)
	UpsertLine(ctx context.Context, id string, req dto.UpsertLineRequest) (*models.Bulletin, error)
	RemoveLine(ctx context.Context, id, subjectID string) (*models.Bulletin, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, query dto.StatsQuery) (*models.BulletinStats, error)
}

type batchGenerator interface {
	Preview(ctx context.Context, req dto.GenerateBatchRequest) (*dto.BatchPreview, error)
	Generate(ctx context.Context, req dto.GenerateBatchRequest) (*dto.BatchSummary, error)
}

// BulletinHandler exposes report-card endpoints.
type BulletinHandler struct {
	service bulletinService
	batches batchGenerator
}

// NewBulletinHandler builds a new handler.
func NewBulletinHandler(service bulletinService, batches batchGenerator) *BulletinHandler {
	return &BulletinHandler{service: service, batches: batches}
}

// List godoc
// @Summary List bulletins
// @Tags Bulletins
// @Produce json
// @Param batchId query string false "Class ID"
// @Param termId query string false "Term ID"
// @Param studentId query string false "Student ID"
// @Param state query string false "Lifecycle state"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bulletins [get]
func (h *BulletinHandler) List(c *gin.Context) {
	var query dto.BulletinListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	filter := models.BulletinFilter{
		BatchID:   query.BatchID,
		TermID:    query.TermID,
		StudentID: query.StudentID,
		State:     models.BulletinState(query.State),
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a bulletin with its lines
// @Tags Bulletins
// @Produce json
// @Param id path string true "Bulletin ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bulletins/{id} [get]
func (h *BulletinHandler) Get(c *gin.Context) {
	bulletin, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bulletin, nil)
}

// Create godoc
// @Summary Open a draft bulletin
// @Tags Bulletins
// @Accept json
// @Produce json
// @Param payload body dto.CreateBulletinRequest true "Bulletin payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bulletins [post]
func (h *BulletinHandler) Create(c *gin.Context) {
	var req dto.CreateBulletinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulletin payload"))
		return
	}
	bulletin, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bulletin)
}

// Update godoc
// @Summary Edit bulletin header fields
// @Tags Bulletins
// @Accept json
// @Produce json
// @Param id path string true "Bulletin ID"
// @Param payload body dto.UpdateBulletinRequest true "Header fields"
// @Success 200 {object} response.Envelope
// @Router /bulletins/{id} [patch]
func (h *BulletinHandler) Update(c *gin.Context) {
	var req dto.UpdateBulletinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulletin payload"))
		return
	}
	bulletin, err := h.service.UpdateHeader(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bulletin, nil)
}

// Delete godoc
// @Summary Delete a draft bulletin
// @Tags Bulletins
// @Param id path string true "Bulletin ID"
// @Success 204
// @Router /bulletins/{id} [delete]
func (h *BulletinHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Calculate godoc
// @Summary Recalculate lines, averages and cohort ranks
// @Tags Bulletins
// @Produce json
// @Param id path string true "Bulletin ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /bulletins/{id}/calculate [post]
func (h *BulletinHandler) Calculate(c *gin.Context) {
	bulletin, err := h.service.Calculate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bulletin, nil)
}

// Validate godoc
// @Summary Validate a calculated bulletin
// @Tags Bulletins
// @Produce json
// @Param id path string true "Bulletin ID"
// @Success 200 {object} response.Envelope
// @Router /bulletins/{id}/validate [post]
func (h *BulletinHandler) Validate(c *gin.Context) {
	bulletin, err := h.service.Validate(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bulletin, nil)
}

// Publish godoc
// @Summary Publish a validated bulletin
// @Tags Bulletins
// @Produce json
// @Param id path string true "Bulletin ID"
// @Success 200 {object} response.Envelope
// @Router /bulletins/{id}/publish [post]
func (h *BulletinHandler) Publish(c *gin.Context) {
	bulletin, err := h.service.Publish(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bulletin, nil)
}

// Archive godoc
// @Summary Archive a bulletin
// @Tags Bulletins
// @Accept json
// @Produce json
// @Param id path string true "Bulletin ID"
// @Param payload body dto.ArchiveBulletinRequest true "Archive reason"
// @Success 200 {object} response.Envelope
// @Router /bulletins/{id}/archive [post]
func (h *BulletinHandler) Archive(c *gin.Context) {
	var req dto.ArchiveBulletinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid archive payload"))
		return
	}
	bulletin, err := h.service.Archive(c.Request.Context(), c.Param("id"), actorID(c), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bulletin, nil)
}

// UpsertLine godoc
// @Summary Add or edit a subject line
// @Tags Bulletins
// @Accept json
// @Produce json
// @Param id path string true "Bulletin ID"
// @Param subjectId path string false "Subject ID (PUT only)"
// @Param payload body dto.UpsertLineRequest true "Line payload"
// @Success 200 {object} response.Envelope
// @Router /bulletins/{id}/lines [post]
// @Router /bulletins/{id}/lines/{subjectId} [put]
func (h *BulletinHandler) UpsertLine(c *gin.Context) {
	var req dto.UpsertLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid line payload"))
		return
	}
	if subjectID := c.Param("subjectId"); subjectID != "" {
		req.SubjectID = subjectID
	}
	bulletin, err := h.service.UpsertLine(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bulletin, nil)
}

// RemoveLine godoc
// @Summary Remove a subject line
// @Tags Bulletins
// @Produce json
// @Param id path string true "Bulletin ID"
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /bulletins/{id}/lines/{subjectId} [delete]
func (h *BulletinHandler) RemoveLine(c *gin.Context) {
	bulletin, err := h.service.RemoveLine(c.Request.Context(), c.Param("id"), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bulletin, nil)
}

// Stats godoc
// @Summary Cohort statistics
// @Tags Bulletins
// @Produce json
// @Param batchId query string true "Class ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /bulletins/stats [get]
func (h *BulletinHandler) Stats(c *gin.Context) {
	var query dto.StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// PreviewBatch godoc
// @Summary Preview batch generation counts
// @Tags Bulletins
// @Accept json
// @Produce json
// @Param payload body dto.GenerateBatchRequest true "Batch request"
// @Success 200 {object} response.Envelope
// @Router /bulletins/generate-batch/preview [post]
func (h *BulletinHandler) PreviewBatch(c *gin.Context) {
	var req dto.GenerateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	preview, err := h.batches.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// GenerateBatch godoc
// @Summary Generate bulletins for a whole class
// @Tags Bulletins
// @Accept json
// @Produce json
// @Param payload body dto.GenerateBatchRequest true "Batch request"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /bulletins/generate-batch [post]
func (h *BulletinHandler) GenerateBatch(c *gin.Context) {
	var req dto.GenerateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	req.Actor = actorID(c)
	summary, err := h.batches.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Register mounts the bulletin routes on rg. Callers install authentication on rg first.
// Literal segments are registered before the :id routes they sit beside.
func (h *BulletinHandler) Register(rg *gin.RouterGroup) {
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	g := rg.Group("/bulletins")
	g.GET("", staff, h.List)
	g.POST("", staff, h.Create)
	g.GET("/stats", staff, h.Stats)
	g.POST("/generate-batch", admin, h.GenerateBatch)
	g.POST("/generate-batch/preview", admin, h.PreviewBatch)

	g.GET("/:id", staff, h.Get)
	g.PATCH("/:id", staff, h.Update)
	g.DELETE("/:id", admin, h.Delete)
	g.POST("/:id/calculate", staff, h.Calculate)
	g.POST("/:id/validate", admin, h.Validate)
	g.POST("/:id/publish", admin, h.Publish)
	g.POST("/:id/archive", admin, h.Archive)
	g.POST("/:id/lines", staff, h.UpsertLine)
	g.PUT("/:id/lines/:subjectId", staff, h.UpsertLine)
	g.DELETE("/:id/lines/:subjectId", staff, h.RemoveLine)
}
