// File: internal/report/handler.go
package report

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger.Named("ReportHandler")}
}

// RegisterRoutes mounts /reports. The service repeats every role check.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, staffMW gin.HandlerFunc) {
	group := router.Group("/reports", authMW)
	{
		group.POST("", h.createReport)
		group.GET("", h.listReports)
		group.GET("/search", staffMW, h.searchReports)
		group.GET("/:id", h.getReport)
		group.POST("/:id/images", h.attachImages)
		group.GET("/:id/history", h.statusHistory)
		group.PATCH("/:id/status", staffMW, h.updateStatus)
		group.DELETE("/:id", staffMW, h.deleteReport)
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// multipartLimit leaves room for form fields on top of the largest allowed batch.
func (h *Handler) multipartLimit() int64 {
	p := h.service.ImagePolicy()
	return int64(p.MaxImages+1)*p.MaxBytes + 1<<20
}

// readUploads pulls the "images" files out of a parsed multipart form.
func (h *Handler) readUploads(form *multipart.Form) ([]ImageUpload, error) {
	if form == nil {
		return nil, nil
	}
	maxBytes := h.service.ImagePolicy().MaxBytes
	files := form.File["images"]
	uploads := make([]ImageUpload, 0, len(files))
	for _, fh := range files {
		u, err := ReadMultipartImage(fh, maxBytes)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func (h *Handler) parseMultipart(c *gin.Context) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.multipartLimit())
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondWithError(c, common.ErrImageTooLarge.WithDetails("Upload exceeds the allowed total size."))
			return false
		}
		h.logger.Warn("Failed to parse multipart form", zap.Error(err))
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid multipart form."))
		return false
	}
	return true
}

func (h *Handler) createReport(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}

	var req CreateReportRequest
	var uploads []ImageUpload
	if isMultipart(c) {
		if !h.parseMultipart(c) {
			return
		}
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			common.RespondWithError(c, common.BindingError(err))
			return
		}
		var err error
		if uploads, err = h.readUploads(c.Request.MultipartForm); err != nil {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Could not read uploaded files."))
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	report, err := h.service.CreateReport(c.Request.Context(), actor, req, uploads)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Report submitted successfully.", ToReportResponse(report))
}

func (h *Handler) attachImages(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var uploads []ImageUpload
	if isMultipart(c) {
		if !h.parseMultipart(c) {
			return
		}
		var err error
		if uploads, err = h.readUploads(c.Request.MultipartForm); err != nil {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Could not read uploaded files."))
			return
		}
	} else {
		var req AttachImagesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			common.RespondWithError(c, common.BindingError(err))
			return
		}
		maxBytes := h.service.ImagePolicy().MaxBytes
		for i, raw := range req.Images {
			uploads = append(uploads, DecodeDataURL("images["+strconv.Itoa(i)+"]", raw, maxBytes))
		}
	}

	report, err := h.service.AttachImages(c.Request.Context(), actor, id, uploads)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Images attached.", ToReportResponse(report))
}

func (h *Handler) listReports(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	page, pageSize := common.GetPaginationParams(c)
	reports, pagination, err := h.service.ListReports(c.Request.Context(), actor, filter, page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Reports retrieved successfully.", ToReportResponses(reports), pagination)
}

func (h *Handler) searchReports(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	page, pageSize := common.GetPaginationParams(c)
	reports, pagination, err := h.service.SearchReports(c.Request.Context(), actor, c.Query("q"), page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Reports retrieved successfully.", ToReportResponses(reports), pagination)
}

func (h *Handler) getReport(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	report, err := h.service.GetReport(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", ToReportResponse(report))
}

func (h *Handler) updateStatus(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	report, err := h.service.UpdateStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Report status updated.", ToReportResponse(report))
}

func (h *Handler) statusHistory(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	events, err := h.service.StatusHistory(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", events)
}

func (h *Handler) deleteReport(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteReport(c.Request.Context(), actor, id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}
