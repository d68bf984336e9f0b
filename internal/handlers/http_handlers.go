package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/logger"
	"github.com/google/uuid"

	"santa/internal/matcher"
	"santa/internal/models"
	"santa/internal/services"
	"santa/internal/sheet"
)

const (
	tenantHeader = "X-Tenant-ID"
	tenantCookie = "tenant_id"
	tenantKey    = "tenantID"
)

// HTTPHandler holds the dependencies for the HTTP handlers, like the santa service.
type HTTPHandler struct {
	service *services.SantaService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.SantaService) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// RegisterPublicRoutes registers routes that need no tenant.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// RegisterTenantRoutes registers the routes scoped to a tenant session.
func (h *HTTPHandler) RegisterTenantRoutes(router gin.IRouter) {
	router.GET("/participants", h.ListParticipants)
	router.POST("/participants", h.AddParticipant)
	router.DELETE("/participants", h.RemoveParticipant)
	router.POST("/participants/upload", h.UploadParticipants)
	router.POST("/draw", h.PerformDraw)
	router.GET("/results", h.GetResults)
	router.GET("/results/export", h.ExportResults)
	router.POST("/notify", h.Notify)
	router.DELETE("/session", h.ClearSession)
}

// TenantMiddleware identifies the tenant from the X-Tenant-ID header or the
// tenant cookie, issuing a new cookie when neither is present.
func (h *HTTPHandler) TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			tenantID, _ = c.Cookie(tenantCookie)
		}
		if tenantID == "" {
			tenantID = uuid.NewString()
			c.SetCookie(tenantCookie, tenantID, 0, "/", "", false, true)
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}

// writeError maps service errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, matcher.ErrDrawInfeasible):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotEnoughParticipants),
		errors.Is(err, sheet.ErrMissingColumn),
		errors.Is(err, sheet.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrDuplicateParticipant), errors.Is(err, services.ErrDrawConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrNoDraw), errors.Is(err, services.ErrParticipantNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNoNotifier):
		status = http.StatusNotImplemented
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// ListParticipants returns the participants of the current tenant.
func (h *HTTPHandler) ListParticipants(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"participants": h.service.GetParticipants(tenantID(c))})
}

// AddParticipant registers one participant from a JSON body.
func (h *HTTPHandler) AddParticipant(c *gin.Context) {
	var p models.Participant
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Blank names pass "required" until trimmed.
	p = p.Trimmed()
	if err := binding.Validator.ValidateStruct(p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.AddParticipant(tenantID(c), p); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// RemoveParticipant removes the participant named by the last_name and first_name query parameters.
func (h *HTTPHandler) RemoveParticipant(c *gin.Context) {
	id := models.Identity{LastName: c.Query("last_name"), FirstName: c.Query("first_name")}
	if id.LastName == "" || id.FirstName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "last_name and first_name are required"})
		return
	}
	if err := h.service.RemoveParticipant(tenantID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadParticipants replaces the participant list with a .csv or .xlsx upload.
func (h *HTTPHandler) UploadParticipants(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error retrieving file: " + err.Error()})
		return
	}
	defer file.Close()

	format, err := sheet.FormatFromName(header.Filename)
	if err != nil {
		writeError(c, err)
		return
	}
	participants, err := sheet.Read(file, format)
	if err != nil {
		logger.Infof("Rejected participant upload %q: %v", header.Filename, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SetParticipants(tenantID(c), participants); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// PerformDraw runs a new draw for the current tenant.
func (h *HTTPHandler) PerformDraw(c *gin.Context) {
	result, err := h.service.Draw(c.Request.Context(), tenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetResults returns the latest draw.
func (h *HTTPHandler) GetResults(c *gin.Context) {
	result, err := h.service.GetResult(tenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportResults downloads the latest draw as CSV (default) or xlsx.
func (h *HTTPHandler) ExportResults(c *gin.Context) {
	result, err := h.service.GetResult(tenantID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	switch c.DefaultQuery("format", "csv") {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment;filename=secret_santa_results.csv")
		err = sheet.WriteCSV(c.Writer, result.Assignment)
	case "xlsx":
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment;filename=secret_santa_results.xlsx")
		err = sheet.WriteXLSX(c.Writer, result.Assignment)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}
	if err != nil {
		logger.Errorf("Error writing results export: %v", err)
	}
}

// Notify emails every giver of the latest draw.
func (h *HTTPHandler) Notify(c *gin.Context) {
	if err := h.service.Notify(c.Request.Context(), tenantID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// ClearSession forgets the current tenant's participants and draw.
func (h *HTTPHandler) ClearSession(c *gin.Context) {
	h.service.ClearSession(tenantID(c))
	c.Status(http.StatusNoContent)
}
