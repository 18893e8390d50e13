package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/garyjia/booking-voucher/internal/application/service"
	"github.com/garyjia/booking-voucher/internal/domain/apperror"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// Sweeper runs one expiration sweep on demand
type Sweeper interface {
	RunOnce(ctx context.Context) (*service.SweepResult, error)
}

// HealthChecker reports whether backing resources are reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Services groups the application services the handlers call
type Services struct {
	Issuer     service.VoucherIssuer
	Lookup     service.LookupService
	Redemption service.RedemptionService
	Documents  service.DocumentService
	Usage      service.UsageService
	Sweeper    Sweeper
	Health     HealthChecker
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	validate *validator.Validate
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		validate: validator.New(),
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// IssueVoucherRequest is the issuance body. Details are decoded against booking_type.
type IssueVoucherRequest struct {
	service.IssueRequest
	Details json.RawMessage `json:"details,omitempty"`
	Partner *entity.Partner `json:"partner,omitempty"`
}

// TokenRequest carries a scanned verification token
type TokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// CancelRequest is the optional cancel body
type CancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=512"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	if h.services.Health != nil {
		if err := h.services.Health.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			response.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: response})
			return
		}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: response})
}

// IssueVoucher handles POST /api/v1/vouchers
func (h *Handlers) IssueVoucher(c *gin.Context) {
	var req IssueVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, apperror.Validation("invalid request body: %v", err))
		return
	}

	details, err := entity.DecodeBookingDetails(req.BookingType, req.Details)
	if err != nil {
		h.fail(c, apperror.Wrap(apperror.KindValidation, err, "invalid booking details"))
		return
	}

	issue := req.IssueRequest
	issue.Details = details
	issue.Partner = req.Partner

	v, err := h.services.Issuer.Issue(c.Request.Context(), &issue, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: v})
}

// GetVoucher handles GET /api/v1/vouchers/:id
func (h *Handlers) GetVoucher(c *gin.Context) {
	view, err := h.services.Lookup.GetByID(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// GetByNumber handles GET /api/v1/vouchers/number/:number
func (h *Handlers) GetByNumber(c *gin.Context) {
	view, err := h.services.Lookup.GetByNumber(c.Request.Context(), c.Param("number"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// GetByConfirmationCode handles GET /api/v1/vouchers/confirmation/:code
func (h *Handlers) GetByConfirmationCode(c *gin.Context) {
	view, err := h.services.Lookup.GetByConfirmationCode(c.Request.Context(), c.Param("code"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// VerifyToken handles POST /api/v1/vouchers/verify
func (h *Handlers) VerifyToken(c *gin.Context) {
	var req TokenRequest
	if !h.bind(c, &req, true) {
		return
	}

	result, err := h.services.Lookup.Verify(c.Request.Context(), req.Token, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// RedeemByToken handles POST /api/v1/vouchers/redeem
func (h *Handlers) RedeemByToken(c *gin.Context) {
	var req TokenRequest
	if !h.bind(c, &req, true) {
		return
	}

	v, err := h.services.Redemption.RedeemByToken(c.Request.Context(), req.Token, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// RedeemByID handles POST /api/v1/vouchers/:id/redeem
func (h *Handlers) RedeemByID(c *gin.Context) {
	v, err := h.services.Redemption.RedeemByID(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// CancelVoucher handles POST /api/v1/vouchers/:id/cancel
func (h *Handlers) CancelVoucher(c *gin.Context) {
	var req CancelRequest
	if !h.bind(c, &req, false) {
		return
	}

	v, err := h.services.Redemption.Cancel(c.Request.Context(), c.Param("id"), actorFrom(c), req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// IssueToken handles POST /api/v1/vouchers/:id/token
func (h *Handlers) IssueToken(c *gin.Context) {
	tok, err := h.services.Redemption.IssueToken(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: tok})
}

// GetDocument handles GET /api/v1/vouchers/:id/document
func (h *Handlers) GetDocument(c *gin.Context) {
	doc, err := h.services.Documents.GetDocument(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	sendDocument(c, doc)
}

// SendEmail handles POST /api/v1/vouchers/:id/email
func (h *Handlers) SendEmail(c *gin.Context) {
	if err := h.services.Documents.SendEmail(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, Response{Success: true})
}

// ListUsage handles GET /api/v1/vouchers/:id/usage
func (h *Handlers) ListUsage(c *gin.Context) {
	entries, err := h.services.Usage.ListUsage(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []*entity.UsageLogEntry{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// ExportUsage handles GET /api/v1/vouchers/:id/usage/export
func (h *Handlers) ExportUsage(c *gin.Context) {
	doc, err := h.services.Usage.ExportUsage(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	sendDocument(c, doc)
}

// RunSweep handles POST /api/v1/admin/sweeps
func (h *Handlers) RunSweep(c *gin.Context) {
	if h.services.Sweeper == nil {
		h.fail(c, apperror.NotFound("sweeper is not configured"))
		return
	}

	result, err := h.services.Sweeper.RunOnce(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// bind decodes and validates a JSON body. An empty body is accepted when required is false.
func (h *Handlers) bind(c *gin.Context, req interface{}, required bool) bool {
	empty := c.Request.Body == nil || c.Request.ContentLength == 0
	if required || !empty {
		if err := c.ShouldBindJSON(req); err != nil && (required || !errors.Is(err, io.EOF)) {
			h.fail(c, apperror.Validation("invalid request body: %v", err))
			return false
		}
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(c, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
		return false
	}
	return true
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", GetRequestID(c),
			"error", err,
		)
	}
	c.JSON(status, body)
}

func sendDocument(c *gin.Context, doc *service.Document) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}
