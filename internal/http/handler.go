package http

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-service/internal/http/middleware"
	"parking-service/internal/ingest"
	"parking-service/internal/model"
	"parking-service/internal/service"
)

type CameraEventLister interface {
	ListRecent(ctx context.Context, direction *model.CameraDirection, limit int) ([]model.CameraEvent, error)
}

type Handler struct {
	adapter      *ingest.Adapter
	sessions     *service.SessionManager
	policies     *service.PolicyResolver
	cameraEvents CameraEventLister
	dashboardWS  http.HandlerFunc
	location     *time.Location
	now          func() time.Time
	log          zerolog.Logger
}

func NewHandler(
	adapter *ingest.Adapter,
	sessions *service.SessionManager,
	policies *service.PolicyResolver,
	cameraEvents CameraEventLister,
	dashboardWS http.HandlerFunc,
	location *time.Location,
	log zerolog.Logger,
) *Handler {
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		adapter:      adapter,
		sessions:     sessions,
		policies:     policies,
		cameraEvents: cameraEvents,
		dashboardWS:  dashboardWS,
		location:     location,
		now:          time.Now,
		log:          log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Cameras sit on the facility network and do not carry operator tokens.
	camera := r.Group("/api/v1/camera")
	{
		camera.POST("/entry", h.cameraEntry)
		camera.POST("/exit", h.cameraExit)
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/statistics", h.getStatistics)
		protected.GET("/sessions", h.listSessions)
		protected.GET("/sessions/unpaid", h.listUnpaidSessions)
		protected.GET("/sessions/unpaid/latest", h.getLatestUnpaidSession)
		protected.POST("/sessions/:id/pay", h.markSessionPaid)
		protected.DELETE("/sessions/:id", h.deleteSession)
		protected.GET("/sessions/:id/receipt", h.getReceipt)
		protected.GET("/cars/:plate/policy", h.getCarPolicy)
		protected.PUT("/cars/:plate/policy", h.updateCarPolicy)
		protected.GET("/camera/events", h.listCameraEvents)
	}

	if h.dashboardWS != nil {
		r.GET("/ws/dashboard", authMiddleware, gin.WrapF(h.dashboardWS))
	}
}

func (h *Handler) cameraEntry(c *gin.Context) {
	result, err := h.ingestCamera(c, model.CameraDirectionEntry)
	if err != nil {
		h.cameraError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":     "ok",
		"plate":      result.Plate,
		"session_id": result.Session.ID,
	})
}

func (h *Handler) cameraExit(c *gin.Context) {
	result, err := h.ingestCamera(c, model.CameraDirectionExit)
	if err != nil {
		h.cameraError(c, err)
		return
	}

	var amount int64
	if result.Session.Amount != nil {
		amount = *result.Session.Amount
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"plate":      result.Plate,
		"amount":     amount,
		"paid":       result.Session.Paid,
		"session_id": result.Session.ID,
	})
}

func (h *Handler) ingestCamera(c *gin.Context, direction model.CameraDirection) (*ingest.Result, error) {
	capture, err := h.bindCapture(c, direction)
	if err != nil {
		return nil, h.adapter.RejectMalformed(c.Request.Context(), direction, err)
	}
	return h.adapter.Handle(c.Request.Context(), capture)
}

// bindCapture accepts the JSON payload of ANPR cameras and the multipart
// upload of gate cameras.
func (h *Handler) bindCapture(c *gin.Context, direction model.CameraDirection) (ingest.Capture, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.adapter.MaxUploadBytes())

	switch c.ContentType() {
	case binding.MIMEJSON:
		var payload ingest.EventPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			return ingest.Capture{}, err
		}
		return ingest.FromPayload(direction, payload), nil
	case binding.MIMEMultipartPOSTForm:
		var form ingest.CameraForm
		if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
			return ingest.Capture{}, err
		}
		image, err := cameraImage(c, direction)
		if err != nil {
			return ingest.Capture{}, err
		}
		return ingest.FromForm(direction, form, image), nil
	default:
		return ingest.Capture{}, fmt.Errorf("unsupported content type %q", c.ContentType())
	}
}

// cameraImage returns nil when no snapshot part was sent.
func cameraImage(c *gin.Context, direction model.CameraDirection) (*multipart.FileHeader, error) {
	for _, field := range []string{"image", string(direction) + "_image"} {
		header, err := c.FormFile(field)
		if err == nil {
			return header, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, err
		}
	}
	return nil, nil
}

func (h *Handler) getStatistics(c *gin.Context) {
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}

	stats, err := h.sessions.StatisticsFor(c.Request.Context(), date)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(stats))
}

func (h *Handler) listSessions(c *gin.Context) {
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.SessionsFor(
		c.Request.Context(),
		date,
		strings.TrimSpace(c.Query("number_plate")),
		model.ParseSessionStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(model.SessionViews(sessions)))
}

func (h *Handler) listUnpaidSessions(c *gin.Context) {
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.UnpaidFor(c.Request.Context(), date)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(model.SessionViews(sessions)))
}

func (h *Handler) getLatestUnpaidSession(c *gin.Context) {
	date, ok := h.dateQuery(c)
	if !ok {
		return
	}

	session, err := h.sessions.LatestUnpaidFor(c.Request.Context(), date)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if session == nil {
		c.JSON(http.StatusOK, successResponse(nil))
		return
	}

	c.JSON(http.StatusOK, successResponse(session.View()))
}

func (h *Handler) markSessionPaid(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.sessions.MarkPaid(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(session.View()))
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	if err := h.sessions.DeleteSession(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) getReceipt(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	receipt, err := h.sessions.ReceiptFor(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(receipt))
}

func (h *Handler) getCarPolicy(c *gin.Context) {
	policy, err := h.policies.Get(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(policy))
}

func (h *Handler) updateCarPolicy(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		Free        bool    `json:"is_free"`
		SpecialTaxi bool    `json:"is_special_taxi"`
		Blocked     bool    `json:"is_blocked"`
		Position    *string `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	policy, err := h.policies.UpdatePolicy(c.Request.Context(), principal, c.Param("plate"), service.PolicyUpdate{
		Free:        req.Free,
		SpecialTaxi: req.SpecialTaxi,
		Blocked:     req.Blocked,
		Position:    req.Position,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(policy))
}

func (h *Handler) listCameraEvents(c *gin.Context) {
	var direction *model.CameraDirection
	switch raw := model.CameraDirection(strings.ToLower(strings.TrimSpace(c.Query("direction")))); raw {
	case "":
	case model.CameraDirectionEntry, model.CameraDirectionExit:
		direction = &raw
	default:
		c.JSON(http.StatusBadRequest, errorResponse("direction must be entry or exit"))
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.cameraEvents.ListRecent(c.Request.Context(), direction, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(events))
}

// dateQuery reads ?date=YYYY-MM-DD in the facility time zone, defaulting to
// today.
func (h *Handler) dateQuery(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("date"))
	if raw == "" {
		return h.now().In(h.location), true
	}

	date, err := time.ParseInLocation("2006-01-02", raw, h.location)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("date must be in YYYY-MM-DD format"))
		return time.Time{}, false
	}
	return date, true
}

func sessionIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) cameraError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("camera event failed")
		message = "internal error"
	}

	c.JSON(status, gin.H{
		"status": "error",
		"reason": service.Reason(err),
		"error":  message,
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, errorResponse("internal error"))
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "reason": service.Reason(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrPolicyRejected), errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}
