package workflow

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mawazawa/tro-packet-engine/internal/forms"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	wf := rg.Group("/workflows")
	{
		wf.POST("", h.Start)
		wf.GET("/:id", h.Get)
		wf.GET("/:id/steps", h.Steps)
		wf.PUT("/:id/form-status", h.UpdateFormStatus)
		wf.PUT("/:id/config", h.UpdateConfig)
		wf.POST("/:id/next", h.Next)
		wf.POST("/:id/previous", h.Previous)
		wf.POST("/:id/jump", h.Jump)
		wf.POST("/:id/complete", h.Complete)
		wf.POST("/:id/reset", h.Reset)
		wf.POST("/:id/validate", h.Validate)
		wf.POST("/:id/forms/:form/autofill", h.Autofill)
		wf.GET("/:id/forms/:form/data", h.GetFormData)
		wf.PUT("/:id/forms/:form/data", h.SaveFormData)
	}
}

// statusFor maps workflow error codes onto HTTP statuses.
func statusFor(err error) int {
	we, ok := AsWorkflowError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch we.Code {
	case CodeInvalidTransition, CodeValidationFailed:
		return http.StatusConflict
	case CodeMissingDependency:
		return http.StatusPreconditionFailed
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	if we, ok := AsWorkflowError(err); ok {
		body["code"] = we.Code
		body["retryable"] = we.Retryable
		if len(we.Unmet) > 0 {
			body["unmet_forms"] = we.Unmet
		}
		if len(we.Validation) > 0 {
			body["validation_errors"] = we.Validation
		}
	}
	return body
}

func identifiers(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return uuid.Nil, uuid.Nil, false
	}
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return uuid.Nil, uuid.Nil, false
	}
	return id, userID, true
}

type startRequest struct {
	UserID     string       `json:"user_id" binding:"required"`
	PacketType string       `json:"packet_type" binding:"required"`
	Config     PacketConfig `json:"config"`
}

func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	wf, err := h.service.StartWorkflow(c.Request.Context(), userID, forms.PacketType(req.PacketType), req.Config)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusCreated, wf)
}

func (h *Handler) Get(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	wf, err := h.service.Load(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *Handler) Steps(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	wf, err := h.service.Load(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"steps":                       wf.Steps(),
		"completion_percentage":       wf.CompletionPercentage(),
		"estimated_minutes_remaining": wf.EstimatedMinutesRemaining(),
	})
}

type formStatusRequest struct {
	Form   string `json:"form" binding:"required"`
	Status string `json:"status" binding:"required"`
}

func (h *Handler) UpdateFormStatus(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	var req formStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wf, err := h.service.UpdateFormStatus(c.Request.Context(), id, userID,
		forms.FormType(req.Form), forms.FormStatus(req.Status))
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	var patch ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wf, err := h.service.UpdatePacketConfig(c.Request.Context(), id, userID, patch)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *Handler) Next(c *gin.Context) {
	h.transition(c, h.service.TransitionToNextForm)
}

func (h *Handler) Previous(c *gin.Context) {
	h.transition(c, h.service.TransitionToPreviousForm)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.service.CompleteWorkflow)
}

func (h *Handler) Reset(c *gin.Context) {
	h.transition(c, h.service.ResetWorkflow)
}

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, id, userID uuid.UUID) (*Workflow, error)) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	wf, err := op(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, wf)
}

type jumpRequest struct {
	Form string `json:"form" binding:"required"`
}

func (h *Handler) Jump(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	var req jumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wf, err := h.service.JumpToForm(c.Request.Context(), id, userID, forms.FormType(req.Form))
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *Handler) Validate(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	result, err := h.service.ValidatePacket(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, result)
}

type autofillRequest struct {
	Source string         `json:"source" binding:"required"`
	Vault  map[string]any `json:"vault"`
}

func (h *Handler) Autofill(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	var req autofillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf, err := h.service.Load(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}

	form := forms.FormType(c.Param("form"))
	var outcome *AutofillOutcome
	switch req.Source {
	case "vault":
		outcome, err = h.service.AutofillFromVault(c.Request.Context(), wf, form, req.Vault)
	default:
		outcome, err = h.service.AutofillFromPrevious(c.Request.Context(), wf, form)
	}
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) GetFormData(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	wf, err := h.service.Load(c.Request.Context(), id, userID)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	content, err := h.service.GetFormData(c.Request.Context(), wf, forms.FormType(c.Param("form")))
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

type saveFormDataRequest struct {
	Content map[string]any `json:"content" binding:"required"`
}

func (h *Handler) SaveFormData(c *gin.Context) {
	id, userID, ok := identifiers(c)
	if !ok {
		return
	}
	var req saveFormDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wf, err := h.service.SaveFormData(c.Request.Context(), id, userID, forms.FormType(c.Param("form")), req.Content)
	if err != nil {
		c.JSON(statusFor(err), errorBody(err))
		return
	}
	c.JSON(http.StatusOK, wf)
}
