package documents

import (
	"errors"
	"net/http"
	"time"

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
	docs := rg.Group("/documents")
	{
		docs.POST("", h.Create)
		docs.GET("/:id", h.Get)
		docs.PUT("/:id", h.Update)
	}
}

type createDocumentRequest struct {
	Title          string                `json:"title"`
	FormType       string                `json:"form_type" binding:"required"`
	WorkflowID     string                `json:"workflow_id" binding:"required"`
	UserID         string                `json:"user_id" binding:"required"`
	Content        map[string]any        `json:"content"`
	FieldPositions []forms.FieldPosition `json:"field_positions"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	workflowID, err := uuid.Parse(req.WorkflowID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow_id"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	doc, err := h.service.Insert(c.Request.Context(), InsertRequest{
		Title:          req.Title,
		FormType:       forms.FormType(req.FormType),
		WorkflowID:     workflowID,
		UserID:         userID,
		Content:        req.Content,
		FieldPositions: req.FieldPositions,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	doc, err := h.service.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

type updateDocumentRequest struct {
	Content        map[string]any        `json:"content"`
	FieldPositions []forms.FieldPosition `json:"field_positions"`
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.service.Update(c.Request.Context(), id, UpdatePatch{
		Content:        req.Content,
		FieldPositions: req.FieldPositions,
		UpdatedAt:      time.Now(),
	})
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
