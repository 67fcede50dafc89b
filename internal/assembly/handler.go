package assembly

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	assembler *Assembler
}

func NewHandler(assembler *Assembler) *Handler {
	return &Handler{assembler: assembler}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	packets := rg.Group("/packets")
	{
		packets.POST("/assemble", h.Assemble)
		packets.POST("/preview", h.Preview)
		packets.POST("/estimate", h.Estimate)
	}
}

type assembleRequest struct {
	Forms    []PacketForm    `json:"forms" binding:"required"`
	Metadata *PacketMetadata `json:"metadata" binding:"required"`
}

func (h *Handler) Assemble(c *gin.Context) {
	var req assembleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.assembler.AssemblePacket(c.Request.Context(), req.Forms, req.Metadata)
	if result.Status == StatusFailed {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Preview(c *gin.Context) {
	var req assembleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placeholder, err := h.assembler.CreatePlaceholderPacket(req.Forms, req.Metadata)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, placeholder)
}

type estimateRequest struct {
	Forms []PacketForm `json:"forms" binding:"required"`
}

type estimateResponse struct {
	EstimatedMillis int64  `json:"estimated_millis"`
	Estimated       string `json:"estimated"`
}

func (h *Handler) Estimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	estimate := h.assembler.EstimateAssemblyTime(req.Forms)
	c.JSON(http.StatusOK, estimateResponse{
		EstimatedMillis: estimate.Milliseconds(),
		Estimated:       estimate.Round(100 * time.Millisecond).String(),
	})
}
