package handler

import (
	"net/http"

	"github.com/aman-churiwal/api-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type APIKeyHandler struct {
	service *service.APIKeyService
}

func NewAPIKeyHandler(service *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{service: service}
}

type createKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

// Handles POST /admin/keys
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	createdBy := c.GetString("username")

	ctx := c.Request.Context()
	key, err := h.service.Create(ctx, req.Name, createdBy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":     key,
		"message": "Store this key now; it is not retrievable later",
	})
}

// Handles GET /admin/keys
func (h *APIKeyHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	keys, err := h.service.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// Handles DELETE /admin/keys/:id
func (h *APIKeyHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid API key ID"})
		return
	}

	ctx := c.Request.Context()
	if err := h.service.Deactivate(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deactivated"})
}
