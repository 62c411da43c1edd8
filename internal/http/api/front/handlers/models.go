package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/resolv-sh/resolv-gateway/internal/catalog"
)

// ModelsHandler serves the public model catalog.
type ModelsHandler struct {
	store *catalog.Store
}

// NewModelsHandler constructs a ModelsHandler.
func NewModelsHandler(store *catalog.Store) *ModelsHandler {
	return &ModelsHandler{store: store}
}

// List returns the catalog grouped into premier and open source models.
func (h *ModelsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.List())
}
