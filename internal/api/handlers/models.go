package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// placeholderModel is listed while no profile has pushed a catalog yet, so
// clients that refuse to start without a model list still come up.
const placeholderModel = "waiting-for-extension"

// ListModels serves GET /v1/models: the union of every active profile's
// text and image catalogs, sorted by name.
func (h *Handler) ListModels(c *gin.Context) {
	names := h.registry.ModelNames()
	if len(names) == 0 {
		names = []string{placeholderModel}
	}
	data := make([]gin.H, 0, len(names))
	for _, name := range names {
		data = append(data, gin.H{
			"id":       name,
			"object":   "model",
			"created":  0,
			"owned_by": "arena.ai",
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}
