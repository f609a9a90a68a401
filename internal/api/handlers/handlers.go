// Package handlers exposes the OpenAI-compatible surface and the extension
// push API on gin.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arena2api/arena2api/internal/config"
	"github.com/arena2api/arena2api/internal/profile"
	"github.com/arena2api/arena2api/internal/runtime/executor"
)

// Version is reported by the health endpoints and the version command.
const Version = "1.0.0"

// Handler carries the dependencies every route needs: the live config
// store, the profile registry, and the upstream executor.
type Handler struct {
	store    *config.Store
	registry *profile.Registry
	executor *executor.Executor
}

// New wires a handler set over its collaborators.
func New(store *config.Store, registry *profile.Registry, exec *executor.Executor) *Handler {
	return &Handler{
		store:    store,
		registry: registry,
		executor: exec,
	}
}

// RegisterRoutes attaches every route to engine.
func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.Use(corsMiddleware())
	engine.GET("/", h.Health)
	engine.GET("/health", h.Health)

	v1 := engine.Group("/v1")

	api := v1.Group("", h.apiKeyAuth())
	api.GET("/models", h.ListModels)
	api.POST("/chat/completions", h.ChatCompletions)

	ext := v1.Group("/extension", h.pushSecretAuth())
	ext.POST("/push", h.ExtensionPush)
	ext.GET("/status", h.ExtensionStatus)
	ext.GET("/ws", h.ExtensionWS)
	ext.GET("/profiles", h.ListProfiles)
	ext.DELETE("/profiles/:id", h.DeleteProfile)
}

// Health reports process liveness plus a per-profile summary.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  Version,
		"profiles": h.registry.Snapshots(),
	})
}

func errorBody(message, errType string) gin.H {
	return gin.H{"error": gin.H{"message": message, "type": errType}}
}
