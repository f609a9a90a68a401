package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arena2api/arena2api/internal/profile"
	"github.com/arena2api/arena2api/internal/runtime/executor"
)

// minTokenReserve is the V3 count below which the push ack asks the
// extension for more tokens.
const minTokenReserve = 3

// ExtensionPush serves POST /v1/extension/push: one JSON push of cookies,
// credentials, challenge tokens, and the model catalog.
func (h *Handler) ExtensionPush(c *gin.Context) {
	var data profile.PushData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid JSON", "invalid_request_error"))
		return
	}
	c.JSON(http.StatusOK, h.applyPush(data))
}

// applyPush routes one push into the registry and builds the ack the
// extension expects. Shared by the HTTP and websocket push paths.
func (h *Handler) applyPush(data profile.PushData) gin.H {
	p := h.registry.Apply(data)
	count := p.TokenCount()
	return gin.H{
		"status":      "ok",
		"profile_id":  p.ID(),
		"need_tokens": count < minTokenReserve,
		"v3_count":    count,
	}
}

// ExtensionStatus serves GET /v1/extension/status: per-profile state plus
// the constants the extension needs to mint tokens.
func (h *Handler) ExtensionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_profiles":      h.registry.ActiveCount(),
		"profiles":             h.registry.Snapshots(),
		"recaptcha_v3_sitekey": executor.RecaptchaV3SiteKey,
	})
}

// ListProfiles serves GET /v1/extension/profiles.
func (h *Handler) ListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": h.registry.Snapshots()})
}

// DeleteProfile serves DELETE /v1/extension/profiles/:id, the only way a
// profile leaves the registry short of a restart.
func (h *Handler) DeleteProfile(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Delete(id) {
		c.JSON(http.StatusNotFound, errorBody(fmt.Sprintf("profile %q not found", id), "not_found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "profile_id": id})
}
