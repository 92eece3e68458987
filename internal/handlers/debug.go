package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"watchparty-service/internal/registry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, reg *registry.Registry, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/parties/:party_id/connections", func(c *gin.Context) {
		partyID := c.Param("party_id")
		c.JSON(http.StatusOK, gin.H{
			"party_id":          partyID,
			"local_connections": reg.Count(partyID),
		})
	})
}
