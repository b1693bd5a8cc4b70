// Package api holds the dashboard-facing HTTP handlers. Every route is scoped
// to the workspace named by the X-Workspace-ID header.
package api

import (
	"errors"
	"net/http"

	"whatsapp-crm/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	WorkspaceHeader = "X-Workspace-ID"
	workspaceKey    = "workspace_id"
)

// RequireWorkspace rejects requests that do not name a workspace.
func RequireWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := c.GetHeader(WorkspaceHeader)
		if ws == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": WorkspaceHeader + " header is required"})
			return
		}
		c.Set(workspaceKey, ws)
		c.Next()
	}
}

func workspaceID(c *gin.Context) string {
	return c.GetString(workspaceKey)
}

// storeError writes the response for a store failure.
func storeError(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load " + what})
}
