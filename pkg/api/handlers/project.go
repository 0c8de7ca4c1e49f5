package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nimbus-host/nimbus-backend/pkg/api/servers"
	"github.com/nimbus-host/nimbus-backend/pkg/services"
)

type ProjectHandler struct {
	DeploymentService *services.DeploymentService
}

func NewProjectHandler(server *servers.Server) *ProjectHandler {
	return &ProjectHandler{DeploymentService: server.DeploymentService}
}

// ListProjects godoc
// @Summary      List the caller's projects
// @Tags         projects
// @Produce      json
// @Router       /projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	projects, err := h.DeploymentService.ListProjects(c.GetHeader(userIDHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// GetProject godoc
// @Summary      Get one project
// @Tags         projects
// @Produce      json
// @Param        id path string true "project id"
// @Router       /projects/{id} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	project, err := h.DeploymentService.GetProject(c.GetHeader(userIDHeader), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// GetProjectAudit godoc
// @Summary      Get the project's audit trail
// @Tags         projects
// @Produce      json
// @Param        id path string true "project id"
// @Router       /projects/{id}/audit [get]
func (h *ProjectHandler) GetProjectAudit(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	entries, err := h.DeploymentService.ListAudit(c.GetHeader(userIDHeader), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// DeleteProject godoc
// @Summary      Tear a project down
// @Description  Best-effort deletion of every cloud resource, then the database rows
// @Tags         projects
// @Produce      json
// @Param        id path string true "project id"
// @Router       /projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	report, err := h.DeploymentService.DeleteProject(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	steps := make([]gin.H, 0, len(report.Results))
	for _, res := range report.Results {
		step := gin.H{"step": res.Step, "ok": res.OK()}
		if res.Err != nil {
			step["error"] = res.Err.Error()
		}
		steps = append(steps, step)
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK", "cleanup": steps})
}
