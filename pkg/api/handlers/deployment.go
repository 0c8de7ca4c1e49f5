package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/pkg/api/dtos"
	"github.com/nimbus-host/nimbus-backend/pkg/api/servers"
	"github.com/nimbus-host/nimbus-backend/pkg/services"
)

// The platform's auth layer fronts this service and forwards the caller's
// identity in this header.
const userIDHeader = "X-User-ID"

const streamKeepAliveInterval = 15 * time.Second

type DeploymentHandler struct {
	DeploymentService *services.DeploymentService
}

func NewDeploymentHandler(server *servers.Server) *DeploymentHandler {
	return &DeploymentHandler{DeploymentService: server.DeploymentService}
}

// Deploy godoc
// @Summary      Deploy a project
// @Description  Builds the repository branch and provisions it behind the platform load balancer
// @Tags         deployments
// @Accept       json
// @Produce      json
// @Param        request body dtos.DeployRequest true "deployment request"
// @Success      200 {object} services.LaunchResult
// @Router       /deployments [post]
func (h *DeploymentHandler) Deploy(c *gin.Context) {
	var request dtos.DeployRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := request.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	result, err := h.DeploymentService.Launch(c.Request.Context(), request.ToLaunchRequest(userID), nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeployStream godoc
// @Summary      Deploy a project with live progress
// @Description  Same workflow as Deploy, delivered as an event stream of log chunks terminated by a done or error event
// @Tags         deployments
// @Accept       json
// @Produce      text/event-stream
// @Param        request body dtos.DeployRequest true "deployment request"
// @Router       /deployments/stream [post]
func (h *DeploymentHandler) DeployStream(c *gin.Context) {
	var request dtos.DeployRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := request.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	// The workflow owns its own lifetime: a consumer disconnect must not
	// cancel the deployment mid-provisioning.
	events := h.DeploymentService.LaunchStream(c.Copy(), request.ToLaunchRequest(userID))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	keepAlive := time.NewTicker(streamKeepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return false
			}
			c.SSEvent(string(event.Type), string(payload))
			return event.Type == services.StreamEventLog
		case <-keepAlive.C:
			c.SSEvent("keep-alive", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

// GetDeployment godoc
// @Summary      Get one deployment
// @Tags         deployments
// @Produce      json
// @Param        id path string true "deployment id"
// @Router       /deployments/{id} [get]
func (h *DeploymentHandler) GetDeployment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	deployment, err := h.DeploymentService.GetDeployment(c.GetHeader(userIDHeader), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployment": deployment})
}

// GetDeploymentLogs godoc
// @Summary      Get the captured build log of a deployment
// @Tags         deployments
// @Produce      json
// @Param        id path string true "deployment id"
// @Router       /deployments/{id}/logs [get]
func (h *DeploymentHandler) GetDeploymentLogs(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	log, err := h.DeploymentService.GetBuildLog(c.GetHeader(userIDHeader), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": log})
}

// Rollback godoc
// @Summary      Roll the project back to a previous deployment
// @Tags         deployments
// @Produce      json
// @Param        id path string true "deployment id to re-activate"
// @Router       /deployments/{id}/rollback [post]
func (h *DeploymentHandler) Rollback(c *gin.Context) {
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
	if err := h.DeploymentService.Rollback(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

// respondError maps the engine's error taxonomy onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errs.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errs.IsAuthentication(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errs.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errs.IsBuildFailed(err):
		var buildErr *errs.BuildFailedError
		errors.As(err, &buildErr)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       err.Error(),
			"buildStatus": buildErr.Status,
			"lastLogLine": buildErr.LastLogLine,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
