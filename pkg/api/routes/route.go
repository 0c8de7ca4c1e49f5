package routes

import (
	"github.com/gin-gonic/gin"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/nimbus-host/nimbus-backend/pkg/api/handlers"
	"github.com/nimbus-host/nimbus-backend/pkg/api/servers"

	swaggerFiles "github.com/swaggo/files"
)

func SetupRoutes(server *servers.Server) {
	apiV1 := server.Router.Group("/api/v1")
	setupV1Routes(apiV1, server)

	server.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func setupV1Routes(router *gin.RouterGroup, server *servers.Server) {
	setupHealthRoutes(router.Group("/health"))
	setupDeploymentRoutes(router.Group("/deployments"), server)
	setupProjectRoutes(router.Group("/projects"), server)
}

func setupHealthRoutes(router *gin.RouterGroup) {
	handler := handlers.NewHealthHandler()
	router.GET("", handler.GetHealth)
}

func setupDeploymentRoutes(router *gin.RouterGroup, server *servers.Server) {
	handler := handlers.NewDeploymentHandler(server)
	router.POST("", handler.Deploy)
	router.POST("/stream", handler.DeployStream)
	router.GET("/:id", handler.GetDeployment)
	router.GET("/:id/logs", handler.GetDeploymentLogs)
	router.POST("/:id/rollback", handler.Rollback)
}

func setupProjectRoutes(router *gin.RouterGroup, server *servers.Server) {
	handler := handlers.NewProjectHandler(server)
	router.GET("", handler.ListProjects)
	router.GET("/:id", handler.GetProject)
	router.GET("/:id/audit", handler.GetProjectAudit)
	router.DELETE("/:id", handler.DeleteProject)
}
