package servers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nimbus-host/nimbus-backend/pkg/services"
)

type Server struct {
	Router            *gin.Engine
	PostgresDB        *gorm.DB
	DeploymentService *services.DeploymentService
}

func (s *Server) Start(port string) error {
	return s.Router.Run(":" + port)
}

func (s *Server) Use(middleware gin.HandlerFunc) {
	s.Router.Use(middleware)
}

func NewServer(db *gorm.DB, deploymentService *services.DeploymentService) *Server {
	app := gin.Default()

	return &Server{
		Router:            app,
		PostgresDB:        db,
		DeploymentService: deploymentService,
	}
}
