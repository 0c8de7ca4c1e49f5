package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/docs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/pkg/api/routes"
	"github.com/nimbus-host/nimbus-backend/pkg/api/servers"
	"github.com/nimbus-host/nimbus-backend/pkg/builder"
	"github.com/nimbus-host/nimbus-backend/pkg/compute"
	"github.com/nimbus-host/nimbus-backend/pkg/config"
	"github.com/nimbus-host/nimbus-backend/pkg/dnscert"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/awsapi"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/postgres/connection"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/postgres/repositories"
	"github.com/nimbus-host/nimbus-backend/pkg/logcollect"
	"github.com/nimbus-host/nimbus-backend/pkg/services"
	"github.com/nimbus-host/nimbus-backend/pkg/source"
	"github.com/nimbus-host/nimbus-backend/pkg/taskmanager"
)

// @title           Nimbus Backend
// @version         1.0
// @description     Nimbus Backend API

// @host      localhost:${PORT}
// @BasePath  /api/v1
func main() {
	logger.Init()
	defer logger.Sync()

	// Load .env file if it exists (optional for Docker runtime)
	if err := godotenv.Load(".env"); err != nil {
		logger.Infof("No .env file found, using environment variables: %s", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	postgresDB, err := connection.Init(
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_HOST"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_DB"),
		os.Getenv("POSTGRES_PORT"),
	)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}

	clients, err := awsapi.NewClientSet(context.Background(), cfg)
	if err != nil {
		logger.Fatal("Failed to construct AWS clients", zap.Error(err))
	}

	projectRepo := repositories.NewProjectRepository(postgresDB)
	domainRepo := repositories.NewDomainRepository(postgresDB)
	deploymentRepo := repositories.NewDeploymentRepository(postgresDB)
	logRepo := repositories.NewLogRepository(postgresDB)
	userRepo := repositories.NewUserRepository(postgresDB)

	tasks := taskmanager.NewTaskManager(8, 64)
	tasks.Start()
	defer tasks.Stop()

	deploymentService := services.NewDeploymentService(
		projectRepo,
		domainRepo,
		deploymentRepo,
		logRepo,
		userRepo,
		source.NewVerifier(cfg.GithubOwner),
		builder.NewCoordinator(clients.CodeBuild, clients.ECR, clients.Logs, cfg),
		compute.NewProvisioner(clients.ECS, clients.ELB, clients.Logs, cfg),
		dnscert.NewManager(clients.ACM, clients.Route53, clients.ELB, cfg),
		logcollect.NewCollector(clients.Logs, clients.S3, logRepo, cfg),
		tasks,
		cfg,
	)

	docs.SwaggerInfo.Title = "Nimbus Backend"
	docs.SwaggerInfo.Description = "Nimbus Backend API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Schemes = []string{"http"}
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%s", cfg.Port)
	docs.SwaggerInfo.BasePath = "/api/v1"

	server := servers.NewServer(postgresDB, deploymentService)
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"*"}

	server.Use(cors.New(corsConfig))

	routes.SetupRoutes(server)

	if err := server.Start(cfg.Port); err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		log.Fatal(err)
	}
}
