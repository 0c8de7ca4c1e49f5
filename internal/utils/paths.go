package utils

import (
	"os"
	"path"

	"github.com/google/uuid"
)

// BuildLogDir is where the engine buffers build output on disk before the
// aggregator archives it.
func BuildLogDir(deploymentID uuid.UUID) string {
	rootDir, _ := os.Getwd()
	return path.Join(rootDir, "storage", "logs", deploymentID.String())
}

func BuildLogPath(deploymentID uuid.UUID) string {
	return path.Join(BuildLogDir(deploymentID), "build.txt")
}
