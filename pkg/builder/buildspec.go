package builder

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildSpec is the structured form of the provider's multi-phase build
// script. Phase and command logic lives here; serialization to the
// provider's format happens only at the boundary in Render.
type BuildSpec struct {
	Version string          `json:"version"`
	Phases  BuildSpecPhases `json:"phases"`
	Env     *BuildSpecEnv   `json:"env,omitempty"`
}

type BuildSpecPhases struct {
	Install   BuildSpecPhase `json:"install"`
	PreBuild  BuildSpecPhase `json:"pre_build"`
	Build     BuildSpecPhase `json:"build"`
	PostBuild BuildSpecPhase `json:"post_build"`
}

type BuildSpecPhase struct {
	Commands []string `json:"commands"`
}

type BuildSpecEnv struct {
	Variables map[string]string `json:"variables,omitempty"`
}

// NewBuildSpec assembles the install → build → containerize → push phases
// for one project.
func NewBuildSpec(cfg BuildConfig, registryURI string, region string) BuildSpec {
	workDir := strings.TrimSpace(cfg.RootDir)
	image := fmt.Sprintf("%s/%s:%s", registryURI, cfg.ImageRepo, cfg.ImageTag)

	installCmds := []string{}
	if workDir != "" && workDir != "." {
		installCmds = append(installCmds, fmt.Sprintf("cd %s", workDir))
	}
	if cfg.InstallCommand != "" {
		installCmds = append(installCmds, cfg.InstallCommand)
	}

	buildCmds := []string{}
	if workDir != "" && workDir != "." {
		buildCmds = append(buildCmds, fmt.Sprintf("cd %s", workDir))
	}
	if cfg.BuildCommand != "" {
		buildCmds = append(buildCmds, cfg.BuildCommand)
	}
	buildCmds = append(buildCmds, fmt.Sprintf("docker build -t %s .", image))

	return BuildSpec{
		Version: "0.2",
		Phases: BuildSpecPhases{
			Install: BuildSpecPhase{Commands: installCmds},
			PreBuild: BuildSpecPhase{Commands: []string{
				fmt.Sprintf(
					"aws ecr get-login-password --region %s | docker login --username AWS --password-stdin %s",
					region, registryURI,
				),
			}},
			Build: BuildSpecPhase{Commands: buildCmds},
			PostBuild: BuildSpecPhase{Commands: []string{
				fmt.Sprintf("docker push %s", image),
			}},
		},
	}
}

// Render serializes the spec into the JSON form the build provider accepts.
func (s BuildSpec) Render() (string, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
