// Package utils derives the names of external cloud resources from project
// and domain names. Every handle is deterministic so provisioning can
// re-locate resources idempotently instead of tracking their ids.
package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var hostLabelRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidHostLabel reports whether s can be used as a DNS label.
func ValidHostLabel(s string) bool {
	return hostLabelRegex.MatchString(strings.ToLower(s))
}

func ImageRepoName(project string) string {
	return strings.ToLower(project)
}

func BuildProjectName(project string) string {
	return fmt.Sprintf("%s-build", project)
}

func TaskFamily(project string) string {
	return fmt.Sprintf("%s-task", project)
}

func ServiceName(project string) string {
	return fmt.Sprintf("%s-service", project)
}

// TargetGroupName keeps within the 32-character ELB limit.
func TargetGroupName(project string) string {
	name := fmt.Sprintf("%s-tg", project)
	if len(name) > 32 {
		name = name[:32]
	}
	return name
}

func RuntimeLogGroup(project string) string {
	return fmt.Sprintf("/ecs/%s", project)
}

func BuildLogGroup(project string) string {
	return fmt.Sprintf("/aws/codebuild/%s", BuildProjectName(project))
}

// ProjectHost is the bare hostname a project is served under.
func ProjectHost(project, baseDomain string) string {
	return fmt.Sprintf("%s.%s", strings.ToLower(project), baseDomain)
}

// WildcardHost covers every subdomain of the project host.
func WildcardHost(project, baseDomain string) string {
	return fmt.Sprintf("*.%s", ProjectHost(project, baseDomain))
}

// QualifyHost resolves a stored domain name to a full hostname. The label
// equal to the project name is the bare project host; anything else is a
// subdomain of it.
func QualifyHost(label, project, baseDomain string) string {
	if strings.EqualFold(label, project) {
		return ProjectHost(project, baseDomain)
	}
	return fmt.Sprintf("%s.%s", strings.ToLower(label), ProjectHost(project, baseDomain))
}
