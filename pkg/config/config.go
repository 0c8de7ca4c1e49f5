package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config carries everything the engine needs about the platform's standing
// infrastructure. It is loaded once at startup and injected into the engine;
// nothing reads the environment after that.
type Config struct {
	Port string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// BaseDomain is the platform apex under which every project is served,
	// e.g. apps.nimbus.dev.
	BaseDomain   string
	HostedZoneID string

	ClusterName          string
	LoadBalancerARN      string
	SecureListenerARN    string
	InsecureListenerARN  string
	ServiceSubnets       []string
	ServiceSecurityGroup string
	ExecutionRoleARN     string
	BuildRoleARN         string

	// RegistryURI is the account-scoped ECR registry,
	// e.g. 123456789012.dkr.ecr.us-east-1.amazonaws.com.
	RegistryURI string
	LogBucket   string

	// GithubOwner is the platform account used when a repository reference
	// carries no owner.
	GithubOwner string

	ContainerPort int32

	// DNSResolver is the public resolver queried directly when verifying
	// record propagation.
	DNSResolver string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8000"),
		AWSRegion:            os.Getenv("AWS_REGION"),
		AWSAccessKeyID:       os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
		BaseDomain:           os.Getenv("BASE_DOMAIN"),
		HostedZoneID:         os.Getenv("HOSTED_ZONE_ID"),
		ClusterName:          getEnv("ECS_CLUSTER", "nimbus"),
		LoadBalancerARN:      os.Getenv("LOAD_BALANCER_ARN"),
		SecureListenerARN:    os.Getenv("SECURE_LISTENER_ARN"),
		InsecureListenerARN:  os.Getenv("INSECURE_LISTENER_ARN"),
		ServiceSecurityGroup: os.Getenv("SERVICE_SECURITY_GROUP"),
		ExecutionRoleARN:     os.Getenv("EXECUTION_ROLE_ARN"),
		BuildRoleARN:         os.Getenv("BUILD_ROLE_ARN"),
		RegistryURI:          os.Getenv("ECR_REGISTRY_URI"),
		LogBucket:            os.Getenv("LOG_BUCKET"),
		GithubOwner:          getEnv("GITHUB_OWNER", "nimbus-host"),
		DNSResolver:          getEnv("DNS_RESOLVER", "8.8.8.8:53"),
	}

	if subnets := os.Getenv("SERVICE_SUBNETS"); subnets != "" {
		cfg.ServiceSubnets = strings.Split(subnets, ",")
	}

	port, err := strconv.Atoi(getEnv("CONTAINER_PORT", "3000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONTAINER_PORT: %w", err)
	}
	cfg.ContainerPort = int32(port)

	for name, value := range map[string]string{
		"AWS_REGION":          cfg.AWSRegion,
		"BASE_DOMAIN":         cfg.BaseDomain,
		"HOSTED_ZONE_ID":      cfg.HostedZoneID,
		"LOAD_BALANCER_ARN":   cfg.LoadBalancerARN,
		"SECURE_LISTENER_ARN": cfg.SecureListenerARN,
	} {
		if value == "" {
			return nil, fmt.Errorf("missing required environment variable %s", name)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
