package config

import (
	"fmt"
	"strings"
)

// Deployment environments
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// normalizeEnvironment lower-cases env and rejects names the service does not know.
// An empty value means development.
func normalizeEnvironment(env string) (string, error) {
	switch env = strings.ToLower(strings.TrimSpace(env)); env {
	case "":
		return EnvDevelopment, nil
	case EnvDevelopment, EnvTest, EnvStaging, EnvProduction:
		return env, nil
	default:
		return "", fmt.Errorf("unknown server.environment %q", env)
	}
}

// IsProductionLike reports whether env is staging or production.
func IsProductionLike(env string) bool {
	return env == EnvStaging || env == EnvProduction
}
