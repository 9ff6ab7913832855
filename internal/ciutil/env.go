package ciutil

import (
	"log/slog"
	"os"

	"github.com/phrazzld/docflow/internal/redact"
)

// Environment variables consulted by CI detection and test setup.
const (
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitLabCI      = "GITLAB_CI"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvCircleCI      = "CIRCLECI"

	EnvDatabaseURL        = "DATABASE_URL"
	EnvDocflowTestDBURL   = "DOCFLOW_TEST_DB_URL"
	EnvDocflowDatabaseURL = "DOCFLOW_DATABASE_URL"
)

// IsCI reports whether the process runs under a known CI provider.
func IsCI() bool {
	return os.Getenv(EnvCI) != "" ||
		os.Getenv(EnvGitHubActions) != "" ||
		os.Getenv(EnvGitLabCI) != "" ||
		os.Getenv(EnvJenkinsURL) != "" ||
		os.Getenv(EnvCircleCI) != ""
}

// GetEnvWithFallbacks returns the first non-empty variable in envVars, or
// defaultValue. Using anything but the first name logs a warning.
func GetEnvWithFallbacks(envVars []string, defaultValue string, logger *slog.Logger) string {
	for i, envVar := range envVars {
		val := os.Getenv(envVar)
		if val == "" {
			continue
		}
		if i > 0 && logger != nil {
			logger.Warn("using fallback environment variable",
				"used_var", envVar,
				"preferred_var", envVars[0],
				"value", redact.URL(val))
		}
		return val
	}
	return defaultValue
}

// GetTestDatabaseURL returns the database URL integration tests should use,
// or "" when none is configured.
func GetTestDatabaseURL(logger *slog.Logger) string {
	return GetEnvWithFallbacks(
		[]string{EnvDatabaseURL, EnvDocflowTestDBURL, EnvDocflowDatabaseURL},
		"",
		logger,
	)
}
