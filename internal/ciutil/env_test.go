package ciutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearCIEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{EnvCI, EnvGitHubActions, EnvGitLabCI, EnvJenkinsURL, EnvCircleCI} {
		t.Setenv(v, "")
	}
}

func TestIsCI(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		expected bool
	}{
		{name: "none", expected: false},
		{name: "generic", envVar: EnvCI, expected: true},
		{name: "github actions", envVar: EnvGitHubActions, expected: true},
		{name: "gitlab", envVar: EnvGitLabCI, expected: true},
		{name: "jenkins", envVar: EnvJenkinsURL, expected: true},
		{name: "circle", envVar: EnvCircleCI, expected: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearCIEnv(t)
			if tc.envVar != "" {
				t.Setenv(tc.envVar, "true")
			}
			assert.Equal(t, tc.expected, IsCI())
		})
	}
}

func TestGetEnvWithFallbacks(t *testing.T) {
	t.Setenv("DOCFLOW_PRIMARY", "")
	t.Setenv("DOCFLOW_SECONDARY", "")

	assert.Equal(t, "default", GetEnvWithFallbacks([]string{"DOCFLOW_PRIMARY", "DOCFLOW_SECONDARY"}, "default", nil))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	t.Setenv("DOCFLOW_SECONDARY", "postgres://app:hunter2@db:5432/docflow")
	got := GetEnvWithFallbacks([]string{"DOCFLOW_PRIMARY", "DOCFLOW_SECONDARY"}, "", logger)
	assert.Equal(t, "postgres://app:hunter2@db:5432/docflow", got)
	assert.Contains(t, buf.String(), "fallback environment variable")
	assert.NotContains(t, buf.String(), "hunter2")

	buf.Reset()
	t.Setenv("DOCFLOW_PRIMARY", "primary")
	assert.Equal(t, "primary", GetEnvWithFallbacks([]string{"DOCFLOW_PRIMARY", "DOCFLOW_SECONDARY"}, "", logger))
	assert.Empty(t, buf.String())
}

func TestGetTestDatabaseURL(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvDocflowTestDBURL, "")
	t.Setenv(EnvDocflowDatabaseURL, "")
	assert.Empty(t, GetTestDatabaseURL(nil))

	t.Setenv(EnvDocflowTestDBURL, "postgres://localhost/test")
	assert.Equal(t, "postgres://localhost/test", GetTestDatabaseURL(nil))

	t.Setenv(EnvDatabaseURL, "postgres://localhost/main")
	assert.Equal(t, "postgres://localhost/main", GetTestDatabaseURL(nil))
}
