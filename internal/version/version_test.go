package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuild(t *testing.T, version, commit, built, mainVersion string, settings map[string]string) {
	t.Helper()
	oldVersion, oldCommit, oldTime, oldRead := Version, GitCommit, BuildTime, readSettings
	t.Cleanup(func() {
		Version, GitCommit, BuildTime, readSettings = oldVersion, oldCommit, oldTime, oldRead
	})

	Version, GitCommit, BuildTime = version, commit, built
	readSettings = func() (string, map[string]string) { return mainVersion, settings }
}

func TestReleaseBuild(t *testing.T) {
	withBuild(t, "v1.2.0", "0123456789abcdef", "2026-03-01T10:00:00Z", "", nil)

	assert.Equal(t, "v1.2.0", GetVersion())
	assert.Equal(t, "v1.2.0 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), GetBuildTime())

	detailed := GetDetailedVersion()
	assert.Contains(t, detailed, "Version: v1.2.0")
	assert.Contains(t, detailed, "Commit: 0123456789abcdef")
	assert.Contains(t, detailed, "Built: 2026-03-01T10:00:00Z")
}

func TestDevBuildFromVCS(t *testing.T) {
	withBuild(t, "dev", "unknown", "unknown", "(devel)", map[string]string{
		"vcs.revision": "fedcba9876543210",
		"vcs.time":     "2026-02-02T08:30:00Z",
		"vcs.modified": "true",
	})

	assert.Equal(t, "dev-fedcba9", GetVersion())
	assert.Equal(t, "fedcba9876543210", GetGitCommit())
	assert.Equal(t, "dev-fedcba9", GetShortVersion())
	assert.False(t, IsRelease())
	assert.Equal(t, time.Date(2026, 2, 2, 8, 30, 0, 0, time.UTC), GetBuildTime())

	info := GetBuildInfo()
	assert.True(t, info.Modified)
	assert.Contains(t, GetDetailedVersion(), "Commit: fedcba9876543210 (modified)")
}

func TestInstalledModuleVersion(t *testing.T) {
	withBuild(t, "dev", "unknown", "unknown", "v0.4.1", nil)

	assert.Equal(t, "v0.4.1", GetVersion())
	assert.Equal(t, "v0.4.1", GetShortVersion())
	assert.True(t, GetBuildTime().IsZero())
}

func TestNoBuildInfo(t *testing.T) {
	withBuild(t, "dev", "unknown", "unknown", "", nil)

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "unknown", GetGitCommit())
	assert.Equal(t, "dev", GetShortVersion())
	assert.NotContains(t, GetDetailedVersion(), "Commit:")
}

func TestParseISOTime(t *testing.T) {
	assert.False(t, parseISOTime("2026-01-02 03:04:05").IsZero())
	assert.False(t, parseISOTime("2026-01-02T03:04:05").IsZero())
	assert.True(t, parseISOTime("yesterday").IsZero())
	assert.True(t, parseISOTime("unknown").IsZero())
}
