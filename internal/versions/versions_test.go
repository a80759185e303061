package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfoWithValues(t *testing.T) {
	t.Parallel()

	info := getVersionInfoWithValues("1.4.0", "0123abcd", "2024-11-15T10:00:00Z")
	assert.Equal(t, "1.4.0", info.Version)
	assert.Equal(t, "0123abcd", info.Commit)
	assert.Equal(t, "2024-11-15 10:00:00 UTC", info.BuildDate)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestGetVersionInfo_DevBuild(t *testing.T) {
	t.Parallel()

	// Without ldflags the version is manufactured from the commit hash.
	info := getVersionInfoWithValues("dev", "0123456789abcdef", "2024-11-15T10:00:00Z")
	assert.Equal(t, "build-01234567", info.Version)
}

func TestGetVersionInfo_UnknownBuildDatePassesThrough(t *testing.T) {
	t.Parallel()

	info := getVersionInfoWithValues("1.4.0", "0123abcd", unknownStr)
	assert.Equal(t, unknownStr, info.BuildDate)
}
