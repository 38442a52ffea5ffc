package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd(t *testing.T) {
	oldVersion := Version
	oldBuildTime := BuildTime
	oldGitCommit := GitCommit
	defer func() {
		Version = oldVersion
		BuildTime = oldBuildTime
		GitCommit = oldGitCommit
	}()

	runVersion := func() string {
		var buf bytes.Buffer
		versionCmd.SetOut(&buf)
		versionCmd.Run(versionCmd, nil)
		return buf.String()
	}

	// Full version info
	Version = "1.2.3"
	BuildTime = "2023-01-01"
	GitCommit = "abc123"
	out := runVersion()
	assert.Contains(t, out, "textmill 1.2.3")
	assert.Contains(t, out, "Built: 2023-01-01")
	assert.Contains(t, out, "Commit: abc123")

	// Unknown build metadata is omitted
	BuildTime = "unknown"
	GitCommit = "unknown"
	out = runVersion()
	assert.Contains(t, out, "textmill 1.2.3")
	assert.NotContains(t, out, "Built:")
	assert.NotContains(t, out, "Commit:")
}

func TestVersionCmdRegistered(t *testing.T) {
	assert.Contains(t, rootCmd.Commands(), versionCmd)
}
