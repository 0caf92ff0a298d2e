// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for fleep-mcp.
//
// The variables are injected at build time:
//
//	go build -ldflags "-X github.com/fleepmcp/fleep-mcp/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"os"
	"runtime"
)

var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"
)

// Short returns the bare version number. This is what the MCP server
// reports as serverInfo.version.
func Short() string {
	return Version
}

// Info returns the version with commit and build time.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Print writes "<binary> <info>" plus the Go toolchain and platform to
// stdout, for --version.
func Print(binary string) {
	fmt.Fprintf(os.Stdout, "%s %s\n  Go: %s\n  Platform: %s/%s\n",
		binary, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
