// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"
)

// VersionInfo is the --json payload of "version".
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// CurrentVersion returns build information.
func CurrentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Version handles "version".
func (r *Runner) Version(args Args) error {
	info := CurrentVersion()
	if args.JSON {
		return r.printJSON("version", info)
	}
	fmt.Fprintf(r.Stdout, "hoverlens %s\n", info.Version)
	fmt.Fprintf(r.Stdout, "  commit: %s\n  built:  %s\n  go:     %s (%s)\n",
		info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
	return nil
}
