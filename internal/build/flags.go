// SPDX-License-Identifier: MIT
//
// Package build exposes metadata embedded at link time, for example:
//
//	go build -ldflags "-X tuner/internal/build.buildVersion=0.2.0 \
//	    -X tuner/internal/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X tuner/internal/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds carry "dev" values.
package build

import (
	"errors"
	"fmt"
)

const devValue = "dev"

// Info holds build-time information.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = Info{
		Name:        "tuner",
		Description: "Real-time guitar tuner",
		Time:        devValue,
		Commit:      devValue,
		Version:     devValue,
	}
)

// Initialize copies the ldflags values into the build info. A build that
// sets none of them keeps the development defaults; a build that sets only
// some of them is rejected so that release binaries are never half-stamped.
func Initialize() error {
	set := map[string]string{
		"BuildTime":    buildTime,
		"BuildCommit":  buildCommit,
		"BuildVersion": buildVersion,
	}
	var missing []error
	stamped := false
	for _, name := range []string{"BuildTime", "BuildCommit", "BuildVersion"} {
		if set[name] == "" {
			missing = append(missing, fmt.Errorf("%s is required", name))
		} else {
			stamped = true
		}
	}
	if !stamped {
		return nil
	}
	if len(missing) > 0 {
		return errors.Join(missing...)
	}

	if buildName != "" {
		buildInfo.Name = buildName
	}
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion
	return nil
}

// Get returns the current build information.
func Get() Info {
	return buildInfo
}

// VersionString formats the version for --version output.
func (i Info) VersionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Time)
}
