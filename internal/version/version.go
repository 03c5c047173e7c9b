// Package version reports the build version of conch.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/conch"

// buildVersion is set via -ldflags "-X pkt.systems/conch/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Module    string `json:"module"`
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// Current returns the best available version string.
func Current() string {
	return Read().Version
}

// Module returns the module path from build info when available.
func Module() string {
	return Read().Module
}

// String returns "module version (go version)".
func String() string {
	info := Read()
	return fmt.Sprintf("%s %s (%s)", info.Module, info.Version, info.GoVersion)
}

// Read collects version details from the linker flag and build info.
func Read() Info {
	out := Info{Module: defaultModule, Version: "v0.0.0-unknown", GoVersion: runtime.Version()}
	info, ok := debug.ReadBuildInfo()
	if ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		vcs := readVCS(info)
		out.Revision = vcs.revision
		out.Modified = vcs.modified
		switch v := strings.TrimSpace(info.Main.Version); {
		case v != "" && v != "(devel)":
			out.Version = strings.TrimSuffix(v, "+dirty")
		case vcs.pseudo() != "":
			out.Version = vcs.pseudo()
		}
	}
	if v := strings.TrimSpace(buildVersion); v != "" {
		out.Version = strings.TrimSuffix(v, "+dirty")
	}
	return out
}

type vcsInfo struct {
	revision string
	time     time.Time
	modified bool
}

func readVCS(info *debug.BuildInfo) vcsInfo {
	var out vcsInfo
	if info == nil {
		return out
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				out.time = parsed
			}
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

// pseudo renders a Go pseudo-version for the revision.
func (v vcsInfo) pseudo() string {
	if v.revision == "" || v.time.IsZero() {
		return ""
	}
	rev := v.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + v.time.UTC().Format("20060102150405") + "-" + rev
}
