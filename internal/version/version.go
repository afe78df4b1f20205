package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build metadata, overridden with -ldflags "-X" at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build description served by /api/version.
type Info struct {
	Version   string `json:"version" example:"v0.3.1"`
	GitCommit string `json:"git_commit" example:"4f2c9e1"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z"`
	Modified  bool   `json:"modified,omitempty" doc:"Built from a dirty tree"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform" example:"linux/arm64"`
}

// Get returns the build description. Development builds without ldflags
// fall back to the VCS stamp the toolchain embeds.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" && len(s.Value) >= 7 {
					info.GitCommit = s.Value[:7]
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	return info
}

// String is the one-line form printed by "vop2ctl --version".
func String() string {
	i := Get()
	s := fmt.Sprintf("%s (%s, %s)", i.Version, i.GitCommit, i.BuildDate)
	if i.Modified {
		s += " dirty"
	}
	return s
}
