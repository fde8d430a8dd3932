package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Populated at build time via -ldflags "-X report-case-service/version.BuildVersion=...".
var (
	BuildVersion = "dev"
	GitSHA       = ""
)

// ServiceName identifies this binary on /version and in the gateway user agent.
const ServiceName = "report-case-service"

type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns build information, falling back to the VCS stamp embedded by
// the Go toolchain when GitSHA was not set through ldflags.
func Get() Info {
	sha := GitSHA
	if sha == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					sha = s.Value
				}
			}
		}
	}

	return Info{
		Service:   ServiceName,
		Version:   BuildVersion,
		GitSHA:    sha,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// UserAgent is sent with every chat platform API request.
func UserAgent() string {
	return fmt.Sprintf("DiscordBot (%s, %s)", ServiceName, BuildVersion)
}
