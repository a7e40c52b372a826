package version

import "runtime/debug"

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line description of the running binary. When the
// ldflags were not set it falls back to the module build info, which is
// populated for binaries built with go install.
func Info() string {
	v, c, d := Version, Commit, Date
	if bi, ok := debug.ReadBuildInfo(); ok && v == "dev" {
		if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if c == "none" && len(s.Value) >= 7 {
					c = s.Value[:7]
				}
			case "vcs.time":
				if d == "unknown" {
					d = s.Value
				}
			}
		}
	}
	return "jobmigrate " + v + " (commit " + c + ", built " + d + ")"
}
