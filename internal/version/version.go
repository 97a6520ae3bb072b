// Package version хранит сведения о сборке, заданные через -ldflags.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

const unknown = "unknown"

// Build описывает собранный бинарник.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает сведения о сборке. Если -ldflags не задали коммит
// или дату, они берутся из VCS-меток go build.
func Current() Build {
	return resolve(debug.ReadBuildInfo)
}

func resolve(readInfo func() (*debug.BuildInfo, bool)) Build {
	b := Build{Version: version, Commit: commit, Date: date}
	if b.Commit == "" || b.Date == "" {
		if info, ok := readInfo(); ok {
			for _, s := range info.Settings {
				switch {
				case s.Key == "vcs.revision" && b.Commit == "":
					b.Commit = s.Value
				case s.Key == "vcs.time" && b.Date == "":
					b.Date = s.Value
				}
			}
		}
	}
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.Commit == "" {
		b.Commit = unknown
	}
	if b.Date == "" {
		b.Date = unknown
	}
	return b
}

func (b Build) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}
