package version

import (
	"fmt"
	"runtime/debug"
)

// Заполняются через -ldflags "-X github.com/vladislavdragonenkov/orderflow/internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки. Если коммит не задан через
// ldflags, берётся vcs.revision из build info.
func Info() (v, c, d string) {
	v, c, d = version, commit, date
	if c != "unknown" {
		return v, c, d
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v, c, d
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			c = setting.Value
		case "vcs.time":
			if d == "unknown" {
				d = setting.Value
			}
		}
	}
	return v, c, d
}

// GetVersion возвращает только версию сборки.
func GetVersion() string {
	return version
}

func String() string {
	v, c, d := Info()
	return fmt.Sprintf("orderflow version=%s commit=%s date=%s", v, c, d)
}
