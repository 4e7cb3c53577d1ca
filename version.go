package cadence

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var version string

// Version is the release of this module.
var Version = strings.TrimSpace(version)
