package cfk

import (
	"os"
)

// DevelopmentModeEnabled reports whether development mode is enabled. It
// is set automatically based on the CFK_DEVELOPMENT environment variable.
// No code in this module currently reads it, so it changes no behaviour.
var DevelopmentModeEnabled bool

func init() {
	DevelopmentModeEnabled = os.Getenv("CFK_DEVELOPMENT") == "1"
}
