package cfk

import (
	"os"
)

// DebugEnabled controls whether debug-level logging is enabled. It is set
// automatically based on the CFK_DEBUG environment variable.
var DebugEnabled bool

func init() {
	DebugEnabled = os.Getenv("CFK_DEBUG") == "1"
}
