package must

import (
	"io"
	"os"

	"github.com/cfk-cache/cfk/pkg/logging"
)

// Close invokes Close on the given closer and logs any error as a warning
// rather than propagating it. Intended for deferred cleanup where the close
// error carries no recoverable information.
func Close(c io.Closer, logger *logging.Logger) {
	if err := c.Close(); err != nil {
		logger.Warnf("unable to close: %s", err.Error())
	}
}

// OSRemove invokes os.Remove and logs any error as a warning. Used for
// best-effort removal of temporary or orphaned files.
func OSRemove(name string, logger *logging.Logger) {
	if err := os.Remove(name); err != nil {
		logger.Warnf("unable to remove '%s': %s", name, err.Error())
	}
}

// WriteString invokes WriteString on the given writer and logs any error or
// short write as a warning.
func WriteString(ws interface{ WriteString(string) (int, error) }, s string, logger *logging.Logger) {
	n, err := ws.WriteString(s)
	if err != nil {
		logger.Warnf("unable to write string '%s': %s", s, err.Error())
	} else if n < len(s) {
		logger.Warnf("unable to write all of string '%s'; only wrote %d of %d bytes", s, n, len(s))
	}
}

// Unlock invokes Unlock on the given locker and logs any error as a warning.
func Unlock(locker interface{ Unlock() error }, logger *logging.Logger) {
	if err := locker.Unlock(); err != nil {
		logger.Warnf("unable to unlock locker: %s", err.Error())
	}
}

// Release invokes Release on the given value and logs any error as a
// warning.
func Release(r interface{ Release() error }, logger *logging.Logger) {
	if err := r.Release(); err != nil {
		logger.Warnf("unable to release: %s", err.Error())
	}
}

// Flush invokes Flush on the given value and logs any error as a warning.
func Flush(f interface{ Flush() error }, logger *logging.Logger) {
	if err := f.Flush(); err != nil {
		logger.Warnf("unable to flush: %s", err.Error())
	}
}

// Encode invokes Encode on the given encoder and logs any error as a
// warning.
func Encode(e interface{ Encode(v any) error }, value any, logger *logging.Logger) {
	if err := e.Encode(value); err != nil {
		logger.Warnf("unable to encode %v: %s", value, err.Error())
	}
}

// Succeed logs err as a warning, tagged with the task description, if it's
// non-nil. Used where an operation is attempted opportunistically.
func Succeed(err error, task string, logger *logging.Logger) {
	if err != nil {
		logger.Warnf("unable to succeed at %s: %s", task, err.Error())
	}
}
