package main

import (
	"github.com/pkg/errors"

	"github.com/cfk-cache/cfk/pkg/vpath"
)

// parseVirtualPath parses a "cfk://<backend>/<path>" argument into a
// vpath.VirtualPath, returning a descriptive error on malformed input.
func parseVirtualPath(argument string) (vpath.VirtualPath, error) {
	path, ok := vpath.ParseURI(argument)
	if !ok {
		return vpath.VirtualPath{}, errors.Errorf("invalid path %q: expected cfk://<backend>/<path>", argument)
	}
	return path, nil
}
