//go:build !linux

package localfs

import "github.com/cfk-cache/cfk/pkg/backend"

// queryStatfs has no portable implementation outside Linux; Space falls
// back to reporting zero values there.
func queryStatfs(root string) (backend.SpaceInfo, error) {
	return backend.SpaceInfo{}, nil
}
