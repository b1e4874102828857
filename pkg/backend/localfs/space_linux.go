//go:build linux

package localfs

import (
	"golang.org/x/sys/unix"

	"github.com/cfk-cache/cfk/pkg/backend"
	"github.com/cfk-cache/cfk/pkg/cferrors"
)

// queryStatfs reports capacity for root using the Linux statfs syscall.
func queryStatfs(root string) (backend.SpaceInfo, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(root, &stat); err != nil {
		return backend.SpaceInfo{}, cferrors.IO("unable to query filesystem capacity", err)
	}
	blockSize := uint64(stat.Bsize)
	return backend.SpaceInfo{
		TotalBytes:     stat.Blocks * blockSize,
		AvailableBytes: stat.Bavail * blockSize,
	}, nil
}
