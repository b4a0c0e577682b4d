// Package memfd seals program images into anonymous memory files so
// the binary a void execs cannot change after it has been chosen.
package memfd

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

const createFlag = unix.MFD_CLOEXEC | unix.MFD_ALLOW_SEALING
const roSeal = unix.F_SEAL_SEAL | unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE

// New creates a new memfd, caller need to close the file
func New(name string) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, createFlag)
	if err != nil {
		return nil, fmt.Errorf("memfd: memfd_create: %w", err)
	}
	file := os.NewFile(uintptr(fd), name)
	if file == nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memfd: NewFile failed for %v", name)
	}
	return file, nil
}

// SealFrom copies reader into a sealed read-only memfd.
func SealFrom(name string, reader io.Reader) (*os.File, error) {
	file, err := New(name)
	if err != nil {
		return nil, err
	}
	if _, err = file.ReadFrom(reader); err != nil {
		file.Close()
		return nil, fmt.Errorf("memfd: copy: %w", err)
	}
	if _, err = unix.FcntlInt(file.Fd(), unix.F_ADD_SEALS, roSeal); err != nil {
		file.Close()
		return nil, fmt.Errorf("memfd: seal: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("memfd: seek: %w", err)
	}
	return file, nil
}

// SealPath seals the file at path into a read-only memfd.
func SealPath(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memfd: open %s: %w", path, err)
	}
	defer f.Close()
	return SealFrom(path, f)
}
