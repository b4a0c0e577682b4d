package void

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// UnshareFlags is every namespace flag a void may request.
const UnshareFlags = unix.CLONE_NEWIPC | unix.CLONE_NEWNET | unix.CLONE_NEWNS |
	unix.CLONE_NEWPID | unix.CLONE_NEWUSER | unix.CLONE_NEWUTS

var nsFlags = map[string]uintptr{
	"pid":   unix.CLONE_NEWPID,
	"mount": unix.CLONE_NEWNS,
	"net":   unix.CLONE_NEWNET,
	"uts":   unix.CLONE_NEWUTS,
	"ipc":   unix.CLONE_NEWIPC,
	"user":  unix.CLONE_NEWUSER,
}

// proc/self/ns entry per clone flag, used to probe kernel support
var nsProcNames = map[uintptr]string{
	unix.CLONE_NEWPID:  "pid",
	unix.CLONE_NEWNS:   "mnt",
	unix.CLONE_NEWNET:  "net",
	unix.CLONE_NEWUTS:  "uts",
	unix.CLONE_NEWIPC:  "ipc",
	unix.CLONE_NEWUSER: "user",
}

// UnsupportedError reports an isolation flag the running kernel cannot
// provide. It is always fatal: a silent namespace downgrade would be a
// security defect, not a fallback.
type UnsupportedError struct {
	Namespace string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("void: kernel does not support %s namespaces", e.Namespace)
}

// Flags converts namespace names to clone flags.
func Flags(names []string) (uintptr, error) {
	var flags uintptr
	for _, n := range names {
		f, ok := nsFlags[n]
		if !ok {
			return 0, fmt.Errorf("void: unknown namespace %q", n)
		}
		flags |= f
	}
	return flags, nil
}

// CheckSupported verifies every requested namespace exists on the
// running kernel by probing /proc/self/ns.
func CheckSupported(flags uintptr) error {
	return checkSupportedIn(flags, "/proc/self/ns")
}

func checkSupportedIn(flags uintptr, dir string) error {
	for flag, name := range nsProcNames {
		if flags&flag == 0 {
			continue
		}
		if _, err := os.Stat(dir + "/" + name); err != nil {
			return &UnsupportedError{Namespace: name}
		}
	}
	return nil
}
