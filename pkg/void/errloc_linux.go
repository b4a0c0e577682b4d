package void

import (
	"fmt"
	"syscall"
)

// ErrorLocation identifies the kernel operation a child failed at
// before exec.
type ErrorLocation int

// ChildError is the unit exchanged on the pre-exec error channel. A
// zero value means setup succeeded so far.
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
}

// Location constants
const (
	LocClone ErrorLocation = iota + 1
	LocCloseWrite
	LocUnshareUserRead
	LocGetPid
	LocDup3
	LocFcntl
	LocSetPGid
	LocMountPrivate
	LocChdir
	LocSyncWrite
	LocSyncRead
	LocStop
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone",
	"close_write",
	"unshare_user_read",
	"getpid",
	"dup3",
	"fcntl",
	"setpgid",
	"mount(private)",
	"chdir",
	"sync_write",
	"sync_read",
	"stop",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocClone && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

func (e ChildError) Error() string {
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}
