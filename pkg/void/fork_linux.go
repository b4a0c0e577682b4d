package void

import (
	"fmt"
	"log/slog"
	"syscall"
	"unsafe" // required for go:linkname.

	"golang.org/x/sys/unix"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// Start creates the void and returns the child pid once isolation and
// fd wiring are complete. With Pause set the child is left stopped in
// SIGSTOP before exec and Start still returns; without it, Start only
// returns once the child has either execed (nil error) or reported a
// setup failure (ChildError).
func (r *Runner) Start() (int, error) {
	if err := CheckSupported(r.CloneFlags); err != nil {
		return 0, err
	}

	argv0, argv, env, err := prepareExec(r.Args, r.Env)
	if err != nil {
		return 0, err
	}

	workdir, err := syscallStringFromString(r.WorkDir)
	if err != nil {
		return 0, err
	}

	hostname, err := syscallStringFromString(r.HostName)
	if err != nil {
		return 0, err
	}

	domainname, err := syscallStringFromString(r.DomainName)
	if err != nil {
		return 0, err
	}

	// socketpair p is the pre-exec error channel: p[0] parent, p[1]
	// child. Close-on-exec, so a successful exec reads as clean EOF.
	p, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}

	pid, err1 := forkAndExecInChild(r, argv0, argv, env, workdir, hostname, domainname, p)

	// restore all signals
	afterFork()
	syscall.ForkLock.Unlock()

	return syncWithChild(r, p, int(pid), err1)
}

func syncWithChild(r *Runner, p [2]int, pid int, err1 syscall.Errno) (int, error) {
	var (
		child       ChildError
		n           uintptr
		unshareUser = r.CloneFlags&unix.CLONE_NEWUSER == unix.CLONE_NEWUSER
	)

	unix.Close(p[1])

	// clone syscall failed
	if err1 != 0 {
		unix.Close(p[0])
		return 0, ChildError{Err: err1, Location: LocClone}
	}

	// the child waits for its uid / gid maps before doing anything;
	// it has no capabilities in the original namespace to write them
	if unshareUser {
		child = ChildError{}
		if err := writeIDMaps(r, pid); err != nil {
			if errno, ok := err.(syscall.Errno); ok {
				child.Err = errno
			} else {
				child.Err = syscall.EPERM
			}
		}
		syscall.RawSyscall(syscall.SYS_WRITE, uintptr(p[0]), uintptr(unsafe.Pointer(&child)), unsafe.Sizeof(child))
		if child.Err != 0 {
			unix.Close(p[0])
			handleChildFailed(pid)
			return 0, fmt.Errorf("void: write id maps for %d: %w", pid, child.Err)
		}
	}

	// child reports completed setup (zero value) or a ChildError
	n, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]), uintptr(unsafe.Pointer(&child)), unsafe.Sizeof(child))
	if err1 != 0 || n != unsafe.Sizeof(child) || child.Err != 0 {
		unix.Close(p[0])
		handleChildFailed(pid)
		return 0, handleSyncError(n, err1, child)
	}

	// ack: the child proceeds to the optional stop and exec
	child = ChildError{}
	syscall.RawSyscall(syscall.SYS_WRITE, uintptr(p[0]), uintptr(unsafe.Pointer(&child)), unsafe.Sizeof(child))

	if r.Pause {
		// the child sits in SIGSTOP with the channel open until an
		// external SIGCONT lets it exec; drain the channel elsewhere
		// so the caller is not blocked on a debugger attaching. A
		// post-resume setup failure still arrives here and must not
		// be mistaken for the program's own exit status.
		logger := r.Logger
		if logger == nil {
			logger = slog.Default()
		}
		go func() {
			var late ChildError
			rn, _, _ := syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]), uintptr(unsafe.Pointer(&late)), unsafe.Sizeof(late))
			unix.Close(p[0])
			if rn == unsafe.Sizeof(late) && late.Err != 0 {
				logger.Error("void: setup failed after resume", "pid", pid,
					"location", late.Location.String(), "err", late.Err.Error())
			}
		}()
		return pid, nil
	}

	// clean EOF means the close-on-exec channel died with a
	// successful exec; any data is a post-sync setup failure
	n, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(p[0]), uintptr(unsafe.Pointer(&child)), unsafe.Sizeof(child))
	unix.Close(p[0])
	if n != 0 || err1 != 0 {
		handleChildFailed(pid)
		return 0, handleSyncError(n, err1, child)
	}
	return pid, nil
}

// handleSyncError decides what a short or failed error-channel read
// means for the caller
func handleSyncError(n uintptr, errno syscall.Errno, child ChildError) error {
	if errno != 0 {
		return fmt.Errorf("void: error channel read: %w", errno)
	}
	if n == unsafe.Sizeof(child) && child.Err != 0 {
		return child
	}
	return syscall.EPIPE
}

func handleChildFailed(pid int) {
	var wstatus syscall.WaitStatus
	// make sure not blocked
	syscall.Kill(pid, syscall.SIGKILL)
	// child failed; wait for it to exit, to make sure the zombies don't accumulate
	_, err := syscall.Wait4(pid, &wstatus, 0, nil)
	for err == syscall.EINTR {
		_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	}
}
