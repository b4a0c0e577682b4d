package void

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Reference to src/syscall/exec_linux.go
//
//go:norace
func forkAndExecInChild(r *Runner, argv0 *byte, argv, env []*byte, workdir, hostname, domainname *byte, p [2]int) (r1 uintptr, err1 syscall.Errno) {
	// similar to exec_linux, avoid side effect by shuffling around
	fd, nextfd := prepareFds(r.Files)

	// Acquire the fork lock so that no other threads
	// create new fds that are not yet close-on-exec
	// before we fork.
	syscall.ForkLock.Lock()

	// About to call fork.
	// No more allocation or calls of non-assembly functions.
	beforeFork()

	// namespaces are entered by the clone syscall itself: no window
	// exists where the child runs outside the requested isolation
	r1, _, err1 = syscall.RawSyscall6(syscall.SYS_CLONE, uintptr(syscall.SIGCHLD)|(r.CloneFlags&UnshareFlags), 0, 0, 0, 0, 0)
	if err1 != 0 || r1 != 0 {
		// in parent process, immediate return
		return
	}

	// In child process
	afterForkInChild()
	// Notice: cannot call any GO functions beyond this point

	pipe := p[1]
	var (
		pid         uintptr
		sync        ChildError
		unshareUser = r.CloneFlags&unix.CLONE_NEWUSER == unix.CLONE_NEWUSER
	)

	// Close parent end of the error channel
	if _, _, err1 = syscall.RawSyscall(syscall.SYS_CLOSE, uintptr(p[0]), 0, 0); err1 != 0 {
		childExitError(pipe, LocCloseWrite, err1)
	}

	// Wait for the parent to write our uid / gid maps; we have no
	// capabilities in the original namespace to do it ourselves
	if unshareUser {
		r1, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(pipe), uintptr(unsafe.Pointer(&sync)), unsafe.Sizeof(sync))
		if err1 != 0 {
			childExitError(pipe, LocUnshareUserRead, err1)
		}
		if r1 != unsafe.Sizeof(sync) {
			childExitError(pipe, LocUnshareUserRead, syscall.EINVAL)
		}
		if sync.Err != 0 {
			childExitError(pipe, LocUnshareUserRead, sync.Err)
		}
	}

	// Get pid of child
	pid, _, err1 = syscall.RawSyscall(syscall.SYS_GETPID, 0, 0, 0)
	if err1 != 0 {
		childExitError(pipe, LocGetPid, err1)
	}

	// Rearrange the fd table to hold exactly the wired descriptors at
	// their declared slots.
	// Pass 1: fd[i] < i => nextfd
	if pipe < nextfd {
		_, _, err1 = syscall.RawSyscall(syscall.SYS_DUP3, uintptr(pipe), uintptr(nextfd), syscall.O_CLOEXEC)
		if err1 != 0 {
			childExitError(pipe, LocDup3, err1)
		}
		pipe = nextfd
		nextfd++
	}
	if r.ExecFile > 0 && int(r.ExecFile) < nextfd {
		// Avoid fd rewrite
		for nextfd == pipe {
			nextfd++
		}
		_, _, err1 = syscall.RawSyscall(syscall.SYS_DUP3, r.ExecFile, uintptr(nextfd), syscall.O_CLOEXEC)
		if err1 != 0 {
			childExitError(pipe, LocDup3, err1)
		}
		r.ExecFile = uintptr(nextfd)
		nextfd++
	}
	for i := 0; i < len(fd); i++ {
		if fd[i] >= 0 && fd[i] < int(i) {
			// Avoid fd rewrite
			for nextfd == pipe || (r.ExecFile > 0 && nextfd == int(r.ExecFile)) {
				nextfd++
			}
			_, _, err1 = syscall.RawSyscall(syscall.SYS_DUP3, uintptr(fd[i]), uintptr(nextfd), syscall.O_CLOEXEC)
			if err1 != 0 {
				childExitError(pipe, LocDup3, err1)
			}
			// Set up close on exec
			fd[i] = nextfd
			nextfd++
		}
	}
	// Pass 2: fd[i] => i
	for i := 0; i < len(fd); i++ {
		if fd[i] == -1 {
			syscall.RawSyscall(syscall.SYS_CLOSE, uintptr(i), 0, 0)
			continue
		}
		if fd[i] == int(i) {
			// dup2(i, i) will not clear close on exec flag, need to reset the flag
			_, _, err1 = syscall.RawSyscall(syscall.SYS_FCNTL, uintptr(fd[i]), syscall.F_SETFD, 0)
			if err1 != 0 {
				childExitError(pipe, LocFcntl, err1)
			}
			continue
		}
		_, _, err1 = syscall.RawSyscall(syscall.SYS_DUP3, uintptr(fd[i]), uintptr(i), 0)
		if err1 != 0 {
			childExitError(pipe, LocDup3, err1)
		}
	}

	// Set the pgid, so that kill can apply to this void's subtree only
	_, _, err1 = syscall.RawSyscall(syscall.SYS_SETPGID, 0, 0, 0)
	if err1 != 0 {
		childExitError(pipe, LocSetPGid, err1)
	}

	// If mount point is unshared, mark root as private to avoid propagate
	// outside to the original mount namespace
	if r.CloneFlags&syscall.CLONE_NEWNS == syscall.CLONE_NEWNS {
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_MOUNT, uintptr(unsafe.Pointer(&none[0])),
			uintptr(unsafe.Pointer(&slash[0])), 0, syscall.MS_REC|syscall.MS_PRIVATE, 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocMountPrivate, err1)
		}
	}

	// SetHostName
	if hostname != nil {
		syscall.RawSyscall(syscall.SYS_SETHOSTNAME,
			uintptr(unsafe.Pointer(hostname)), uintptr(len(r.HostName)), 0)
	}

	// SetDomainName
	if domainname != nil {
		syscall.RawSyscall(syscall.SYS_SETDOMAINNAME,
			uintptr(unsafe.Pointer(domainname)), uintptr(len(r.DomainName)), 0)
	}

	// chdir for child
	if workdir != nil {
		_, _, err1 = syscall.RawSyscall(syscall.SYS_CHDIR, uintptr(unsafe.Pointer(workdir)), 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocChdir, err1)
		}
	}

	// Setup complete: report success and wait for the parent's ack
	// before anything observable happens
	sync = ChildError{}
	r1, _, err1 = syscall.RawSyscall(syscall.SYS_WRITE, uintptr(pipe), uintptr(unsafe.Pointer(&sync)), unsafe.Sizeof(sync))
	if r1 == 0 || err1 != 0 {
		childExitError(pipe, LocSyncWrite, err1)
	}
	r1, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(pipe), uintptr(unsafe.Pointer(&sync)), unsafe.Sizeof(sync))
	if r1 == 0 || err1 != 0 {
		childExitError(pipe, LocSyncRead, err1)
	}

	// Stop to wait for a debugger; only an external SIGCONT resumes us
	if r.Pause {
		_, _, err1 = syscall.RawSyscall(syscall.SYS_KILL, pid, uintptr(syscall.SIGSTOP), 0)
		if err1 != 0 {
			childExitError(pipe, LocStop, err1)
		}
	}

	// time to exec; if an exec fd is specified, call fexecve
	if r.ExecFile > 0 {
		_, _, err1 = syscall.RawSyscall6(unix.SYS_EXECVEAT, r.ExecFile,
			uintptr(unsafe.Pointer(&empty[0])), uintptr(unsafe.Pointer(&argv[0])),
			uintptr(unsafe.Pointer(&env[0])), unix.AT_EMPTY_PATH, 0)
	} else {
		_, _, err1 = syscall.RawSyscall(unix.SYS_EXECVE, uintptr(unsafe.Pointer(argv0)),
			uintptr(unsafe.Pointer(&argv[0])), uintptr(unsafe.Pointer(&env[0])))
	}
	childExitError(pipe, LocExecve, err1)
	return
}

//go:nosplit
func childExitError(pipe int, loc ErrorLocation, err syscall.Errno) {
	childError := ChildError{
		Err:      err,
		Location: loc,
	}

	// send error code on pipe
	syscall.RawSyscall(unix.SYS_WRITE, uintptr(pipe), uintptr(unsafe.Pointer(&childError)), unsafe.Sizeof(childError))
	for {
		syscall.RawSyscall(syscall.SYS_EXIT, uintptr(err), 0, 0)
	}
}
