package void

import (
	"log/slog"
	"syscall"
)

// Runner holds the full configuration for one void: the program, its
// wired descriptor table, the namespaces to enter and the debug pause
// flag. The zero value of every optional field is inert.
type Runner struct {
	// argv and env for the execve syscall in the child
	Args []string
	Env  []string

	// if ExecFile is set, execveat is called on it instead of Args[0]
	// (use a sealed memfd to pin the program image)
	ExecFile uintptr

	// descriptor table for the new process: Files[i] becomes fd i.
	// Everything else in the child is closed at exec via close-on-exec.
	Files []uintptr

	// CLONE_NEW* flags; namespaces are entered atomically with process
	// creation by the clone syscall itself
	CloneFlags uintptr

	// HostName / DomainName applied after unshare UTS
	HostName, DomainName string

	// work dir for the child, empty keeps the parent's
	WorkDir string

	// UIDMappings / GIDMappings for an unshared user namespace;
	// nil maps the current euid/egid to root inside the namespace
	UIDMappings []syscall.SysProcIDMap
	GIDMappings []syscall.SysProcIDMap

	// GIDMappingsEnableSetgroups allows the setgroups syscall inside
	// the user namespace; denied when GIDMappings is nil
	GIDMappingsEnableSetgroups bool

	// Pause raises SIGSTOP against the child after isolation and fd
	// wiring, before exec. The child stays stopped until it receives
	// SIGCONT from outside; the parent never resumes it.
	Pause bool

	// Logger reports setup failures that arrive on the error channel
	// after Start has already returned (only possible with Pause, where
	// exec happens after the external resume); nil means slog.Default.
	Logger *slog.Logger
}
