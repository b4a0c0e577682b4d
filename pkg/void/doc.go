// Package void creates isolated child processes ("voids"): namespace
// entry and process creation happen atomically in one clone(2) call,
// the child rewrites its file descriptor table to exactly the wired
// descriptors before anything else runs, optionally stops itself for a
// debugger, and finally execs the target program.
//
// Setup failures inside the child are reported to the parent over a
// dedicated close-on-exec socketpair before the child exits, so a
// failed namespace or fd operation is never mistaken for the target
// program exiting with that status. The package never retries; retry
// policy belongs to the caller.
//
// unshare pid / user namespaces requires kernel >= 3.8
// pipe2, dup3 requires kernel >= 2.6.27
package void
