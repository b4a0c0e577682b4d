// Package debug decides whether freshly created voids pause before
// exec so a debugger can attach from the ambient namespace. The
// debugger has to attach from outside: its own prerequisites do not
// exist inside the target's namespaces.
package debug

import (
	"golang.org/x/sys/unix"

	"github.com/voidshim/go-voidshim/spec"
)

// Controller is run-wide configuration threaded explicitly through
// void creation; there is no ambient debug state.
type Controller struct {
	// Enabled pauses every new void, static or dynamic, in SIGSTOP
	// after isolation and fd wiring and before exec. Nothing resumes
	// them automatically: an unattended debug run stays stopped until
	// an external SIGCONT arrives.
	Enabled bool
}

// ShouldPause reports whether the given process must stop before exec.
func (c Controller) ShouldPause(p *spec.Process) bool {
	return c.Enabled
}

// ShouldPauseSpawn reports whether a dynamically spawned target must
// stop before exec.
func (c Controller) ShouldPauseSpawn(t *spec.SpawnTarget) bool {
	return c.Enabled
}

// Resume delivers the explicit external continue signal to a paused
// void.
func Resume(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}
