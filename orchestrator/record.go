package orchestrator

import (
	"github.com/google/uuid"

	"golang.org/x/sys/unix"
)

// State is the lifecycle of one supervised void. Transitions are
// monotonic: Created -> (optionally Paused) -> Running -> Exited; no
// state is ever revisited.
type State int

// Lifecycle states.
const (
	Created State = iota
	Paused
	Running
	Exited
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Paused:
		return "paused"
	case Running:
		return "running"
	case Exited:
		return "exited"
	}
	return "unknown"
}

// Record is the orchestrator's bookkeeping for one void. Voids are
// independent kernel processes with no structural parent/child memory
// relationship, so the arena is flat and TriggeredBy is only a logical
// back-reference.
type Record struct {
	// ID is a stable identifier for the record, independent of pid
	// reuse.
	ID string

	// Name is the process name from the graph, or channel#seq for
	// dynamically spawned voids.
	Name string

	// Pid of the void's process.
	Pid int

	State State

	// TriggeredBy names the spawn channel whose message produced this
	// void; empty for statically declared processes.
	TriggeredBy string

	// Seq is the message index within TriggeredBy, counting from 0.
	Seq int

	// ExitCode is the mapped exit status once State is Exited: the
	// exit status for a normal exit, 128+signal for a signaled one.
	ExitCode int

	// Signaled records whether the void was killed by a signal.
	Signaled bool
}

func newRecord(name string, pid int, paused bool, trigger string, seq int) *Record {
	st := Running
	if paused {
		st = Paused
	}
	return &Record{
		ID:          uuid.NewString(),
		Name:        name,
		Pid:         pid,
		State:       st,
		TriggeredBy: trigger,
		Seq:         seq,
	}
}

func (r *Record) exited(ws unix.WaitStatus) {
	r.State = Exited
	r.Signaled = ws.Signaled()
	r.ExitCode = mapExitStatus(ws)
}

// mapExitStatus folds a wait status into a single deterministic code:
// the exit status for a normal exit, 128+signal for a signaled exit.
func mapExitStatus(ws unix.WaitStatus) int {
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}
