// Package spec defines the process graph consumed by the orchestrator:
// a closed-world description of every statically declared process, the
// pipes connecting them, and the spawn configuration attached to
// channels that create processes at runtime.
//
// A graph is immutable once loaded. Validate must pass before the
// graph is handed to any other component; all other packages assume a
// validated graph.
package spec

// Direction tags one end of a pipe binding.
type Direction string

// Binding directions.
const (
	Read  Direction = "read"
	Write Direction = "write"
)

// Kind selects the transport a pipe is materialized with.
type Kind string

// Pipe kinds. A stream pipe is an opaque byte channel between two
// declared processes. A spawn pipe carries framed spawn messages read
// by the shim itself; every frame creates one new process. A socket
// pipe is a spawn channel whose messages carry file descriptors
// (SCM_RIGHTS) instead of framed bytes.
const (
	Stream Kind = "stream"
	Spawn  Kind = "spawn"
	Socket Kind = "socket"
)

// Namespace names one kernel namespace a process is confined in.
type Namespace string

// Supported isolation namespaces.
const (
	NewPID   Namespace = "pid"
	NewMount Namespace = "mount"
	NewNet   Namespace = "net"
	NewUTS   Namespace = "uts"
	NewIPC   Namespace = "ipc"
	NewUser  Namespace = "user"
)

// FirstSlot is the lowest file descriptor slot a pipe binding may
// occupy; 0-2 are always the inherited standard streams. Dynamically
// spawned processes receive their private payload pipe read end at
// FirstSlot. This convention is stable across versions so target
// programs can rely on it without negotiation.
const FirstSlot = 3

// Binding wires one end of a named pipe into a process fd slot.
type Binding struct {
	Pipe string    `json:"pipe" yaml:"pipe"`
	Slot int       `json:"slot" yaml:"slot"`
	Dir  Direction `json:"dir" yaml:"dir"`
}

// Process declares one statically launched program.
type Process struct {
	Name       string      `json:"name" yaml:"name"`
	Path       string      `json:"path" yaml:"path"`
	Args       []string    `json:"args,omitempty" yaml:"args,omitempty"`
	Env        []string    `json:"env,omitempty" yaml:"env,omitempty"`
	Namespaces []Namespace `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	Bindings   []Binding   `json:"bindings,omitempty" yaml:"bindings,omitempty"`
}

// SpawnTarget fixes the program run for every message received on a
// spawn channel. The message payload never chooses the executable;
// the graph does.
type SpawnTarget struct {
	Path       string      `json:"path" yaml:"path"`
	Args       []string    `json:"args,omitempty" yaml:"args,omitempty"`
	Env        []string    `json:"env,omitempty" yaml:"env,omitempty"`
	Namespaces []Namespace `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
}

// Pipe declares one named channel. Participants are derived from
// process bindings; a pipe carries no endpoint list of its own.
type Pipe struct {
	Name  string       `json:"name" yaml:"name"`
	Kind  Kind         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Spawn *SpawnTarget `json:"spawn,omitempty" yaml:"spawn,omitempty"`
}

// Graph is the full validated process graph.
type Graph struct {
	Processes []Process `json:"processes" yaml:"processes"`
	Pipes     []Pipe    `json:"pipes,omitempty" yaml:"pipes,omitempty"`
}

// PipeByName returns the declared pipe with the given name, or nil.
func (g *Graph) PipeByName(name string) *Pipe {
	for i := range g.Pipes {
		if g.Pipes[i].Name == name {
			return &g.Pipes[i]
		}
	}
	return nil
}

// IsSpawn reports whether the pipe is a spawn channel of either kind.
func (p *Pipe) IsSpawn() bool {
	return p.Kind == Spawn || p.Kind == Socket
}

func (p *Pipe) kind() Kind {
	if p.Kind == "" {
		return Stream
	}
	return p.Kind
}
