// Package fabric materializes the declared pipes of a process graph
// and computes, per process, the exact descriptor table it inherits.
// It also frames spawn messages and multiplexes readiness across every
// spawn channel for the orchestrator's supervision loop.
package fabric

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/voidshim/go-voidshim/pkg/unixsocket"
	"github.com/voidshim/go-voidshim/spec"
)

// Channel is one materialized pipe.
type Channel struct {
	def *spec.Pipe

	// stream and spawn kinds
	r, w *os.File

	// socket kind: ins is the shim's receive side, outf the dup
	// wired into the writing process
	ins  *unixsocket.Socket
	outf *os.File
}

// Fabric owns every materialized channel until the endpoints are wired
// into child processes and released.
type Fabric struct {
	logger   *slog.Logger
	channels map[string]*Channel
}

// Build materializes one kernel pipe (or socket pair) per declared
// pipe. The graph must already be validated.
func Build(g *spec.Graph, logger *slog.Logger) (*Fabric, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fabric{
		logger:   logger,
		channels: make(map[string]*Channel, len(g.Pipes)),
	}
	for i := range g.Pipes {
		def := &g.Pipes[i]
		ch := &Channel{def: def}
		switch def.Kind {
		case spec.Socket:
			ins, outs, err := unixsocket.NewSocketPair()
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("fabric: channel %q: %w", def.Name, err)
			}
			outf, err := outs.File()
			outs.Close()
			if err != nil {
				ins.Close()
				f.Close()
				return nil, fmt.Errorf("fabric: channel %q: dup socket: %w", def.Name, err)
			}
			ch.ins, ch.outf = ins, outf
		default:
			r, w, err := os.Pipe()
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("fabric: channel %q: %w", def.Name, err)
			}
			ch.r, ch.w = r, w
		}
		logger.Debug("created channel", "name", def.Name, "kind", def.Kind)
		f.channels[def.Name] = ch
	}
	return f, nil
}

// Files computes the full descriptor table for a process: the three
// standard streams followed by its declared endpoints at their slots.
// Validation guarantees the slots are contiguous from spec.FirstSlot.
func (f *Fabric) Files(p *spec.Process, std [3]uintptr) ([]uintptr, error) {
	files := make([]uintptr, spec.FirstSlot+len(p.Bindings))
	copy(files, std[:])
	for _, b := range p.Bindings {
		ch, ok := f.channels[b.Pipe]
		if !ok {
			return nil, fmt.Errorf("fabric: process %q: unknown pipe %q", p.Name, b.Pipe)
		}
		fd, err := ch.endpoint(b.Dir)
		if err != nil {
			return nil, fmt.Errorf("fabric: process %q: %w", p.Name, err)
		}
		files[b.Slot] = fd
	}
	return files, nil
}

func (c *Channel) endpoint(dir spec.Direction) (uintptr, error) {
	switch {
	case c.outf != nil && dir == spec.Write:
		return c.outf.Fd(), nil
	case dir == spec.Read && c.r != nil:
		return c.r.Fd(), nil
	case dir == spec.Write && c.w != nil:
		return c.w.Fd(), nil
	}
	return 0, fmt.Errorf("channel %q: no %s endpoint", c.def.Name, dir)
}

// Release closes the supervisor's copies of every endpoint the process
// inherited. Called once per process after creation so that EOF
// propagates when the real owner exits; holding a duplicate write end
// here would keep every channel open forever.
func (f *Fabric) Release(p *spec.Process) {
	for _, b := range p.Bindings {
		ch, ok := f.channels[b.Pipe]
		if !ok {
			continue
		}
		if ch.outf != nil && b.Dir == spec.Write {
			ch.outf.Close()
			ch.outf = nil
			continue
		}
		if b.Dir == spec.Read && ch.r != nil {
			ch.r.Close()
			ch.r = nil
		}
		if b.Dir == spec.Write && ch.w != nil {
			ch.w.Close()
			ch.w = nil
		}
	}
}

// Close releases everything still owned by the fabric.
func (f *Fabric) Close() {
	for _, ch := range f.channels {
		for _, file := range []*os.File{ch.r, ch.w, ch.outf} {
			if file != nil {
				file.Close()
			}
		}
		if ch.ins != nil {
			ch.ins.Close()
		}
		ch.r, ch.w, ch.outf, ch.ins = nil, nil, nil, nil
	}
}
