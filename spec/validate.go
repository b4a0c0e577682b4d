package spec

import "fmt"

// ValidationError reports a malformed or inconsistent graph. It is
// always produced before any process is created.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "spec: " + e.Msg
}

func invalidf(format string, a ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, a...)}
}

var validNamespaces = map[Namespace]bool{
	NewPID: true, NewMount: true, NewNet: true,
	NewUTS: true, NewIPC: true, NewUser: true,
}

// Validate checks the closed-world invariants of the graph:
// unique names, resolvable pipe references, exactly one reader and one
// writer per stream pipe, exactly one writer and no reader for spawn
// channels, contiguous fd slots starting at FirstSlot, and known
// namespace names. Spawn ordering needs no cycle check: static pipes
// impose no startup order (all static processes exist before the
// supervision loop runs) and dynamic edges happen strictly after their
// trigger.
func (g *Graph) Validate() error {
	names := make(map[string]bool, len(g.Processes))
	for i := range g.Processes {
		p := &g.Processes[i]
		if p.Name == "" {
			return invalidf("process %d: empty name", i)
		}
		if names[p.Name] {
			return invalidf("duplicate process name %q", p.Name)
		}
		names[p.Name] = true
		if p.Path == "" {
			return invalidf("process %q: empty path", p.Name)
		}
		if err := validateNamespaces(p.Name, p.Namespaces); err != nil {
			return err
		}
		if err := validateSlots(p); err != nil {
			return err
		}
	}

	pipes := make(map[string]*Pipe, len(g.Pipes))
	for i := range g.Pipes {
		p := &g.Pipes[i]
		if p.Name == "" {
			return invalidf("pipe %d: empty name", i)
		}
		if pipes[p.Name] != nil {
			return invalidf("duplicate pipe name %q", p.Name)
		}
		pipes[p.Name] = p

		switch p.kind() {
		case Stream:
			if p.Spawn != nil {
				return invalidf("pipe %q: spawn target on a stream pipe", p.Name)
			}
		case Spawn, Socket:
			if p.Spawn == nil {
				return invalidf("pipe %q: spawn channel without a spawn target", p.Name)
			}
			if p.Spawn.Path == "" {
				return invalidf("pipe %q: spawn target with empty path", p.Name)
			}
			if err := validateNamespaces(p.Name, p.Spawn.Namespaces); err != nil {
				return err
			}
		default:
			return invalidf("pipe %q: unknown kind %q", p.Name, p.Kind)
		}
	}

	// count participants per pipe from the process bindings
	type ends struct{ readers, writers int }
	use := make(map[string]*ends, len(pipes))
	for name := range pipes {
		use[name] = &ends{}
	}
	for i := range g.Processes {
		p := &g.Processes[i]
		for _, b := range p.Bindings {
			e, ok := use[b.Pipe]
			if !ok {
				return invalidf("process %q: binding references undeclared pipe %q", p.Name, b.Pipe)
			}
			switch b.Dir {
			case Read:
				e.readers++
			case Write:
				e.writers++
			default:
				return invalidf("process %q: pipe %q: bad direction %q", p.Name, b.Pipe, b.Dir)
			}
		}
	}

	for name, e := range use {
		p := pipes[name]
		if p.IsSpawn() {
			// the shim owns the read end of every spawn channel
			if e.readers != 0 {
				return invalidf("spawn channel %q: read end belongs to the shim, found %d reader(s)", name, e.readers)
			}
			if e.writers != 1 {
				return invalidf("spawn channel %q: need exactly one writer, found %d", name, e.writers)
			}
			continue
		}
		// a kernel pipe cannot fan out; reject instead of approximating
		if e.readers != 1 || e.writers != 1 {
			return invalidf("pipe %q: need exactly one reader and one writer, found %d reader(s) and %d writer(s)",
				name, e.readers, e.writers)
		}
	}
	return nil
}

func validateNamespaces(owner string, nss []Namespace) error {
	seen := make(map[Namespace]bool, len(nss))
	for _, ns := range nss {
		if !validNamespaces[ns] {
			return invalidf("%q: unknown namespace %q", owner, ns)
		}
		if seen[ns] {
			return invalidf("%q: duplicate namespace %q", owner, ns)
		}
		seen[ns] = true
	}
	return nil
}

// validateSlots requires contiguous slots from FirstSlot so the wired
// fd table has no holes between the standard streams and the declared
// endpoints.
func validateSlots(p *Process) error {
	if len(p.Bindings) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(p.Bindings))
	for _, b := range p.Bindings {
		if b.Slot < FirstSlot {
			return invalidf("process %q: slot %d collides with the standard streams", p.Name, b.Slot)
		}
		if seen[b.Slot] {
			return invalidf("process %q: duplicate slot %d", p.Name, b.Slot)
		}
		seen[b.Slot] = true
	}
	for s := FirstSlot; s < FirstSlot+len(p.Bindings); s++ {
		if !seen[s] {
			return invalidf("process %q: slots are not contiguous from %d", p.Name, FirstSlot)
		}
	}
	return nil
}
