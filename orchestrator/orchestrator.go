// Package orchestrator turns a validated process graph plus live spawn
// requests into a running, supervised set of voids and aggregates
// their exit statuses into a single exit code.
package orchestrator

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/voidshim/go-voidshim/debug"
	"github.com/voidshim/go-voidshim/pkg/fabric"
	"github.com/voidshim/go-voidshim/pkg/memfd"
	"github.com/voidshim/go-voidshim/pkg/void"
	"github.com/voidshim/go-voidshim/spec"
)

// PathEnv is the default environment for voids whose definition sets
// none.
const PathEnv = "PATH=/usr/local/bin:/usr/bin:/bin"

// Config configures one run.
type Config struct {
	Graph *spec.Graph

	// Debug pauses every new void before exec; see package debug.
	Debug debug.Controller

	// SealExec copies each target binary into a sealed memfd and
	// execs that, pinning the program image at creation time.
	SealExec bool

	// Standard streams inherited by every void; nil means the shim's
	// own.
	Stdin, Stdout, Stderr *os.File

	Logger *slog.Logger
}

// Orchestrator supervises one run of a graph. All mutation happens on
// the goroutine calling Run; the event sources only send.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	fab    *fabric.Fabric
	byPid  map[int]*Record
	arena  []*Record
	seq    map[string]int
	exits  chan exitEvent
	agg    int
	live   int

	checkNS func(uintptr) error
}

type exitEvent struct {
	pid int
	ws  unix.WaitStatus
	err error
}

// New prepares an orchestrator for one run of the graph.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &Orchestrator{
		cfg:     cfg,
		logger:  cfg.Logger,
		byPid:   make(map[int]*Record),
		seq:     make(map[string]int),
		exits:   make(chan exitEvent),
		checkNS: void.CheckSupported,
	}
}

// Records returns the bookkeeping arena, in creation order. Valid
// after Run returns.
func (o *Orchestrator) Records() []*Record {
	return o.arena
}

// Run validates the graph, builds the static pipes, creates every
// static void and supervises the result until no processes remain.
// The returned code is zero iff every supervised void exited zero;
// otherwise it is the maximum mapped exit code across all voids, a
// deterministic rule regardless of exit interleaving.
func (o *Orchestrator) Run() (int, error) {
	g := o.cfg.Graph
	if err := g.Validate(); err != nil {
		return 0, err
	}

	// every static void's namespace set must be kernel-supported
	// before anything is created; an unsupported flag fails the run
	// without touching any sibling
	for i := range g.Processes {
		p := &g.Processes[i]
		flags, err := void.Flags(nsNames(p.Namespaces))
		if err != nil {
			return 0, fmt.Errorf("orchestrator: process %q: %w", p.Name, err)
		}
		if err := o.checkNS(flags); err != nil {
			return 0, fmt.Errorf("orchestrator: process %q: %w", p.Name, err)
		}
	}

	fab, err := fabric.Build(g, o.logger)
	if err != nil {
		return 0, err
	}
	o.fab = fab
	defer fab.Close()

	// all static processes exist before the loop accepts any dynamic
	// spawn event; creation failure here aborts the whole run
	for i := range g.Processes {
		p := &g.Processes[i]
		if err := o.startStatic(p); err != nil {
			o.abort()
			return 0, fmt.Errorf("orchestrator: create void for %q: %w", p.Name, err)
		}
	}

	events := fab.Watch()
	o.supervise(events)
	return o.agg, nil
}

// supervise multiplexes child termination and spawn-frame readiness in
// a single select so neither event class can starve the other. It
// returns when no live processes remain and every spawn channel has
// reached EOF.
func (o *Orchestrator) supervise(events <-chan fabric.Event) {
	watching := true
	for o.live > 0 || watching {
		select {
		case ev := <-o.exits:
			o.handleExit(ev)

		case sp, ok := <-events:
			if !ok {
				watching = false
				events = nil
				continue
			}
			if sp.Err != nil {
				// drops only the affected channel; siblings continue
				o.logger.Error("spawn channel failed", "channel", sp.Channel, "err", sp.Err)
				continue
			}
			if err := o.startDynamic(sp); err != nil {
				// dynamic spawns are best-effort relative to the rest
				// of the graph
				o.logger.Error("dynamic spawn failed", "channel", sp.Channel, "err", err)
			}
		}
	}
}

func (o *Orchestrator) handleExit(ev exitEvent) {
	o.live--
	rec := o.byPid[ev.pid]
	if rec == nil {
		return
	}
	if ev.err != nil {
		o.logger.Error("wait failed", "name", rec.Name, "pid", ev.pid, "err", ev.err)
	}
	rec.exited(ev.ws)
	if rec.ExitCode > o.agg {
		o.agg = rec.ExitCode
	}
	o.logger.Info("void exited", "name", rec.Name, "pid", rec.Pid,
		"code", rec.ExitCode, "signaled", rec.Signaled)
}

func (o *Orchestrator) startStatic(p *spec.Process) error {
	files, err := o.fab.Files(p, o.std())
	if err != nil {
		return err
	}
	rec, err := o.startVoid(p.Name, p.Path, p.Args, p.Env, p.Namespaces, files,
		o.cfg.Debug.ShouldPause(p), "", 0)
	if err != nil {
		return err
	}
	// drop the supervisor's duplicate endpoints now that the child
	// owns them
	o.fab.Release(p)
	o.logger.Info("spawned void", "name", p.Name, "pid", rec.Pid, "paused", rec.State == Paused)
	return nil
}

// startDynamic services one spawn message: one fresh private pipe
// carrying the payload, one new void running the channel's fixed
// target. The private pipe is visible to nobody but the spawner (which
// wrote the payload) and the new void.
func (o *Orchestrator) startDynamic(sp fabric.Event) error {
	defer func() {
		for _, f := range sp.Files {
			f.Close()
		}
	}()

	seq := o.seq[sp.Channel]
	o.seq[sp.Channel] = seq + 1
	name := fmt.Sprintf("%s#%d", sp.Channel, seq)

	payload, err := fabric.NewPayloadPipe(sp.Payload)
	if err != nil {
		return err
	}
	defer payload.Close()

	std := o.std()
	files := make([]uintptr, 0, spec.FirstSlot+1+len(sp.Files))
	files = append(files, std[0], std[1], std[2], payload.Fd())
	for _, f := range sp.Files {
		files = append(files, f.Fd())
	}

	t := sp.Target
	rec, err := o.startVoid(name, t.Path, t.Args, t.Env, t.Namespaces, files,
		o.cfg.Debug.ShouldPauseSpawn(t), sp.Channel, seq)
	if err != nil {
		return err
	}
	o.logger.Info("spawned void", "name", name, "pid", rec.Pid,
		"trigger", sp.Channel, "paused", rec.State == Paused)
	return nil
}

func (o *Orchestrator) startVoid(name, path string, args, env []string,
	nss []spec.Namespace, files []uintptr, pause bool, trigger string, seq int) (*Record, error) {

	flags, err := void.Flags(nsNames(nss))
	if err != nil {
		return nil, err
	}
	if len(env) == 0 {
		env = []string{PathEnv}
	}

	r := &void.Runner{
		Args:       append([]string{path}, args...),
		Env:        env,
		Files:      files,
		CloneFlags: flags,
		Pause:      pause,
		Logger:     o.logger,
	}

	var exec *os.File
	if o.cfg.SealExec {
		if exec, err = memfd.SealPath(path); err != nil {
			return nil, err
		}
		defer exec.Close()
		r.ExecFile = exec.Fd()
	}

	pid, err := r.Start()
	if err != nil {
		return nil, err
	}

	rec := newRecord(name, pid, pause, trigger, seq)
	o.byPid[pid] = rec
	o.arena = append(o.arena, rec)
	o.live++

	// one reaper per void; every exit funnels into the same event
	// stream the supervision loop selects on
	go func() {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, 0, nil)
		for err == unix.EINTR {
			_, err = unix.Wait4(pid, &ws, 0, nil)
		}
		o.exits <- exitEvent{pid: pid, ws: ws, err: err}
	}()
	return rec, nil
}

// abort kills every live void after a fatal static-creation failure
// and reaps them before returning.
func (o *Orchestrator) abort() {
	for _, rec := range o.arena {
		if rec.State == Exited {
			continue
		}
		// the child called setpgid, so this takes its subtree too
		unix.Kill(-rec.Pid, unix.SIGKILL)
	}
	for o.live > 0 {
		o.handleExit(<-o.exits)
	}
}

func (o *Orchestrator) std() [3]uintptr {
	return [3]uintptr{o.cfg.Stdin.Fd(), o.cfg.Stdout.Fd(), o.cfg.Stderr.Fd()}
}

func nsNames(nss []spec.Namespace) []string {
	names := make([]string, len(nss))
	for i, ns := range nss {
		names[i] = string(ns)
	}
	return names
}
