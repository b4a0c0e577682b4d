package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamGraph() *Graph {
	return &Graph{
		Processes: []Process{
			{
				Name: "a", Path: "/bin/a",
				Bindings: []Binding{{Pipe: "p", Slot: 3, Dir: Write}},
			},
			{
				Name: "b", Path: "/bin/b",
				Bindings: []Binding{{Pipe: "p", Slot: 3, Dir: Read}},
			},
		},
		Pipes: []Pipe{{Name: "p"}},
	}
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, streamGraph().Validate())
}

func TestValidateEmptyGraph(t *testing.T) {
	g := &Graph{}
	assert.NoError(t, g.Validate())
}

func TestValidateProcessNames(t *testing.T) {
	g := streamGraph()
	g.Processes[1].Name = "a"
	assertInvalid(t, g, "duplicate process name")

	g = streamGraph()
	g.Processes[0].Name = ""
	assertInvalid(t, g, "empty name")

	g = streamGraph()
	g.Processes[0].Path = ""
	assertInvalid(t, g, "empty path")
}

func TestValidateNamespaces(t *testing.T) {
	g := streamGraph()
	g.Processes[0].Namespaces = []Namespace{"time"}
	assertInvalid(t, g, "unknown namespace")

	g = streamGraph()
	g.Processes[0].Namespaces = []Namespace{NewPID, NewPID}
	assertInvalid(t, g, "duplicate namespace")
}

func TestValidateSlots(t *testing.T) {
	g := streamGraph()
	g.Processes[0].Bindings[0].Slot = 1
	assertInvalid(t, g, "standard streams")

	g = streamGraph()
	g.Processes[0].Bindings[0].Slot = 4
	assertInvalid(t, g, "contiguous")

	g = &Graph{
		Processes: []Process{
			{
				Name: "a", Path: "/bin/a",
				Bindings: []Binding{
					{Pipe: "p", Slot: 3, Dir: Write},
					{Pipe: "q", Slot: 3, Dir: Read},
				},
			},
			{Name: "b", Path: "/bin/b", Bindings: []Binding{
				{Pipe: "p", Slot: 3, Dir: Read},
				{Pipe: "q", Slot: 4, Dir: Write},
			}},
		},
		Pipes: []Pipe{{Name: "p"}, {Name: "q"}},
	}
	assertInvalid(t, g, "duplicate slot")
}

func TestValidatePipeReferences(t *testing.T) {
	g := streamGraph()
	g.Processes[0].Bindings[0].Pipe = "missing"
	assertInvalid(t, g, "undeclared pipe")

	g = streamGraph()
	g.Processes[0].Bindings[0].Dir = "sideways"
	assertInvalid(t, g, "bad direction")

	g = streamGraph()
	g.Pipes = append(g.Pipes, Pipe{Name: "p"})
	assertInvalid(t, g, "duplicate pipe name")

	g = streamGraph()
	g.Pipes[0].Kind = "tube"
	assertInvalid(t, g, "unknown kind")
}

func TestValidateStreamEndpoints(t *testing.T) {
	// missing the reader
	g := streamGraph()
	g.Processes[1].Bindings = nil
	assertInvalid(t, g, "exactly one reader")

	// a stream pipe cannot fan in: three writers and one reader
	g = &Graph{
		Processes: []Process{
			{Name: "w1", Path: "/bin/w", Bindings: []Binding{{Pipe: "p", Slot: 3, Dir: Write}}},
			{Name: "w2", Path: "/bin/w", Bindings: []Binding{{Pipe: "p", Slot: 3, Dir: Write}}},
			{Name: "w3", Path: "/bin/w", Bindings: []Binding{{Pipe: "p", Slot: 3, Dir: Write}}},
			{Name: "r", Path: "/bin/r", Bindings: []Binding{{Pipe: "p", Slot: 3, Dir: Read}}},
		},
		Pipes: []Pipe{{Name: "p"}},
	}
	assertInvalid(t, g, "3 writer(s)")

	// spawn target makes no sense on a plain stream
	g = streamGraph()
	g.Pipes[0].Spawn = &SpawnTarget{Path: "/bin/x"}
	assertInvalid(t, g, "spawn target on a stream pipe")
}

func TestValidateSpawnChannels(t *testing.T) {
	base := func() *Graph {
		return &Graph{
			Processes: []Process{
				{
					Name: "sender", Path: "/bin/sender",
					Bindings: []Binding{{Pipe: "wk", Slot: 3, Dir: Write}},
				},
			},
			Pipes: []Pipe{{Name: "wk", Kind: Spawn, Spawn: &SpawnTarget{Path: "/bin/worker"}}},
		}
	}
	assert.NoError(t, base().Validate())

	g := base()
	g.Pipes[0].Spawn = nil
	assertInvalid(t, g, "without a spawn target")

	g = base()
	g.Pipes[0].Spawn.Path = ""
	assertInvalid(t, g, "empty path")

	g = base()
	g.Pipes[0].Spawn.Namespaces = []Namespace{"cgroup"}
	assertInvalid(t, g, "unknown namespace")

	// a spawn channel is read by the shim, never by a declared process
	g = base()
	g.Processes = append(g.Processes, Process{
		Name: "thief", Path: "/bin/thief",
		Bindings: []Binding{{Pipe: "wk", Slot: 3, Dir: Read}},
	})
	assertInvalid(t, g, "read end belongs to the shim")

	g = base()
	g.Processes = append(g.Processes, Process{
		Name: "second", Path: "/bin/second",
		Bindings: []Binding{{Pipe: "wk", Slot: 3, Dir: Write}},
	})
	assertInvalid(t, g, "exactly one writer")

	// declared but never bound
	g = base()
	g.Processes[0].Bindings = nil
	assertInvalid(t, g, "exactly one writer")
}

func assertInvalid(t *testing.T, g *Graph, substr string) {
	t.Helper()
	err := g.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), substr)
}
