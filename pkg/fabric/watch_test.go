package fabric

import (
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshim/go-voidshim/spec"
)

// sendRights writes one datagram with an attached descriptor through
// the write end of a socket channel, the way a child process would.
func sendRights(t *testing.T, f *os.File, b []byte, fd int) {
	t.Helper()
	conn, err := net.FileConn(f)
	require.NoError(t, err)
	defer conn.Close()
	_, _, err = conn.(*net.UnixConn).WriteMsgUnix(b, syscall.UnixRights(fd), nil)
	require.NoError(t, err)
}

func spawnGraph() *spec.Graph {
	return &spec.Graph{
		Processes: []spec.Process{
			{
				Name: "sender", Path: "/bin/sender",
				Bindings: []spec.Binding{{Pipe: "wk", Slot: 3, Dir: spec.Write}},
			},
		},
		Pipes: []spec.Pipe{
			{Name: "wk", Kind: spec.Spawn, Spawn: &spec.SpawnTarget{Path: "/bin/worker"}},
		},
	}
}

func collect(t *testing.T, events <-chan Event, n int) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event stream closed after %d of %d events", len(got), n)
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(got), n)
		}
	}
	return got
}

func TestWatchFramesInOrder(t *testing.T) {
	g := spawnGraph()
	require.NoError(t, g.Validate())

	f, err := Build(g, nil)
	require.NoError(t, err)
	defer f.Close()

	ch := f.channels["wk"]
	w := ch.w
	ch.w = nil // simulate handing the write end to a child

	events := f.Watch()
	require.NoError(t, WriteFrame(w, []byte("one")))
	require.NoError(t, WriteFrame(w, []byte("two")))
	require.NoError(t, WriteFrame(w, []byte("three")))
	w.Close()

	got := collect(t, events, 3)
	assert.Equal(t, "one", string(got[0].Payload))
	assert.Equal(t, "two", string(got[1].Payload))
	assert.Equal(t, "three", string(got[2].Payload))
	for _, ev := range got {
		assert.Equal(t, "wk", ev.Channel)
		assert.Equal(t, g.Pipes[0].Spawn, ev.Target)
		assert.NoError(t, ev.Err)
	}

	_, ok := <-events
	assert.False(t, ok)
}

func TestWatchReportsCorruptStream(t *testing.T) {
	g := spawnGraph()
	f, err := Build(g, nil)
	require.NoError(t, err)
	defer f.Close()

	ch := f.channels["wk"]
	w := ch.w
	ch.w = nil

	events := f.Watch()
	// a frame header promising more than the channel allows
	_, err = w.Write([]byte{0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	w.Close()

	got := collect(t, events, 1)
	assert.ErrorIs(t, got[0].Err, ErrFrameTooLarge)

	_, ok := <-events
	assert.False(t, ok)
}

func TestWatchSocketDeliversRights(t *testing.T) {
	g := spawnGraph()
	g.Pipes[0].Kind = spec.Socket
	require.NoError(t, g.Validate())

	f, err := Build(g, nil)
	require.NoError(t, err)
	defer f.Close()

	ch := f.channels["wk"]
	outf := ch.outf
	ch.outf = nil

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	events := f.Watch()
	sendRights(t, outf, []byte("hello"), int(r.Fd()))
	outf.Close()

	got := collect(t, events, 1)
	ev := got[0]
	require.NoError(t, ev.Err)
	assert.Equal(t, "hello", string(ev.Payload))
	require.Len(t, ev.Files, 1)

	// the passed descriptor refers to the same pipe
	_, err = w.WriteString("x")
	require.NoError(t, err)
	buf := make([]byte, 1)
	_, err = io.ReadFull(ev.Files[0], buf)
	require.NoError(t, err)
	assert.Equal(t, "x", string(buf))
	ev.Files[0].Close()

	_, ok := <-events
	assert.False(t, ok)
}

func TestPayloadPipeDelivers(t *testing.T) {
	payload := []byte("spawn message body")
	r, err := NewPayloadPipe(payload)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestPayloadPipeEmpty(t *testing.T) {
	r, err := NewPayloadPipe(nil)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}
