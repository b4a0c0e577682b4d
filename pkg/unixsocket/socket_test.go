package unixsocket

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPairSendRecv(t *testing.T) {
	ins, outs, err := NewSocketPair()
	require.NoError(t, err)
	defer ins.Close()
	defer outs.Close()

	require.NoError(t, outs.SendMsg([]byte("hello"), nil))

	buf := make([]byte, 64)
	n, msg, err := ins.RecvMsg(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Empty(t, msg.Fds)
}

func TestSocketPairPassesRights(t *testing.T) {
	ins, outs, err := NewSocketPair()
	require.NoError(t, err)
	defer ins.Close()
	defer outs.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	require.NoError(t, outs.SendMsg([]byte("fd"), &Msg{Fds: []int{int(r.Fd())}}))

	buf := make([]byte, 64)
	n, msg, err := ins.RecvMsg(buf)
	require.NoError(t, err)
	assert.Equal(t, "fd", string(buf[:n]))
	require.Len(t, msg.Fds, 1)

	passed := os.NewFile(uintptr(msg.Fds[0]), "passed")
	defer passed.Close()

	_, err = w.WriteString("y")
	require.NoError(t, err)
	b := make([]byte, 1)
	_, err = io.ReadFull(passed, b)
	require.NoError(t, err)
	assert.Equal(t, "y", string(b))
}
