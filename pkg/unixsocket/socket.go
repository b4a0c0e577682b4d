// Package unixsocket wraps a SOCK_SEQPACKET unix socket pair used to
// move file descriptors between processes with SCM_RIGHTS.
package unixsocket

import (
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
)

// oob size default to page size
const oobSize = 4 << 10

// use pool to avoid allocate
var oobPool = sync.Pool{
	New: func() any {
		return make([]byte, oobSize)
	},
}

// Socket wraps one end of the pair.
type Socket struct {
	*net.UnixConn
}

// Msg carries the descriptors attached to a message.
type Msg struct {
	Fds []int // unix rights
}

// NewSocket creates a Socket from an existing unix socket fd created
// by socketpair and marks it close-on-exec to avoid fd leaks. It needs
// a SOCK_SEQPACKET socket for reliable message boundaries.
func NewSocket(fd int) (*Socket, error) {
	syscall.CloseOnExec(fd)

	file := os.NewFile(uintptr(fd), "unix-socket")
	if file == nil {
		return nil, fmt.Errorf("unixsocket: %d is not a valid fd", fd)
	}
	defer file.Close()

	conn, err := net.FileConn(file)
	if err != nil {
		return nil, err
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("unixsocket: fd %d is not a unix socket", fd)
	}
	return &Socket{unixConn}, nil
}

// NewSocketPair creates a connected SOCK_SEQPACKET pair.
func NewSocketPair() (*Socket, *Socket, error) {
	fd, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_SEQPACKET|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("unixsocket: socketpair: %w", err)
	}
	ins, err := NewSocket(fd[0])
	if err != nil {
		syscall.Close(fd[0])
		syscall.Close(fd[1])
		return nil, nil, err
	}
	outs, err := NewSocket(fd[1])
	if err != nil {
		ins.Close()
		syscall.Close(fd[1])
		return nil, nil, err
	}
	return ins, outs, nil
}

// SendMsg sends b together with the descriptors in m.
func (s *Socket) SendMsg(b []byte, m *Msg) error {
	var oob []byte
	if m != nil && len(m.Fds) > 0 {
		oob = syscall.UnixRights(m.Fds...)
	}
	_, _, err := s.WriteMsgUnix(b, oob, nil)
	return err
}

// RecvMsg receives one message into b and parses attached descriptors.
func (s *Socket) RecvMsg(b []byte) (int, *Msg, error) {
	oob := oobPool.Get().([]byte)
	defer oobPool.Put(oob)

	n, oobn, _, _, err := s.ReadMsgUnix(b, oob)
	if err != nil {
		return 0, nil, err
	}
	msgs, err := syscall.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return 0, nil, err
	}
	msg := new(Msg)
	for _, m := range msgs {
		if m.Header.Level == syscall.SOL_SOCKET && m.Header.Type == syscall.SCM_RIGHTS {
			fds, err := syscall.ParseUnixRights(&m)
			if err != nil {
				return 0, nil, err
			}
			msg.Fds = append(msg.Fds, fds...)
		}
	}
	return n, msg, nil
}
