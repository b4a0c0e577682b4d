package fabric

import (
	"fmt"
	"os"
)

// NewPayloadPipe creates the fresh private pipe handed to one
// dynamically spawned process: the payload is written on a dedicated
// goroutine and the write end closed behind it, so a payload larger
// than the kernel pipe buffer can never stall the supervision loop.
// The caller owns the returned read end and must close its copy after
// wiring it into the child.
func NewPayloadPipe(payload []byte) (*os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("fabric: payload pipe: %w", err)
	}
	go func() {
		w.Write(payload)
		w.Close()
	}()
	return r, nil
}
