package fabric

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/voidshim/go-voidshim/spec"
)

// Event is one spawn message delivered by Watch. Exactly one of
// Payload and Files is meaningful depending on the channel kind; Err
// is set when a channel failed mid-read and will deliver nothing more.
type Event struct {
	Channel string
	Target  *spec.SpawnTarget
	Payload []byte
	Files   []*os.File
	Err     error
}

// Watch starts one reader per spawn channel and merges complete
// messages into a single stream, preserving per-channel order. This is
// the blocking multi-wait the supervision loop selects on; the
// returned channel closes once every spawn channel has reached EOF.
func (f *Fabric) Watch() <-chan Event {
	events := make(chan Event)
	var wg sync.WaitGroup

	for name, ch := range f.channels {
		if !ch.def.IsSpawn() {
			continue
		}
		wg.Add(1)
		if ch.def.Kind == spec.Socket {
			go f.watchSocket(name, ch, events, &wg)
		} else {
			go f.watchFrames(name, ch, events, &wg)
		}
	}

	go func() {
		wg.Wait()
		close(events)
	}()
	return events
}

func (f *Fabric) watchFrames(name string, ch *Channel, events chan<- Event, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		payload, err := ReadFrame(ch.r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				events <- Event{Channel: name, Target: ch.def.Spawn, Err: err}
			}
			return
		}
		events <- Event{Channel: name, Target: ch.def.Spawn, Payload: payload}
	}
}

func (f *Fabric) watchSocket(name string, ch *Channel, events chan<- Event, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, MaxFrameSize)
	for {
		n, msg, err := ch.ins.RecvMsg(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				events <- Event{Channel: name, Target: ch.def.Spawn, Err: err}
			}
			return
		}
		// a zero-byte datagram with no rights is the peer closing
		if n == 0 && len(msg.Fds) == 0 {
			return
		}
		ev := Event{
			Channel: name,
			Target:  ch.def.Spawn,
			Payload: append([]byte(nil), buf[:n]...),
		}
		for _, fd := range msg.Fds {
			ev.Files = append(ev.Files, os.NewFile(uintptr(fd), name))
		}
		events <- ev
	}
}
