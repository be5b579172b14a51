package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/menta2k/watch-reader/pkg/types"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// ErrNoFrame is returned while no complete frame has arrived yet
var ErrNoFrame = errors.New("no frame received yet")

// jpegAssembler rebuilds JPEG frames from datagrams; a datagram starting with
// SOI begins a frame and one ending with EOI completes it.
type jpegAssembler struct {
	buf bytes.Buffer
}

func (a *jpegAssembler) Write(packet []byte) ([]byte, bool) {
	if bytes.HasPrefix(packet, jpegHeader) {
		a.buf.Reset()
	}
	a.buf.Write(packet)

	if !bytes.HasSuffix(packet, jpegFooter) {
		return nil, false
	}
	if !bytes.HasPrefix(a.buf.Bytes(), jpegHeader) {
		// tail of a frame whose head was lost
		a.buf.Reset()
		return nil, false
	}

	frame := make([]byte, a.buf.Len())
	copy(frame, a.buf.Bytes())
	a.buf.Reset()
	return frame, true
}

// UDPCamera receives JPEG frames streamed over UDP by a network camera module
type UDPCamera struct {
	addr     string
	rotation int

	conn *net.UDPConn
	done chan struct{}

	mu      sync.Mutex
	latest  []byte
	arrived chan struct{} // closed and replaced on every new frame
}

// NewUDPCamera creates a camera listening on addr, e.g. ":5005"
func NewUDPCamera(addr string, rotation int) *UDPCamera {
	return &UDPCamera{addr: addr, rotation: rotation}
}

func (c *UDPCamera) Name() string {
	return "udp:" + c.addr
}

func (c *UDPCamera) Open(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP %s: %w", c.addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	c.latest = nil
	c.arrived = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop(conn, c.done)
	return nil
}

// LocalAddr returns the bound address, useful when listening on port 0
func (c *UDPCamera) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

func (c *UDPCamera) readLoop(conn *net.UDPConn, done chan struct{}) {
	defer close(done)

	buffer := make([]byte, 65535)
	assemblers := make(map[string]*jpegAssembler)

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		key := remoteAddr.IP.String()
		asm, ok := assemblers[key]
		if !ok {
			asm = &jpegAssembler{}
			assemblers[key] = asm
		}

		if frame, complete := asm.Write(buffer[:n]); complete {
			c.publish(frame)
		}
	}
}

func (c *UDPCamera) publish(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = frame
	close(c.arrived)
	c.arrived = make(chan struct{})
}

func (c *UDPCamera) Frame(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return nil, ErrNoFrame
	}
	return c.latest, nil
}

// Still waits for the next complete frame so the picture is taken after the trigger
func (c *UDPCamera) Still(ctx context.Context) (types.RawCapture, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return types.RawCapture{}, fmt.Errorf("udp camera is closed")
	}
	arrived := c.arrived
	done := c.done
	c.mu.Unlock()

	select {
	case <-arrived:
	case <-done:
		return types.RawCapture{}, fmt.Errorf("udp camera is closed")
	case <-ctx.Done():
		return types.RawCapture{}, fmt.Errorf("waiting for frame: %w", ctx.Err())
	}

	c.mu.Lock()
	frame := c.latest
	c.mu.Unlock()

	return types.RawCapture{
		Data:            frame,
		MIMEType:        "image/jpeg",
		RotationDegrees: c.rotation,
		CapturedAt:      time.Now(),
	}, nil
}

func (c *UDPCamera) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	<-done
	return err
}
