package utils

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

type CANReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, errors.Wrap(err, "socketcan dial")
	}
	return &SocketCANWriter{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

type SocketCANReader struct {
	conn   net.Conn
	recv   *socketcan.Receiver
	frames chan can.Frame
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func NewSocketCANReader(ctx context.Context, iface string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, errors.Wrap(err, "socketcan dial")
	}
	return newSocketCANReader(conn), nil
}

func newSocketCANReader(conn net.Conn) *SocketCANReader {
	r := &SocketCANReader{
		conn:   conn,
		recv:   socketcan.NewReceiver(conn),
		frames: make(chan can.Frame, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go r.pump()
	return r
}

// pump owns the receiver so that a cancelled ReadFrame never leaves a second
// goroutine blocked on the same socket. It exits on Close even when nobody is
// draining frames.
func (r *SocketCANReader) pump() {
	defer close(r.frames)
	for r.recv.Receive() {
		if r.recv.HasErrorFrame() {
			continue
		}
		select {
		case r.frames <- r.recv.Frame():
		case <-r.done:
			return
		}
	}
	if err := r.recv.Err(); err != nil {
		r.errs <- err
	}
}

// ReadFrame blocks until a data frame arrives, the socket closes or ctx is done.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f, ok := <-r.frames:
		if ok {
			return f, nil
		}
		select {
		case err := <-r.errs:
			return can.Frame{}, errors.Wrap(err, "socketcan receive")
		default:
			return can.Frame{}, errors.New("socketcan receiver closed")
		}
	}
}

func (r *SocketCANReader) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		if r.conn != nil {
			err = r.conn.Close()
		}
	})
	return err
}
