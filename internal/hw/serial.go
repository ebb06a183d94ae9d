package hw

import (
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"

	"github.com/chase3718/lou-piano/internal/sim"
)

// Link writes encoded frames to the controller and numbers them.
type Link struct {
	w    io.WriteCloser
	seq  byte
	last sim.Frame
	log  *slog.Logger
}

// NewLink wraps an already open connection.
func NewLink(w io.WriteCloser, log *slog.Logger) *Link {
	if log == nil {
		log = slog.Default()
	}
	return &Link{w: w, log: log}
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int, log *slog.Logger) (*Link, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s at %d baud: %w", name, baud, err)
	}
	l := NewLink(p, log)
	l.log.Info("serial: port opened", "device", name, "baud", baud)
	return l, nil
}

// Send encodes and writes one frame. It satisfies sim.Sink.
func (l *Link) Send(f sim.Frame) error {
	data := EncodeFrame(f, l.seq)
	n, err := l.w.Write(data)
	if err != nil {
		return fmt.Errorf("serial: write frame %d: %w", l.seq, err)
	}
	l.log.Debug("serial: frame sent", "bytes", n, "seq", l.seq, "position", f.Position, "solenoids", f.Extended())
	l.seq++
	l.last = f
	return nil
}

// Release retracts every solenoid where the rail currently stands.
func (l *Link) Release() error {
	l.log.Warn("serial: releasing all solenoids", "position", l.last.Position)
	return l.Send(ReleaseFrame(l.last.Position))
}

// Close closes the underlying port.
func (l *Link) Close() error {
	l.log.Info("serial: closing port")
	return l.w.Close()
}
