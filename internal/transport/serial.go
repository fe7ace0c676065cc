package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	serial "github.com/daedaluz/goserial"
)

// Serial implements Transport over a termios line, configured through the
// real daedaluz/goserial module (raw mode, configurable baud/databits/
// parity/stopbits, no flow control) — the same library the example pack's
// own serial backend uses, rather than a hand-rolled ioctl layer.
type Serial struct {
	port *serial.Port

	mu        sync.Mutex
	interrupt chan struct{}
	closed    bool
	pending   []byte
}

// LineConfig is the set of termios knobs a serial device URI configures,
// per spec section 4.C.
type LineConfig struct {
	Baud uint32
	// DataBits is 5, 6, 7, or 8.
	DataBits uint8
	// Parity is 'n' (none), 'o' (odd), or 'e' (even).
	Parity byte
	// StopBits is 1 or 2.
	StopBits uint8
}

// baudConstant maps an integer baud rate to the goserial CFlag constant
// Termios.SetSpeed expects: SetSpeed ORs the value directly into c_cflag's
// CBAUD-masked speed field, so passing the raw decimal baud (e.g. 115200)
// there would set a nonsense speed for every requested rate.
func baudConstant(baud uint32) (serial.CFlag, error) {
	switch baud {
	case 9600:
		return serial.B9600, nil
	case 19200:
		return serial.B19200, nil
	case 38400:
		return serial.B38400, nil
	case 57600:
		return serial.B57600, nil
	case 115200:
		return serial.B115200, nil
	default:
		return 0, fmt.Errorf("transport: unsupported baud %d", baud)
	}
}

// dataBitsFlag maps a data bit count to its CSIZE constant.
func dataBitsFlag(bits uint8) (serial.CFlag, error) {
	switch bits {
	case 5:
		return serial.CS5, nil
	case 6:
		return serial.CS6, nil
	case 7:
		return serial.CS7, nil
	case 8:
		return serial.CS8, nil
	default:
		return 0, fmt.Errorf("transport: unsupported databits %d", bits)
	}
}

// OpenSerial opens name (e.g. "/dev/ttyUSB0"), puts the line into raw mode,
// and configures it per cfg: baud rate, data bits, parity, and stop bits.
func OpenSerial(name string, cfg LineConfig) (*Serial, error) {
	baud, err := baudConstant(cfg.Baud)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	csize, err := dataBitsFlag(cfg.DataBits)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}

	opts := serial.NewOptions().SetReadTimeout(10 * time.Millisecond)
	port, err := serial.Open(name, opts)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return nil, &Error{Op: "raw-mode", Err: err}
	}
	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return nil, &Error{Op: "get-attr", Err: err}
	}

	attrs.SetSpeed(baud)

	attrs.Cflag &= ^(serial.CSIZE | serial.PARENB | serial.PARODD | serial.CSTOPB)
	attrs.Cflag |= csize
	switch cfg.Parity {
	case 'o':
		attrs.Cflag |= serial.PARENB | serial.PARODD
	case 'e':
		attrs.Cflag |= serial.PARENB
	}
	if cfg.StopBits == 2 {
		attrs.Cflag |= serial.CSTOPB
	}

	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, &Error{Op: "set-attr", Err: err}
	}
	return &Serial{port: port, interrupt: make(chan struct{}, 1)}, nil
}

// Peek on a serial line has no cheap kernel-side byte count analogous to
// FIONREAD that goserial exposes portably, so it is approximated with a
// zero-timeout read probe: any byte returned is kept in a lookahead buffer
// that the next Read drains first, and Peek reports how many bytes that
// buffer holds.
func (s *Serial) Peek() (int, error) {
	probe := make([]byte, 1)
	s.port.SetReadTimeout(0)
	n, err := s.port.Read(probe)
	if err != nil {
		if n == 0 {
			return 0, nil
		}
		return 0, &Error{Op: "peek", Err: err}
	}
	if n > 0 {
		s.pending = append(s.pending, probe[:n]...)
	}
	return len(s.pending), nil
}

func (s *Serial) Read(ctx context.Context, buf []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(buf, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	timeout := 50 * time.Millisecond
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			timeout = d
		}
	}
	n, err := s.port.ReadTimeout(buf, timeout)
	if err != nil {
		return n, &Error{Op: "read", Err: err}
	}
	return n, nil
}

func (s *Serial) Write(buf []byte) error {
	_, err := s.port.Write(buf)
	if err != nil {
		return &Error{Op: "write", Err: err}
	}
	return nil
}

func (s *Serial) Poll(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		n, err := s.Peek()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return &Error{Op: "poll", Err: ctx.Err()}
		case <-s.interrupt:
			return &Error{Op: "poll", Err: ErrClosed}
		case <-ticker.C:
		}
	}
}

func (s *Serial) Interrupt() {
	select {
	case s.interrupt <- struct{}{}:
	default:
	}
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.port.Close()
}
