//go:build linux

package transport

import (
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/daedaluz/fdev/poll"
	ioctl "github.com/daedaluz/goioctl"
	"github.com/sirupsen/logrus"

	"github.com/CiRIP/ez-reset/errkind"
)

var serialLog = logrus.WithField("component", "transport.serial")

// Termios is the subset of struct termios SerialTransport needs: raw-mode
// and speed control. Trimmed from goserial's port_linux.go, which also
// modeled line discipline, RS485 timing and custom UART dividers — none of
// which a printer service channel ever touches.
type Termios struct {
	Iflag uint32
	Oflag uint32
	Cflag uint32
	Lflag uint32
	Line  byte
	Cc    [19]byte
}

const (
	iflagMask = 0000001 | 0000002 | 0000010 | 0000100 | 0000200 | 0000400 | 0002000 // IGNBRK|BRKINT|PARMRK|INLCR|IGNCR|ICRNL|IXON
	oflagOPOST = 0000001
	lflagMask  = 0000010 | 0000100 | 0000002 | 0000001 | 0100000 // ECHO|ECHONL|ICANON|ISIG|IEXTEN
	cflagCSIZE = 0000060
	cflagPARENB = 0000400
	cflagCS8    = 0000060
	cflagCBAUD  = 0010017
)

// MakeRaw disables canonical/echo/signal processing, matching
// goserial's (*Termios).MakeRaw.
func (t *Termios) MakeRaw() {
	t.Iflag &^= iflagMask
	t.Oflag &^= oflagOPOST
	t.Lflag &^= lflagMask
	t.Cflag &^= cflagCSIZE | cflagPARENB
	t.Cflag |= cflagCS8
}

// SetSpeed sets the line speed, matching goserial's (*Termios).SetSpeed.
func (t *Termios) SetSpeed(speed uint32) {
	t.Cflag &^= cflagCBAUD
	t.Cflag |= speed
}

const (
	tcgets = uintptr(0x5401)
	tcsets = uintptr(0x5402)
	tcsbrk = uintptr(0x5409)
	tcflsh = uintptr(0x540B)
)

// TCFLSH queue selector for Flush.
const tciflush = 0

// SerialTransport is a raw termios-configured serial port, used for older
// Epson service interfaces that speak over RS-232 rather than USB. A
// direct adaptation of goserial's Port.
type SerialTransport struct {
	opts   *Options
	closed atomic.Bool
	fd     int
}

// OpenSerial opens path in raw mode at the given baud constant (one of the
// B* values, e.g. 0000015 for 9600) and returns a ready-to-use transport.
func OpenSerial(path string, baud uint32, opts *Options) (*SerialTransport, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, errkind.TransportErr("open "+path, err)
	}
	p := &SerialTransport{opts: opts, fd: fd}
	if err := p.setRaw(baud); err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}
	return p, nil
}

func (p *SerialTransport) getAttr() (*Termios, error) {
	attrs := &Termios{}
	if err := ioctl.Ioctl(uintptr(p.fd), tcgets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return nil, errkind.TransportErr("tcgets", err)
	}
	return attrs, nil
}

func (p *SerialTransport) setAttr(attrs *Termios) error {
	if err := ioctl.Ioctl(uintptr(p.fd), tcsets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return errkind.TransportErr("tcsets", err)
	}
	return nil
}

func (p *SerialTransport) setRaw(baud uint32) error {
	attrs, err := p.getAttr()
	if err != nil {
		return err
	}
	attrs.MakeRaw()
	attrs.SetSpeed(baud)
	return p.setAttr(attrs)
}

func (p *SerialTransport) Closed() bool { return p.closed.Load() }

func (p *SerialTransport) Write(data []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	serialLog.WithField("n", len(data)).Debug("write")
	for len(data) > 0 {
		n, err := syscall.Write(p.fd, data)
		if err != nil {
			return errkind.TransportErr("serial write", err)
		}
		data = data[n:]
	}
	return nil
}

// readTimeout mirrors goserial's Port.readTimeout: wait for input via
// fdev/poll, then read whatever arrived.
func (p *SerialTransport) readTimeout(buf []byte, timeout time.Duration) (int, error) {
	if err := poll.WaitInput(p.fd, timeout); err != nil {
		return 0, errkind.TransportErr("serial poll", err)
	}
	return syscall.Read(p.fd, buf)
}

func (p *SerialTransport) Read(buf []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	for len(buf) > 0 {
		var n int
		var err error
		if p.opts.ReadTimeout > 0 {
			n, err = p.readTimeout(buf, p.opts.ReadTimeout)
		} else {
			n, err = syscall.Read(p.fd, buf)
		}
		if err != nil {
			return errkind.TransportErr("serial read", err)
		}
		buf = buf[n:]
	}
	return nil
}

// Drain discards unread input, matching goserial's Port.Flush(TCIFLUSH).
func (p *SerialTransport) Drain() error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := ioctl.Ioctl(uintptr(p.fd), tcflsh, uintptr(tciflush)); err != nil {
		return errkind.TransportErr("serial flush", err)
	}
	return nil
}

// Identify is not meaningful over a raw serial line; the caller is
// expected to know the model out of band (or the END4 backend, which
// requires Identify, is used only over USB).
func (p *SerialTransport) Identify() (string, error) {
	return "", errkind.TransportErr("serial transport does not support identify", nil)
}

func (p *SerialTransport) Close() error {
	if p.closed.Swap(true) {
		return ErrClosed
	}
	fd := p.fd
	p.fd = -1
	return syscall.Close(fd)
}
