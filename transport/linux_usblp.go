//go:build linux

package transport

import (
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
	"github.com/sirupsen/logrus"

	"github.com/CiRIP/ez-reset/errkind"
)

var usblpLog = logrus.WithField("component", "transport.usblp")

// Linux usblp driver ioctls (include/uapi/linux/usb/usblp.h). These are the
// Linux analogue of the Win32 IOCTL_USBPRINT_GET_1284_ID /
// IOCTL_USBPRINT_SOFT_RESET pair the out-of-scope Win32 transport uses;
// grounded on ioctl_linux.go's ioctl-table style.
const (
	usblpIOCNR_GET_DEVICE_ID = 1
	usblpIOCNR_SOFT_RESET    = 7
)

var (
	lpIOCGetDeviceID = ioctl.IOR('P', usblpIOCNR_GET_DEVICE_ID, 1024)
	lpIOCSoftReset   = ioctl.IO('P', usblpIOCNR_SOFT_RESET)
)

// USBLPTransport backs onto a Linux USB printer-class character device
// (/dev/usb/lp0 and friends), opened read/write. It is the transport the
// D4 engine and END4 backend run against on Linux hosts.
type USBLPTransport struct {
	opts   *Options
	closed atomic.Bool
	fd     int
}

// OpenUSBLP opens the usblp device node at path.
func OpenUSBLP(path string, opts *Options) (*USBLPTransport, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	fd, err := syscall.Open(path, syscall.O_RDWR, 0)
	if err != nil {
		return nil, errkind.TransportErr("open "+path, err)
	}
	return &USBLPTransport{opts: opts, fd: fd}, nil
}

func (t *USBLPTransport) Closed() bool { return t.closed.Load() }

func (t *USBLPTransport) Write(data []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	usblpLog.WithField("n", len(data)).Debug("write")
	for len(data) > 0 {
		n, err := syscall.Write(t.fd, data)
		if err != nil {
			return errkind.TransportErr("usblp write", err)
		}
		data = data[n:]
	}
	return nil
}

func (t *USBLPTransport) Read(buf []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	for len(buf) > 0 {
		n, err := t.readOnce(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func (t *USBLPTransport) readOnce(buf []byte) (int, error) {
	if t.opts.ReadTimeout > 0 {
		deadline := time.Now().Add(t.opts.ReadTimeout)
		for {
			n, err := syscall.Read(t.fd, buf)
			if err != nil {
				if err == syscall.EAGAIN && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
					continue
				}
				return 0, errkind.TransportErr("usblp read", err)
			}
			return n, nil
		}
	}
	n, err := syscall.Read(t.fd, buf)
	if err != nil {
		return 0, errkind.TransportErr("usblp read", err)
	}
	return n, nil
}

// Drain issues a soft-reset ioctl, which the usblp driver uses to flush
// any buffered, unread response data (periodic status blobs the printer
// emits unsolicited).
func (t *USBLPTransport) Drain() error {
	if t.closed.Load() {
		return ErrClosed
	}
	if err := ioctl.Ioctl(uintptr(t.fd), lpIOCSoftReset, 0); err != nil {
		return errkind.TransportErr("usblp soft reset", err)
	}
	return nil
}

// Identify retrieves the raw IEEE 1284 device ID string via
// LPIOC_GET_DEVICE_ID.
func (t *USBLPTransport) Identify() (string, error) {
	if t.closed.Load() {
		return "", ErrClosed
	}
	buf := make([]byte, 1024)
	if err := ioctl.Ioctl(uintptr(t.fd), lpIOCGetDeviceID, uintptr(unsafe.Pointer(&buf[0]))); err != nil {
		return "", errkind.TransportErr("usblp get device id", err)
	}
	// The first two bytes are a big-endian length prefix per the usblp
	// ABI; the remainder is the ASCII 1284 ID string.
	if len(buf) < 2 {
		return "", errkind.FormatErr("usblp device id reply too short", nil)
	}
	n := int(buf[0])<<8 | int(buf[1])
	if n < 2 {
		return "", nil
	}
	if n > len(buf) {
		n = len(buf)
	}
	return string(buf[2:n]), nil
}

func (t *USBLPTransport) Close() error {
	if t.closed.Swap(true) {
		return ErrClosed
	}
	fd := t.fd
	t.fd = -1
	return syscall.Close(fd)
}
