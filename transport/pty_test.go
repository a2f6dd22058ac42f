//go:build linux

package transport

import (
	"syscall"
	"testing"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// ptyPipe is a minimal full-duplex byte stream backed by a Linux PTY pair,
// trimmed from goserial's pty_linux.go (OpenPTY). TestPTYPipeRoundTrip
// uses it to exercise real blocking syscall reads; it is test code of this
// package only, and the D4/control test suites use Fake instead.
type ptyPipe struct {
	master, slave int
}

func openPTYPipe(t *testing.T) *ptyPipe {
	t.Helper()
	master, err := syscall.Open("/dev/ptmx", syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		t.Skipf("no /dev/ptmx available: %v", err)
	}
	var unlock int32
	if err := ioctl.Ioctl(uintptr(master), ioctl.IOW('T', 0x31, unsafe.Sizeof(int32(0))), uintptr(unsafe.Pointer(&unlock))); err != nil {
		syscall.Close(master)
		t.Skipf("cannot unlock pty: %v", err)
	}
	var n uint32
	if err := ioctl.Ioctl(uintptr(master), ioctl.IOR('T', 0x30, unsafe.Sizeof(n)), uintptr(unsafe.Pointer(&n))); err != nil {
		syscall.Close(master)
		t.Skipf("cannot read pty number: %v", err)
	}
	slavePath := "/dev/pts/" + itoa(int(n))
	slave, err := syscall.Open(slavePath, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		syscall.Close(master)
		t.Skipf("cannot open pty slave: %v", err)
	}
	p := &ptyPipe{master: master, slave: slave}
	t.Cleanup(p.close)
	return p
}

func (p *ptyPipe) close() {
	syscall.Close(p.master)
	syscall.Close(p.slave)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
